// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gim

import (
	"github.com/chewxy/math32"
	"github.com/emer/etable/etensor"
)

// Eps stabilizes log(softmax) against zero probabilities in the manual
// log-softmax variants.
const Eps = 1e-11

// reduce applies the reduction over n accumulated positions.
func reduce(sum float32, n int, red Reduction) float32 {
	if red == Mean && n > 0 {
		return sum / float32(n)
	}
	return sum
}

// logSumExp returns log sum exp of the class scores at position (bi,yi,xi)
// of t, over classes [lo, C), max-shifted for stability. An empty class
// range (single-class scores with lo 1, i.e. no negative samples) returns
// 0, so the contrastive denominator drops out instead of diverging.
func logSumExp(t *etensor.Float32, bi, yi, xi, lo int) float32 {
	nc, ny, nx := t.Dim(1), t.Dim(2), t.Dim(3)
	if lo >= nc {
		return 0
	}
	at := func(ci int) float32 {
		return t.Values[((bi*nc+ci)*ny+yi)*nx+xi]
	}
	mx := at(lo)
	for ci := lo + 1; ci < nc; ci++ {
		if v := at(ci); v > mx {
			mx = v
		}
	}
	var sum float32
	for ci := lo; ci < nc; ci++ {
		sum += math32.Exp(at(ci) - mx)
	}
	return mx + math32.Log(sum)
}

// crossEntropyZero is the cross entropy of one score tensor against the
// implicit all-zero targets: logsumexp over all classes minus the positive
// (class 0) score, reduced over the (Batch, Y, X) positions.
func crossEntropyZero(t *etensor.Float32, red Reduction) float32 {
	nb, nc, ny, nx := t.Dim(0), t.Dim(1), t.Dim(2), t.Dim(3)
	var sum float32
	for bi := 0; bi < nb; bi++ {
		for yi := 0; yi < ny; yi++ {
			for xi := 0; xi < nx; xi++ {
				pos := t.Values[((bi*nc)*ny+yi)*nx+xi]
				sum += logSumExp(t, bi, yi, xi, 0) - pos
			}
		}
	}
	return reduce(sum, nb*ny*nx, red)
}

// logSoftmaxNLLZero computes softmax over the class dimension, then
// log(p + Eps), then the negative log likelihood of class 0, reduced over
// the (Batch, Y, X) positions.
func logSoftmaxNLLZero(t *etensor.Float32, red Reduction) float32 {
	nb, nc, ny, nx := t.Dim(0), t.Dim(1), t.Dim(2), t.Dim(3)
	var sum float32
	for bi := 0; bi < nb; bi++ {
		for yi := 0; yi < ny; yi++ {
			for xi := 0; xi < nx; xi++ {
				pos := t.Values[((bi*nc)*ny+yi)*nx+xi]
				p0 := math32.Exp(pos - logSumExp(t, bi, yi, xi, 0))
				sum += -math32.Log(p0 + Eps)
			}
		}
	}
	return reduce(sum, nb*ny*nx, red)
}

// MultipleCrossEntropy calculates the cross entropy for the output of each
// BilinearInfo module and returns the sum over all modules and horizons.
func MultipleCrossEntropy(mods [][]*etensor.Float32, red Reduction) float32 {
	var total float32
	for _, horiz := range mods {
		for _, t := range horiz {
			total += crossEntropyZero(t, red)
		}
	}
	return total
}

// AllModuleMultipleLogSoftmax returns a vector of losses, one entry per
// BilinearInfo module: per horizon, manual log-softmax NLL of the positive
// class, averaged across the module's horizons.
//
// Use this loss function when training with distributed data parallel
// replicas, which need the per-module values to reduce themselves.
func AllModuleMultipleLogSoftmax(mods [][]*etensor.Float32, red Reduction) []float32 {
	losses := make([]float32, 0, len(mods))
	for _, horiz := range mods {
		var ml float32
		for _, t := range horiz {
			ml += logSoftmaxNLLZero(t, red)
		}
		ml /= float32(len(horiz))
		losses = append(losses, ml)
	}
	return losses
}

// MultipleLogSoftmaxNLL computes the log softmax of multiple BilinearInfo
// module outputs and then takes the sum of their negative log-likelihood
// losses as one scalar.
func MultipleLogSoftmaxNLL(mods [][]*etensor.Float32, red Reduction) float32 {
	var total float32
	for _, ml := range ModuleSpecificLogSoftmaxNLL(mods, red) {
		total += ml
	}
	return total
}

// ModuleSpecificLogSoftmaxNLL is MultipleLogSoftmaxNLL without the final
// sum: a vector with one entry per BilinearInfo module, each the module's
// horizon-averaged log-softmax NLL. The reduction argument is accepted for
// signature compatibility with the other variants but each horizon always
// contributes its mean.
func ModuleSpecificLogSoftmaxNLL(mods [][]*etensor.Float32, red Reduction) []float32 {
	_ = red
	losses := make([]float32, len(mods))
	for mi, horiz := range mods {
		for _, t := range horiz {
			losses[mi] += logSoftmaxNLLZero(t, Mean)
		}
		losses[mi] /= float32(len(horiz))
	}
	return losses
}

// TrueGIMLoss calculates the Greedy InfoMax objective as defined in the
// paper for each module and horizon, summed: the mean positive score minus
// the mean log-sum-exp of the negative scores only. Unlike the softmax
// variants, the positive sample is excluded from the denominator's
// normalization, which would otherwise count it twice.
func TrueGIMLoss(mods [][]*etensor.Float32, red Reduction) float32 {
	_ = red
	var total float32
	for _, horiz := range mods {
		for _, t := range horiz {
			nb, nc, ny, nx := t.Dim(0), t.Dim(1), t.Dim(2), t.Dim(3)
			n := float32(nb * ny * nx)
			var num, den float32
			for bi := 0; bi < nb; bi++ {
				for yi := 0; yi < ny; yi++ {
					for xi := 0; xi < nx; xi++ {
						num += t.Values[((bi*nc)*ny+yi)*nx+xi]
						den += logSumExp(t, bi, yi, xi, 1)
					}
				}
			}
			total += (num - den) / n
		}
	}
	return total
}

// ModuleSpecificCrossEntropy calculates the cross entropy loss for a single
// module out of the multiple BilinearInfo module outputs, summed over its
// horizons. A negative module index counts back from the last module.
func ModuleSpecificCrossEntropy(mods [][]*etensor.Float32, red Reduction, module int) float32 {
	if module < 0 {
		module += len(mods)
	}
	var total float32
	for _, t := range mods[module] {
		total += crossEntropyZero(t, red)
	}
	return total
}

// MultipleCrossEntropySupervised returns a vector of supervised
// classification losses, one per module: the cross entropy of each module's
// (Batch, Classes) classifier output against the integer targets. The
// original usage reduces with Sum.
func MultipleCrossEntropySupervised(outputs []*etensor.Float32, targets []int, red Reduction) []float32 {
	losses := make([]float32, len(outputs))
	for mi, t := range outputs {
		nb, nc := t.Dim(0), t.Dim(1)
		var sum float32
		for bi := 0; bi < nb; bi++ {
			off := bi * nc
			mx := t.Values[off]
			for ci := 1; ci < nc; ci++ {
				if t.Values[off+ci] > mx {
					mx = t.Values[off+ci]
				}
			}
			var es float32
			for ci := 0; ci < nc; ci++ {
				es += math32.Exp(t.Values[off+ci] - mx)
			}
			lse := mx + math32.Log(es)
			sum += lse - t.Values[off+targets[bi]]
		}
		losses[mi] = reduce(sum, nb, red)
	}
	return losses
}

// AllModuleLosses reduces per-module losses that were already computed in
// the forward pass (the data-parallel accommodation, where each replica
// contributes a partial value per module): the mean across replica entries
// for each module.
func AllModuleLosses(moduleLosses []*etensor.Float32, red Reduction) []float32 {
	_ = red
	losses := make([]float32, len(moduleLosses))
	for mi, t := range moduleLosses {
		var sum float32
		for _, v := range t.Values {
			sum += v
		}
		losses[mi] = sum / float32(len(t.Values))
	}
	return losses
}

// AllModuleLosses2 is AllModuleLosses for replicas that stack their
// partials along the trailing dimension (multi-device DataParallel); with
// per-module partial vectors the two reduce identically.
func AllModuleLosses2(moduleLosses []*etensor.Float32, red Reduction) []float32 {
	return AllModuleLosses(moduleLosses, red)
}
