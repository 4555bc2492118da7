// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import (
	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"
)

// BatchNorm2d normalizes each channel of a (Batch, Chan, Y, X) input to
// zero mean, unit variance, without learned affine scale / shift. Batch
// statistics are used (and folded into running stats) during training;
// running stats are used during inference.
type BatchNorm2d struct {
	Nm       string
	Chans    int
	Eps      float32 `def:"1e-5"`
	Momentum float32 `def:"0.1" desc:"fraction of each batch's statistics folded into the running stats"`

	RunMean *etensor.Float32
	RunVar  *etensor.Float32

	Training bool

	// cached from Forward for Backward
	xhat []float32
	std  []float32
}

func NewBatchNorm2d(name string, chans int) *BatchNorm2d {
	ly := &BatchNorm2d{Nm: name, Chans: chans, Eps: 1e-5, Momentum: 0.1}
	ly.RunMean = etensor.NewFloat32([]int{chans}, nil, []string{"Chan"})
	ly.RunVar = etensor.NewFloat32([]int{chans}, nil, []string{"Chan"})
	for i := range ly.RunVar.Values {
		ly.RunVar.Values[i] = 1
	}
	ly.Training = true
	return ly
}

func (ly *BatchNorm2d) Name() string { return ly.Nm }

func (ly *BatchNorm2d) SetTraining(on bool) { ly.Training = on }

func (ly *BatchNorm2d) Forward(x *etensor.Float32) *etensor.Float32 {
	bsz, h, w := x.Dim(0), x.Dim(2), x.Dim(3)
	hw := h * w
	n := bsz * hw
	y := etensor.NewFloat32(x.Shp, nil, []string{"Batch", "Chan", "Y", "X"})
	ly.xhat = make([]float32, len(x.Values))
	ly.std = make([]float32, ly.Chans)
	for ci := 0; ci < ly.Chans; ci++ {
		mean := ly.RunMean.Values[ci]
		vr := ly.RunVar.Values[ci]
		if ly.Training {
			var sum float32
			for bi := 0; bi < bsz; bi++ {
				off := (bi*ly.Chans + ci) * hw
				for i := 0; i < hw; i++ {
					sum += x.Values[off+i]
				}
			}
			mean = sum / float32(n)
			var sqs float32
			for bi := 0; bi < bsz; bi++ {
				off := (bi*ly.Chans + ci) * hw
				for i := 0; i < hw; i++ {
					d := x.Values[off+i] - mean
					sqs += d * d
				}
			}
			vr = sqs / float32(n)
			// running stats fold in the unbiased variance; the biased one
			// is still what normalizes this batch
			uvr := vr
			if n > 1 {
				uvr = sqs / float32(n-1)
			}
			ly.RunMean.Values[ci] = (1-ly.Momentum)*ly.RunMean.Values[ci] + ly.Momentum*mean
			ly.RunVar.Values[ci] = (1-ly.Momentum)*ly.RunVar.Values[ci] + ly.Momentum*uvr
		}
		std := mat32.Sqrt(vr + ly.Eps)
		ly.std[ci] = std
		for bi := 0; bi < bsz; bi++ {
			off := (bi*ly.Chans + ci) * hw
			for i := 0; i < hw; i++ {
				xh := (x.Values[off+i] - mean) / std
				ly.xhat[off+i] = xh
				y.Values[off+i] = xh
			}
		}
	}
	return y
}

func (ly *BatchNorm2d) Backward(grad *etensor.Float32) *etensor.Float32 {
	bsz, h, w := grad.Dim(0), grad.Dim(2), grad.Dim(3)
	hw := h * w
	n := float32(bsz * hw)
	gx := etensor.NewFloat32(grad.Shp, nil, nil)
	if !ly.Training {
		// running stats are constants: gradient just rescales
		for ci := 0; ci < ly.Chans; ci++ {
			for bi := 0; bi < bsz; bi++ {
				off := (bi*ly.Chans + ci) * hw
				for i := 0; i < hw; i++ {
					gx.Values[off+i] = grad.Values[off+i] / ly.std[ci]
				}
			}
		}
		return gx
	}
	for ci := 0; ci < ly.Chans; ci++ {
		var gsum, gxhsum float32
		for bi := 0; bi < bsz; bi++ {
			off := (bi*ly.Chans + ci) * hw
			for i := 0; i < hw; i++ {
				gsum += grad.Values[off+i]
				gxhsum += grad.Values[off+i] * ly.xhat[off+i]
			}
		}
		for bi := 0; bi < bsz; bi++ {
			off := (bi*ly.Chans + ci) * hw
			for i := 0; i < hw; i++ {
				gx.Values[off+i] = (grad.Values[off+i] - gsum/n - ly.xhat[off+i]*gxhsum/n) / ly.std[ci]
			}
		}
	}
	return gx
}
