// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gim

import (
	"testing"

	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"
)

// tolerance for comparing against hand-computed values -- the Eps term in
// the log-softmax variants perturbs the low decimals
const difTol = float32(1.0e-5)

func CmprFloats(got, trg []float32, msg string, t *testing.T) {
	for i := range got {
		dif := mat32.Abs(got[i] - trg[i])
		if dif > difTol {
			t.Errorf("%v err: got: %v, trg: %v, dif: %v\n", msg, got[i], trg[i], dif)
		}
	}
}

// scores builds a (1, C, 1, 1) score tensor, positive sample at class 0.
func scores(vals ...float32) *etensor.Float32 {
	tsr := etensor.NewFloat32([]int{1, len(vals), 1, 1}, nil, nil)
	copy(tsr.Values, vals)
	return tsr
}

func TestMultipleCrossEntropy(t *testing.T) {
	mods := [][]*etensor.Float32{{scores(1, 0, -1)}}
	// logsumexp(1,0,-1) = 1.4076060, minus the positive score 1
	got := MultipleCrossEntropy(mods, Mean)
	CmprFloats([]float32{got}, []float32{0.4076060}, "single position cross entropy", t)

	// Sum and Mean agree over a single position
	CmprFloats([]float32{MultipleCrossEntropy(mods, Sum)}, []float32{got}, "sum == mean for one position", t)

	// two horizons double the total
	mods2 := [][]*etensor.Float32{{scores(1, 0, -1), scores(1, 0, -1)}}
	CmprFloats([]float32{MultipleCrossEntropy(mods2, Mean)}, []float32{2 * got}, "two horizons", t)
}

func TestLogSoftmaxMatchesCrossEntropy(t *testing.T) {
	// for one module with one horizon the manual log-softmax NLL and the
	// cross entropy against class 0 compute the same quantity
	mods := [][]*etensor.Float32{{scores(0.5, -0.25, 1.5, -2)}}
	ce := MultipleCrossEntropy(mods, Mean)
	nll := MultipleLogSoftmaxNLL(mods, Mean)
	CmprFloats([]float32{nll}, []float32{ce}, "log softmax nll vs cross entropy", t)
}

func TestModuleSpecificSumsToTotal(t *testing.T) {
	mods := [][]*etensor.Float32{
		{scores(1, 0, -1), scores(0.2, 0.4, -0.3)},
		{scores(-1, 2, 0)},
	}
	per := ModuleSpecificLogSoftmaxNLL(mods, Mean)
	if len(per) != 2 {
		t.Fatalf("expected 2 module losses, got %d", len(per))
	}
	var sum float32
	for _, ml := range per {
		sum += ml
	}
	CmprFloats([]float32{MultipleLogSoftmaxNLL(mods, Mean)}, []float32{sum}, "total is sum of per-module", t)

	// the reduction argument does not change the per-module values
	perSum := ModuleSpecificLogSoftmaxNLL(mods, Sum)
	CmprFloats(perSum, per, "reduction ignored in module specific variant", t)
}

func TestHorizonAveraging(t *testing.T) {
	one := [][]*etensor.Float32{{scores(1, 0, -1)}}
	two := [][]*etensor.Float32{{scores(1, 0, -1), scores(1, 0, -1)}}
	l1 := AllModuleMultipleLogSoftmax(one, Mean)
	l2 := AllModuleMultipleLogSoftmax(two, Mean)
	CmprFloats(l2, l1, "identical horizons average to the same loss", t)
}

func TestTrueGIMLoss(t *testing.T) {
	// positive 2, negatives 0 and 0: numerator mean 2, denominator
	// logsumexp over negatives only = log(2)
	mods := [][]*etensor.Float32{{scores(2, 0, 0)}}
	got := TrueGIMLoss(mods, Mean)
	CmprFloats([]float32{got}, []float32{2 - 0.6931472}, "positive excluded from denominator", t)

	// the softmax-based loss counts the positive in its denominator, so
	// the two must differ on the same scores
	nll := MultipleLogSoftmaxNLL(mods, Mean)
	if mat32.Abs(got-nll) < difTol {
		t.Errorf("true GIM loss %v unexpectedly equals softmax NLL %v", got, nll)
	}
}

func TestTrueGIMLossNoNegatives(t *testing.T) {
	// single class means no negative samples: the contrastive denominator
	// is empty (contributes 0) and the softmax variant sees probability 1.
	// At a zero positive score the two objectives coincide; any nonzero
	// score separates them, since only TrueGIMLoss keeps the raw score.
	zero := [][]*etensor.Float32{{scores(0)}}
	gl := TrueGIMLoss(zero, Mean)
	sl := AllModuleMultipleLogSoftmax(zero, Mean)
	CmprFloats([]float32{gl}, []float32{0}, "no negatives, zero score", t)
	CmprFloats(sl, []float32{gl}, "variants agree at zero score", t)

	pos := [][]*etensor.Float32{{scores(0.7)}}
	gl = TrueGIMLoss(pos, Mean)
	sl = AllModuleMultipleLogSoftmax(pos, Mean)
	CmprFloats([]float32{gl}, []float32{0.7}, "raw positive score kept", t)
	if mat32.Abs(gl-sl[0]) < difTol {
		t.Errorf("variants unexpectedly agree at nonzero score: %v vs %v", gl, sl[0])
	}
}

func TestModuleSpecificCrossEntropy(t *testing.T) {
	mods := [][]*etensor.Float32{
		{scores(1, 0, -1)},
		{scores(0.5, 0.5, 0.5)},
	}
	last := ModuleSpecificCrossEntropy(mods, Mean, 1)
	neg := ModuleSpecificCrossEntropy(mods, Mean, -1)
	CmprFloats([]float32{neg}, []float32{last}, "negative index counts from the end", t)
	// uniform scores: lse = log(3 e^0.5) = 0.5 + log(3), minus 0.5
	CmprFloats([]float32{last}, []float32{1.0986123}, "uniform scores", t)
}

func TestMultipleCrossEntropySupervised(t *testing.T) {
	out := etensor.NewFloat32([]int{2, 2}, nil, nil) // all zero scores
	losses := MultipleCrossEntropySupervised([]*etensor.Float32{out}, []int{0, 1}, Sum)
	CmprFloats(losses, []float32{1.3862944}, "sum reduction over two samples", t)
	losses = MultipleCrossEntropySupervised([]*etensor.Float32{out}, []int{0, 1}, Mean)
	CmprFloats(losses, []float32{0.6931472}, "mean reduction over two samples", t)
}

func TestAllModuleLosses(t *testing.T) {
	p0 := etensor.NewFloat32([]int{2}, nil, nil)
	p0.Values[0], p0.Values[1] = 1, 3
	p1 := etensor.NewFloat32([]int{1}, nil, nil)
	p1.Values[0] = 5
	got := AllModuleLosses([]*etensor.Float32{p0, p1}, Mean)
	CmprFloats(got, []float32{2, 5}, "replica partials averaged per module", t)
	got2 := AllModuleLosses2([]*etensor.Float32{p0, p1}, Mean)
	CmprFloats(got2, got, "stacked variant reduces identically", t)
}

func TestReductionString(t *testing.T) {
	if Mean.String() != "Mean" || Sum.String() != "Sum" {
		t.Errorf("reduction names wrong: %v %v", Mean, Sum)
	}
	var red Reduction
	if err := red.FromString("Sum"); err != nil {
		t.Fatal(err)
	}
	if red != Sum {
		t.Errorf("FromString(Sum) = %v", red)
	}
}
