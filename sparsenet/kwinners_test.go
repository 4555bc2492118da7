// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import (
	"testing"

	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"
)

const difTol = float32(1.0e-6)

func CmprFloats(got, trg []float32, msg string, t *testing.T) {
	for i := range got {
		dif := mat32.Abs(got[i] - trg[i])
		if dif > difTol {
			t.Errorf("%v err: got: %v, trg: %v, dif: %v\n", msg, got[i], trg[i], dif)
		}
	}
}

func tsr1d(vals ...float32) *etensor.Float32 {
	tsr := etensor.NewFloat32([]int{1, len(vals)}, nil, nil)
	copy(tsr.Values, vals)
	return tsr
}

func TestKWinnersK(t *testing.T) {
	ly := NewKWinners("kw", 10, 0.3, 2, 1, 1)
	if k := ly.K(); k != 3 {
		t.Errorf("training k: got %d, want 3", k)
	}
	ly.SetTraining(false)
	if k := ly.K(); k != 6 {
		t.Errorf("inference k: got %d, want 6", k)
	}
	ly.Params.KInferenceFactor = 100
	if k := ly.K(); k != 10 {
		t.Errorf("inference k capped at n: got %d, want 10", k)
	}
}

func TestKWinnersForward(t *testing.T) {
	ly := NewKWinners("kw", 4, 0.5, 1, 0, 1) // boosting off
	y := ly.Forward(tsr1d(1, 3, 2, 4))
	CmprFloats(y.Values, []float32{0, 3, 0, 4}, "top 2 of 4 kept, raw values", t)

	// after one sample, the duty cycle is just the winner indicator
	CmprFloats(ly.DutyCycle.Values, []float32{0, 1, 0, 1}, "duty cycle after first sample", t)

	grad := tsr1d(1, 1, 1, 1)
	gx := ly.Backward(grad)
	CmprFloats(gx.Values, []float32{0, 1, 0, 1}, "gradient gated by winner mask", t)
}

func TestKWinnersBoosting(t *testing.T) {
	ly := NewKWinners("kw", 2, 0.5, 1, 10, 1)
	ly.DutyCycle.Values[0] = 0.9 // over-used unit
	y := ly.Forward(tsr1d(1.0, 0.9))
	// boosting scales unit 0 by exp(10*(0.5-0.9)) and unit 1 by
	// exp(10*0.5), so the under-used unit wins despite the lower input
	CmprFloats(y.Values, []float32{0, 0.9}, "under-used unit wins", t)

	// inference applies no boosting: the raw max wins
	ly2 := NewKWinners("kw2", 2, 0.5, 1, 10, 1)
	ly2.DutyCycle.Values[0] = 0.9
	ly2.SetTraining(false)
	y = ly2.Forward(tsr1d(1.0, 0.9))
	CmprFloats(y.Values, []float32{1, 0}, "no boosting at inference", t)
}

func TestKWinnersDutyCyclePeriod(t *testing.T) {
	ly := NewKWinners("kw", 2, 0.5, 1, 0, 1)
	ly.Params.DutyCyclePeriod = 4
	// unit 1 wins every sample
	for i := 0; i < 2; i++ {
		ly.Forward(tsr1d(0, 1))
	}
	// period ramps with samples seen: after 2 samples the duty cycle is
	// exactly the observed rate
	CmprFloats(ly.DutyCycle.Values, []float32{0, 1}, "ramp-up period equals samples seen", t)
	ly.Forward(tsr1d(1, 0)) // unit 0 wins once; period now 3
	CmprFloats(ly.DutyCycle.Values, []float32{1.0 / 3, 2.0 / 3}, "third sample folded in", t)
}

func TestKWinnersBoostStrengthUpdate(t *testing.T) {
	ly := NewKWinners("kw", 4, 0.5, 1, 2, 0.5)
	ly.UpdateBoostStrength()
	CmprFloats([]float32{ly.Params.BoostStrength}, []float32{1}, "boost decayed", t)
	ly.UpdateBoostStrength()
	CmprFloats([]float32{ly.Params.BoostStrength}, []float32{0.5}, "boost decayed again", t)
}

func TestKWinnersEntropy(t *testing.T) {
	ly := NewKWinners("kw", 3, 0.5, 1, 1, 1)
	ly.DutyCycle.Values[0] = 0.5 // 1 bit
	ly.DutyCycle.Values[1] = 0   // saturated, no contribution
	ly.DutyCycle.Values[2] = 1
	CmprFloats([]float32{ly.Entropy()}, []float32{1}, "binary entropy of duty cycles", t)
}

func TestKWinners2dForward(t *testing.T) {
	ly := NewKWinners2d("kw2d", 2, 0.25, 1, 0, 1)
	// (1, 2, 2, 2): 8 positions, k = 2, top values 8 and 7
	x := etensor.NewFloat32([]int{1, 2, 2, 2}, nil, nil)
	copy(x.Values, []float32{1, 8, 2, 3, 7, 4, 5, 6})
	y := ly.Forward(x)
	CmprFloats(y.Values, []float32{0, 8, 0, 0, 7, 0, 0, 0}, "volume-wide top k", t)

	// each channel had 1 of 4 positions active
	CmprFloats(ly.DutyCycle.Values, []float32{0.25, 0.25}, "per-channel duty cycle", t)

	// per-channel entropy scaled by spatial positions: 2 channels at
	// duty 0.25 give 2*H(0.25) bits, times n/chans = 4
	h25 := -(0.25*mat32.Log(0.25) + 0.75*mat32.Log(0.75)) / mat32.Log(2)
	if dif := mat32.Abs(ly.Entropy() - 2*h25*4); dif > 1.0e-4 {
		t.Errorf("entropy scaled by spatial extent: got %v, want %v", ly.Entropy(), 2*h25*4)
	}
}
