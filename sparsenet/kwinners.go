// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import (
	"sort"

	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"
)

// KWinnersParams are the parameters shared by the 1D and 2D k-winners
// activation layers.
type KWinnersParams struct {
	PctOn               float32 `min:"0" max:"1" desc:"fraction of units allowed to remain active per sample -- outside (0,1) the builder uses ReLU instead"`
	KInferenceFactor    float32 `def:"1" desc:"k is multiplied by this factor during inference, letting more units through than during training"`
	BoostStrength       float32 `min:"0" desc:"current boost strength b -- under-used units have their inputs scaled by exp(b * (target - dutycycle)) when selecting winners -- 0 disables boosting"`
	BoostStrengthFactor float32 `min:"0" max:"1" desc:"boost strength is multiplied by this factor after each epoch"`
	DutyCyclePeriod     int     `def:"1000" desc:"averaging period (in samples) for the unit duty cycles"`
}

func (kp *KWinnersParams) Defaults() {
	kp.PctOn = 0.1
	kp.KInferenceFactor = 1
	kp.BoostStrength = 1
	kp.BoostStrengthFactor = 1
	kp.DutyCyclePeriod = 1000
}

// binaryEntropy returns the total binary entropy (in bits) over the given
// duty cycle values.
func binaryEntropy(duty []float32) float32 {
	log2 := 1.0 / mat32.Log(2)
	var ent float32
	for _, p := range duty {
		if p <= 0 || p >= 1 {
			continue
		}
		ent -= (p*mat32.Log(p) + (1-p)*mat32.Log(1-p)) * log2
	}
	return ent
}

// topK marks the indices of the k largest values in vals as true in mask.
func topK(vals []float32, k int, mask []bool) {
	n := len(vals)
	if k >= n {
		for i := range mask {
			mask[i] = true
		}
		return
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return vals[idx[a]] > vals[idx[b]] })
	for i := 0; i < k; i++ {
		mask[idx[i]] = true
	}
}

// KWinners keeps only the top-k most active units per sample of a
// (Batch, N) input, where k = PctOn * N. During training, winner selection
// is boosted in favor of units with low duty cycles, and duty cycles are
// updated from each batch. During inference k is scaled by KInferenceFactor
// and no boosting is applied. Output values are the raw inputs at winning
// units, zero elsewhere.
type KWinners struct {
	Nm     string
	N      int
	Params KWinnersParams

	// per-unit running duty cycle (fraction of samples the unit was active)
	DutyCycle *etensor.Float32

	// total samples seen, for the duty cycle averaging period ramp-up
	LearnSamples int

	Training bool

	mask []bool
}

func NewKWinners(name string, n int, pctOn, kInferenceFactor, boostStrength, boostStrengthFactor float32) *KWinners {
	ly := &KWinners{Nm: name, N: n}
	ly.Params.Defaults()
	ly.Params.PctOn = pctOn
	ly.Params.KInferenceFactor = kInferenceFactor
	ly.Params.BoostStrength = boostStrength
	ly.Params.BoostStrengthFactor = boostStrengthFactor
	ly.DutyCycle = etensor.NewFloat32([]int{n}, nil, []string{"Unit"})
	ly.Training = true
	return ly
}

func (ly *KWinners) Name() string { return ly.Nm }

func (ly *KWinners) SetTraining(on bool) { ly.Training = on }

// K returns the current number of winners: PctOn * N during training,
// scaled by KInferenceFactor (capped at N) during inference.
func (ly *KWinners) K() int {
	k := int(mat32.Round(ly.Params.PctOn * float32(ly.N)))
	if !ly.Training {
		k = int(mat32.Round(float32(k) * ly.Params.KInferenceFactor))
	}
	if k > ly.N {
		k = ly.N
	}
	if k < 1 {
		k = 1
	}
	return k
}

func (ly *KWinners) Forward(x *etensor.Float32) *etensor.Float32 {
	bsz := x.Dim(0)
	k := ly.K()
	y := etensor.NewFloat32([]int{bsz, ly.N}, nil, []string{"Batch", "Unit"})
	ly.mask = make([]bool, bsz*ly.N)
	boosted := x.Values
	if ly.Training && ly.Params.BoostStrength > 0 {
		boosted = make([]float32, len(x.Values))
		for bi := 0; bi < bsz; bi++ {
			off := bi * ly.N
			for i := 0; i < ly.N; i++ {
				bf := mat32.Exp(ly.Params.BoostStrength * (ly.Params.PctOn - ly.DutyCycle.Values[i]))
				boosted[off+i] = x.Values[off+i] * bf
			}
		}
	}
	for bi := 0; bi < bsz; bi++ {
		off := bi * ly.N
		topK(boosted[off:off+ly.N], k, ly.mask[off:off+ly.N])
		for i := 0; i < ly.N; i++ {
			if ly.mask[off+i] {
				y.Values[off+i] = x.Values[off+i]
			}
		}
	}
	if ly.Training {
		ly.updateDutyCycle(y)
	}
	return y
}

// updateDutyCycle folds the fraction of samples each unit was active on in
// this batch into the running duty cycle, over a period that ramps up to
// DutyCyclePeriod as samples accumulate.
func (ly *KWinners) updateDutyCycle(y *etensor.Float32) {
	bsz := y.Dim(0)
	ly.LearnSamples += bsz
	period := ly.Params.DutyCyclePeriod
	if ly.LearnSamples < period {
		period = ly.LearnSamples
	}
	for i := 0; i < ly.N; i++ {
		on := 0
		for bi := 0; bi < bsz; bi++ {
			if y.Values[bi*ly.N+i] > 0 {
				on++
			}
		}
		dc := ly.DutyCycle.Values[i]
		ly.DutyCycle.Values[i] = (dc*float32(period-bsz) + float32(on)) / float32(period)
	}
}

func (ly *KWinners) Backward(grad *etensor.Float32) *etensor.Float32 {
	gx := etensor.NewFloat32(grad.Shp, nil, nil)
	for i, on := range ly.mask {
		if on {
			gx.Values[i] = grad.Values[i]
		}
	}
	return gx
}

// UpdateBoostStrength decays the boost strength by its per-epoch factor.
func (ly *KWinners) UpdateBoostStrength() {
	ly.Params.BoostStrength *= ly.Params.BoostStrengthFactor
}

// Entropy returns the total binary entropy of the unit duty cycles.
func (ly *KWinners) Entropy() float32 {
	return binaryEntropy(ly.DutyCycle.Values)
}

// KWinners2d is the k-winners activation over a (Batch, Chan, Y, X) input,
// selecting the top k = PctOn * Chan*Y*X positions across the whole volume
// per sample. Duty cycles are tracked per channel, as the fraction of
// spatial positions active, so Entropy scales the per-channel entropy by
// the spatial extent.
type KWinners2d struct {
	Nm     string
	Chans  int
	Params KWinnersParams

	// per-channel running duty cycle
	DutyCycle *etensor.Float32

	LearnSamples int

	Training bool

	// n = Chans*Y*X, set on first Forward when the spatial size is known
	n int

	mask []bool
}

func NewKWinners2d(name string, chans int, pctOn, kInferenceFactor, boostStrength, boostStrengthFactor float32) *KWinners2d {
	ly := &KWinners2d{Nm: name, Chans: chans}
	ly.Params.Defaults()
	ly.Params.PctOn = pctOn
	ly.Params.KInferenceFactor = kInferenceFactor
	ly.Params.BoostStrength = boostStrength
	ly.Params.BoostStrengthFactor = boostStrengthFactor
	ly.DutyCycle = etensor.NewFloat32([]int{chans}, nil, []string{"Chan"})
	ly.Training = true
	return ly
}

func (ly *KWinners2d) Name() string { return ly.Nm }

func (ly *KWinners2d) SetTraining(on bool) { ly.Training = on }

func (ly *KWinners2d) k() int {
	k := int(mat32.Round(ly.Params.PctOn * float32(ly.n)))
	if !ly.Training {
		k = int(mat32.Round(float32(k) * ly.Params.KInferenceFactor))
	}
	if k > ly.n {
		k = ly.n
	}
	if k < 1 {
		k = 1
	}
	return k
}

func (ly *KWinners2d) Forward(x *etensor.Float32) *etensor.Float32 {
	bsz, h, w := x.Dim(0), x.Dim(2), x.Dim(3)
	ly.n = ly.Chans * h * w
	k := ly.k()
	y := etensor.NewFloat32(x.Shp, nil, []string{"Batch", "Chan", "Y", "X"})
	ly.mask = make([]bool, len(x.Values))
	boosted := x.Values
	if ly.Training && ly.Params.BoostStrength > 0 {
		boosted = make([]float32, len(x.Values))
		hw := h * w
		for bi := 0; bi < bsz; bi++ {
			for ci := 0; ci < ly.Chans; ci++ {
				bf := mat32.Exp(ly.Params.BoostStrength * (ly.Params.PctOn - ly.DutyCycle.Values[ci]))
				off := (bi*ly.Chans + ci) * hw
				for i := 0; i < hw; i++ {
					boosted[off+i] = x.Values[off+i] * bf
				}
			}
		}
	}
	for bi := 0; bi < bsz; bi++ {
		off := bi * ly.n
		topK(boosted[off:off+ly.n], k, ly.mask[off:off+ly.n])
		for i := 0; i < ly.n; i++ {
			if ly.mask[off+i] {
				y.Values[off+i] = x.Values[off+i]
			}
		}
	}
	if ly.Training {
		ly.updateDutyCycle(y, bsz, h*w)
	}
	return y
}

func (ly *KWinners2d) updateDutyCycle(y *etensor.Float32, bsz, hw int) {
	ly.LearnSamples += bsz
	period := ly.Params.DutyCyclePeriod
	if ly.LearnSamples < period {
		period = ly.LearnSamples
	}
	for ci := 0; ci < ly.Chans; ci++ {
		on := 0
		for bi := 0; bi < bsz; bi++ {
			off := (bi*ly.Chans + ci) * hw
			for i := 0; i < hw; i++ {
				if y.Values[off+i] > 0 {
					on++
				}
			}
		}
		dc := ly.DutyCycle.Values[ci]
		ly.DutyCycle.Values[ci] = (dc*float32(period-bsz) + float32(on)/float32(hw)) / float32(period)
	}
}

func (ly *KWinners2d) Backward(grad *etensor.Float32) *etensor.Float32 {
	gx := etensor.NewFloat32(grad.Shp, nil, nil)
	for i, on := range ly.mask {
		if on {
			gx.Values[i] = grad.Values[i]
		}
	}
	return gx
}

func (ly *KWinners2d) UpdateBoostStrength() {
	ly.Params.BoostStrength *= ly.Params.BoostStrengthFactor
}

// Entropy returns the per-channel duty cycle entropy scaled up by the
// number of spatial positions per channel.
func (ly *KWinners2d) Entropy() float32 {
	ent := binaryEntropy(ly.DutyCycle.Values)
	if ly.Chans > 0 && ly.n > 0 {
		ent *= float32(ly.n) / float32(ly.Chans)
	}
	return ent
}
