// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package data

import "math/rand"

// Transform modifies one sample's pixel values in place, applied to the
// loader's private copy of each image.
type Transform interface {
	Apply(vals []float32)
}

// Normalize shifts and scales pixels: (v - Mean) / Std.
type Normalize struct {
	Mean float32
	Std  float32
}

func (tr Normalize) Apply(vals []float32) {
	for i := range vals {
		vals[i] = (vals[i] - tr.Mean) / tr.Std
	}
}

// RandomNoise sets Pct fraction of randomly chosen pixels to HighVal,
// simulating salt noise. Applied before normalization, so the default
// HighVal of mean + 2 std (in raw pixel units) lands two standard
// deviations out after normalizing.
type RandomNoise struct {
	Pct     float32
	HighVal float32
}

// NewRandomNoise returns a RandomNoise at the given level with the
// default high value.
func NewRandomNoise(pct float32) RandomNoise {
	return RandomNoise{Pct: pct, HighVal: MNISTMean + 2*MNISTStd}
}

func (tr RandomNoise) Apply(vals []float32) {
	ncorrupt := int(tr.Pct * float32(len(vals)))
	if ncorrupt == 0 {
		return
	}
	for _, pi := range rand.Perm(len(vals))[:ncorrupt] {
		vals[pi] = tr.HighVal
	}
}
