// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import "github.com/emer/etable/etensor"

// Layer is one step in a sequential Network. Forward consumes the previous
// layer's activations and Backward consumes the gradient of the loss with
// respect to this layer's output, returning the gradient with respect to its
// input and accumulating any parameter gradients along the way. Backward for
// a given input must be called after the corresponding Forward, as layers
// cache whatever they need from the forward pass.
type Layer interface {
	Name() string

	Forward(x *etensor.Float32) *etensor.Float32

	Backward(grad *etensor.Float32) *etensor.Float32
}

// Param is one learnable parameter tensor and its accumulated gradient.
type Param struct {
	Nm  string
	Wt  *etensor.Float32
	DWt *etensor.Float32
}

// ParamLayer is a layer with learnable parameters.
type ParamLayer interface {
	Params() []*Param
}

// ModeLayer is a layer that behaves differently in training vs. inference,
// e.g., k-winners (boosting, duty-cycle updates) and batch norm.
type ModeLayer interface {
	SetTraining(on bool)
}

// BoostLayer supports the per-epoch boost strength decay update.
type BoostLayer interface {
	UpdateBoostStrength()
}

// RezeroLayer supports re-zeroing pruned weights, restoring the sparse
// weight mask after optimizer updates have leaked into masked entries.
type RezeroLayer interface {
	RezeroWeights()
}

// EntropyLayer reports the entropy of its unit duty cycles -- a measure of
// how evenly activation is distributed across units.
type EntropyLayer interface {
	Entropy() float32
}
