// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package optim provides gradient-descent optimizers over sparsenet
// network parameters, and per-epoch learning rate schedulers, both
// selected by name from configuration.
package optim

import (
	"github.com/emer/sparsenet/sparsenet"
	"github.com/goki/mat32"
	"github.com/pkg/errors"
)

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	// Step applies one update from the current gradients. Gradients are
	// not zeroed here -- callers zero them per batch.
	Step()

	LR() float32

	SetLR(lr float32)
}

// New creates an optimizer by name over the given parameters: "SGD" with
// momentum, or "Adam" (momentum ignored). Any other name is a lookup
// failure.
func New(name string, params []*sparsenet.Param, lr, momentum float32) (Optimizer, error) {
	switch name {
	case "SGD":
		return NewSGD(params, lr, momentum), nil
	case "Adam":
		return NewAdam(params, lr), nil
	}
	return nil, errors.Errorf("optim: incorrect optimizer value: %q", name)
}

// SGD is stochastic gradient descent with classical momentum.
type SGD struct {
	Params   []*sparsenet.Param
	Lr       float32
	Momentum float32

	vel [][]float32
}

func NewSGD(params []*sparsenet.Param, lr, momentum float32) *SGD {
	op := &SGD{Params: params, Lr: lr, Momentum: momentum}
	op.vel = make([][]float32, len(params))
	for pi, p := range params {
		op.vel[pi] = make([]float32, len(p.Wt.Values))
	}
	return op
}

func (op *SGD) LR() float32      { return op.Lr }
func (op *SGD) SetLR(lr float32) { op.Lr = lr }

func (op *SGD) Step() {
	for pi, p := range op.Params {
		vel := op.vel[pi]
		for i, g := range p.DWt.Values {
			v := op.Momentum*vel[i] + g
			vel[i] = v
			p.Wt.Values[i] -= op.Lr * v
		}
	}
}

// Adam is the Adam optimizer with standard defaults (beta1 0.9, beta2
// 0.999, eps 1e-8) and bias-corrected moment estimates.
type Adam struct {
	Params []*sparsenet.Param
	Lr     float32
	Beta1  float32
	Beta2  float32
	Eps    float32

	m, v [][]float32
	t    int
}

func NewAdam(params []*sparsenet.Param, lr float32) *Adam {
	op := &Adam{Params: params, Lr: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8}
	op.m = make([][]float32, len(params))
	op.v = make([][]float32, len(params))
	for pi, p := range params {
		op.m[pi] = make([]float32, len(p.Wt.Values))
		op.v[pi] = make([]float32, len(p.Wt.Values))
	}
	return op
}

func (op *Adam) LR() float32      { return op.Lr }
func (op *Adam) SetLR(lr float32) { op.Lr = lr }

func (op *Adam) Step() {
	op.t++
	bc1 := 1 - mat32.Pow(op.Beta1, float32(op.t))
	bc2 := 1 - mat32.Pow(op.Beta2, float32(op.t))
	for pi, p := range op.Params {
		m := op.m[pi]
		v := op.v[pi]
		for i, g := range p.DWt.Values {
			m[i] = op.Beta1*m[i] + (1-op.Beta1)*g
			v[i] = op.Beta2*v[i] + (1-op.Beta2)*g*g
			mhat := m[i] / bc1
			vhat := v[i] / bc2
			p.Wt.Values[i] -= op.Lr * mhat / (mat32.Sqrt(vhat) + op.Eps)
		}
	}
}
