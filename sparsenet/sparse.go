// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import "math/rand"

// SparseWeights wraps a Linear layer so that only Sparsity fraction of each
// output unit's incoming weights are allowed to be non-zero. The zero mask
// is chosen randomly at construction and is fixed for the life of the
// layer. Optimizer updates can make masked weights drift away from zero
// within an epoch; RezeroWeights clamps them back after each epoch.
type SparseWeights struct {
	*Linear
	Sparsity float32

	// mask[i] false means weight i is clamped at zero
	mask []bool
}

func NewSparseWeights(lin *Linear, sparsity float32) *SparseWeights {
	ly := &SparseWeights{Linear: lin, Sparsity: sparsity}
	ly.mask = sparseMask(lin.Out, lin.In, sparsity)
	ly.RezeroWeights()
	return ly
}

// sparseMask returns a per-output-unit random mask over nin inputs with
// sparsity fraction of entries kept.
func sparseMask(nout, nin int, sparsity float32) []bool {
	mask := make([]bool, nout*nin)
	nzero := nin - int(float32(nin)*sparsity)
	for oi := 0; oi < nout; oi++ {
		off := oi * nin
		for i := 0; i < nin; i++ {
			mask[off+i] = true
		}
		perm := rand.Perm(nin)
		for _, i := range perm[:nzero] {
			mask[off+i] = false
		}
	}
	return mask
}

// RezeroWeights zeros masked weights and their pending gradients.
func (ly *SparseWeights) RezeroWeights() {
	for i, on := range ly.mask {
		if !on {
			ly.Wt.Values[i] = 0
			ly.DWt.Values[i] = 0
		}
	}
}

// SparseWeights2d wraps a Conv2d layer, masking each output channel's
// (In, Kern, Kern) weight volume so only Sparsity fraction is non-zero.
type SparseWeights2d struct {
	*Conv2d
	Sparsity float32

	mask []bool
}

func NewSparseWeights2d(cnv *Conv2d, sparsity float32) *SparseWeights2d {
	ly := &SparseWeights2d{Conv2d: cnv, Sparsity: sparsity}
	ly.mask = sparseMask(cnv.Out, cnv.In*cnv.Kern*cnv.Kern, sparsity)
	ly.RezeroWeights()
	return ly
}

func (ly *SparseWeights2d) RezeroWeights() {
	for i, on := range ly.mask {
		if !on {
			ly.Wt.Values[i] = 0
			ly.DWt.Values[i] = 0
		}
	}
}
