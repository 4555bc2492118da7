// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import (
	"math/rand"

	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"
)

// Linear is a dense affine layer: y = Wt x + Bias.
// Wt is (Out, In), Bias is (Out). Input and output are (Batch, In) and
// (Batch, Out).
type Linear struct {
	Nm    string
	In    int
	Out   int
	Wt    *etensor.Float32
	Bias  *etensor.Float32
	DWt   *etensor.Float32
	DBias *etensor.Float32

	// input cached from last Forward, for Backward
	X *etensor.Float32
}

// NewLinear creates a Linear layer with uniform +-1/sqrt(in) weight init.
func NewLinear(name string, in, out int) *Linear {
	ly := &Linear{Nm: name, In: in, Out: out}
	ly.Wt = etensor.NewFloat32([]int{out, in}, nil, []string{"Out", "In"})
	ly.Bias = etensor.NewFloat32([]int{out}, nil, []string{"Out"})
	ly.DWt = etensor.NewFloat32([]int{out, in}, nil, []string{"Out", "In"})
	ly.DBias = etensor.NewFloat32([]int{out}, nil, []string{"Out"})
	bound := 1.0 / mat32.Sqrt(float32(in))
	for i := range ly.Wt.Values {
		ly.Wt.Values[i] = bound * (2*rand.Float32() - 1)
	}
	for i := range ly.Bias.Values {
		ly.Bias.Values[i] = bound * (2*rand.Float32() - 1)
	}
	return ly
}

func (ly *Linear) Name() string { return ly.Nm }

func (ly *Linear) Params() []*Param {
	return []*Param{
		{Nm: ly.Nm + ".Wt", Wt: ly.Wt, DWt: ly.DWt},
		{Nm: ly.Nm + ".Bias", Wt: ly.Bias, DWt: ly.DBias},
	}
}

func (ly *Linear) Forward(x *etensor.Float32) *etensor.Float32 {
	bsz := x.Dim(0)
	ly.X = x
	y := etensor.NewFloat32([]int{bsz, ly.Out}, nil, []string{"Batch", "Out"})
	for bi := 0; bi < bsz; bi++ {
		xoff := bi * ly.In
		yoff := bi * ly.Out
		for oi := 0; oi < ly.Out; oi++ {
			sum := ly.Bias.Values[oi]
			woff := oi * ly.In
			for ii := 0; ii < ly.In; ii++ {
				sum += ly.Wt.Values[woff+ii] * x.Values[xoff+ii]
			}
			y.Values[yoff+oi] = sum
		}
	}
	return y
}

func (ly *Linear) Backward(grad *etensor.Float32) *etensor.Float32 {
	bsz := grad.Dim(0)
	gx := etensor.NewFloat32([]int{bsz, ly.In}, nil, []string{"Batch", "In"})
	for bi := 0; bi < bsz; bi++ {
		xoff := bi * ly.In
		goff := bi * ly.Out
		for oi := 0; oi < ly.Out; oi++ {
			g := grad.Values[goff+oi]
			if g == 0 {
				continue
			}
			ly.DBias.Values[oi] += g
			woff := oi * ly.In
			for ii := 0; ii < ly.In; ii++ {
				ly.DWt.Values[woff+ii] += g * ly.X.Values[xoff+ii]
				gx.Values[xoff+ii] += g * ly.Wt.Values[woff+ii]
			}
		}
	}
	return gx
}
