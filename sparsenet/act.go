// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import (
	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"
)

// ReLU is the standard rectified-linear activation, used in place of
// k-winners when percent-on is outside (0,1).
type ReLU struct {
	Nm string

	mask []bool
}

func NewReLU(name string) *ReLU { return &ReLU{Nm: name} }

func (ly *ReLU) Name() string { return ly.Nm }

func (ly *ReLU) Forward(x *etensor.Float32) *etensor.Float32 {
	y := etensor.NewFloat32(x.Shp, nil, nil)
	ly.mask = make([]bool, len(x.Values))
	for i, v := range x.Values {
		if v > 0 {
			y.Values[i] = v
			ly.mask[i] = true
		}
	}
	return y
}

func (ly *ReLU) Backward(grad *etensor.Float32) *etensor.Float32 {
	gx := etensor.NewFloat32(grad.Shp, nil, nil)
	for i, on := range ly.mask {
		if on {
			gx.Values[i] = grad.Values[i]
		}
	}
	return gx
}

// Flatten reshapes (Batch, ...) input to (Batch, N), preserving values.
type Flatten struct {
	Nm string

	inShape []int
}

func NewFlatten(name string) *Flatten { return &Flatten{Nm: name} }

func (ly *Flatten) Name() string { return ly.Nm }

func (ly *Flatten) Forward(x *etensor.Float32) *etensor.Float32 {
	bsz := x.Dim(0)
	n := x.Len() / bsz
	ly.inShape = x.Shp
	y := etensor.NewFloat32([]int{bsz, n}, nil, []string{"Batch", "N"})
	copy(y.Values, x.Values)
	return y
}

func (ly *Flatten) Backward(grad *etensor.Float32) *etensor.Float32 {
	gx := etensor.NewFloat32(ly.inShape, nil, nil)
	copy(gx.Values, grad.Values)
	return gx
}

// LogSoftmax computes numerically-stable log softmax over the class
// dimension of (Batch, Classes) input, shifting by the per-sample max
// before exponentiating.
type LogSoftmax struct {
	Nm string

	// cached output for Backward
	Y *etensor.Float32
}

func NewLogSoftmax(name string) *LogSoftmax { return &LogSoftmax{Nm: name} }

func (ly *LogSoftmax) Name() string { return ly.Nm }

func (ly *LogSoftmax) Forward(x *etensor.Float32) *etensor.Float32 {
	bsz, n := x.Dim(0), x.Dim(1)
	y := etensor.NewFloat32([]int{bsz, n}, nil, []string{"Batch", "Class"})
	for bi := 0; bi < bsz; bi++ {
		off := bi * n
		mx := x.Values[off]
		for i := 1; i < n; i++ {
			if x.Values[off+i] > mx {
				mx = x.Values[off+i]
			}
		}
		var sum float32
		for i := 0; i < n; i++ {
			sum += mat32.Exp(x.Values[off+i] - mx)
		}
		lse := mx + mat32.Log(sum)
		for i := 0; i < n; i++ {
			y.Values[off+i] = x.Values[off+i] - lse
		}
	}
	ly.Y = y
	return y
}

func (ly *LogSoftmax) Backward(grad *etensor.Float32) *etensor.Float32 {
	bsz, n := grad.Dim(0), grad.Dim(1)
	gx := etensor.NewFloat32([]int{bsz, n}, nil, nil)
	for bi := 0; bi < bsz; bi++ {
		off := bi * n
		var gsum float32
		for i := 0; i < n; i++ {
			gsum += grad.Values[off+i]
		}
		for i := 0; i < n; i++ {
			gx.Values[off+i] = grad.Values[off+i] - mat32.Exp(ly.Y.Values[off+i])*gsum
		}
	}
	return gx
}
