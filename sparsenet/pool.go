// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import "github.com/emer/etable/etensor"

// MaxPool2d is non-overlapping max pooling over Size x Size windows.
// Input (Batch, Chan, H, W) -> output (Batch, Chan, H/Size, W/Size),
// truncating any remainder. Argmax positions are cached for Backward.
type MaxPool2d struct {
	Nm   string
	Size int

	// flat input index of the max within each output cell
	ArgMax []int

	inShape []int
}

func NewMaxPool2d(name string, size int) *MaxPool2d {
	return &MaxPool2d{Nm: name, Size: size}
}

func (ly *MaxPool2d) Name() string { return ly.Nm }

func (ly *MaxPool2d) Forward(x *etensor.Float32) *etensor.Float32 {
	bsz, ch, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	ho, wo := h/ly.Size, w/ly.Size
	ly.inShape = []int{bsz, ch, h, w}
	y := etensor.NewFloat32([]int{bsz, ch, ho, wo}, nil, []string{"Batch", "Chan", "Y", "X"})
	ly.ArgMax = make([]int, len(y.Values))
	for bi := 0; bi < bsz; bi++ {
		for ci := 0; ci < ch; ci++ {
			for yo := 0; yo < ho; yo++ {
				for xo := 0; xo < wo; xo++ {
					base := ((bi*ch+ci)*h + yo*ly.Size) * w
					mxi := base + xo*ly.Size
					mx := x.Values[mxi]
					for ky := 0; ky < ly.Size; ky++ {
						for kx := 0; kx < ly.Size; kx++ {
							vi := base + ky*w + xo*ly.Size + kx
							if x.Values[vi] > mx {
								mx = x.Values[vi]
								mxi = vi
							}
						}
					}
					oi := ((bi*ch+ci)*ho+yo)*wo + xo
					y.Values[oi] = mx
					ly.ArgMax[oi] = mxi
				}
			}
		}
	}
	return y
}

func (ly *MaxPool2d) Backward(grad *etensor.Float32) *etensor.Float32 {
	gx := etensor.NewFloat32(ly.inShape, nil, []string{"Batch", "Chan", "Y", "X"})
	for oi, mxi := range ly.ArgMax {
		gx.Values[mxi] += grad.Values[oi]
	}
	return gx
}
