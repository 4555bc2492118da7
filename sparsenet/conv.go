// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import (
	"math/rand"

	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"
)

// Conv2d is a 2D convolution layer with no padding.
// Wt is (Out, In, Kern, Kern); input is (Batch, In, H, W) and output is
// (Batch, Out, Ho, Wo) with Ho = (H-Kern)/Stride + 1.
type Conv2d struct {
	Nm     string
	In     int
	Out    int
	Kern   int
	Stride int
	Wt     *etensor.Float32
	Bias   *etensor.Float32
	DWt    *etensor.Float32
	DBias  *etensor.Float32

	X *etensor.Float32
}

// NewConv2d creates a Conv2d layer with uniform +-1/sqrt(in*kern*kern)
// weight init.
func NewConv2d(name string, in, out, kern, stride int) *Conv2d {
	ly := &Conv2d{Nm: name, In: in, Out: out, Kern: kern, Stride: stride}
	shp := []int{out, in, kern, kern}
	nms := []string{"Out", "In", "KY", "KX"}
	ly.Wt = etensor.NewFloat32(shp, nil, nms)
	ly.DWt = etensor.NewFloat32(shp, nil, nms)
	ly.Bias = etensor.NewFloat32([]int{out}, nil, []string{"Out"})
	ly.DBias = etensor.NewFloat32([]int{out}, nil, []string{"Out"})
	bound := 1.0 / mat32.Sqrt(float32(in*kern*kern))
	for i := range ly.Wt.Values {
		ly.Wt.Values[i] = bound * (2*rand.Float32() - 1)
	}
	for i := range ly.Bias.Values {
		ly.Bias.Values[i] = bound * (2*rand.Float32() - 1)
	}
	return ly
}

func (ly *Conv2d) Name() string { return ly.Nm }

func (ly *Conv2d) Params() []*Param {
	return []*Param{
		{Nm: ly.Nm + ".Wt", Wt: ly.Wt, DWt: ly.DWt},
		{Nm: ly.Nm + ".Bias", Wt: ly.Bias, DWt: ly.DBias},
	}
}

// OutSize returns the output spatial size for a given input spatial size.
func (ly *Conv2d) OutSize(in int) int {
	return (in-ly.Kern)/ly.Stride + 1
}

func (ly *Conv2d) Forward(x *etensor.Float32) *etensor.Float32 {
	bsz, h, w := x.Dim(0), x.Dim(2), x.Dim(3)
	ho, wo := ly.OutSize(h), ly.OutSize(w)
	ly.X = x
	y := etensor.NewFloat32([]int{bsz, ly.Out, ho, wo}, nil, []string{"Batch", "Chan", "Y", "X"})
	for bi := 0; bi < bsz; bi++ {
		for oi := 0; oi < ly.Out; oi++ {
			for yo := 0; yo < ho; yo++ {
				for xo := 0; xo < wo; xo++ {
					sum := ly.Bias.Values[oi]
					yi0 := yo * ly.Stride
					xi0 := xo * ly.Stride
					for ii := 0; ii < ly.In; ii++ {
						woff := ((oi*ly.In + ii) * ly.Kern) * ly.Kern
						xoff := ((bi*ly.In+ii)*h + yi0) * w
						for ky := 0; ky < ly.Kern; ky++ {
							for kx := 0; kx < ly.Kern; kx++ {
								sum += ly.Wt.Values[woff+ky*ly.Kern+kx] * x.Values[xoff+ky*w+xi0+kx]
							}
						}
					}
					y.Values[((bi*ly.Out+oi)*ho+yo)*wo+xo] = sum
				}
			}
		}
	}
	return y
}

func (ly *Conv2d) Backward(grad *etensor.Float32) *etensor.Float32 {
	bsz, h, w := ly.X.Dim(0), ly.X.Dim(2), ly.X.Dim(3)
	ho, wo := grad.Dim(2), grad.Dim(3)
	gx := etensor.NewFloat32([]int{bsz, ly.In, h, w}, nil, []string{"Batch", "Chan", "Y", "X"})
	for bi := 0; bi < bsz; bi++ {
		for oi := 0; oi < ly.Out; oi++ {
			for yo := 0; yo < ho; yo++ {
				for xo := 0; xo < wo; xo++ {
					g := grad.Values[((bi*ly.Out+oi)*ho+yo)*wo+xo]
					if g == 0 {
						continue
					}
					ly.DBias.Values[oi] += g
					yi0 := yo * ly.Stride
					xi0 := xo * ly.Stride
					for ii := 0; ii < ly.In; ii++ {
						woff := ((oi*ly.In + ii) * ly.Kern) * ly.Kern
						xoff := ((bi*ly.In+ii)*h + yi0) * w
						for ky := 0; ky < ly.Kern; ky++ {
							for kx := 0; kx < ly.Kern; kx++ {
								ly.DWt.Values[woff+ky*ly.Kern+kx] += g * ly.X.Values[xoff+ky*w+xi0+kx]
								gx.Values[xoff+ky*w+xi0+kx] += g * ly.Wt.Values[woff+ky*ly.Kern+kx]
							}
						}
					}
				}
			}
		}
	}
	return gx
}
