// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import (
	"testing"

	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"
)

func TestBatchNormForward(t *testing.T) {
	ly := NewBatchNorm2d("bn", 1)
	x := etensor.NewFloat32([]int{2, 1, 1, 1}, nil, nil)
	x.Values[0], x.Values[1] = 0, 2
	y := ly.Forward(x)
	// batch mean 1, biased variance 1: outputs (x - 1)/sqrt(1 + eps)
	std := mat32.Sqrt(1 + ly.Eps)
	CmprFloats(y.Values, []float32{-1 / std, 1 / std}, "batch-stat normalization", t)
}

func TestBatchNormRunningStats(t *testing.T) {
	ly := NewBatchNorm2d("bn", 1)
	x := etensor.NewFloat32([]int{2, 1, 1, 1}, nil, nil)
	x.Values[0], x.Values[1] = 0, 2
	ly.Forward(x)
	// running mean: 0.9*0 + 0.1*1; running var folds in the unbiased
	// estimate 2/(2-1): 0.9*1 + 0.1*2
	CmprFloats(ly.RunMean.Values, []float32{0.1}, "running mean", t)
	CmprFloats(ly.RunVar.Values, []float32{1.1}, "running var uses unbiased estimate", t)
}

func TestBatchNormInference(t *testing.T) {
	ly := NewBatchNorm2d("bn", 1)
	ly.RunMean.Values[0] = 1
	ly.RunVar.Values[0] = 4
	ly.SetTraining(false)
	x := etensor.NewFloat32([]int{1, 1, 1, 1}, nil, nil)
	x.Values[0] = 3
	y := ly.Forward(x)
	// inference uses the running stats untouched: (3-1)/sqrt(4+eps)
	CmprFloats(y.Values, []float32{2 / mat32.Sqrt(4+ly.Eps)}, "running-stat normalization", t)
	CmprFloats(ly.RunMean.Values, []float32{1}, "running mean unchanged at inference", t)
	CmprFloats(ly.RunVar.Values, []float32{4}, "running var unchanged at inference", t)
}
