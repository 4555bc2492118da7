// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import (
	"fmt"

	"github.com/pkg/errors"
)

// conv geometry used throughout: 5x5 kernels, stride 1, no padding,
// followed by 2x2 max pooling.
const (
	ConvKern   = 5
	ConvStride = 1
	PoolSize   = 2
)

// NetConfig specifies a conv + linear sparse network for Build.
// Per-layer slices must have matching lengths (CNNOutChannels with
// CNNPercentOn, LinearN with LinearPercentOn). Sparsity and percent-on
// values outside (0,1) fall back to dense weights / ReLU for that layer.
type NetConfig struct {

	// input shape as (channels, height, width)
	InputShape [3]int `desc:"input shape as (channels, height, width)"`

	// output channels of each successive conv layer
	CNNOutChannels []int `desc:"output channels of each successive conv layer"`

	// fraction of active units per conv layer, for k-winners
	CNNPercentOn []float32 `desc:"fraction of active units per conv layer, for k-winners"`

	// fraction of conv weights allowed to be non-zero
	CNNWeightSparsity float32 `desc:"fraction of conv weights allowed to be non-zero"`

	// units in each successive linear layer after flatten
	LinearN []int `desc:"units in each successive linear layer after flatten"`

	// fraction of active units per linear layer, for k-winners
	LinearPercentOn []float32 `desc:"fraction of active units per linear layer, for k-winners"`

	// fraction of linear weights allowed to be non-zero
	WeightSparsity float32 `desc:"fraction of linear weights allowed to be non-zero"`

	// initial boost strength for all k-winners layers
	BoostStrength float32 `desc:"initial boost strength for all k-winners layers"`

	// per-epoch decay factor on boost strength
	BoostStrengthFactor float32 `desc:"per-epoch decay factor on boost strength"`

	// k multiplier during inference
	KInferenceFactor float32 `desc:"k multiplier during inference"`

	// add (non-affine) batch norm after each conv layer
	UseBatchNorm bool `desc:"add (non-affine) batch norm after each conv layer"`

	// number of output classes
	OutputSize int `def:"10" desc:"number of output classes"`
}

func (nc *NetConfig) Defaults() {
	nc.InputShape = [3]int{1, 28, 28}
	nc.CNNWeightSparsity = 1
	nc.WeightSparsity = 1
	nc.BoostStrength = 1
	nc.BoostStrengthFactor = 1
	nc.KInferenceFactor = 1
	nc.OutputSize = 10
}

// Validate checks the structural consistency of the config.
func (nc *NetConfig) Validate() error {
	if nc.InputShape[0] <= 0 || nc.InputShape[1] <= 0 || nc.InputShape[2] <= 0 {
		return errors.Errorf("sparsenet.NetConfig: input shape %v must be positive", nc.InputShape)
	}
	if len(nc.CNNOutChannels) != len(nc.CNNPercentOn) {
		return errors.Errorf("sparsenet.NetConfig: %d conv layers but %d percent-on values", len(nc.CNNOutChannels), len(nc.CNNPercentOn))
	}
	if len(nc.LinearN) != len(nc.LinearPercentOn) {
		return errors.Errorf("sparsenet.NetConfig: %d linear layers but %d percent-on values", len(nc.LinearN), len(nc.LinearPercentOn))
	}
	if nc.OutputSize <= 0 {
		return errors.Errorf("sparsenet.NetConfig: output size %d must be positive", nc.OutputSize)
	}
	h, w := nc.InputShape[1], nc.InputShape[2]
	for i := range nc.CNNOutChannels {
		if nc.CNNOutChannels[i] <= 0 {
			return errors.Errorf("sparsenet.NetConfig: conv layer %d has %d channels", i+1, nc.CNNOutChannels[i])
		}
		h = ConvOutSize(h)
		w = ConvOutSize(w)
		if h <= 0 || w <= 0 {
			return errors.Errorf("sparsenet.NetConfig: conv layer %d output size %dx%d -- input too small for %d conv layers", i+1, h, w, len(nc.CNNOutChannels))
		}
	}
	for i, n := range nc.LinearN {
		if n <= 0 {
			return errors.Errorf("sparsenet.NetConfig: linear layer %d has %d units", i+1, n)
		}
	}
	return nil
}

// ConvOutSize is the spatial output size of one conv(5, stride 1, no pad)
// + 2x2 maxpool block, given input spatial size.
func ConvOutSize(in int) int {
	return ((in-ConvKern)/ConvStride + 1) / PoolSize
}

// addCNNLayer adds one sparse conv block to the network: conv (sparse
// wrapped when weightSparsity is in (0,1)), optional batch norm, 2x2 max
// pool, then either k-winners or ReLU depending on percentOn.
func addCNNLayer(nt *Network, suffix, inChans, outChans int, nc *NetConfig, percentOn float32) {
	cnv := NewConv2d(fmt.Sprintf("cnnSdr%d_cnn", suffix), inChans, outChans, ConvKern, ConvStride)
	if nc.CNNWeightSparsity > 0 && nc.CNNWeightSparsity < 1 {
		nt.AddLayer(NewSparseWeights2d(cnv, nc.CNNWeightSparsity))
	} else {
		nt.AddLayer(cnv)
	}
	if nc.UseBatchNorm {
		nt.AddLayer(NewBatchNorm2d(fmt.Sprintf("cnnSdr%d_bn", suffix), outChans))
	}
	nt.AddLayer(NewMaxPool2d(fmt.Sprintf("cnnSdr%d_maxpool", suffix), PoolSize))
	if percentOn > 0 && percentOn < 1 {
		nt.AddLayer(NewKWinners2d(fmt.Sprintf("cnnSdr%d_kwinner", suffix), outChans,
			percentOn, nc.KInferenceFactor, nc.BoostStrength, nc.BoostStrengthFactor))
	} else {
		nt.AddLayer(NewReLU(fmt.Sprintf("cnnSdr%d_relu", suffix)))
	}
}

// addLinearLayer adds one sparse linear block: linear (sparse wrapped when
// weightSparsity is in (0,1)), then k-winners or ReLU.
func addLinearLayer(nt *Network, suffix, inputSize, n int, nc *NetConfig, percentOn float32) {
	lin := NewLinear(fmt.Sprintf("linear%d", suffix), inputSize, n)
	if nc.WeightSparsity > 0 && nc.WeightSparsity < 1 {
		nt.AddLayer(NewSparseWeights(lin, nc.WeightSparsity))
	} else {
		nt.AddLayer(lin)
	}
	if percentOn > 0 && percentOn < 1 {
		nt.AddLayer(NewKWinners(fmt.Sprintf("linear%d_kwinners", suffix), n,
			percentOn, nc.KInferenceFactor, nc.BoostStrength, nc.BoostStrengthFactor))
	} else {
		nt.AddLayer(NewReLU(fmt.Sprintf("linear%d_relu", suffix)))
	}
}

// Build assembles a sequential network from the config: the conv stack,
// flatten, the linear stack, then a dense output layer and log softmax.
// The spatial size feeding the first linear layer is computed analytically
// from the conv geometry.
func Build(name string, nc *NetConfig) (*Network, error) {
	if err := nc.Validate(); err != nil {
		return nil, err
	}
	nt := NewNetwork(name)
	inChans, h, w := nc.InputShape[0], nc.InputShape[1], nc.InputShape[2]
	for i, outChans := range nc.CNNOutChannels {
		addCNNLayer(nt, i+1, inChans, outChans, nc, nc.CNNPercentOn[i])
		inChans = outChans
		h = ConvOutSize(h)
		w = ConvOutSize(w)
	}
	nt.AddLayer(NewFlatten("flatten"))
	inputSize := inChans * h * w
	for i, n := range nc.LinearN {
		addLinearLayer(nt, i+1, inputSize, n, nc, nc.LinearPercentOn[i])
		inputSize = n
	}
	nt.AddLayer(NewLinear("output", inputSize, nc.OutputSize))
	nt.AddLayer(NewLogSoftmax("softmax"))
	return nt, nil
}
