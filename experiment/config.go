// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package experiment

import (
	"github.com/emer/etable/etable"
	"github.com/emer/sparsenet/optim"
	"github.com/emer/sparsenet/sparsenet"
)

// Config has all the hyperparameters for one sparse network experiment.
// It is consumed once at construction and treated as read-only afterward.
type Config struct {

	// name of the experiment, used in log output
	Name string `desc:"name of the experiment, used in log output"`

	// log verbosity: 0 errors only, 1 info, 2 debug
	Verbose int `def:"2" desc:"log verbosity: 0 errors only, 1 info, 2 debug"`

	// random seed, set at construction
	Seed int64 `desc:"random seed, set at construction"`

	// directory with the MNIST IDX files -- ignored when Pats is set
	DataDir string `desc:"directory with the MNIST IDX files -- ignored when Pats is set"`

	// training dataset override -- when non-nil, used instead of loading from DataDir
	Pats *etable.Table `view:"no-inline" desc:"training dataset override -- when non-nil, used instead of loading from DataDir"`

	// test dataset override -- when non-nil, used instead of loading from DataDir
	TestPats *etable.Table `view:"no-inline" desc:"test dataset override -- when non-nil, used instead of loading from DataDir"`

	// training mini batch size
	BatchSize int `def:"64" desc:"training mini batch size"`

	// test mini batch size -- validation batches use BatchSize
	TestBatchSize int `def:"1000" desc:"test mini batch size -- validation batches use BatchSize"`

	// batch size for the first epoch, which often benefits from smaller batches while boosting settles
	FirstEpochBatchSize int `def:"4" desc:"batch size for the first epoch, which often benefits from smaller batches while boosting settles"`

	// fraction of the training set to train on, with the remainder held out for validation -- 1 disables validation
	Validation float64 `def:"0.8333" desc:"fraction of the training set to train on, with the remainder held out for validation -- 1 disables validation"`

	// learning rate decay factor, used to synthesize StepLR scheduler params
	LearningRateFactor float32 `def:"1" desc:"learning rate decay factor, used to synthesize StepLR scheduler params"`

	// explicit scheduler params, required for any scheduler other than StepLR
	LRSchedulerParams *optim.SchedulerParams `desc:"explicit scheduler params, required for any scheduler other than StepLR"`

	// input shape as (channels, height, width)
	CNNInputShape [3]int `def:"{1,28,28}" desc:"input shape as (channels, height, width)"`

	// units in each successive linear layer
	LinearN []int `desc:"units in each successive linear layer"`

	// k-winners percent on per linear layer
	LinearPercentOn []float32 `desc:"k-winners percent on per linear layer"`

	// output channels of each successive conv layer
	CNNOutChannels []int `desc:"output channels of each successive conv layer"`

	// k-winners percent on per conv layer
	CNNPercentOn []float32 `desc:"k-winners percent on per conv layer"`

	// initial boost strength for k-winners layers
	BoostStrength float32 `desc:"initial boost strength for k-winners layers"`

	// fraction of linear weights allowed non-zero
	WeightSparsity float32 `desc:"fraction of linear weights allowed non-zero"`

	// fraction of conv weights allowed non-zero
	CNNWeightSparsity float32 `desc:"fraction of conv weights allowed non-zero"`

	// per-epoch boost strength decay factor
	BoostStrengthFactor float32 `desc:"per-epoch boost strength decay factor"`

	// k multiplier during inference
	KInferenceFactor float32 `desc:"k multiplier during inference"`

	// add batch norm after each conv layer
	UseBatchNorm bool `desc:"add batch norm after each conv layer"`

	// optimizer learning rate
	LearningRate float32 `def:"0.01" desc:"optimizer learning rate"`

	// SGD momentum
	Momentum float32 `def:"0.5" desc:"SGD momentum"`

	// cap on mini batches per epoch
	BatchesInEpoch int `desc:"cap on mini batches per epoch"`

	// cap on mini batches in the first epoch
	BatchesInFirstEpoch int `desc:"cap on mini batches in the first epoch"`

	// optimizer name: SGD or Adam
	Optimizer string `def:"SGD" desc:"optimizer name: SGD or Adam"`

	// learning rate scheduler name -- empty for none, StepLR synthesized from LearningRateFactor
	LRScheduler string `desc:"learning rate scheduler name -- empty for none, StepLR synthesized from LearningRateFactor"`
}

// NetConfig maps the model-relevant fields onto a network builder config.
func (cfg *Config) NetConfig() *sparsenet.NetConfig {
	nc := &sparsenet.NetConfig{}
	nc.Defaults()
	nc.InputShape = cfg.CNNInputShape
	nc.CNNOutChannels = cfg.CNNOutChannels
	nc.CNNPercentOn = cfg.CNNPercentOn
	nc.CNNWeightSparsity = cfg.CNNWeightSparsity
	nc.LinearN = cfg.LinearN
	nc.LinearPercentOn = cfg.LinearPercentOn
	nc.WeightSparsity = cfg.WeightSparsity
	nc.BoostStrength = cfg.BoostStrength
	nc.BoostStrengthFactor = cfg.BoostStrengthFactor
	nc.KInferenceFactor = cfg.KInferenceFactor
	nc.UseBatchNorm = cfg.UseBatchNorm
	return nc
}

func (cfg *Config) Defaults() {
	cfg.Verbose = 2
	cfg.BatchSize = 64
	cfg.TestBatchSize = 1000
	cfg.FirstEpochBatchSize = 4
	cfg.Validation = 50000.0 / 60000.0
	cfg.LearningRateFactor = 1
	cfg.CNNInputShape = [3]int{1, 28, 28}
	cfg.WeightSparsity = 1
	cfg.CNNWeightSparsity = 1
	cfg.BoostStrengthFactor = 1
	cfg.KInferenceFactor = 1
	cfg.LearningRate = 0.01
	cfg.Momentum = 0.5
	cfg.BatchesInEpoch = 1 << 30
	cfg.BatchesInFirstEpoch = 1 << 30
	cfg.Optimizer = "SGD"
	cfg.LRScheduler = "StepLR"
}
