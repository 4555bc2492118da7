// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package experiment drives a full sparse MNIST experiment: dataset
// loading and splitting, network construction, optimizer and scheduler
// assembly, the per-epoch training loop with boosting and rezero hooks,
// evaluation including noise robustness sweeps, and checkpointing.
package experiment

import (
	"math/rand"
	"path/filepath"

	"github.com/emer/emergent/timer"
	"github.com/emer/empi/mpi"
	"github.com/emer/etable/etable"
	"github.com/emer/sparsenet/data"
	"github.com/emer/sparsenet/optim"
	"github.com/emer/sparsenet/sparsenet"
	"github.com/emer/sparsenet/train"
)

// StateFileName is the fixed checkpoint file name within a save directory.
const StateFileName = "model.pt"

// NoiseLevels are the fractions of corrupted pixels used by RunNoiseTests.
var NoiseLevels = []float32{0, 0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.35, 0.4, 0.45, 0.5}

// SparseExperiment ties together everything needed to train and evaluate
// one sparse network on MNIST. Construct with New, then call Train once
// per epoch, Validate or Test between epochs, and RunNoiseTests at the
// end.
type SparseExperiment struct {

	// the configuration this experiment was constructed from
	Config *Config `desc:"the configuration this experiment was constructed from"`

	// the network under training
	Net *sparsenet.Network `desc:"the network under training"`

	// the optimizer stepping the network parameters
	Optimizer optim.Optimizer `view:"-" desc:"the optimizer stepping the network parameters"`

	// optional learning rate scheduler, stepped after each epoch
	LRSched optim.Scheduler `view:"-" desc:"optional learning rate scheduler, stepped after each epoch"`

	// training set loader
	TrainLdr *data.Loader `desc:"training set loader"`

	// loader for the first epoch, when FirstEpochBatchSize differs
	FirstLdr *data.Loader `desc:"loader for the first epoch, when FirstEpochBatchSize differs"`

	// held-out validation loader, nil when Validation >= 1
	ValLdr *data.Loader `desc:"held-out validation loader, nil when Validation >= 1"`

	// test set loader
	TestLdr *data.Loader `desc:"test set loader"`

	// test dataset table, kept for building per-noise-level loaders
	TestPats *etable.Table `view:"no-inline" desc:"test dataset table, kept for building per-noise-level loaders"`

	// evaluation function, settable for testing -- defaults to train.EvaluateModel
	TestFunc func(ld *data.Loader) train.Results `view:"-" desc:"evaluation function, settable for testing -- defaults to train.EvaluateModel"`
}

// New builds a ready-to-train experiment from the config. It seeds the
// global random source, loads or accepts the datasets, splits off the
// validation set, builds the network, and assembles the optimizer and
// scheduler. Construction fails on unknown optimizer or scheduler names
// and on invalid network configs.
func New(cfg *Config) (*SparseExperiment, error) {
	rand.Seed(cfg.Seed)

	ex := &SparseExperiment{Config: cfg}
	ex.TestFunc = func(ld *data.Loader) train.Results {
		return train.EvaluateModel(ex.Net, ld)
	}

	pats := cfg.Pats
	if pats == nil {
		var err error
		pats, err = data.OpenMNIST(cfg.DataDir, true)
		if err != nil {
			return nil, err
		}
	}
	ex.TestPats = cfg.TestPats
	if ex.TestPats == nil {
		var err error
		ex.TestPats, err = data.OpenMNIST(cfg.DataDir, false)
		if err != nil {
			return nil, err
		}
	}

	norm := data.Normalize{Mean: data.MNISTMean, Std: data.MNISTStd}

	trn := etable.NewIdxView(pats)
	if cfg.Validation < 1 {
		var val *etable.IdxView
		trn, val = data.Split(pats, cfg.Validation)
		ex.ValLdr = data.NewLoader("Validation", val, cfg.BatchSize, norm)
		ex.ValLdr.Init(0)
	}
	ex.TrainLdr = data.NewLoader("Train", trn, cfg.BatchSize, norm)
	ex.TrainLdr.Init(0)
	ex.FirstLdr = ex.TrainLdr
	if cfg.FirstEpochBatchSize != cfg.BatchSize {
		ex.FirstLdr = data.NewLoader("TrainFirst", trn, cfg.FirstEpochBatchSize, norm)
		ex.FirstLdr.Init(0)
	}
	ex.TestLdr = data.NewLoader("Test", etable.NewIdxView(ex.TestPats), cfg.TestBatchSize, norm)
	ex.TestLdr.Init(0)

	nt, err := sparsenet.Build(cfg.Name, cfg.NetConfig())
	if err != nil {
		return nil, err
	}
	ex.Net = nt

	ex.Optimizer, err = optim.New(cfg.Optimizer, nt.Params(), cfg.LearningRate, cfg.Momentum)
	if err != nil {
		return nil, err
	}
	ex.LRSched, err = optim.NewScheduler(cfg.LRScheduler, ex.Optimizer, cfg.LearningRateFactor, cfg.LRSchedulerParams)
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// Train runs one epoch of training. Epoch 0 uses the first-epoch loader
// and batch cap, all later epochs the regular ones. PreEpoch and
// PostEpoch bracket the pass.
func (ex *SparseExperiment) Train(epoch int) {
	cfg := ex.Config
	ldr, nbat := ex.TrainLdr, cfg.BatchesInEpoch
	if epoch == 0 {
		ldr, nbat = ex.FirstLdr, cfg.BatchesInFirstEpoch
	}
	ex.infof("%v epoch: %d", cfg.Name, epoch)
	epcTmr := timer.Time{}
	epcTmr.Start()
	ex.PreEpoch()
	ex.debugf("learning rate: %v", ex.Optimizer.LR())
	train.TrainModel(ex.Net, ldr, ex.Optimizer, nbat)
	ex.PostEpoch()
	epcTmr.Stop()
	ex.infof("training duration: %v secs", epcTmr.TotalSecs())
}

// PreEpoch runs before each training epoch. It is a hook point for
// wrappers and currently does nothing itself.
func (ex *SparseExperiment) PreEpoch() {
}

// PostEpoch runs after each training epoch: it decays the boost
// strength, rezeros the sparse weight masks, and steps the learning
// rate scheduler.
func (ex *SparseExperiment) PostEpoch() {
	ex.Net.UpdateBoostStrength()
	ex.Net.RezeroWeights()
	if ex.LRSched != nil {
		ex.LRSched.Step()
	}
}

// Validate evaluates on the held-out validation split, returning nil
// when no split was configured.
func (ex *SparseExperiment) Validate() train.Results {
	if ex.ValLdr == nil {
		return nil
	}
	return ex.Test(ex.ValLdr)
}

// Test evaluates on the given loader, or the test set when nil, adding
// the network's duty cycle entropy to the returned metrics.
func (ex *SparseExperiment) Test(ld *data.Loader) train.Results {
	if ld == nil {
		ld = ex.TestLdr
	}
	res := ex.TestFunc(ld)
	res["entropy"] = float64(ex.Net.Entropy())
	ex.infof("%v %v: %v", ex.Config.Name, ld.Nm, res)
	return res
}

// RunNoiseTests evaluates the network on the test set at each of the
// NoiseLevels, corrupting that fraction of pixels before normalization.
// Results are keyed by noise level.
func (ex *SparseExperiment) RunNoiseTests() map[float32]train.Results {
	cfg := ex.Config
	norm := data.Normalize{Mean: data.MNISTMean, Std: data.MNISTStd}
	res := make(map[float32]train.Results, len(NoiseLevels))
	for _, noise := range NoiseLevels {
		ld := data.NewLoader("Noise", etable.NewIdxView(ex.TestPats), cfg.TestBatchSize, data.NewRandomNoise(noise), norm)
		ld.Init(0)
		res[noise] = ex.Test(ld)
	}
	return res
}

// Save writes the network state under dir and returns the checkpoint
// path.
func (ex *SparseExperiment) Save(dir string) (string, error) {
	path := filepath.Join(dir, StateFileName)
	if err := ex.Net.SaveState(path); err != nil {
		return "", err
	}
	return path, nil
}

// Restore loads the network state saved under dir.
func (ex *SparseExperiment) Restore(dir string) error {
	return ex.Net.OpenState(filepath.Join(dir, StateFileName))
}

func (ex *SparseExperiment) infof(format string, args ...interface{}) {
	if ex.Config.Verbose >= 1 {
		mpi.Printf(format+"\n", args...)
	}
}

func (ex *SparseExperiment) debugf(format string, args ...interface{}) {
	if ex.Config.Verbose >= 2 {
		mpi.Printf(format+"\n", args...)
	}
}
