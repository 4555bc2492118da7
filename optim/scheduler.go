// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import "github.com/pkg/errors"

// Scheduler adjusts an optimizer's learning rate, advanced once per epoch
// after all optimizer steps for that epoch.
type Scheduler interface {
	Step()
}

// SchedulerParams are the explicit parameters for schedulers that require
// them. StepLR synthesizes its own and ignores these.
type SchedulerParams struct {
	StepSize   int     `desc:"epochs between decays, for StepLR"`
	Milestones []int   `desc:"epochs at which to decay, for MultiStepLR"`
	Gamma      float32 `desc:"multiplicative decay factor"`
}

// NewScheduler creates a learning rate scheduler by name and attaches the
// optimizer. An empty name means no scheduler (nil). "StepLR" synthesizes
// its parameters from the single learning rate decay factor, with step
// size forced to 1. Any other supported name ("MultiStepLR") requires
// explicit params and fails construction without them.
func NewScheduler(name string, op Optimizer, lrFactor float32, params *SchedulerParams) (Scheduler, error) {
	switch name {
	case "":
		return nil, nil
	case "StepLR":
		return &StepLR{Opt: op, StepSize: 1, Gamma: lrFactor}, nil
	case "MultiStepLR":
		if params == nil {
			return nil, errors.Errorf("optim: missing scheduler params for %s", name)
		}
		if len(params.Milestones) == 0 {
			return nil, errors.Errorf("optim: %s requires milestones", name)
		}
		return &MultiStepLR{Opt: op, Milestones: params.Milestones, Gamma: params.Gamma}, nil
	}
	if params == nil {
		return nil, errors.Errorf("optim: missing scheduler params for %s", name)
	}
	return nil, errors.Errorf("optim: unknown scheduler name %q", name)
}

// StepLR decays the learning rate by Gamma every StepSize epochs.
type StepLR struct {
	Opt      Optimizer
	StepSize int
	Gamma    float32

	epoch int
}

func (sc *StepLR) Step() {
	sc.epoch++
	if sc.epoch%sc.StepSize == 0 {
		sc.Opt.SetLR(sc.Opt.LR() * sc.Gamma)
	}
}

// MultiStepLR decays the learning rate by Gamma at each milestone epoch.
type MultiStepLR struct {
	Opt        Optimizer
	Milestones []int
	Gamma      float32

	epoch int
}

func (sc *MultiStepLR) Step() {
	sc.epoch++
	for _, ms := range sc.Milestones {
		if sc.epoch == ms {
			sc.Opt.SetLR(sc.Opt.LR() * sc.Gamma)
			return
		}
	}
}
