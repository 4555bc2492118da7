// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package experiment

import (
	"io"
	"os"

	"github.com/emer/empi/mpi"
)

// ProfiledExperiment wraps a SparseExperiment so that each training
// epoch records per-layer function times and prints a timing report,
// on the rank 0 process only. All other ranks train unchanged.
type ProfiledExperiment struct {
	*SparseExperiment

	// whether this process records and reports timing
	Profile bool `desc:"whether this process records and reports timing"`

	// where the timing report is written
	Report io.Writer `view:"-" desc:"where the timing report is written"`
}

// NewProfiled wraps an existing experiment, enabling profiling only on
// rank 0.
func NewProfiled(ex *SparseExperiment) *ProfiledExperiment {
	return &ProfiledExperiment{
		SparseExperiment: ex,
		Profile:          mpi.WorldRank() == 0,
		Report:           os.Stdout,
	}
}

// Train runs one profiled epoch: timers are reset, per-layer recording
// is turned on for the duration of the epoch, and the report is printed
// after.
func (pe *ProfiledExperiment) Train(epoch int) {
	if !pe.Profile {
		pe.SparseExperiment.Train(epoch)
		return
	}
	pe.Net.TimerReset()
	pe.Net.RecFunTimes = true
	pe.SparseExperiment.Train(epoch)
	pe.Net.RecFunTimes = false
	pe.Net.TimerReport(pe.Report)
}
