// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparsenet

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/emer/emergent/timer"
	"github.com/emer/etable/etensor"
	"github.com/pkg/errors"
)

// Network is an ordered stack of named layers, applied in sequence by
// Forward and in reverse by Backward. Layer names must be unique.
type Network struct {
	// overall name of network -- helps discriminate if there are multiple
	Nm string

	Layers []Layer

	// map of name to layers -- layer names must be unique
	LayMap map[string]Layer `view:"-"`

	// timers for each layer function (forward / backward step), recorded
	// when RecFunTimes is set
	FunTimes map[string]*timer.Time `view:"-"`

	// record per-layer function times during Forward / Backward
	RecFunTimes bool `view:"-"`
}

func NewNetwork(name string) *Network {
	return &Network{
		Nm:       name,
		LayMap:   make(map[string]Layer),
		FunTimes: make(map[string]*timer.Time),
	}
}

func (nt *Network) Name() string { return nt.Nm }
func (nt *Network) NLayers() int { return len(nt.Layers) }

// AddLayer appends a layer onto the stack. It is an error to reuse a name.
func (nt *Network) AddLayer(ly Layer) error {
	if _, dup := nt.LayMap[ly.Name()]; dup {
		return errors.Errorf("sparsenet.Network %s: layer name %q is already taken", nt.Nm, ly.Name())
	}
	nt.Layers = append(nt.Layers, ly)
	nt.LayMap[ly.Name()] = ly
	return nil
}

// LayerByName returns a layer by name (nil if not found).
func (nt *Network) LayerByName(name string) Layer { return nt.LayMap[name] }

// SetTraining sets training vs. inference mode on every layer that
// distinguishes them (k-winners, batch norm).
func (nt *Network) SetTraining(on bool) {
	for _, ly := range nt.Layers {
		if ml, ok := ly.(ModeLayer); ok {
			ml.SetTraining(on)
		}
	}
}

// Forward runs the layer stack on x, returning the final output.
func (nt *Network) Forward(x *etensor.Float32) *etensor.Float32 {
	for _, ly := range nt.Layers {
		if nt.RecFunTimes {
			nt.FunTimerStart(ly.Name() + ":Forward")
			x = ly.Forward(x)
			nt.FunTimerStop(ly.Name() + ":Forward")
		} else {
			x = ly.Forward(x)
		}
	}
	return x
}

// Backward propagates the gradient of the loss with respect to the final
// output back through the stack, accumulating parameter gradients.
func (nt *Network) Backward(grad *etensor.Float32) {
	for li := len(nt.Layers) - 1; li >= 0; li-- {
		ly := nt.Layers[li]
		if nt.RecFunTimes {
			nt.FunTimerStart(ly.Name() + ":Backward")
			grad = ly.Backward(grad)
			nt.FunTimerStop(ly.Name() + ":Backward")
		} else {
			grad = ly.Backward(grad)
		}
	}
}

// Params returns all learnable parameters across layers, in layer order.
func (nt *Network) Params() []*Param {
	var ps []*Param
	for _, ly := range nt.Layers {
		if pl, ok := ly.(ParamLayer); ok {
			ps = append(ps, pl.Params()...)
		}
	}
	return ps
}

// ZeroGrads zeros all accumulated parameter gradients.
func (nt *Network) ZeroGrads() {
	for _, p := range nt.Params() {
		p.DWt.SetZeros()
	}
}

// UpdateBoostStrength applies the per-epoch boost strength decay to every
// layer supporting it.
func (nt *Network) UpdateBoostStrength() {
	for _, ly := range nt.Layers {
		if bl, ok := ly.(BoostLayer); ok {
			bl.UpdateBoostStrength()
		}
	}
}

// RezeroWeights re-zeros pruned weights on every sparse-weight layer,
// maintaining weight sparsity after optimizer updates.
func (nt *Network) RezeroWeights() {
	for _, ly := range nt.Layers {
		if rl, ok := ly.(RezeroLayer); ok {
			rl.RezeroWeights()
		}
	}
}

// Entropy sums the duty cycle entropy over every layer exposing one.
func (nt *Network) Entropy() float32 {
	var ent float32
	for _, ly := range nt.Layers {
		if el, ok := ly.(EntropyLayer); ok {
			ent += el.Entropy()
		}
	}
	return ent
}

//////////////////////////////////////////////////////////////////////////
//  Parameter state I/O

// paramState is the on-disk form of one parameter tensor.
type paramState struct {
	Name   string
	Shape  []int
	Values []float32
}

// netState is the on-disk form of the network's learnable parameters.
type netState struct {
	Network string
	Params  []paramState
}

// WriteState writes all learnable parameter values to w as JSON.
// Only parameter state is saved -- not layer structure, duty cycles, or
// running stats.
func (nt *Network) WriteState(w io.Writer) error {
	st := netState{Network: nt.Nm}
	for _, p := range nt.Params() {
		st.Params = append(st.Params, paramState{Name: p.Nm, Shape: p.Wt.Shp, Values: p.Wt.Values})
	}
	enc := json.NewEncoder(w)
	return enc.Encode(&st)
}

// ReadState reads parameter values from r, matching parameters by name.
// Every parameter in the current network must be present with the same
// shape.
func (nt *Network) ReadState(r io.Reader) error {
	var st netState
	if err := json.NewDecoder(r).Decode(&st); err != nil {
		return errors.Wrapf(err, "sparsenet.Network %s: reading state", nt.Nm)
	}
	byName := make(map[string]*paramState, len(st.Params))
	for pi := range st.Params {
		byName[st.Params[pi].Name] = &st.Params[pi]
	}
	for _, p := range nt.Params() {
		sp, ok := byName[p.Nm]
		if !ok {
			return errors.Errorf("sparsenet.Network %s: param %s not in saved state", nt.Nm, p.Nm)
		}
		if len(sp.Values) != len(p.Wt.Values) {
			return errors.Errorf("sparsenet.Network %s: param %s has %d values, saved state has %d", nt.Nm, p.Nm, len(p.Wt.Values), len(sp.Values))
		}
		copy(p.Wt.Values, sp.Values)
	}
	return nil
}

// SaveState saves parameter state to given file name -- if the name ends
// in .gz then it is gzip compressed.
func (nt *Network) SaveState(filename string) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	if filepath.Ext(filename) == ".gz" {
		gzr := gzip.NewWriter(fp)
		err = nt.WriteState(gzr)
		gzr.Close()
		return err
	}
	bw := bufio.NewWriter(fp)
	if err = nt.WriteState(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// OpenState loads parameter state from given file name -- if the name ends
// in .gz then it is assumed to be gzip compressed.
func (nt *Network) OpenState(filename string) error {
	fp, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	if filepath.Ext(filename) == ".gz" {
		gzr, err := gzip.NewReader(fp)
		if err != nil {
			return err
		}
		defer gzr.Close()
		return nt.ReadState(gzr)
	}
	return nt.ReadState(bufio.NewReader(fp))
}

//////////////////////////////////////////////////////////////////////////
//  Timing

// FunTimerStart starts function timer for given function name -- ensures
// creation of timer.
func (nt *Network) FunTimerStart(fun string) {
	ft, ok := nt.FunTimes[fun]
	if !ok {
		ft = &timer.Time{}
		nt.FunTimes[fun] = ft
	}
	ft.Start()
}

// FunTimerStop stops function timer -- timer must already exist.
func (nt *Network) FunTimerStop(fun string) {
	nt.FunTimes[fun].Stop()
}

// TimerReset resets all the function timers.
func (nt *Network) TimerReset() {
	nt.FunTimes = make(map[string]*timer.Time)
}

// TimerReport writes the amount of time spent in each layer function to w,
// sorted by total self time, largest first.
func (nt *Network) TimerReport(w io.Writer) {
	fmt.Fprintf(w, "TimerReport: %v\n", nt.Nm)
	fmt.Fprintf(w, "\tFunction Name\tTotal Secs\tPct\n")
	nfn := len(nt.FunTimes)
	fnms := make([]string, 0, nfn)
	for k := range nt.FunTimes {
		fnms = append(fnms, k)
	}
	tot := 0.0
	for _, fn := range fnms {
		tot += nt.FunTimes[fn].TotalSecs()
	}
	sort.Slice(fnms, func(a, b int) bool {
		return nt.FunTimes[fnms[a]].TotalSecs() > nt.FunTimes[fnms[b]].TotalSecs()
	})
	for _, fn := range fnms {
		secs := nt.FunTimes[fn].TotalSecs()
		fmt.Fprintf(w, "\t%v \t%6.4g\t%6.4g\n", fn, secs, 100*(secs/tot))
	}
	fmt.Fprintf(w, "\tTotal   \t%6.4g\n", tot)
}
