// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package data

import (
	"math/rand"

	"github.com/emer/emergent/env"
	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
)

// Loader iterates over an indexed view of an image / digit table in
// mini-batches, shuffling the order each epoch unless Sequential. Each
// batch copies its samples out of the table and applies the transforms to
// the copies, so the table itself is never modified.
type Loader struct {
	// name of this loader: Train, First, Validation, Test
	Nm string

	// description of this loader
	Dsc string

	// an indexed view of the table with Image and Digit columns to iterate over
	Table *etable.IdxView

	BatchSize int

	// if true, iterate in table order rather than permuted
	Sequential bool

	// transforms applied, in order, to each sample copy
	Trans []Transform

	// permuted order of items to iterate through this epoch
	Order []int

	// current epoch counter
	Epoch env.Ctr `view:"inline"`

	// current batch within the epoch
	Batch env.Ctr `view:"inline"`
}

func NewLoader(name string, table *etable.IdxView, batchSize int, trans ...Transform) *Loader {
	ld := &Loader{Nm: name, Table: table, BatchSize: batchSize, Trans: trans}
	return ld
}

// Init initializes the loader for the given run, resetting counters and
// the iteration order.
func (ld *Loader) Init(run int) {
	ld.Epoch.Scale = env.Epoch
	ld.Batch.Scale = env.Trial
	ld.Epoch.Init()
	ld.Batch.Init()
	ld.Batch.Max = ld.NBatches()
	ld.newOrder()
	_ = run
}

func (ld *Loader) newOrder() {
	n := ld.Table.Len()
	if ld.Sequential {
		ld.Order = nil
		return
	}
	ld.Order = rand.Perm(n)
}

// NBatches is the number of whole batches per epoch; a final partial
// batch is dropped, matching drop-last loader behavior.
func (ld *Loader) NBatches() int {
	return ld.Table.Len() / ld.BatchSize
}

// NewEpoch reshuffles the order and advances the epoch counter.
func (ld *Loader) NewEpoch() {
	ld.newOrder()
	ld.Batch.Init()
	ld.Epoch.Incr()
}

// BatchAt returns batch bi of the current epoch: images as a
// (Batch, Chan, Y, X) tensor with transforms applied, and the digit
// labels. The batch counter tracks the last batch served.
func (ld *Loader) BatchAt(bi int) (imgs *etensor.Float32, labels []int) {
	first := ld.Table.Table.CellTensor("Image", ld.rowAt(0)).(*etensor.Float32)
	ch, ny, nx := first.Dim(0), first.Dim(1), first.Dim(2)
	npix := ch * ny * nx
	imgs = etensor.NewFloat32([]int{ld.BatchSize, ch, ny, nx}, nil, []string{"Batch", "Chan", "Y", "X"})
	labels = make([]int, ld.BatchSize)
	for si := 0; si < ld.BatchSize; si++ {
		row := ld.rowAt(bi*ld.BatchSize + si)
		img := ld.Table.Table.CellTensor("Image", row).(*etensor.Float32)
		vals := imgs.Values[si*npix : (si+1)*npix]
		copy(vals, img.Values)
		for _, tr := range ld.Trans {
			tr.Apply(vals)
		}
		labels[si] = int(ld.Table.Table.CellFloat("Digit", row))
	}
	ld.Batch.Set(bi)
	return
}

// rowAt maps an epoch-ordered item index to a table row.
func (ld *Loader) rowAt(i int) int {
	if ld.Order != nil {
		i = ld.Order[i]
	}
	return ld.Table.Idxs[i]
}
