// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package data provides image-classification datasets as etable Tables
(MNIST from IDX files, or synthetic permuted-binary digit patterns), a
batching Loader over an indexed view with per-epoch shuffling and env
counters, a train / validation split, and per-sample input transforms
(normalization, random salt noise for robustness testing).
*/
package data

import (
	"math/rand"

	"github.com/emer/emergent/patgen"
	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
)

// MNIST normalization constants, also used for the synthetic patterns so
// that noise and normalization transforms behave identically on both.
const (
	MNISTMean = 0.1307
	MNISTStd  = 0.3081
)

// SyntheticDigits generates n image / digit pairs over 10 classes: one
// permuted-binary prototype pattern per digit, with a few bits flipped per
// sample so the classes are separable but not trivial. Useful for tests
// and runs without the MNIST files.
func SyntheticDigits(n, ny, nx int, pctOn float32) *etable.Table {
	protos := etensor.NewFloat32([]int{10, ny, nx}, nil, []string{"Digit", "Y", "X"})
	nOn := int(pctOn * float32(ny*nx))
	if nOn < 1 {
		nOn = 1
	}
	patgen.PermutedBinaryRows(protos, nOn, 1, 0)

	dt := &etable.Table{}
	sch := etable.Schema{
		{"Image", etensor.FLOAT32, []int{1, ny, nx}, []string{"Chan", "Y", "X"}},
		{"Digit", etensor.INT64, nil, nil},
	}
	dt.SetFromSchema(sch, n)
	npix := ny * nx
	nflip := npix / 20
	img := etensor.NewFloat32([]int{1, ny, nx}, nil, []string{"Chan", "Y", "X"})
	for ri := 0; ri < n; ri++ {
		digit := ri % 10
		poff := digit * npix
		copy(img.Values, protos.Values[poff:poff+npix])
		for _, pi := range rand.Perm(npix)[:nflip] {
			img.Values[pi] = 1 - img.Values[pi]
		}
		dt.SetCellTensor("Image", ri, img)
		dt.SetCellFloat("Digit", ri, float64(digit))
	}
	return dt
}

// Split partitions the table's rows into random train / validation index
// views, with trainFrac of rows in the training view.
func Split(dt *etable.Table, trainFrac float64) (train, val *etable.IdxView) {
	n := dt.Rows
	ntr := int(trainFrac * float64(n))
	perm := rand.Perm(n)
	train = etable.NewIdxView(dt)
	train.Idxs = perm[:ntr]
	val = etable.NewIdxView(dt)
	val.Idxs = perm[ntr:]
	return
}
