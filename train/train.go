// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package train runs one optimization pass over a network and evaluates
// classification metrics, connecting a data.Loader, a sparsenet.Network,
// and an optim.Optimizer.
package train

import (
	"github.com/emer/etable/etensor"
	"github.com/emer/sparsenet/data"
	"github.com/emer/sparsenet/optim"
	"github.com/emer/sparsenet/sparsenet"
)

// Results holds evaluation metrics keyed by name: mean_accuracy,
// mean_loss, total_correct, total_tested, and any caller additions.
type Results map[string]float64

// TrainModel runs one epoch of training: up to batchesInEpoch mini
// batches of forward, negative log likelihood loss on the network's log
// softmax outputs, backward, optimizer step. The network is left in
// training mode.
func TrainModel(nt *sparsenet.Network, ld *data.Loader, op optim.Optimizer, batchesInEpoch int) {
	nt.SetTraining(true)
	nb := ld.NBatches()
	if nb > batchesInEpoch {
		nb = batchesInEpoch
	}
	for bi := 0; bi < nb; bi++ {
		imgs, labels := ld.BatchAt(bi)
		nt.ZeroGrads()
		out := nt.Forward(imgs)
		nt.Backward(nllGrad(out, labels))
		op.Step()
	}
	ld.NewEpoch()
}

// nllGrad is the gradient of the mean NLL loss with respect to the
// (Batch, Classes) log-softmax outputs: -1/batch at each target class.
func nllGrad(out *etensor.Float32, labels []int) *etensor.Float32 {
	bsz, nc := out.Dim(0), out.Dim(1)
	grad := etensor.NewFloat32([]int{bsz, nc}, nil, nil)
	for bi, lbl := range labels {
		grad.Values[bi*nc+lbl] = -1 / float32(bsz)
	}
	return grad
}

// EvaluateModel evaluates the network on every batch of the loader in
// inference mode, returning mean accuracy, mean NLL loss, and the total
// correct / tested counts.
func EvaluateModel(nt *sparsenet.Network, ld *data.Loader) Results {
	nt.SetTraining(false)
	defer nt.SetTraining(true)
	var loss float64
	correct, tested := 0, 0
	nb := ld.NBatches()
	for bi := 0; bi < nb; bi++ {
		imgs, labels := ld.BatchAt(bi)
		out := nt.Forward(imgs)
		nc := out.Dim(1)
		for si, lbl := range labels {
			loss += float64(-out.Values[si*nc+lbl])
			if argmax(out.Values[si*nc:(si+1)*nc]) == lbl {
				correct++
			}
			tested++
		}
	}
	res := Results{"total_correct": float64(correct), "total_tested": float64(tested)}
	if tested > 0 {
		res["mean_accuracy"] = float64(correct) / float64(tested)
		res["mean_loss"] = loss / float64(tested)
	} else {
		res["mean_accuracy"] = 0
		res["mean_loss"] = 0
	}
	return res
}

func argmax(vals []float32) int {
	mxi := 0
	for i, v := range vals {
		if v > vals[mxi] {
			mxi = i
		}
	}
	return mxi
}
