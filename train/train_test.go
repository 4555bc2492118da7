// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"testing"

	"github.com/emer/etable/etable"
	"github.com/emer/sparsenet/data"
	"github.com/emer/sparsenet/optim"
	"github.com/emer/sparsenet/sparsenet"
)

func testNet(t *testing.T) *sparsenet.Network {
	nc := &sparsenet.NetConfig{}
	nc.Defaults()
	nc.InputShape = [3]int{1, 12, 12}
	nc.CNNOutChannels = []int{2}
	nc.CNNPercentOn = []float32{0.15}
	nc.LinearN = []int{8}
	nc.LinearPercentOn = []float32{0.25}
	nt, err := sparsenet.Build("test", nc)
	if err != nil {
		t.Fatal(err)
	}
	return nt
}

func testLoader(n, batch int) *data.Loader {
	dt := data.SyntheticDigits(n, 12, 12, 0.2)
	ld := data.NewLoader("Train", etable.NewIdxView(dt), batch)
	ld.Init(0)
	return ld
}

func TestTrainModelUpdatesWeights(t *testing.T) {
	nt := testNet(t)
	ld := testLoader(20, 5)
	op := optim.NewSGD(nt.Params(), 0.1, 0)

	out := nt.LayerByName("output").(*sparsenet.Linear)
	before := make([]float32, len(out.Wt.Values))
	copy(before, out.Wt.Values)

	TrainModel(nt, ld, op, 2)

	changed := false
	for i, w := range out.Wt.Values {
		if w != before[i] {
			changed = true
			break
		}
	}
	if !changed {
		t.Error("output weights unchanged after training")
	}
	if ld.Epoch.Cur != 1 {
		t.Errorf("epoch counter: got %d, want 1", ld.Epoch.Cur)
	}
}

func TestEvaluateModel(t *testing.T) {
	nt := testNet(t)
	ld := testLoader(20, 5)
	res := EvaluateModel(nt, ld)
	if res["total_tested"] != 20 {
		t.Errorf("total_tested: got %v, want 20", res["total_tested"])
	}
	acc := res["mean_accuracy"]
	if acc < 0 || acc > 1 {
		t.Errorf("mean_accuracy out of range: %v", acc)
	}
	if res["mean_loss"] < 0 {
		t.Errorf("negative NLL loss: %v", res["mean_loss"])
	}
	if res["total_correct"] > res["total_tested"] {
		t.Errorf("correct %v exceeds tested %v", res["total_correct"], res["total_tested"])
	}
}
