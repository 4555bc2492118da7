// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import (
	"testing"

	"github.com/emer/etable/etensor"
	"github.com/emer/sparsenet/sparsenet"
	"github.com/goki/mat32"
)

const difTol = float32(1.0e-6)

func CmprFloats(got, trg []float32, msg string, t *testing.T) {
	for i := range got {
		dif := mat32.Abs(got[i] - trg[i])
		if dif > difTol {
			t.Errorf("%v err: got: %v, trg: %v, dif: %v\n", msg, got[i], trg[i], dif)
		}
	}
}

func testParam(wts, grads []float32) *sparsenet.Param {
	p := &sparsenet.Param{Nm: "test"}
	p.Wt = etensor.NewFloat32([]int{len(wts)}, nil, nil)
	copy(p.Wt.Values, wts)
	p.DWt = etensor.NewFloat32([]int{len(grads)}, nil, nil)
	copy(p.DWt.Values, grads)
	return p
}

func TestNewByName(t *testing.T) {
	p := testParam([]float32{0}, []float32{0})
	if _, err := New("SGD", []*sparsenet.Param{p}, 0.1, 0.9); err != nil {
		t.Errorf("SGD: %v", err)
	}
	if _, err := New("Adam", []*sparsenet.Param{p}, 0.1, 0); err != nil {
		t.Errorf("Adam: %v", err)
	}
	if _, err := New("RMSProp", []*sparsenet.Param{p}, 0.1, 0); err == nil {
		t.Error("expected lookup failure for RMSProp")
	}
}

func TestSGD(t *testing.T) {
	p := testParam([]float32{1, 2}, []float32{0.5, -0.5})
	op := NewSGD([]*sparsenet.Param{p}, 0.1, 0)
	op.Step()
	CmprFloats(p.Wt.Values, []float32{0.95, 2.05}, "plain sgd step", t)
}

func TestSGDMomentum(t *testing.T) {
	p := testParam([]float32{0}, []float32{1})
	op := NewSGD([]*sparsenet.Param{p}, 0.1, 0.5)
	op.Step() // v = 1, w = -0.1
	CmprFloats(p.Wt.Values, []float32{-0.1}, "first momentum step", t)
	op.Step() // v = 0.5 + 1 = 1.5, w = -0.1 - 0.15
	CmprFloats(p.Wt.Values, []float32{-0.25}, "second momentum step", t)
}

func TestAdam(t *testing.T) {
	p := testParam([]float32{0}, []float32{1})
	op := NewAdam([]*sparsenet.Param{p}, 0.1)
	op.Step()
	// first step: mhat = g, vhat = g*g, update = -lr * g/(|g|+eps)
	CmprFloats(p.Wt.Values, []float32{-0.1}, "first adam step is -lr for unit grad", t)

	// constant gradient keeps the bias-corrected update at -lr
	op.Step()
	CmprFloats(p.Wt.Values, []float32{-0.2}, "second adam step", t)
}

func TestSGDRespectsSetLR(t *testing.T) {
	p := testParam([]float32{0}, []float32{1})
	op := NewSGD([]*sparsenet.Param{p}, 0.1, 0)
	op.SetLR(0.01)
	op.Step()
	CmprFloats(p.Wt.Values, []float32{-0.01}, "step uses updated lr", t)
}

func TestNewScheduler(t *testing.T) {
	p := testParam([]float32{0}, []float32{0})
	op := NewSGD([]*sparsenet.Param{p}, 1, 0)

	sc, err := NewScheduler("", op, 0.5, nil)
	if err != nil || sc != nil {
		t.Errorf("empty name: got %v, %v, want nil, nil", sc, err)
	}

	sc, err = NewScheduler("StepLR", op, 0.5, nil)
	if err != nil {
		t.Fatal(err)
	}
	st, ok := sc.(*StepLR)
	if !ok {
		t.Fatalf("StepLR: got %T", sc)
	}
	if st.StepSize != 1 || st.Gamma != 0.5 {
		t.Errorf("StepLR params synthesized wrong: %+v", st)
	}

	if _, err = NewScheduler("MultiStepLR", op, 0.5, nil); err == nil {
		t.Error("MultiStepLR without params should fail")
	}
	if _, err = NewScheduler("MultiStepLR", op, 0.5, &SchedulerParams{Gamma: 0.1}); err == nil {
		t.Error("MultiStepLR without milestones should fail")
	}
	if _, err = NewScheduler("CosineAnnealing", op, 0.5, nil); err == nil {
		t.Error("unknown scheduler should fail")
	}
}

func TestStepLR(t *testing.T) {
	p := testParam([]float32{0}, []float32{0})
	op := NewSGD([]*sparsenet.Param{p}, 1, 0)
	sc := &StepLR{Opt: op, StepSize: 2, Gamma: 0.1}
	sc.Step()
	CmprFloats([]float32{op.LR()}, []float32{1}, "no decay before step size", t)
	sc.Step()
	CmprFloats([]float32{op.LR()}, []float32{0.1}, "decay at step size", t)
}

func TestMultiStepLR(t *testing.T) {
	p := testParam([]float32{0}, []float32{0})
	op := NewSGD([]*sparsenet.Param{p}, 1, 0)
	sc := &MultiStepLR{Opt: op, Milestones: []int{2, 3}, Gamma: 0.1}
	lrs := []float32{}
	for i := 0; i < 4; i++ {
		sc.Step()
		lrs = append(lrs, op.LR())
	}
	CmprFloats(lrs, []float32{1, 0.1, 0.01, 0.01}, "decay only at milestones", t)
}
