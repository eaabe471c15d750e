// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package mobilenet_test

import (
	"errors"
	"testing"

	"github.com/born-ml/mobilenet/backend/cpu"
	"github.com/born-ml/mobilenet/mobilenet"
	"github.com/born-ml/mobilenet/nn"
	"github.com/born-ml/mobilenet/tensor"
)

func TestNew(t *testing.T) {
	backend := cpu.New()
	model, err := mobilenet.New(10, backend, mobilenet.WithAlpha(0.25), mobilenet.WithInputResolution(32))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out := model.Forward(tensor.Zeros[float32](tensor.Shape{2, 3, 32, 32}, backend), nn.Eval)
	if !out.Shape().Equal(tensor.Shape{2, 10}) {
		t.Errorf("output shape = %v, want [2 10]", out.Shape())
	}
}

func TestInvalidConfig(t *testing.T) {
	_, err := mobilenet.New(10, cpu.New(), mobilenet.WithAlpha(0))
	var verr *mobilenet.ValidationError
	if !errors.As(err, &verr) || verr.Field != "alpha" {
		t.Fatalf("New(alpha=0) error = %v, want ValidationError on alpha", err)
	}

	_, err = mobilenet.DeriveSchedule(1, 0)
	if !errors.Is(err, mobilenet.ErrInvalidConfig) {
		t.Errorf("DeriveSchedule(1, 0) error = %v, want ErrInvalidConfig", err)
	}
}

func TestDeriveSchedule(t *testing.T) {
	s, err := mobilenet.DeriveSchedule(1, mobilenet.ReferenceResolution)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != mobilenet.NumStages {
		t.Fatalf("len = %d, want %d", len(s), mobilenet.NumStages)
	}
	if s[0] != (mobilenet.Stage{Channels: 32, Resolution: 112}) || s[13] != (mobilenet.Stage{Channels: 1024, Resolution: 7}) {
		t.Errorf("schedule = %v", s)
	}
}

func TestClassificationMetrics(t *testing.T) {
	m, err := mobilenet.NewClassificationMetrics([]int{0, 1, 1, 2}, []int{0, 1, 2, 2})
	if err != nil {
		t.Fatal(err)
	}
	if m.Accuracy() != 0.75 {
		t.Errorf("Accuracy = %v, want 0.75", m.Accuracy())
	}

	m, err = mobilenet.ClassificationMetricsFromLogits([]int{1}, [][]float32{{0, 3, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if m.Accuracy() != 1 {
		t.Errorf("Accuracy = %v, want 1", m.Accuracy())
	}
}
