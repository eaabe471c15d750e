// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"path/filepath"
	"testing"

	"github.com/born-ml/mobilenet/backend/cpu"
	"github.com/born-ml/mobilenet/nn"
	"github.com/born-ml/mobilenet/tensor"
)

type backend = *cpu.Backend

// TestModuleInterface verifies that concrete layers implement Module.
func TestModuleInterface(t *testing.T) {
	b := cpu.New()
	conv := nn.NewConv2D(nn.Conv2DConfig{InChannels: 3, OutChannels: 4, KernelSize: 3, Padding: 1}, nil, b)

	tests := []struct {
		name   string
		module nn.Module[backend]
		params int
	}{
		{"Conv2D", conv, 1},
		{"BatchNorm2D", nn.NewBatchNorm2D(3, b), 2},
		{"Sequential", nn.NewSequential[backend](conv, nn.NewBatchNorm2D(4, b), nn.NewReLU6(b)), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tensor.Randn(tensor.Shape{2, 3, 8, 8}, nil, b)
			_ = tt.module.Forward(input, nn.Train)

			if got := len(tt.module.Parameters()); got != tt.params {
				t.Errorf("len(Parameters()) = %d, want %d", got, tt.params)
			}
			if tt.module.StateDict() == nil {
				t.Error("StateDict() returned nil")
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	b := cpu.New()
	a := nn.NewConv2D(nn.Conv2DConfig{InChannels: 2, OutChannels: 2, KernelSize: 1, Bias: true}, nil, b)
	c := nn.NewConv2D(nn.Conv2DConfig{InChannels: 2, OutChannels: 2, KernelSize: 1, Bias: true}, nil, b)

	path := filepath.Join(t.TempDir(), "conv.safetensors")
	if err := nn.Save[backend](a, path, map[string]string{"note": "test"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	meta, err := nn.Load[backend](c, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if meta["note"] != "test" {
		t.Errorf("metadata = %v", meta)
	}

	want, got := a.Weight().Tensor().Data(), c.Weight().Tensor().Data()
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("weight[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
