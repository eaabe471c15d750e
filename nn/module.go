// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural-network layers MobileNet is assembled from.
//
// Every Forward takes an explicit Mode; Train updates batch-norm running
// statistics and enables dropout, Eval uses the stored statistics:
//
//	logits := model.Forward(x, nn.Train)
//	loss := nn.NewCrossEntropyLoss(backend).Forward(logits, labels)
package nn

import (
	"io"

	"golang.org/x/exp/rand"

	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/tensor"
)

// Mode selects training or evaluation behaviour in Forward.
type Mode = nn.Mode

// Forward modes.
const (
	Train = nn.Train
	Eval  = nn.Eval
)

// Module is the interface of every layer and network.
type Module[B tensor.Backend] = nn.Module[B]

// Container is a Module with child modules.
type Container[B tensor.Backend] = nn.Container[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NumParameters returns the total element count of params.
func NumParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.NumParameters(params)
}

// Conv2DConfig configures a Conv2D layer.
type Conv2DConfig = nn.Conv2DConfig

// Layer types.
type (
	Conv2D[B tensor.Backend]            = nn.Conv2D[B]
	BatchNorm2D[B tensor.Backend]       = nn.BatchNorm2D[B]
	ReLU6[B tensor.Backend]             = nn.ReLU6[B]
	AvgPool2D[B tensor.Backend]         = nn.AvgPool2D[B]
	AdaptiveAvgPool2D[B tensor.Backend] = nn.AdaptiveAvgPool2D[B]
	Dropout[B tensor.Backend]           = nn.Dropout[B]
	Flatten[B tensor.Backend]           = nn.Flatten[B]
	Sequential[B tensor.Backend]        = nn.Sequential[B]
	CrossEntropyLoss[B tensor.Backend]  = nn.CrossEntropyLoss[B]
)

// NewConv2D creates a convolution with Kaiming-normal weights drawn from
// src (nil uses the global source).
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, src rand.Source, backend B) *Conv2D[B] {
	return nn.NewConv2D(cfg, src, backend)
}

// NewBatchNorm2D creates a batch normalization over numFeatures channels.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, backend)
}

// NewReLU6 creates a ReLU clipped at 6.
func NewReLU6[B tensor.Backend](backend B) *ReLU6[B] {
	return nn.NewReLU6(backend)
}

// NewAvgPool2D creates an average pool with stride equal to kernelSize.
func NewAvgPool2D[B tensor.Backend](kernelSize int, backend B) *AvgPool2D[B] {
	return nn.NewAvgPool2D(kernelSize, backend)
}

// NewAdaptiveAvgPool2D creates a pool producing size×size outputs.
func NewAdaptiveAvgPool2D[B tensor.Backend](size int, backend B) *AdaptiveAvgPool2D[B] {
	return nn.NewAdaptiveAvgPool2D(size, backend)
}

// NewDropout creates an inverted dropout with rate p.
func NewDropout[B tensor.Backend](p float64, src rand.Source, backend B) *Dropout[B] {
	return nn.NewDropout(p, src, backend)
}

// NewFlatten creates a layer reshaping [N, ...] to [N, rest].
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return nn.NewFlatten[B]()
}

// NewSequential chains modules in order.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// NewCrossEntropyLoss creates the mean cross-entropy loss over raw logits.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss(backend)
}

// Accuracy returns the fraction of rows whose argmax equals the target.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float64 {
	return nn.Accuracy(logits, targets)
}

// Summary writes a per-layer table of output shapes and parameter counts
// for an input of inputShape (without the batch dimension).
func Summary[B tensor.Backend](w io.Writer, layers []Module[B], inputShape tensor.Shape, backend B) error {
	return nn.Summary(w, layers, inputShape, backend)
}

// Save writes m's state dict to path in SafeTensors format.
//
// Example:
//
//	err := nn.Save(model, "model.safetensors", nil)
func Save[B tensor.Backend](m Module[B], path string, metadata map[string]string) error {
	return nn.SaveStateDict(m, path, metadata)
}

// Load reads a SafeTensors file into m and returns its metadata.
func Load[B tensor.Backend](m Module[B], path string) (map[string]string, error) {
	return nn.LoadStateDictFile(m, path, tensor.CPU)
}
