// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package mobilenet

import (
	"context"

	"github.com/born-ml/mobilenet/internal/dataset"
	"github.com/born-ml/mobilenet/tensor"
)

// Dataset types.
type (
	Dataset       = dataset.Dataset
	CIFAR10       = dataset.CIFAR10
	CIFAR10Option = dataset.Option
	Synthetic     = dataset.Synthetic
	Image         = dataset.Image
	Transform     = dataset.Transform
	Step          = dataset.Step
	Loader        = dataset.Loader
	Batch         = dataset.Batch
)

// CIFAR-10 options.
var (
	WithDownload   = dataset.WithDownload
	WithSource     = dataset.WithSource
	WithHTTPClient = dataset.WithHTTPClient
	WithProgress   = dataset.WithProgress
)

// NewCIFAR10 opens (and by default downloads) the CIFAR-10 train or test
// split under root. A nil transform selects DefaultTransform.
func NewCIFAR10(ctx context.Context, root string, train bool, transform Transform, opts ...CIFAR10Option) (*CIFAR10, error) {
	return dataset.NewCIFAR10(ctx, root, train, transform, opts...)
}

// NewSynthetic creates a generated dataset of n size×size pictures.
func NewSynthetic(n, numClass, size int, seed uint64, transform Transform) (*Synthetic, error) {
	return dataset.NewSynthetic(n, numClass, size, seed, transform)
}

// DefaultTransform is ToTensor, ImageNet normalization, Resize(32) and
// CenterCrop(32).
func DefaultTransform() Transform { return dataset.DefaultTransform() }

// Transform steps.
var (
	Compose    = dataset.Compose
	Normalize  = dataset.Normalize
	Resize     = dataset.Resize
	CenterCrop = dataset.CenterCrop
)

// NewLoader batches ds, reshuffling every pass when shuffle is set.
func NewLoader(ds Dataset, batchSize int, shuffle bool, seed uint64) (*Loader, error) {
	return dataset.NewLoader(ds, batchSize, shuffle, seed)
}

// ToTensors copies a batch into image and label tensors.
func ToTensors[B tensor.Backend](b *Batch, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[int32, B], error) {
	return dataset.ToTensors(b, backend)
}
