// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package mobilenet is the public API for building, training and
// evaluating MobileNet (v1) image classifiers.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model, err := mobilenet.New(10, backend,
//	    mobilenet.WithAlpha(0.5),
//	    mobilenet.WithInputResolution(32))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logits := model.Forward(images, nn.Eval) // [N, 10]
package mobilenet

import (
	"golang.org/x/exp/rand"

	"github.com/born-ml/mobilenet/internal/mobilenet"
	"github.com/born-ml/mobilenet/tensor"
)

// MobileNet is a depthwise-separable convolutional classifier.
type MobileNet[B tensor.Backend] = mobilenet.MobileNet[B]

// Option configures New.
type Option = mobilenet.Option

// Defaults for New.
const (
	DefaultAlpha           = mobilenet.DefaultAlpha
	DefaultInputResolution = mobilenet.DefaultInputResolution
	DefaultDropout         = mobilenet.DefaultDropout
	ReferenceResolution    = mobilenet.ReferenceResolution
	NumStages              = mobilenet.NumStages
)

// New builds a MobileNet for numClass classes.
func New[B tensor.Backend](numClass int, backend B, opts ...Option) (*MobileNet[B], error) {
	return mobilenet.New(numClass, backend, opts...)
}

// Load rebuilds a network from a checkpoint written by MobileNet.Save.
func Load[B tensor.Backend](path string, backend B) (*MobileNet[B], error) {
	return mobilenet.Load(path, backend)
}

// WithAlpha sets the width multiplier (default 1.0).
func WithAlpha(alpha float64) Option { return mobilenet.WithAlpha(alpha) }

// WithInputResolution sets the resolution the input is pooled to (default 224).
func WithInputResolution(resolution int) Option {
	return mobilenet.WithInputResolution(resolution)
}

// WithDropout sets the dropout rate before the classifier (default 0.001).
func WithDropout(p float64) Option { return mobilenet.WithDropout(p) }

// WithSeed seeds weight initialization and dropout.
func WithSeed(seed uint64) Option { return mobilenet.WithSeed(seed) }

// Schedule types.
type (
	Stage      = mobilenet.Stage
	Schedule   = mobilenet.Schedule
	Transition = mobilenet.Transition
)

// DeriveSchedule scales the canonical 14-stage schedule by alpha and
// inputResolution/224, truncating.
func DeriveSchedule(alpha float64, inputResolution int) (Schedule, error) {
	return mobilenet.DeriveSchedule(alpha, inputResolution)
}

// Errors. Both error types match ErrInvalidConfig with errors.Is.
type (
	ValidationError = mobilenet.ValidationError
	ScheduleError   = mobilenet.ScheduleError
)

// ErrInvalidConfig is matched by every configuration error.
var ErrInvalidConfig = mobilenet.ErrInvalidConfig

// Building blocks.
type (
	DepthWiseConv[B tensor.Backend] = mobilenet.DepthWiseConv[B]
	PointWiseConv[B tensor.Backend] = mobilenet.PointWiseConv[B]
	SeparableConv[B tensor.Backend] = mobilenet.SeparableConv[B]
)

// NewDepthWiseConv creates a per-channel convolution with "same" padding.
func NewDepthWiseConv[B tensor.Backend](channels, kernelSize, stride int, src rand.Source, backend B) *DepthWiseConv[B] {
	return mobilenet.NewDepthWiseConv(channels, kernelSize, stride, src, backend)
}

// NewPointWiseConv creates a 1×1 convolution mapping in to out channels.
func NewPointWiseConv[B tensor.Backend](in, out int, src rand.Source, backend B) *PointWiseConv[B] {
	return mobilenet.NewPointWiseConv(in, out, src, backend)
}

// NewSeparableConv creates a depthwise-separable block whose depthwise
// stride is downscale.
func NewSeparableConv[B tensor.Backend](in, out, downscale int, src rand.Source, backend B) *SeparableConv[B] {
	return mobilenet.NewSeparableConv(in, out, downscale, src, backend)
}
