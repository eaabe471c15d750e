// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types of the MobileNet module.
//
// Tensors are generic over their element type (float32 or int32) and the
// backend that executes their operations:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3, 32, 32}, backend)
//	y := x.MulScalar(2)
package tensor

import (
	"math/rand"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// DType constrains tensor element types to float32 and int32.
type DType = tensor.DType

// DataType is the runtime element type of a RawTensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Int32   DataType = tensor.Int32
)

// Device identifies where tensor data resides.
type Device = tensor.Device

// CPU is the only device currently available.
const CPU Device = tensor.CPU

// ParseDevice maps a configuration name such as "cpu" to a Device.
func ParseDevice(name string) (Device, error) {
	return tensor.ParseDevice(name)
}

// Shape is the dimensions of a tensor, outermost first.
type Shape = tensor.Shape

// Backend executes tensor operations. See backend/cpu and autodiff.
type Backend = tensor.Backend

// RawTensor is the untyped tensor storage shared by Tensor and backends.
type RawTensor = tensor.RawTensor

// Tensor is a typed tensor bound to a backend.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Randn creates a float32 tensor drawn from N(0, 1). A nil rng uses the
// math/rand global source.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[float32, B] {
	return tensor.Randn(shape, rng, b)
}

// FromSlice copies data into a new tensor of the given shape.
//
// Example:
//
//	labels, err := tensor.FromSlice([]int32{3, 8}, tensor.Shape{2}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// New wraps a raw tensor.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw allocates a zeroed raw tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Argmax returns the indices of the maximum values along dim.
func Argmax[T DType, B Backend](t *Tensor[T, B], dim int) *Tensor[int32, B] {
	return tensor.Argmax(t, dim)
}
