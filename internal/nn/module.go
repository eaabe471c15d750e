// Package nn implements neural network modules for the MobileNet pipeline.
//
// This package provides building blocks for constructing convolutional networks:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Layers: Conv2D, BatchNorm2D, ReLU6, AvgPool2D, AdaptiveAvgPool2D, Dropout, Flatten
//   - Loss functions: CrossEntropyLoss
//   - Sequential: Container for stacking layers
//
// Train/eval behaviour is selected per call with an explicit Mode argument,
// so no layer carries a hidden training flag.
package nn

import (
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Mode selects train- or eval-time behaviour for a forward pass.
type Mode int

const (
	// Train uses batch statistics in BatchNorm2D (and updates its running
	// estimates) and enables Dropout.
	Train Mode = iota
	// Eval uses running statistics and disables Dropout.
	Eval
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Train:
		return "train"
	case Eval:
		return "eval"
	default:
		return "unknown"
	}
}

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewConv2D(nn.Conv2DConfig{InChannels: 3, OutChannels: 32, KernelSize: 3}, nil, backend),
//	    nn.NewBatchNorm2D(32, backend),
//	    nn.NewReLU6[Backend](backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module for input in the given mode.
	Forward(input *tensor.Tensor[float32, B], mode Mode) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including those of nested modules.
	Parameters() []*Parameter[B]

	// StateDict returns parameters and persistent buffers keyed by name.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values from stateDict into the module's tensors.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Container is implemented by modules whose Forward applies Children in order.
// Summary walks containers to report their leaves.
type Container[B tensor.Backend] interface {
	Module[B]
	Children() []Module[B]
}

// stateless provides the StateDict plumbing for modules without parameters.
type stateless struct{}

func (stateless) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

func (stateless) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}
