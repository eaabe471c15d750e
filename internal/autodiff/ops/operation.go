// Package ops defines the differentiable operations recorded on the gradient
// tape.
//
// Each operation keeps references to its inputs and output from the forward
// pass and turns an output gradient into input gradients:
//   - AddOp, SubOp, MulOp, DivOp: element-wise, reducing over broadcast dims
//   - ScaleOp, ShiftOp: scalar multiply / add
//   - ReshapeOp, SumOp
//   - Conv2DOp: grouped convolution
//   - AvgPool2DOp, AdaptiveAvgPool2DOp
//   - ClampOp: ReLU6 and friends
//   - BatchNorm2DOp
//   - CrossEntropyOp: fused log-softmax + negative log-likelihood
package ops

import "github.com/born-ml/mobilenet/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor; a nil
	// entry means no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
