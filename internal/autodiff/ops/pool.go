package ops

import (
	"github.com/born-ml/mobilenet/internal/tensor"
)

// AvgPool2DOp records average pooling over K×K windows.
type AvgPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	kernelSize int
	stride     int
}

// NewAvgPool2DOp creates a new AvgPool2DOp.
func NewAvgPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *AvgPool2DOp {
	return &AvgPool2DOp{input: input, output: output, kernelSize: kernelSize, stride: stride}
}

// Backward spreads each output gradient evenly across its window.
func (op *AvgPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.AvgPool2DBackward(op.input, outputGrad, op.kernelSize, op.stride)}
}

// Inputs returns [input].
func (op *AvgPool2DOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the pooled tensor.
func (op *AvgPool2DOp) Output() *tensor.RawTensor { return op.output }

// AdaptiveAvgPool2DOp records adaptive average pooling to a fixed grid.
type AdaptiveAvgPool2DOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewAdaptiveAvgPool2DOp creates a new AdaptiveAvgPool2DOp.
func NewAdaptiveAvgPool2DOp(input, output *tensor.RawTensor) *AdaptiveAvgPool2DOp {
	return &AdaptiveAvgPool2DOp{input: input, output: output}
}

// Backward distributes each cell's gradient over the input window it averaged.
func (op *AdaptiveAvgPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.AdaptiveAvgPool2DBackward(op.input, outputGrad)}
}

// Inputs returns [input].
func (op *AdaptiveAvgPool2DOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the pooled tensor.
func (op *AdaptiveAvgPool2DOp) Output() *tensor.RawTensor { return op.output }
