package ops

import (
	"github.com/born-ml/mobilenet/internal/tensor"
)

// ClampOp represents output = min(max(x, lo), hi).
//
// Backward: d/dx = 1 where lo < x < hi, else 0. ReLU6 is ClampOp{lo: 0, hi: 6}.
type ClampOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	lo, hi float32
}

// NewClampOp creates a new ClampOp.
func NewClampOp(input, output *tensor.RawTensor, lo, hi float32) *ClampOp {
	return &ClampOp{input: input, output: output, lo: lo, hi: hi}
}

// Backward masks outputGrad to the unclamped region.
func (op *ClampOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.ClampBackward(op.input, outputGrad, op.lo, op.hi)}
}

// Inputs returns [x].
func (op *ClampOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the clamped tensor.
func (op *ClampOp) Output() *tensor.RawTensor { return op.output }
