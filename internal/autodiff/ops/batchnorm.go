package ops

import (
	"github.com/born-ml/mobilenet/internal/tensor"
)

// BatchNorm2DOp records per-channel normalization y = γ·(x−μ)·invStd + β.
//
// Inputs are [x, gamma, beta]. When the statistics were computed from the
// batch, the input gradient accounts for μ and invStd depending on x;
// otherwise (running statistics) they are constants.
type BatchNorm2DOp struct {
	x, gamma, beta *tensor.RawTensor
	mean, invStd   *tensor.RawTensor
	output         *tensor.RawTensor
	batchStats     bool
}

// NewBatchNorm2DOp creates a new BatchNorm2DOp.
func NewBatchNorm2DOp(x, mean, invStd, gamma, beta, output *tensor.RawTensor, batchStats bool) *BatchNorm2DOp {
	return &BatchNorm2DOp{
		x: x, gamma: gamma, beta: beta,
		mean: mean, invStd: invStd,
		output:     output,
		batchStats: batchStats,
	}
}

// Backward returns [dx, dgamma, dbeta].
func (op *BatchNorm2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dx, dgamma, dbeta := backend.BatchNorm2DBackward(op.x, op.mean, op.invStd, op.gamma, outputGrad, op.batchStats)
	return []*tensor.RawTensor{dx, dgamma, dbeta}
}

// Inputs returns [x, gamma, beta].
func (op *BatchNorm2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.x, op.gamma, op.beta}
}

// Output returns the normalized tensor.
func (op *BatchNorm2DOp) Output() *tensor.RawTensor { return op.output }
