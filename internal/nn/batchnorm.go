package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// Default BatchNorm2D hyperparameters.
const (
	DefaultBatchNormEps      = 1e-5
	DefaultBatchNormMomentum = 0.1
)

// BatchNorm2D normalizes each channel of an [N, C, H, W] input.
//
//	y = (x - mean) / sqrt(var + eps) * gamma + beta
//
// In Train mode mean and var are the biased batch statistics over (N, H, W)
// and the running estimates are updated:
//
//	running_mean = (1 - momentum) * running_mean + momentum * mean
//	running_var  = (1 - momentum) * running_var  + momentum * var_unbiased
//
// In Eval mode the running estimates are used and left untouched.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32

	gamma *Parameter[B] // [C], initialized to ones
	beta  *Parameter[B] // [C], initialized to zeros

	runningMean       *tensor.RawTensor // [C]
	runningVar        *tensor.RawTensor // [C]
	numBatchesTracked *tensor.RawTensor // [1] int32

	backend B
}

// NewBatchNorm2D creates a batch-normalization layer over numFeatures channels.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid num_features %d", numFeatures))
	}

	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures:       numFeatures,
		eps:               DefaultBatchNormEps,
		momentum:          DefaultBatchNormMomentum,
		gamma:             NewParameter("weight", Ones(shape, backend)),
		beta:              NewParameter("bias", Zeros(shape, backend)),
		runningMean:       tensor.MustRaw(shape, tensor.Float32, backend.Device()),
		runningVar:        Ones(shape, backend).Raw(),
		numBatchesTracked: tensor.MustRaw(tensor.Shape{1}, tensor.Int32, backend.Device()),
		backend:           backend,
	}
}

// Forward normalizes input using batch statistics (Train) or running
// statistics (Eval).
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B], mode Mode) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", shape[1], bn.numFeatures))
	}

	gamma, beta := bn.gamma.Tensor().Raw(), bn.beta.Tensor().Raw()

	if mode == Train {
		mean, variance := bn.backend.ChannelMoments(input.Raw())
		bn.updateRunningStats(mean, variance, shape[0]*shape[2]*shape[3])
		out := bn.backend.BatchNorm2D(input.Raw(), mean, bn.invStd(variance), gamma, beta, true)
		return tensor.New[float32, B](out, bn.backend)
	}

	out := bn.backend.BatchNorm2D(input.Raw(), bn.runningMean, bn.invStd(bn.runningVar), gamma, beta, false)
	return tensor.New[float32, B](out, bn.backend)
}

func (bn *BatchNorm2D[B]) invStd(variance *tensor.RawTensor) *tensor.RawTensor {
	out := tensor.MustRaw(variance.Shape(), tensor.Float32, variance.Device())
	v, o := variance.AsFloat32(), out.AsFloat32()
	for i := range v {
		o[i] = float32(1 / math.Sqrt(float64(v[i]+bn.eps)))
	}
	return out
}

// updateRunningStats folds the batch moments into the running estimates.
// n is the number of values per channel.
func (bn *BatchNorm2D[B]) updateRunningStats(mean, variance *tensor.RawTensor, n int) {
	correction := float32(1)
	if n > 1 {
		correction = float32(n) / float32(n-1)
	}

	m := bn.momentum
	rm, rv := bn.runningMean.AsFloat32(), bn.runningVar.AsFloat32()
	bm, bv := mean.AsFloat32(), variance.AsFloat32()
	for c := range rm {
		rm[c] = (1-m)*rm[c] + m*bm[c]
		rv[c] = (1-m)*rv[c] + m*bv[c]*correction
	}
	bn.numBatchesTracked.AsInt32()[0]++
}

// Parameters returns gamma and beta.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// StateDict returns the affine parameters and running buffers under the
// names PyTorch uses.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":              bn.gamma.Tensor().Raw(),
		"bias":                bn.beta.Tensor().Raw(),
		"running_mean":        bn.runningMean,
		"running_var":         bn.runningVar,
		"num_batches_tracked": bn.numBatchesTracked,
	}
}

// LoadStateDict restores parameters and running buffers.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for name, raw := range bn.StateDict() {
		if err := loadRaw(name, raw, stateDict[name]); err != nil {
			return err
		}
	}
	return nil
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() *tensor.RawTensor {
	return bn.runningMean
}

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() *tensor.RawTensor {
	return bn.runningVar
}

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2D(%d, eps=%g, momentum=%g)", bn.numFeatures, bn.eps, bn.momentum)
}
