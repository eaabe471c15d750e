// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum and weight decay
//   - Adam: Adaptive Moment Estimation
//
// Updates are applied in place on the parameters' float32 storage, so they are
// never recorded on an autodiff tape.
//
// Example usage:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01, Momentum: 0.9})
//
//	backend.Tape().StartRecording()
//	loss := criterion.Forward(model.Forward(images, nn.Train), labels)
//	optimizer.ZeroGrad()
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
//	backend.Tape().Clear()
package optim

import (
	"fmt"
	"strings"

	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// grads maps each parameter's RawTensor to its gradient, as returned by
	// autodiff.Backward. Parameters without an entry are left unchanged.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// New builds the optimizer named by kind ("sgd" or "adam").
func New[B tensor.Backend](kind string, params []*nn.Parameter[B], lr, momentum, weightDecay float32) (Optimizer, error) {
	switch strings.ToLower(kind) {
	case "sgd", "":
		return NewSGD(params, SGDConfig{LR: lr, Momentum: momentum, WeightDecay: weightDecay}), nil
	case "adam":
		return NewAdam(params, AdamConfig{LR: lr, WeightDecay: weightDecay}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q (available: sgd, adam)", kind)
	}
}

// getGradient safely retrieves the float32 gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) []float32 {
	if param == nil {
		return nil
	}
	grad, ok := grads[param.Tensor().Raw()]
	if !ok || grad == nil {
		return nil
	}
	if !grad.Shape().Equal(param.Tensor().Shape()) {
		panic(fmt.Sprintf("optim: gradient shape %v does not match parameter %s %v",
			grad.Shape(), param.Name(), param.Tensor().Shape()))
	}
	return grad.AsFloat32()
}

func zeroGrad[B tensor.Backend](params []*nn.Parameter[B]) {
	for _, param := range params {
		param.ZeroGrad()
	}
}
