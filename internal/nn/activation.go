package nn

import (
	"github.com/born-ml/mobilenet/internal/tensor"
)

// ReLU6 is the bounded rectifier min(max(x, 0), 6).
type ReLU6[B tensor.Backend] struct {
	stateless
	backend B
}

// NewReLU6 creates a ReLU6 activation.
func NewReLU6[B tensor.Backend](backend B) *ReLU6[B] {
	return &ReLU6[B]{backend: backend}
}

// Forward clamps input to [0, 6].
func (r *ReLU6[B]) Forward(input *tensor.Tensor[float32, B], _ Mode) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](r.backend.Clamp(input.Raw(), 0, 6), r.backend)
}

// Parameters returns nil (no trainable parameters).
func (r *ReLU6[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns the layer name.
func (r *ReLU6[B]) String() string {
	return "ReLU6()"
}
