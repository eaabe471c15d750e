package nn

import (
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Flatten reshapes [N, d1, d2, ...] into [N, d1*d2*...].
type Flatten[B tensor.Backend] struct {
	stateless
}

// NewFlatten creates a Flatten layer.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return &Flatten[B]{}
}

// Forward keeps the batch dimension and merges the rest.
func (f *Flatten[B]) Forward(input *tensor.Tensor[float32, B], _ Mode) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) == 0 {
		panic("flatten: scalar input")
	}
	return input.Reshape(shape[0], input.NumElements()/max(shape[0], 1))
}

// Parameters returns nil (no trainable parameters).
func (f *Flatten[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns the layer name.
func (f *Flatten[B]) String() string {
	return "Flatten()"
}
