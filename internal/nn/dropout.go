package nn

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// Dropout zeroes each element with probability p in Train mode and scales
// survivors by 1/(1-p) (inverted dropout). It is the identity in Eval mode.
type Dropout[B tensor.Backend] struct {
	stateless
	p       float64
	keep    distuv.Bernoulli
	backend B
}

// NewDropout creates a dropout layer. src drives the mask; nil uses the
// global source.
func NewDropout[B tensor.Backend](p float64, src rand.Source, backend B) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability must be in [0, 1), got %v", p))
	}
	return &Dropout[B]{
		p:       p,
		keep:    distuv.Bernoulli{P: 1 - p, Src: src},
		backend: backend,
	}
}

// Forward applies a fresh mask in Train mode.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B], mode Mode) *tensor.Tensor[float32, B] {
	if mode != Train || d.p == 0 {
		return input
	}

	scale := float32(1 / (1 - d.p))
	mask := tensor.Zeros[float32](input.Shape(), d.backend)
	data := mask.Data()
	for i := range data {
		data[i] = float32(d.keep.Rand()) * scale
	}
	return input.Mul(mask)
}

// Parameters returns nil (no trainable parameters).
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a string representation of the layer.
func (d *Dropout[B]) String() string {
	return fmt.Sprintf("Dropout(p=%g)", d.p)
}
