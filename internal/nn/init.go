package nn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// KaimingNormal initializes a weight tensor from N(0, 2/fanOut), the He
// initialization for ReLU-family activations in fan-out mode.
//
// A nil src draws from the global x/exp/rand source.
func KaimingNormal[B tensor.Backend](shape tensor.Shape, fanOut int, src rand.Source, backend B) *tensor.Tensor[float32, B] {
	dist := distuv.Normal{
		Mu:    0,
		Sigma: math.Sqrt(2.0 / float64(fanOut)),
		Src:   src,
	}

	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32(dist.Rand())
	}
	return t
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
