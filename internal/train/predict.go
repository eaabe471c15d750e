package train

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/mobilenet/internal/dataset"
	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Prediction is one class with its softmax probability.
type Prediction struct {
	Class       int
	Probability float64
}

// Classify runs img through model in Eval mode and returns the k most
// probable classes, most probable first.
func Classify[B tensor.Backend](model Model[B], img *dataset.Image, k int, backend B) ([]Prediction, error) {
	x, err := tensor.FromSlice(img.Pix, tensor.Shape{1, img.Channels, img.Height, img.Width}, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	logits := model.Forward(x, nn.Eval).Data()
	if len(logits) == 0 {
		return nil, fmt.Errorf("model produced no logits")
	}
	probs := make([]float64, len(logits))
	for i, v := range logits {
		probs[i] = float64(v)
	}
	floats.AddConst(-floats.LogSumExp(probs), probs)
	for i, v := range probs {
		probs[i] = math.Exp(v)
	}

	order := make([]int, len(probs))
	sorted := append([]float64(nil), probs...)
	floats.Argsort(sorted, order)

	k = min(max(k, 1), len(probs))
	out := make([]Prediction, k)
	for i := range out {
		class := order[len(order)-1-i]
		out[i] = Prediction{Class: class, Probability: probs[class]}
	}
	return out, nil
}
