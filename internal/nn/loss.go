package nn

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/autodiff/ops"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// CrossEntropyLoss computes cross-entropy loss for multi-class classification.
//
//	Loss = mean over batch of -log_softmax(logits)[target]
//
// It expects raw logits; the log-softmax is fused into the loss and uses the
// log-sum-exp trick for numerical stability.
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss(backend)
//	logits := model.Forward(input, nn.Train)   // [batch_size, num_classes]
//	loss := criterion.Forward(logits, targets) // targets: [batch_size] int32
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{
		backend: backend,
	}
}

// Forward computes the mean cross-entropy, a tensor of shape [1].
//
// When the backend is autodiff-aware the operation is recorded on the tape.
func (c *CrossEntropyLoss[B]) Forward(
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	type CrossEntropyBackend interface {
		CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
	}

	if adBackend, ok := any(c.backend).(CrossEntropyBackend); ok {
		return tensor.New[float32, B](adBackend.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
	}

	// Plain backends evaluate the loss without recording it.
	result := ops.CrossEntropyForward(logits.Raw(), targets.Raw(), c.backend.Device())
	return tensor.New[float32, B](result, c.backend)
}

// Accuracy returns the fraction of rows of logits whose argmax equals the target.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float64 {
	preds := tensor.Argmax(logits, 1).Data()
	labels := targets.Data()
	if len(preds) != len(labels) {
		panic(fmt.Sprintf("accuracy: %d predictions for %d targets", len(preds), len(labels)))
	}
	if len(labels) == 0 {
		return 0
	}

	correct := 0
	for i, p := range preds {
		if p == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}
