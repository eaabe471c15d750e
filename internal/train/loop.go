package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"time"

	"github.com/born-ml/mobilenet/internal/autodiff"
	"github.com/born-ml/mobilenet/internal/dataset"
	"github.com/born-ml/mobilenet/internal/metrics"
	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/optim"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// ErrNoBatches is returned when a loader yields no batches.
var ErrNoBatches = errors.New("train: loader has no batches")

// Model is a classifier that maps [N, C, H, W] images to [N, classes] logits.
type Model[B tensor.Backend] interface {
	Forward(input *tensor.Tensor[float32, B], mode nn.Mode) *tensor.Tensor[float32, B]
	Parameters() []*nn.Parameter[B]
}

// Criterion computes a scalar loss from logits and int32 class labels.
type Criterion[B tensor.Backend] func(logits *tensor.Tensor[float32, B], labels *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B]

// CrossEntropy returns the default criterion.
func CrossEntropy[B tensor.Backend](backend B) Criterion[B] {
	return nn.NewCrossEntropyLoss(backend).Forward
}

// Loader yields mini-batches; *dataset.Loader implements it.
type Loader interface {
	Len() int
	Batches() iter.Seq2[*dataset.Batch, error]
}

// EpochStats summarizes one training epoch.
type EpochStats struct {
	Loss     float64 // mean batch loss
	Accuracy float64 // fraction of correctly classified examples
	Batches  int
	Duration time.Duration
}

// EvalResult summarizes one evaluation pass.
type EvalResult struct {
	Loss    float64 // summed batch loss divided by the number of batches
	Metrics *metrics.ClassificationMetrics
}

// batchDigits is the field width of batch indices in progress lines.
func batchDigits(numBatches int) int {
	return int(math.Log10(float64(numBatches))) + 1
}

// TrainEpoch runs one pass over loader. For every batch it runs the forward
// pass in Train mode, computes the loss, clears the gradients,
// backpropagates through the tape and applies one optimizer step.
// A progress line is written every PrintCadence batches and a timing line
// at the end.
func TrainEpoch[B autodiff.BackwardCapable](
	ctx context.Context,
	model Model[B],
	loader Loader,
	optimizer optim.Optimizer,
	criterion Criterion[B],
	backend B,
	cfg Config,
	w io.Writer,
) (EpochStats, error) {
	numBatches := loader.Len()
	if numBatches == 0 {
		return EpochStats{}, ErrNoBatches
	}
	cadence := PrintCadence(numBatches, cfg.NumPrints)
	digits := batchDigits(numBatches)

	tape := backend.GetTape()
	if !tape.IsRecording() {
		tape.StartRecording()
		defer tape.StopRecording()
	}
	defer tape.Clear()

	start := time.Now()
	var stats EpochStats
	var correct, total int

	idx := 0
	for batch, err := range loader.Batches() {
		if err != nil {
			return stats, err
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		images, labels, err := dataset.ToTensors(batch, backend)
		if err != nil {
			return stats, err
		}

		outputs := model.Forward(images, nn.Train)
		loss := criterion(outputs, labels)
		optimizer.ZeroGrad()
		optimizer.Step(autodiff.Backward(loss, backend))
		tape.Clear()

		lossValue := float64(loss.Item())
		acc := nn.Accuracy(outputs, labels)
		stats.Loss += lossValue
		correct += int(math.Round(acc * float64(batch.Size())))
		total += batch.Size()

		if idx%cadence == 0 {
			fmt.Fprintf(w, "[Batch %*d/%d] Loss: %.4f, Accuracy: %.2f%%\n",
				digits, idx, numBatches, lossValue, acc*100)
		}
		idx++
	}
	if idx == 0 {
		return stats, ErrNoBatches
	}

	stats.Batches = idx
	stats.Duration = time.Since(start)
	stats.Loss /= float64(idx)
	stats.Accuracy = float64(correct) / float64(total)

	secs := stats.Duration.Seconds()
	fmt.Fprintf(w, "Time spent: %.2fs | %.2fs/batch\n", secs, secs/float64(idx))
	return stats, nil
}

// Evaluate runs a no-gradient pass over loader in Eval mode, prints the
// total loss and the metrics report, and returns them. With
// cfg.PrintStepTest > 0 a line is also printed every PrintStepTest batches.
func Evaluate[B autodiff.BackwardCapable](
	ctx context.Context,
	model Model[B],
	loader Loader,
	criterion Criterion[B],
	backend B,
	cfg Config,
	w io.Writer,
) (EvalResult, error) {
	numBatches := loader.Len()
	if numBatches == 0 {
		return EvalResult{}, ErrNoBatches
	}
	digits := batchDigits(numBatches)

	tape := backend.GetTape()
	if tape.IsRecording() {
		tape.StopRecording()
		defer tape.StartRecording()
	}

	var totalLoss float64
	var truths []int
	var outputs [][]float32

	idx := 0
	for batch, err := range loader.Batches() {
		if err != nil {
			return EvalResult{}, err
		}
		if err := ctx.Err(); err != nil {
			return EvalResult{}, err
		}

		images, labels, err := dataset.ToTensors(batch, backend)
		if err != nil {
			return EvalResult{}, err
		}

		logits := model.Forward(images, nn.Eval)
		loss := float64(criterion(logits, labels).Item())
		totalLoss += loss

		batchTruths := make([]int, batch.Size())
		for i, l := range batch.Labels {
			batchTruths[i] = int(l)
		}
		batchLogits := rows(logits)
		truths = append(truths, batchTruths...)
		outputs = append(outputs, batchLogits...)

		if cfg.PrintStepTest > 0 && idx%cfg.PrintStepTest == 0 {
			m, err := metrics.FromLogits(batchTruths, batchLogits)
			if err != nil {
				return EvalResult{}, err
			}
			fmt.Fprintf(w, "[Batch %*d/%d] Loss: %.4f, Accuracy: %.2f%%\n",
				digits, idx, numBatches, loss, m.Accuracy()*100)
		}
		idx++
	}
	if idx == 0 {
		return EvalResult{}, ErrNoBatches
	}

	totalLoss /= float64(idx)
	fmt.Fprintf(w, "Total test data: %d, Loss: %.4f\n", len(truths), totalLoss)

	m, err := metrics.FromLogits(truths, outputs)
	if err != nil {
		return EvalResult{}, err
	}
	if err := m.PrintReport(w); err != nil {
		return EvalResult{}, err
	}
	return EvalResult{Loss: totalLoss, Metrics: m}, nil
}

// rows copies a [N, K] tensor into N slices.
func rows[B tensor.Backend](t *tensor.Tensor[float32, B]) [][]float32 {
	shape := t.Shape()
	data := t.Data()
	out := make([][]float32, shape[0])
	for i := range out {
		out[i] = append([]float32(nil), data[i*shape[1]:(i+1)*shape[1]]...)
	}
	return out
}
