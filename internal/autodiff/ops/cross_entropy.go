package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// CrossEntropyOp represents the cross-entropy loss operation.
//
// Forward:
//
//	Loss = mean(-log_softmax(logits)[targets])
//
// Where log_softmax uses the log-sum-exp trick for numerical stability:
//
//	log_softmax(z) = z - (max(z) + log(Σ exp(z - max(z))))
//
// Backward:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size
//
// Assumptions:
//   - Logits shape: [batch_size, num_classes] (2D)
//   - Targets shape: [batch_size] (1D int32 class indices)
//   - Output: loss of shape [1] (mean over batch)
type CrossEntropyOp struct {
	logits  *tensor.RawTensor
	targets *tensor.RawTensor
	output  *tensor.RawTensor
}

// NewCrossEntropyOp creates a new cross-entropy operation.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{
		logits:  logits,
		targets: targets,
		output:  output,
	}
}

// Inputs returns the input tensors. Targets are not differentiated.
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the output tensor.
func (op *CrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the gradient with respect to logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	batchSize, numClasses := crossEntropyDims(op.logits, op.targets)

	logitsGrad := tensor.MustRaw(op.logits.Shape(), tensor.Float32, op.logits.Device())
	logits := op.logits.AsFloat32()
	targets := op.targets.AsInt32()
	grad := logitsGrad.AsFloat32()
	scale := outputGrad.AsFloat32()[0] / float32(batchSize)

	probs := make([]float32, numClasses)
	for b := 0; b < batchSize; b++ {
		softmax(logits[b*numClasses:(b+1)*numClasses], probs)
		target := int(targets[b])
		for i, p := range probs {
			if i == target {
				p--
			}
			grad[b*numClasses+i] = scale * p
		}
	}

	return []*tensor.RawTensor{logitsGrad}
}

// CrossEntropyForward computes the mean cross-entropy loss without recording
// anything. The autodiff backend pairs it with CrossEntropyOp.
func CrossEntropyForward(logits, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	batchSize, numClasses := crossEntropyDims(logits, targets)

	output := tensor.MustRaw(tensor.Shape{1}, tensor.Float32, device)
	data := logits.AsFloat32()
	labels := targets.AsInt32()

	var total float64
	for b := 0; b < batchSize; b++ {
		target := int(labels[b])
		if target < 0 || target >= numClasses {
			panic(fmt.Sprintf("cross_entropy: target %d out of range [0, %d)", target, numClasses))
		}
		row := data[b*numClasses : (b+1)*numClasses]
		total += logSumExp(row) - float64(row[target])
	}
	output.AsFloat32()[0] = float32(total / float64(batchSize))

	return output
}

func crossEntropyDims(logits, targets *tensor.RawTensor) (batchSize, numClasses int) {
	ls, ts := logits.Shape(), targets.Shape()
	if len(ls) != 2 {
		panic(fmt.Sprintf("cross_entropy: logits must be 2D [batch_size, num_classes], got %v", ls))
	}
	if len(ts) != 1 || ts[0] != ls[0] {
		panic(fmt.Sprintf("cross_entropy: targets shape %v does not match batch size %d", ts, ls[0]))
	}
	if logits.DType() != tensor.Float32 || targets.DType() != tensor.Int32 {
		panic(fmt.Sprintf("cross_entropy: expected float32 logits and int32 targets, got %s and %s",
			logits.DType(), targets.DType()))
	}
	return ls[0], ls[1]
}

// logSumExp returns log(Σ exp(z)) computed as max(z) + log(Σ exp(z - max(z))).
func logSumExp(z []float32) float64 {
	maxVal := float64(z[0])
	for _, v := range z[1:] {
		maxVal = math.Max(maxVal, float64(v))
	}
	var sum float64
	for _, v := range z {
		sum += math.Exp(float64(v) - maxVal)
	}
	return maxVal + math.Log(sum)
}

// softmax writes the numerically stable softmax of z into out.
func softmax(z, out []float32) {
	lse := logSumExp(z)
	for i, v := range z {
		out[i] = float32(math.Exp(float64(v) - lse))
	}
}
