package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/mobilenet/internal/tensor"
)

func TestReduceBroadcast(t *testing.T) {
	grad := tensor.MustRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	copy(grad.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})

	same := reduceBroadcast(grad, tensor.Shape{2, 3})
	assert.Same(t, grad, same)

	rows := reduceBroadcast(grad, tensor.Shape{3})
	assert.Equal(t, []float32{5, 7, 9}, rows.AsFloat32())

	cols := reduceBroadcast(grad, tensor.Shape{2, 1})
	assert.Equal(t, tensor.Shape{2, 1}, cols.Shape())
	assert.Equal(t, []float32{6, 15}, cols.AsFloat32())

	all := reduceBroadcast(grad, tensor.Shape{1})
	assert.Equal(t, []float32{21}, all.AsFloat32())
}

func TestCrossEntropyForward_Uniform(t *testing.T) {
	logits := tensor.MustRaw(tensor.Shape{2, 4}, tensor.Float32, tensor.CPU)
	targets := tensor.MustRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
	copy(targets.AsInt32(), []int32{1, 3})

	loss := CrossEntropyForward(logits, targets, tensor.CPU)
	// Uniform logits give log(num_classes).
	assert.InDelta(t, 1.3862944, float64(loss.AsFloat32()[0]), 1e-6)

	assert.Panics(t, func() {
		CrossEntropyForward(logits, tensor.MustRaw(tensor.Shape{3}, tensor.Int32, tensor.CPU), tensor.CPU)
	})
}
