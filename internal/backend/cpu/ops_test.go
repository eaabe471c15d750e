package cpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
)

func TestBackendMetadata(t *testing.T) {
	backend := New()
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestAdd_SameShape(t *testing.T) {
	backend := New()
	a := rawFrom(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	b := rawFrom(t, tensor.Shape{2, 2}, []float32{10, 20, 30, 40})

	assert.Equal(t, []float32{11, 22, 33, 44}, backend.Add(a, b).AsFloat32())
	// Inputs stay untouched.
	assert.Equal(t, []float32{1, 2, 3, 4}, a.AsFloat32())
}

func TestBinary_Broadcast(t *testing.T) {
	backend := New()
	x := rawFrom(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	row := rawFrom(t, tensor.Shape{3}, []float32{1, 10, 100})
	col := rawFrom(t, tensor.Shape{2, 1}, []float32{2, 4})

	sum := backend.Add(x, row)
	assert.Equal(t, tensor.Shape{2, 3}, sum.Shape())
	assert.Equal(t, []float32{2, 12, 103, 5, 15, 106}, sum.AsFloat32())

	assert.Equal(t, []float32{-1, 0, 1, 0, 1, 2}, backend.Sub(x, col).AsFloat32())
	assert.Equal(t, []float32{2, 4, 6, 16, 20, 24}, backend.Mul(x, col).AsFloat32())
	assert.Equal(t, []float32{0.5, 1, 1.5, 1, 1.25, 1.5}, backend.Div(x, col).AsFloat32())
}

func TestBinary_IncompatiblePanics(t *testing.T) {
	backend := New()
	a := tensor.MustRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	b := tensor.MustRaw(tensor.Shape{2, 4}, tensor.Float32, tensor.CPU)
	assert.PanicsWithValue(t,
		"add: shapes not compatible for broadcasting: [2 3] vs [2 4] (dimension 1: 3 vs 4)",
		func() { backend.Add(a, b) })
}

func TestScalarOps(t *testing.T) {
	backend := New()
	x := rawFrom(t, tensor.Shape{3}, []float32{1, -2, 3})

	assert.Equal(t, []float32{2, -4, 6}, backend.MulScalar(x, 2).AsFloat32())
	assert.Equal(t, []float32{1.5, -1.5, 3.5}, backend.AddScalar(x, 0.5).AsFloat32())
}

func TestReshape_SharesData(t *testing.T) {
	backend := New()
	x := rawFrom(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	y := backend.Reshape(x, tensor.Shape{3, 2})
	assert.Equal(t, tensor.Shape{3, 2}, y.Shape())
	assert.Equal(t, x.AsFloat32(), y.AsFloat32())

	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{4, 2}) })
}

func TestSumAndArgmax(t *testing.T) {
	backend := New()
	x := rawFrom(t, tensor.Shape{2, 3}, []float32{0.1, 0.7, 0.2, 5, -1, 5})

	assert.InDelta(t, 10.0, float64(backend.Sum(x).AsFloat32()[0]), 1e-6)

	rows := backend.Argmax(x, 1)
	assert.Equal(t, tensor.Shape{2}, rows.Shape())
	assert.Equal(t, tensor.Int32, rows.DType())
	// Ties resolve to the first index.
	assert.Equal(t, []int32{1, 0}, rows.AsInt32())

	cols := backend.Argmax(x, 0)
	assert.Equal(t, []int32{1, 0, 1}, cols.AsInt32())

	assert.Equal(t, []int32{1, 0}, backend.Argmax(x, -1).AsInt32())
	assert.Panics(t, func() { backend.Argmax(x, 2) })
}

func TestClamp(t *testing.T) {
	backend := New()
	x := rawFrom(t, tensor.Shape{5}, []float32{-1, 0, 3, 6, 9})

	assert.Equal(t, []float32{0, 0, 3, 6, 6}, backend.Clamp(x, 0, 6).AsFloat32())

	grad := rawFrom(t, tensor.Shape{5}, []float32{1, 1, 1, 1, 1})
	assert.Equal(t, []float32{0, 0, 1, 0, 0}, backend.ClampBackward(x, grad, 0, 6).AsFloat32())
}

func TestAvgPool2D(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 4, 4}, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	})

	out := backend.AvgPool2D(input, 2, 2)
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{3.5, 5.5, 11.5, 13.5}, out.AsFloat32())

	grad := rawFrom(t, tensor.Shape{1, 1, 2, 2}, []float32{4, 8, 12, 16})
	dx := backend.AvgPool2DBackward(input, grad, 2, 2).AsFloat32()
	assert.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, dx)
}

func TestAvgPool2D_GlobalWindow(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{2, 1, 2, 2}, []float32{1, 2, 3, 4, 10, 10, 10, 10})

	out := backend.AvgPool2D(input, 2, 2)
	assert.Equal(t, tensor.Shape{2, 1, 1, 1}, out.Shape())
	assert.Equal(t, []float32{2.5, 10}, out.AsFloat32())
}

func TestAdaptiveAvgPool2D(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})

	// 3 → 2 uses overlapping windows [0,2) and [1,3).
	out := backend.AdaptiveAvgPool2D(input, 2, 2)
	assert.Equal(t, []float32{3, 4, 6, 7}, out.AsFloat32())

	// Identity when output size equals input size.
	same := backend.AdaptiveAvgPool2D(input, 3, 3)
	assert.Equal(t, input.AsFloat32(), same.AsFloat32())

	grad := rawFrom(t, tensor.Shape{1, 1, 2, 2}, []float32{4, 4, 4, 4})
	dx := backend.AdaptiveAvgPool2DBackward(input, grad).AsFloat32()
	// Corner cells belong to one window, edges to two, the centre to four.
	assert.Equal(t, []float32{1, 2, 1, 2, 4, 2, 1, 2, 1}, dx)
}

func TestChannelMoments(t *testing.T) {
	backend := New()
	// Channel 0: {1, 3, 5, 7}; channel 1: {2, 2, 2, 2}.
	x := rawFrom(t, tensor.Shape{2, 2, 1, 2}, []float32{1, 3, 2, 2, 5, 7, 2, 2})

	mean, variance := backend.ChannelMoments(x)
	assert.InDeltaSlice(t, []float32{4, 2}, mean.AsFloat32(), 1e-6)
	assert.InDeltaSlice(t, []float32{5, 0}, variance.AsFloat32(), 1e-6)
}

func TestBatchNorm2D_Forward(t *testing.T) {
	backend := New()
	x := rawFrom(t, tensor.Shape{1, 2, 1, 2}, []float32{1, 3, 10, 20})
	mean := rawFrom(t, tensor.Shape{2}, []float32{2, 15})
	invStd := rawFrom(t, tensor.Shape{2}, []float32{1, 0.2})
	gamma := rawFrom(t, tensor.Shape{2}, []float32{2, 1})
	beta := rawFrom(t, tensor.Shape{2}, []float32{0, 1})

	out := backend.BatchNorm2D(x, mean, invStd, gamma, beta, false)
	assert.InDeltaSlice(t, []float32{-2, 2, 0, 2}, out.AsFloat32(), 1e-6)
}

func TestBatchNorm2D_BackwardNumerical(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(3))

	x := randomRaw(t, rng, tensor.Shape{3, 2, 2, 2})
	gamma := randomRaw(t, rng, tensor.Shape{2})
	beta := randomRaw(t, rng, tensor.Shape{2})
	r := randomRaw(t, rng, x.Shape())

	normalize := func() *tensor.RawTensor {
		mean, variance := backend.ChannelMoments(x)
		invStd := tensor.MustRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
		for c, v := range variance.AsFloat32() {
			invStd.AsFloat32()[c] = float32(1 / math.Sqrt(float64(v)+1e-5))
		}
		return backend.BatchNorm2D(x, mean, invStd, gamma, beta, false)
	}
	loss := func() float64 {
		var s float64
		for i, v := range normalize().AsFloat32() {
			s += float64(v) * float64(r.AsFloat32()[i])
		}
		return s
	}

	mean, variance := backend.ChannelMoments(x)
	invStd := tensor.MustRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	for c, v := range variance.AsFloat32() {
		invStd.AsFloat32()[c] = float32(1 / math.Sqrt(float64(v)+1e-5))
	}
	dx, dgamma, dbeta := backend.BatchNorm2DBackward(x, mean, invStd, gamma, r, true)

	checkNumericalGrad(t, "x", x.AsFloat32(), dx.AsFloat32(), loss)
	checkNumericalGrad(t, "gamma", gamma.AsFloat32(), dgamma.AsFloat32(), loss)
	checkNumericalGrad(t, "beta", beta.AsFloat32(), dbeta.AsFloat32(), loss)
}

func TestBatchNorm2D_BackwardFixedStatistics(t *testing.T) {
	backend := New()
	x := rawFrom(t, tensor.Shape{1, 1, 1, 2}, []float32{1, 2})
	mean := rawFrom(t, tensor.Shape{1}, []float32{0})
	invStd := rawFrom(t, tensor.Shape{1}, []float32{0.5})
	gamma := rawFrom(t, tensor.Shape{1}, []float32{3})
	grad := rawFrom(t, tensor.Shape{1, 1, 1, 2}, []float32{1, -1})

	dx, dgamma, dbeta := backend.BatchNorm2DBackward(x, mean, invStd, gamma, grad, false)
	assert.InDeltaSlice(t, []float32{1.5, -1.5}, dx.AsFloat32(), 1e-6)
	assert.InDeltaSlice(t, []float32{-0.5}, dgamma.AsFloat32(), 1e-6)
	assert.InDeltaSlice(t, []float32{0}, dbeta.AsFloat32(), 1e-6)
}

func TestSequentialConfigMatchesParallel(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	input := randomRaw(t, rng, tensor.Shape{4, 8, 6, 6})
	kernel := randomRaw(t, rng, tensor.Shape{8, 1, 3, 3})

	par := New().Conv2D(input, kernel, 1, 1, 8).AsFloat32()
	seq := NewWithConfig(parallel.Config{Enabled: false}).Conv2D(input, kernel, 1, 1, 8).AsFloat32()
	assert.InDeltaSlice(t, seq, par, 1e-6)
}
