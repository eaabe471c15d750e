package cpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mobilenet/internal/tensor"
)

func rawFrom(t *testing.T, shape tensor.Shape, data []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat32(), data)
	return raw
}

func randomRaw(t *testing.T, rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	for i := range raw.AsFloat32() {
		raw.AsFloat32()[i] = float32(rng.NormFloat64())
	}
	return raw
}

// TestConv2D_BasicForward tests basic Conv2D forward pass.
func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input := rawFrom(t, tensor.Shape{1, 1, 3, 3}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	// 1 0
	// 0 1
	kernel := rawFrom(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 0, 0, 1})

	output := backend.Conv2D(input, kernel, 1, 0, 1)

	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	// Diagonal sums of each 2x2 patch.
	assert.Equal(t, []float32{6, 8, 12, 14}, output.AsFloat32())
}

// TestConv2D_WithPadding tests Conv2D with zero padding.
func TestConv2D_WithPadding(t *testing.T) {
	backend := New()

	ones := make([]float32, 9)
	for i := range ones {
		ones[i] = 1
	}
	input := rawFrom(t, tensor.Shape{1, 1, 3, 3}, ones)
	kernel := rawFrom(t, tensor.Shape{1, 1, 3, 3}, ones)

	output := backend.Conv2D(input, kernel, 1, 1, 1)

	require.Equal(t, tensor.Shape{1, 1, 3, 3}, output.Shape())
	// Each output counts the in-bounds neighbours of its position.
	assert.Equal(t, []float32{4, 6, 4, 6, 9, 6, 4, 6, 4}, output.AsFloat32())
}

func TestConv2D_MultiChannel(t *testing.T) {
	backend := New()

	// Two input channels, one output channel summing both 1x1.
	input := rawFrom(t, tensor.Shape{1, 2, 1, 2}, []float32{1, 2, 10, 20})
	kernel := rawFrom(t, tensor.Shape{1, 2, 1, 1}, []float32{1, 0.5})

	output := backend.Conv2D(input, kernel, 1, 0, 1)

	assert.Equal(t, []float32{6, 12}, output.AsFloat32())
}

func TestConv2D_Depthwise(t *testing.T) {
	backend := New()

	// Two channels filtered independently: channel 0 scaled by 2, channel 1 by -1.
	input := rawFrom(t, tensor.Shape{1, 2, 2, 2}, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	kernel := rawFrom(t, tensor.Shape{2, 1, 1, 1}, []float32{2, -1})

	output := backend.Conv2D(input, kernel, 1, 0, 2)

	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, output.Shape())
	assert.Equal(t, []float32{2, 4, 6, 8, -5, -6, -7, -8}, output.AsFloat32())
}

func TestConv2D_GroupedMatchesPerGroupConvolution(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(1))

	input := randomRaw(t, rng, tensor.Shape{2, 4, 5, 5})
	kernel := randomRaw(t, rng, tensor.Shape{6, 2, 3, 3})
	grouped := backend.Conv2D(input, kernel, 2, 1, 2).AsFloat32()

	// Split into two independent convolutions and compare.
	in := input.AsFloat32()
	k := kernel.AsFloat32()
	for grp := 0; grp < 2; grp++ {
		subIn := make([]float32, 0, 2*2*25)
		for n := 0; n < 2; n++ {
			subIn = append(subIn, in[(n*4+grp*2)*25:(n*4+grp*2+2)*25]...)
		}
		sub := backend.Conv2D(
			rawFrom(t, tensor.Shape{2, 2, 5, 5}, subIn),
			rawFrom(t, tensor.Shape{3, 2, 3, 3}, k[grp*3*18:(grp+1)*3*18]),
			2, 1, 1).AsFloat32()

		for n := 0; n < 2; n++ {
			for i := 0; i < 3*9; i++ {
				assert.InDelta(t, sub[n*27+i], grouped[(n*6+grp*3)*9+i], 1e-5)
			}
		}
	}
}

func TestConv2D_OutputSize(t *testing.T) {
	backend := New()

	cases := []struct {
		h, k, s, p, want int
	}{
		{32, 3, 1, 1, 32},
		{32, 3, 2, 1, 16},
		{7, 3, 2, 1, 4},
		{5, 1, 1, 0, 5},
		{1, 3, 2, 1, 1},
	}
	for _, tc := range cases {
		input := tensor.MustRaw(tensor.Shape{1, 1, tc.h, tc.h}, tensor.Float32, tensor.CPU)
		kernel := tensor.MustRaw(tensor.Shape{1, 1, tc.k, tc.k}, tensor.Float32, tensor.CPU)
		out := backend.Conv2D(input, kernel, tc.s, tc.p, 1)
		assert.Equal(t, tensor.Shape{1, 1, tc.want, tc.want}, out.Shape(), "h=%d k=%d s=%d p=%d", tc.h, tc.k, tc.s, tc.p)
	}
}

func TestConv2D_InvalidShapesPanic(t *testing.T) {
	backend := New()

	input := tensor.MustRaw(tensor.Shape{1, 3, 4, 4}, tensor.Float32, tensor.CPU)
	kernel := tensor.MustRaw(tensor.Shape{2, 2, 3, 3}, tensor.Float32, tensor.CPU)
	assert.Panics(t, func() { backend.Conv2D(input, kernel, 1, 1, 1) })

	flat := tensor.MustRaw(tensor.Shape{3, 4}, tensor.Float32, tensor.CPU)
	assert.Panics(t, func() { backend.Conv2D(flat, kernel, 1, 1, 1) })
}

// TestConv2D_BackwardNumerical checks both backward kernels against central
// finite differences of L = Σ conv(x, k) * r for a fixed random r.
func TestConv2D_BackwardNumerical(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(7))

	for _, tc := range []struct {
		name                    string
		inShape, kShape         tensor.Shape
		stride, padding, groups int
	}{
		{"dense", tensor.Shape{2, 3, 5, 5}, tensor.Shape{4, 3, 3, 3}, 1, 1, 1},
		{"strided", tensor.Shape{1, 2, 6, 6}, tensor.Shape{2, 2, 3, 3}, 2, 1, 1},
		{"depthwise", tensor.Shape{2, 3, 5, 5}, tensor.Shape{3, 1, 3, 3}, 2, 1, 3},
		{"pointwise", tensor.Shape{2, 4, 3, 3}, tensor.Shape{5, 4, 1, 1}, 1, 0, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			x := randomRaw(t, rng, tc.inShape)
			k := randomRaw(t, rng, tc.kShape)
			out := backend.Conv2D(x, k, tc.stride, tc.padding, tc.groups)
			r := randomRaw(t, rng, out.Shape())

			loss := func() float64 {
				y := backend.Conv2D(x, k, tc.stride, tc.padding, tc.groups).AsFloat32()
				var s float64
				for i, v := range y {
					s += float64(v) * float64(r.AsFloat32()[i])
				}
				return s
			}

			dx := backend.Conv2DInputBackward(x, k, r, tc.stride, tc.padding, tc.groups).AsFloat32()
			dk := backend.Conv2DKernelBackward(x, k, r, tc.stride, tc.padding, tc.groups).AsFloat32()

			checkNumericalGrad(t, "input", x.AsFloat32(), dx, loss)
			checkNumericalGrad(t, "kernel", k.AsFloat32(), dk, loss)
		})
	}
}

func checkNumericalGrad(t *testing.T, name string, param, analytic []float32, loss func() float64) {
	t.Helper()
	const eps = 1e-2
	for i := range param {
		orig := param[i]
		param[i] = orig + eps
		plus := loss()
		param[i] = orig - eps
		minus := loss()
		param[i] = orig

		numeric := (plus - minus) / (2 * eps)
		assert.InDelta(t, numeric, float64(analytic[i]), 1e-2, "%s grad[%d]", name, i)
	}
}
