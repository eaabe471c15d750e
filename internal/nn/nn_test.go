package nn

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/born-ml/mobilenet/internal/autodiff"
	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/tensor"
)

func fromSlice(t *testing.T, data []float32, shape tensor.Shape, backend *cpu.CPUBackend) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

func TestConv2D_Shapes(t *testing.T) {
	backend := cpu.New()
	src := rand.NewSource(1)

	conv := NewConv2D(Conv2DConfig{InChannels: 3, OutChannels: 8, KernelSize: 3, Stride: 2, Padding: 1}, src, backend)
	assert.Equal(t, tensor.Shape{8, 3, 3, 3}, conv.Weight().Tensor().Shape())
	assert.Len(t, conv.Parameters(), 1)

	out := conv.Forward(tensor.Zeros[float32](tensor.Shape{2, 3, 9, 9}, backend), Train)
	assert.Equal(t, tensor.Shape{2, 8, 5, 5}, out.Shape())

	h, w := conv.OutputSize(9, 9)
	assert.Equal(t, 5, h)
	assert.Equal(t, 5, w)

	depthwise := NewConv2D(Conv2DConfig{InChannels: 4, OutChannels: 4, KernelSize: 3, Padding: 1, Groups: 4}, src, backend)
	assert.Equal(t, tensor.Shape{4, 1, 3, 3}, depthwise.Weight().Tensor().Shape())
}

func TestConv2D_Bias(t *testing.T) {
	backend := cpu.New()
	conv := NewConv2D(Conv2DConfig{InChannels: 1, OutChannels: 2, KernelSize: 1, Bias: true}, rand.NewSource(1), backend)
	require.Len(t, conv.Parameters(), 2)

	copy(conv.Weight().Tensor().Data(), []float32{1, 2})
	copy(conv.Parameters()[1].Tensor().Data(), []float32{10, 20})

	out := conv.Forward(fromSlice(t, []float32{1, 2}, tensor.Shape{1, 1, 1, 2}, backend), Eval)
	assert.Equal(t, []float32{11, 12, 22, 24}, out.Data())
}

func TestConv2D_InvalidGroupsPanics(t *testing.T) {
	assert.PanicsWithValue(t, "conv2d: channels in=3 out=4 not divisible by groups=2", func() {
		NewConv2D(Conv2DConfig{InChannels: 3, OutChannels: 4, KernelSize: 3, Groups: 2}, nil, cpu.New())
	})
}

func TestKaimingNormal_Statistics(t *testing.T) {
	backend := cpu.New()
	w := KaimingNormal(tensor.Shape{64, 64, 3, 3}, 64*9, rand.NewSource(42), backend)

	var sum, sumSq float64
	for _, v := range w.Data() {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	n := float64(w.NumElements())
	std := math.Sqrt(sumSq/n - (sum/n)*(sum/n))
	assert.InDelta(t, 0, sum/n, 0.005)
	assert.InDelta(t, math.Sqrt(2.0/(64*9)), std, 0.003)
}

func TestBatchNorm2D_TrainUpdatesRunningStats(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(1, backend)
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 1, 1, 2}, backend)

	out := bn.Forward(x, Train)

	invStd := 1 / math.Sqrt(1.25+DefaultBatchNormEps)
	for i, v := range []float64{1, 2, 3, 4} {
		assert.InDelta(t, (v-2.5)*invStd, float64(out.Data()[i]), 1e-5)
	}
	assert.InDelta(t, 0.25, float64(bn.RunningMean().AsFloat32()[0]), 1e-6)
	// Running variance uses the unbiased estimate 5/3.
	assert.InDelta(t, 0.9+0.1*5.0/3.0, float64(bn.RunningVar().AsFloat32()[0]), 1e-6)
	assert.Equal(t, int32(1), bn.StateDict()["num_batches_tracked"].AsInt32()[0])
}

func TestBatchNorm2D_EvalUsesRunningStats(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(1, backend)
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 1, 1, 2}, backend)

	out := bn.Forward(x, Eval)

	invStd := 1 / math.Sqrt(1+DefaultBatchNormEps)
	for i, v := range []float64{1, 2, 3, 4} {
		assert.InDelta(t, v*invStd, float64(out.Data()[i]), 1e-5)
	}
	assert.Equal(t, float32(0), bn.RunningMean().AsFloat32()[0])
	assert.Equal(t, float32(1), bn.RunningVar().AsFloat32()[0])
}

func TestBatchNorm2D_TrainGradientFlows(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	bn := NewBatchNorm2D(2, backend)
	x, err := tensor.FromSlice([]float32{1, 5, 2, 7, 3, 4, 0, 1}, tensor.Shape{2, 2, 1, 2}, backend)
	require.NoError(t, err)

	w, err := tensor.FromSlice([]float32{1, -1, 2, 0, 3, 1, -2, 1}, tensor.Shape{2, 2, 1, 2}, backend)
	require.NoError(t, err)
	loss := bn.Forward(x, Train).Mul(w).Sum()
	grads := autodiff.Backward(loss, backend)

	// d(loss)/d(beta_c) is the sum of w over channel c.
	dbeta := grads[bn.Parameters()[1].Tensor().Raw()]
	require.NotNil(t, dbeta)
	assert.InDeltaSlice(t, []float32{4, 1}, dbeta.AsFloat32(), 1e-5)
	require.NotNil(t, grads[x.Raw()])
}

func TestReLU6(t *testing.T) {
	backend := cpu.New()
	out := NewReLU6(backend).Forward(fromSlice(t, []float32{-3, 0, 2.5, 6, 9}, tensor.Shape{5}, backend), Train)
	assert.Equal(t, []float32{0, 0, 2.5, 6, 6}, out.Data())
}

func TestPooling(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, tensor.Shape{1, 1, 4, 4}, backend)

	avg := NewAvgPool2D(2, backend).Forward(x, Eval)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, avg.Shape())
	assert.Equal(t, []float32{3.5, 5.5, 11.5, 13.5}, avg.Data())

	adaptive := NewAdaptiveAvgPool2D(1, backend).Forward(x, Eval)
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, adaptive.Shape())
	assert.InDelta(t, 8.5, float64(adaptive.Data()[0]), 1e-6)

	same := NewAdaptiveAvgPool2D(4, backend).Forward(x, Eval)
	assert.Equal(t, x.Data(), same.Data())
}

func TestDropout(t *testing.T) {
	backend := cpu.New()
	x := tensor.Ones[float32](tensor.Shape{100, 100}, backend)
	drop := NewDropout(0.5, rand.NewSource(7), backend)

	assert.Same(t, x, drop.Forward(x, Eval))

	out := drop.Forward(x, Train)
	zeros := 0
	for _, v := range out.Data() {
		if v == 0 {
			zeros++
		} else {
			assert.Equal(t, float32(2), v)
		}
	}
	assert.InDelta(t, 0.5, float64(zeros)/float64(x.NumElements()), 0.03)

	assert.Same(t, x, NewDropout(0, nil, backend).Forward(x, Train))
	assert.Panics(t, func() { NewDropout(1, nil, backend) })
}

func TestFlatten(t *testing.T) {
	backend := cpu.New()
	out := NewFlatten[*cpu.CPUBackend]().Forward(tensor.Zeros[float32](tensor.Shape{4, 10, 1, 1}, backend), Eval)
	assert.Equal(t, tensor.Shape{4, 10}, out.Shape())
}

func TestSequential_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	build := func(seed uint64) *Sequential[*cpu.CPUBackend] {
		return NewSequential[*cpu.CPUBackend](
			NewConv2D(Conv2DConfig{InChannels: 2, OutChannels: 3, KernelSize: 3, Padding: 1}, rand.NewSource(seed), backend),
			NewBatchNorm2D(3, backend),
			NewReLU6(backend),
		)
	}

	a := build(1)
	a.Forward(tensor.Ones[float32](tensor.Shape{2, 2, 4, 4}, backend), Train)

	sd := a.StateDict()
	assert.Contains(t, sd, "0.weight")
	assert.Contains(t, sd, "1.running_var")
	assert.Len(t, sd, 6)

	b := build(2)
	require.NoError(t, b.LoadStateDict(sd))
	assert.Equal(t, a.StateDict()["0.weight"].Data(), b.StateDict()["0.weight"].Data())
	assert.Equal(t, a.StateDict()["1.running_mean"].Data(), b.StateDict()["1.running_mean"].Data())

	delete(sd, "1.bias")
	assert.ErrorContains(t, b.LoadStateDict(sd), `missing key "bias"`)
}

func TestCheckpoint_SaveLoad(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "model.safetensors")

	a := NewSequential[*cpu.CPUBackend](
		NewConv2D(Conv2DConfig{InChannels: 1, OutChannels: 2, KernelSize: 1, Bias: true}, rand.NewSource(3), backend),
		NewBatchNorm2D(2, backend),
	)
	require.NoError(t, SaveStateDict[*cpu.CPUBackend](a, path, map[string]string{"epoch": "3"}))

	b := NewSequential[*cpu.CPUBackend](
		NewConv2D(Conv2DConfig{InChannels: 1, OutChannels: 2, KernelSize: 1, Bias: true}, rand.NewSource(4), backend),
		NewBatchNorm2D(2, backend),
	)
	meta, err := LoadStateDictFile[*cpu.CPUBackend](b, path, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, "3", meta["epoch"])
	assert.Equal(t, a.StateDict()["0.weight"].Data(), b.StateDict()["0.weight"].Data())
}

func TestCrossEntropyLoss(t *testing.T) {
	plain := cpu.New()
	logits := fromSlice(t, []float32{0, 0, 2, 1}, tensor.Shape{2, 2}, plain)
	targets, err := tensor.FromSlice([]int32{0, 0}, tensor.Shape{2}, plain)
	require.NoError(t, err)

	want := (math.Ln2 + math.Log(1+math.Exp(-1))) / 2
	loss := NewCrossEntropyLoss(plain).Forward(logits, targets)
	assert.InDelta(t, want, float64(loss.Item()), 1e-6)

	ad := autodiff.New(cpu.New())
	adLogits, err := tensor.FromSlice([]float32{0, 0, 2, 1}, tensor.Shape{2, 2}, ad)
	require.NoError(t, err)
	adTargets, err := tensor.FromSlice([]int32{0, 0}, tensor.Shape{2}, ad)
	require.NoError(t, err)
	ad.Tape().StartRecording()
	adLoss := NewCrossEntropyLoss(ad).Forward(adLogits, adTargets)
	assert.InDelta(t, want, float64(adLoss.Item()), 1e-6)
	assert.Equal(t, 1, ad.Tape().NumOps())
}

func TestAccuracy(t *testing.T) {
	backend := cpu.New()
	logits := fromSlice(t, []float32{
		0.1, 0.9,
		0.8, 0.2,
		0.3, 0.7,
		0.6, 0.4,
	}, tensor.Shape{4, 2}, backend)
	targets, err := tensor.FromSlice([]int32{1, 0, 0, 0}, tensor.Shape{4}, backend)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, Accuracy(logits, targets), 1e-9)
}

func TestSummary(t *testing.T) {
	backend := cpu.New()
	layers := []Module[*cpu.CPUBackend]{
		NewSequential[*cpu.CPUBackend](
			NewConv2D(Conv2DConfig{InChannels: 3, OutChannels: 4, KernelSize: 3, Stride: 2, Padding: 1}, nil, backend),
			NewBatchNorm2D(4, backend),
		),
		NewReLU6(backend),
		NewFlatten[*cpu.CPUBackend](),
	}

	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, layers, tensor.Shape{3, 8, 8}, backend))

	out := buf.String()
	assert.Contains(t, out, "Conv2D-1")
	assert.Contains(t, out, "[-1, 4, 4, 4]")
	assert.Contains(t, out, "BatchNorm2D-2")
	assert.Contains(t, out, "ReLU6-3")
	assert.Contains(t, out, "Flatten-4")
	assert.Contains(t, out, "[-1, 64]")
	assert.Contains(t, out, "Total params: 116\n")
}

func TestGroupDigits(t *testing.T) {
	assert.Equal(t, "0", groupDigits(0))
	assert.Equal(t, "999", groupDigits(999))
	assert.Equal(t, "1,000", groupDigits(1000))
	assert.Equal(t, "3,228,864", groupDigits(3228864))
	assert.Equal(t, "123,456", groupDigits(123456))
}
