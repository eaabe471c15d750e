package nn

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// Conv2DConfig describes a (possibly grouped) square-kernel convolution.
type Conv2DConfig struct {
	InChannels  int
	OutChannels int
	KernelSize  int
	Stride      int  // default 1
	Padding     int  // zero padding on each side
	Groups      int  // default 1; Groups == InChannels gives a depthwise convolution
	Bias        bool // add a learned per-channel bias
}

// Conv2D is a 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel) / stride + 1
//	out_w = (width + 2*padding - kernel) / stride + 1
type Conv2D[B tensor.Backend] struct {
	cfg Conv2DConfig

	weight *Parameter[B]
	bias   *Parameter[B] // nil when cfg.Bias is false

	backend B
}

// NewConv2D creates a convolutional layer with Kaiming-normal weights and
// zero bias. src seeds the initialization; nil uses the global source.
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, src rand.Source, backend B) *Conv2D[B] {
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	if cfg.Groups == 0 {
		cfg.Groups = 1
	}
	if cfg.InChannels <= 0 || cfg.OutChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", cfg.InChannels, cfg.OutChannels))
	}
	if cfg.KernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", cfg.KernelSize))
	}
	if cfg.Stride < 0 || cfg.Padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d or padding %d", cfg.Stride, cfg.Padding))
	}
	if cfg.InChannels%cfg.Groups != 0 || cfg.OutChannels%cfg.Groups != 0 {
		panic(fmt.Sprintf("conv2d: channels in=%d out=%d not divisible by groups=%d",
			cfg.InChannels, cfg.OutChannels, cfg.Groups))
	}

	k := cfg.KernelSize
	weightShape := tensor.Shape{cfg.OutChannels, cfg.InChannels / cfg.Groups, k, k}
	weight := KaimingNormal(weightShape, cfg.OutChannels*k*k, src, backend)

	c := &Conv2D[B]{
		cfg:     cfg,
		weight:  NewParameter("weight", weight),
		backend: backend,
	}
	if cfg.Bias {
		c.bias = NewParameter("bias", Zeros(tensor.Shape{cfg.OutChannels}, backend))
	}
	return c
}

// Forward performs the convolution. Mode has no effect.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B], _ Mode) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.cfg.InChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.cfg.InChannels))
	}

	outputRaw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.cfg.Stride, c.cfg.Padding, c.cfg.Groups)
	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.bias != nil {
		// [C] -> [1, C, 1, 1] so the add broadcasts and is recorded on the tape.
		output = output.Add(c.bias.Tensor().Reshape(1, c.cfg.OutChannels, 1, 1))
	}
	return output
}

// Parameters returns the weight and, if present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns "weight" and optionally "bias".
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{"weight": c.weight.Tensor().Raw()}
	if c.bias != nil {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict copies weight and bias from stateDict.
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for name, raw := range c.StateDict() {
		if err := loadRaw(name, raw, stateDict[name]); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the layer configuration.
func (c *Conv2D[B]) Config() Conv2DConfig {
	return c.cfg
}

// Weight returns the weight parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// OutputSize computes output spatial dimensions for a given input size.
func (c *Conv2D[B]) OutputSize(inputH, inputW int) (outH, outW int) {
	k, s, p := c.cfg.KernelSize, c.cfg.Stride, c.cfg.Padding
	return tensor.ConvOutputSize(inputH, k, s, p), tensor.ConvOutputSize(inputW, k, s, p)
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(%d, %d, kernel_size=%d, stride=%d, padding=%d, groups=%d, bias=%v)",
		c.cfg.InChannels, c.cfg.OutChannels, c.cfg.KernelSize,
		c.cfg.Stride, c.cfg.Padding, c.cfg.Groups, c.cfg.Bias)
}
