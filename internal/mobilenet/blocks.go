package mobilenet

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// State dict names follow the PyTorch module attribute names, so checkpoints
// line up key-for-key with torch MobileNet state dicts.
var (
	convName      = []string{"conv"}
	separableName = []string{"dw_conv", "bn1", "relu1", "pw_conv", "bn2", "relu2"}
)

// DepthWiseConv filters each input channel with its own kernel
// (groups = channels) using "same" padding and no bias.
type DepthWiseConv[B tensor.Backend] struct {
	*nn.Conv2D[B]
}

// NewDepthWiseConv creates a depthwise convolution. An odd kernelSize keeps
// the spatial size at stride 1 and gives ceil(H/stride) otherwise.
func NewDepthWiseConv[B tensor.Backend](channels, kernelSize, stride int, src rand.Source, backend B) *DepthWiseConv[B] {
	return &DepthWiseConv[B]{nn.NewConv2D(nn.Conv2DConfig{
		InChannels:  channels,
		OutChannels: channels,
		KernelSize:  kernelSize,
		Stride:      stride,
		Padding:     (kernelSize - 1) / 2,
		Groups:      channels,
	}, src, backend)}
}

// StateDict nests the convolution under "conv".
func (d *DepthWiseConv[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.NamedStateDict(convName, []nn.Module[B]{d.Conv2D})
}

// LoadStateDict restores a state dict produced by StateDict.
func (d *DepthWiseConv[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadNamedStateDict(convName, []nn.Module[B]{d.Conv2D}, stateDict)
}

// String returns a string representation of the layer.
func (d *DepthWiseConv[B]) String() string {
	cfg := d.Config()
	return fmt.Sprintf("DepthWiseConv(%d, kernel_size=%d, stride=%d)", cfg.InChannels, cfg.KernelSize, cfg.Stride)
}

// PointWiseConv mixes channels with a 1×1 convolution and no bias.
type PointWiseConv[B tensor.Backend] struct {
	*nn.Conv2D[B]
}

// NewPointWiseConv creates a pointwise convolution.
func NewPointWiseConv[B tensor.Backend](in, out int, src rand.Source, backend B) *PointWiseConv[B] {
	return &PointWiseConv[B]{nn.NewConv2D(nn.Conv2DConfig{
		InChannels:  in,
		OutChannels: out,
		KernelSize:  1,
	}, src, backend)}
}

// StateDict nests the convolution under "conv".
func (p *PointWiseConv[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.NamedStateDict(convName, []nn.Module[B]{p.Conv2D})
}

// LoadStateDict restores a state dict produced by StateDict.
func (p *PointWiseConv[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadNamedStateDict(convName, []nn.Module[B]{p.Conv2D}, stateDict)
}

// String returns a string representation of the layer.
func (p *PointWiseConv[B]) String() string {
	cfg := p.Config()
	return fmt.Sprintf("PointWiseConv(%d, %d)", cfg.InChannels, cfg.OutChannels)
}

// SeparableConv is the MobileNet body block:
//
//	depthwise(stride=downscale) -> BN -> ReLU6 -> pointwise -> BN -> ReLU6
type SeparableConv[B tensor.Backend] struct {
	*nn.Sequential[B]
	in, out, downscale int
}

// NewSeparableConv creates a separable convolution block mapping in to out
// channels; downscale is the depthwise stride.
func NewSeparableConv[B tensor.Backend](in, out, downscale int, src rand.Source, backend B) *SeparableConv[B] {
	return &SeparableConv[B]{
		Sequential: nn.NewSequential[B](
			NewDepthWiseConv(in, 3, downscale, src, backend),
			nn.NewBatchNorm2D(in, backend),
			nn.NewReLU6(backend),
			NewPointWiseConv(in, out, src, backend),
			nn.NewBatchNorm2D(out, backend),
			nn.NewReLU6(backend),
		),
		in:        in,
		out:       out,
		downscale: downscale,
	}
}

// StateDict returns entries keyed "dw_conv.conv.weight", "bn1.running_mean", ...
func (s *SeparableConv[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.NamedStateDict(separableName, s.Children())
}

// LoadStateDict restores a state dict produced by StateDict.
func (s *SeparableConv[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadNamedStateDict(separableName, s.Children(), stateDict)
}

// String returns a string representation of the block.
func (s *SeparableConv[B]) String() string {
	return fmt.Sprintf("SeparableConv(%d, %d, downscale=%d)", s.in, s.out, s.downscale)
}
