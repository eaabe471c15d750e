// Package mobilenet builds MobileNet (v1) image classifiers from a width
// multiplier and an input resolution.
//
// The network is a stem (adaptive pooling to the input resolution and a
// stride-2 convolution), thirteen depthwise-separable blocks derived from the
// stage schedule, and a pooling + 1×1 convolution classifier head producing
// raw logits.
package mobilenet

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Defaults for New.
const (
	DefaultAlpha           = 1.0
	DefaultInputResolution = ReferenceResolution
	DefaultDropout         = 0.001
)

type options struct {
	alpha           float64
	inputResolution int
	dropout         float64
	seed            uint64
}

// Option configures New.
type Option func(*options)

// WithAlpha sets the width multiplier.
func WithAlpha(alpha float64) Option {
	return func(o *options) { o.alpha = alpha }
}

// WithInputResolution sets the resolution the stem pools its input to.
func WithInputResolution(resolution int) Option {
	return func(o *options) { o.inputResolution = resolution }
}

// WithDropout sets the head dropout probability.
func WithDropout(p float64) Option {
	return func(o *options) { o.dropout = p }
}

// WithSeed seeds weight initialization and dropout masks.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// MobileNet is a MobileNet (v1) classifier.
//
// Forward maps [N, 3, H, W] images to [N, numClass] logits; no softmax is
// applied.
type MobileNet[B tensor.Backend] struct {
	numClass        int
	alpha           float64
	inputResolution int
	dropout         float64
	schedule        Schedule

	stem *nn.Sequential[B]
	body *nn.Sequential[B]
	head *nn.Sequential[B]
}

// New builds a MobileNet for numClass classes.
//
// Example:
//
//	model, err := mobilenet.New(10, backend,
//	    mobilenet.WithAlpha(0.5),
//	    mobilenet.WithInputResolution(32))
func New[B tensor.Backend](numClass int, backend B, opts ...Option) (*MobileNet[B], error) {
	o := options{
		alpha:           DefaultAlpha,
		inputResolution: DefaultInputResolution,
		dropout:         DefaultDropout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if numClass < 1 {
		return nil, &ValidationError{Field: "num_class", Value: numClass, Reason: "must be >= 1"}
	}
	if o.dropout < 0 || o.dropout >= 1 {
		return nil, &ValidationError{Field: "dropout", Value: o.dropout, Reason: "must be in [0, 1)"}
	}

	schedule, err := DeriveSchedule(o.alpha, o.inputResolution)
	if err != nil {
		return nil, err
	}
	transitions, err := schedule.Transitions()
	if err != nil {
		return nil, err
	}

	src := rand.NewSource(o.seed)
	first, last := schedule[0], schedule[len(schedule)-1]

	stem := nn.NewSequential[B](
		nn.NewAdaptiveAvgPool2D(o.inputResolution, backend),
		nn.NewConv2D(nn.Conv2DConfig{
			InChannels: 3, OutChannels: first.Channels, KernelSize: 3, Stride: 2, Padding: 1,
		}, src, backend),
		nn.NewBatchNorm2D(first.Channels, backend),
		nn.NewReLU6(backend),
	)

	body := nn.NewSequential[B]()
	for _, t := range transitions {
		body.Add(NewSeparableConv(t.In, t.Out, t.Stride, src, backend))
	}

	head := nn.NewSequential[B](
		nn.NewAvgPool2D(last.Resolution, backend),
		nn.NewDropout(o.dropout, src, backend),
		nn.NewConv2D(nn.Conv2DConfig{
			InChannels: last.Channels, OutChannels: numClass, KernelSize: 1, Bias: true,
		}, src, backend),
		nn.NewFlatten[B](),
	)

	return &MobileNet[B]{
		numClass:        numClass,
		alpha:           o.alpha,
		inputResolution: o.inputResolution,
		dropout:         o.dropout,
		schedule:        schedule,
		stem:            stem,
		body:            body,
		head:            head,
	}, nil
}

// Forward computes logits for a batch of RGB images.
//
// Panics if input is not [N, 3, H, W].
func (m *MobileNet[B]) Forward(input *tensor.Tensor[float32, B], mode nn.Mode) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != 3 {
		panic(fmt.Sprintf("mobilenet: expected input [N,3,H,W], got %v", shape))
	}

	x := m.stem.Forward(input, mode)
	x = m.body.Forward(x, mode)
	return m.head.Forward(x, mode)
}

// Parameters returns all trainable parameters: stem, body, then head.
func (m *MobileNet[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, layer := range m.Layers() {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// Layers returns the stem, body and head containers in order.
func (m *MobileNet[B]) Layers() []nn.Module[B] {
	return []nn.Module[B]{m.stem, m.body, m.head}
}

// Children implements nn.Container.
func (m *MobileNet[B]) Children() []nn.Module[B] {
	return m.Layers()
}

// layerNames are the state dict prefixes of stem, body and head.
var layerNames = []string{"initial", "separable_convs", "final"}

// StateDict returns parameters and buffers keyed "initial.*",
// "separable_convs.*" and "final.*".
func (m *MobileNet[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.NamedStateDict(layerNames, m.Layers())
}

// LoadStateDict restores a state dict produced by StateDict.
func (m *MobileNet[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadNamedStateDict(layerNames, m.Layers(), stateDict)
}

// Metadata describes the architecture for checkpoint headers.
func (m *MobileNet[B]) Metadata() map[string]string {
	return map[string]string{
		"architecture":     "mobilenet",
		"num_class":        strconv.Itoa(m.numClass),
		"alpha":            formatFloat(m.alpha),
		"input_resolution": strconv.Itoa(m.inputResolution),
		"dropout":          strconv.FormatFloat(m.dropout, 'g', -1, 64),
	}
}

// Schedule returns the stage schedule the network was built from.
func (m *MobileNet[B]) Schedule() Schedule {
	return append(Schedule(nil), m.schedule...)
}

// NumClass returns the number of output classes.
func (m *MobileNet[B]) NumClass() int {
	return m.numClass
}

// Alpha returns the width multiplier.
func (m *MobileNet[B]) Alpha() float64 {
	return m.alpha
}

// Dropout returns the head dropout probability.
func (m *MobileNet[B]) Dropout() float64 {
	return m.dropout
}

// InputResolution returns the resolution the stem pools to.
func (m *MobileNet[B]) InputResolution() int {
	return m.inputResolution
}

// String returns "MobileNet(<numClass>, alpha=<alpha>, input_resolution=<res>)".
func (m *MobileNet[B]) String() string {
	return fmt.Sprintf("MobileNet(%d, alpha=%s, input_resolution=%d)",
		m.numClass, formatFloat(m.alpha), m.inputResolution)
}

// formatFloat prints integral values with a trailing ".0" (1.0, not 1).
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
