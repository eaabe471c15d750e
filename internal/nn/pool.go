package nn

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// AvgPool2D averages non-overlapping kernel×kernel windows (stride = kernel).
type AvgPool2D[B tensor.Backend] struct {
	stateless
	kernelSize int
	backend    B
}

// NewAvgPool2D creates an average-pooling layer.
func NewAvgPool2D[B tensor.Backend](kernelSize int, backend B) *AvgPool2D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("avgpool2d: invalid kernel size %d", kernelSize))
	}
	return &AvgPool2D[B]{kernelSize: kernelSize, backend: backend}
}

// Forward pools [N, C, H, W] into [N, C, H/k, W/k].
func (p *AvgPool2D[B]) Forward(input *tensor.Tensor[float32, B], _ Mode) *tensor.Tensor[float32, B] {
	out := p.backend.AvgPool2D(input.Raw(), p.kernelSize, p.kernelSize)
	return tensor.New[float32, B](out, p.backend)
}

// Parameters returns nil (no trainable parameters).
func (p *AvgPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a string representation of the layer.
func (p *AvgPool2D[B]) String() string {
	return fmt.Sprintf("AvgPool2D(kernel_size=%d)", p.kernelSize)
}

// AdaptiveAvgPool2D averages into a fixed size×size output regardless of
// the input resolution. Upsampling (size larger than the input) repeats values.
type AdaptiveAvgPool2D[B tensor.Backend] struct {
	stateless
	size    int
	backend B
}

// NewAdaptiveAvgPool2D creates an adaptive average-pooling layer.
func NewAdaptiveAvgPool2D[B tensor.Backend](size int, backend B) *AdaptiveAvgPool2D[B] {
	if size <= 0 {
		panic(fmt.Sprintf("adaptive_avgpool2d: invalid output size %d", size))
	}
	return &AdaptiveAvgPool2D[B]{size: size, backend: backend}
}

// Forward pools [N, C, H, W] into [N, C, size, size].
func (p *AdaptiveAvgPool2D[B]) Forward(input *tensor.Tensor[float32, B], _ Mode) *tensor.Tensor[float32, B] {
	out := p.backend.AdaptiveAvgPool2D(input.Raw(), p.size, p.size)
	return tensor.New[float32, B](out, p.backend)
}

// Parameters returns nil (no trainable parameters).
func (p *AdaptiveAvgPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a string representation of the layer.
func (p *AdaptiveAvgPool2D[B]) String() string {
	return fmt.Sprintf("AdaptiveAvgPool2D(output_size=%d)", p.size)
}
