package cpu

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Clamp limits every element to [lo, hi]. ReLU6 is Clamp(x, 0, 6).
func (cpu *CPUBackend) Clamp(x *tensor.RawTensor, lo, hi float32) *tensor.RawTensor {
	return cpu.mapFloat32("clamp", x, func(v float32) float32 {
		return min(max(v, lo), hi)
	})
}

// ClampBackward passes grad through where lo < x < hi and zeroes it elsewhere.
func (cpu *CPUBackend) ClampBackward(x, grad *tensor.RawTensor, lo, hi float32) *tensor.RawTensor {
	requireFloat32("clamp_backward", x, grad)
	if !x.Shape().Equal(grad.Shape()) {
		panic(fmt.Sprintf("clamp_backward: grad shape %v does not match input %v", grad.Shape(), x.Shape()))
	}

	result := tensor.MustRaw(x.Shape(), tensor.Float32, cpu.device)
	xs, dy, dx := x.AsFloat32(), grad.AsFloat32(), result.AsFloat32()
	parallel.ForChunks(len(dx), func(start, end int) {
		for i := start; i < end; i++ {
			if xs[i] > lo && xs[i] < hi {
				dx[i] = dy[i]
			}
		}
	}, cpu.par)
	return result
}
