package ops

import (
	"github.com/born-ml/mobilenet/internal/tensor"
)

// reduceBroadcast sums a gradient down to targetShape, undoing NumPy-style
// broadcasting from the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad
	}

	result := tensor.MustRaw(targetShape, grad.DType(), grad.Device())
	src := grad.AsFloat32()
	dst := result.AsFloat32()

	gradStrides := gradShape.ComputeStrides()
	targetStrides := broadcastStrides(targetShape, gradShape)
	for i, g := range src {
		idx, rem := 0, i
		for d, s := range gradStrides {
			idx += (rem / s) * targetStrides[d]
			rem %= s
		}
		dst[idx] += g
	}
	return result
}

// broadcastStrides returns strides that read inShape as outShape, with 0 for
// broadcast dimensions.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	offset := len(outShape) - len(inShape)
	orig := inShape.ComputeStrides()
	for i := range outShape {
		inIdx := i - offset
		if inIdx < 0 || inShape[inIdx] == 1 {
			continue
		}
		strides[i] = orig[inIdx]
	}
	return strides
}

func binaryInputs(op interface{ Inputs() []*tensor.RawTensor }) (a, b *tensor.RawTensor) {
	in := op.Inputs()
	return in[0], in[1]
}
