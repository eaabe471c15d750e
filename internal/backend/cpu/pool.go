package cpu

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// AvgPool2D averages non-overlapping or strided K×K windows without padding.
//
// Input shape: [N, C, H, W]
// Output shape: [N, C, (H-K)/S+1, (W-K)/S+1]
func (cpu *CPUBackend) AvgPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	requireFloat32("avgpool2d", input)
	N, C, H, W := dims4("avgpool2d", input)
	HOut, WOut := poolOutput("avgpool2d", H, W, kernelSize, stride)

	output := tensor.MustRaw(tensor.Shape{N, C, HOut, WOut}, tensor.Float32, cpu.device)
	in, out := input.AsFloat32(), output.AsFloat32()
	scale := 1 / float32(kernelSize*kernelSize)

	parallel.ForBatch(N, C, func(n, c int) {
		plane := in[(n*C+c)*H*W:]
		dst := out[(n*C+c)*HOut*WOut:]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				var sum float32
				for kh := 0; kh < kernelSize; kh++ {
					row := plane[(oh*stride+kh)*W+ow*stride:]
					for kw := 0; kw < kernelSize; kw++ {
						sum += row[kw]
					}
				}
				dst[oh*WOut+ow] = sum * scale
			}
		}
	}, cpu.par)

	return output
}

// AvgPool2DBackward spreads each output gradient evenly over its window.
func (cpu *CPUBackend) AvgPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	requireFloat32("avgpool2d_backward", input, grad)
	N, C, H, W := dims4("avgpool2d_backward", input)
	HOut, WOut := poolOutput("avgpool2d_backward", H, W, kernelSize, stride)
	if !grad.Shape().Equal(tensor.Shape{N, C, HOut, WOut}) {
		panic(fmt.Sprintf("avgpool2d_backward: grad shape %v, expected %v", grad.Shape(), tensor.Shape{N, C, HOut, WOut}))
	}

	inputGrad := tensor.MustRaw(input.Shape(), tensor.Float32, cpu.device)
	dy, dx := grad.AsFloat32(), inputGrad.AsFloat32()
	scale := 1 / float32(kernelSize*kernelSize)

	parallel.ForBatch(N, C, func(n, c int) {
		plane := dx[(n*C+c)*H*W:]
		src := dy[(n*C+c)*HOut*WOut:]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				g := src[oh*WOut+ow] * scale
				for kh := 0; kh < kernelSize; kh++ {
					row := plane[(oh*stride+kh)*W+ow*stride:]
					for kw := 0; kw < kernelSize; kw++ {
						row[kw] += g
					}
				}
			}
		}
	}, cpu.par)

	return inputGrad
}

// AdaptiveAvgPool2D averages input into an outH×outW grid. Output cell i
// covers input rows [floor(i*H/outH), ceil((i+1)*H/outH)), and likewise for
// columns, so windows may overlap when H is not a multiple of outH.
func (cpu *CPUBackend) AdaptiveAvgPool2D(input *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	requireFloat32("adaptive_avgpool2d", input)
	N, C, H, W := dims4("adaptive_avgpool2d", input)
	if outH < 1 || outW < 1 {
		panic(fmt.Sprintf("adaptive_avgpool2d: invalid output size %dx%d", outH, outW))
	}

	output := tensor.MustRaw(tensor.Shape{N, C, outH, outW}, tensor.Float32, cpu.device)
	in, out := input.AsFloat32(), output.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		plane := in[(n*C+c)*H*W:]
		dst := out[(n*C+c)*outH*outW:]
		for oh := 0; oh < outH; oh++ {
			h0, h1 := adaptiveRange(oh, H, outH)
			for ow := 0; ow < outW; ow++ {
				w0, w1 := adaptiveRange(ow, W, outW)
				var sum float32
				for h := h0; h < h1; h++ {
					for w := w0; w < w1; w++ {
						sum += plane[h*W+w]
					}
				}
				dst[oh*outW+ow] = sum / float32((h1-h0)*(w1-w0))
			}
		}
	}, cpu.par)

	return output
}

// AdaptiveAvgPool2DBackward returns the input gradient; the output size is
// taken from grad.
func (cpu *CPUBackend) AdaptiveAvgPool2DBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("adaptive_avgpool2d_backward", input, grad)
	N, C, H, W := dims4("adaptive_avgpool2d_backward", input)
	gN, gC, outH, outW := dims4("adaptive_avgpool2d_backward", grad)
	if gN != N || gC != C {
		panic(fmt.Sprintf("adaptive_avgpool2d_backward: grad shape %v does not match input %v", grad.Shape(), input.Shape()))
	}

	inputGrad := tensor.MustRaw(input.Shape(), tensor.Float32, cpu.device)
	dy, dx := grad.AsFloat32(), inputGrad.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		plane := dx[(n*C+c)*H*W:]
		src := dy[(n*C+c)*outH*outW:]
		for oh := 0; oh < outH; oh++ {
			h0, h1 := adaptiveRange(oh, H, outH)
			for ow := 0; ow < outW; ow++ {
				w0, w1 := adaptiveRange(ow, W, outW)
				g := src[oh*outW+ow] / float32((h1-h0)*(w1-w0))
				for h := h0; h < h1; h++ {
					for w := w0; w < w1; w++ {
						plane[h*W+w] += g
					}
				}
			}
		}
	}, cpu.par)

	return inputGrad
}

func adaptiveRange(i, in, out int) (start, end int) {
	start = i * in / out
	end = ((i+1)*in + out - 1) / out
	return start, end
}

func poolOutput(op string, H, W, kernelSize, stride int) (int, int) {
	if kernelSize < 1 || stride < 1 {
		panic(fmt.Sprintf("%s: invalid kernel=%d stride=%d", op, kernelSize, stride))
	}
	HOut := tensor.ConvOutputSize(H, kernelSize, stride, 0)
	WOut := tensor.ConvOutputSize(W, kernelSize, stride, 0)
	if kernelSize > H || kernelSize > W {
		panic(fmt.Sprintf("%s: kernel %d larger than input %dx%d", op, kernelSize, H, W))
	}
	return HOut, WOut
}

func dims4(op string, t *tensor.RawTensor) (n, c, h, w int) {
	s := t.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("%s: expected 4D [N,C,H,W] tensor, got shape %v", op, s))
	}
	return s[0], s[1], s[2], s[3]
}
