package cpu

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// convGeometry holds the validated dimensions of a grouped convolution.
type convGeometry struct {
	N, CIn, H, W       int
	COut, KH, KW       int
	HOut, WOut         int
	stride, padding    int
	groups             int
	cinG, coutG, kSize int // per-group input channels, output channels, C_in/g*K_h*K_w
}

func (g convGeometry) spatial() int { return g.HOut * g.WOut }

func newConvGeometry(op string, inputShape, kernelShape tensor.Shape, stride, padding, groups int) convGeometry {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in/groups,K_h,K_w], got %dD", op, len(kernelShape)))
	}
	if stride < 1 || padding < 0 || groups < 1 {
		panic(fmt.Sprintf("%s: invalid stride=%d padding=%d groups=%d", op, stride, padding, groups))
	}

	g := convGeometry{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		stride: stride, padding: padding, groups: groups,
	}
	if g.CIn%groups != 0 || g.COut%groups != 0 {
		panic(fmt.Sprintf("%s: channels in=%d out=%d not divisible by groups=%d", op, g.CIn, g.COut, groups))
	}
	g.cinG = g.CIn / groups
	g.coutG = g.COut / groups
	if kernelShape[1] != g.cinG {
		panic(fmt.Sprintf("%s: kernel expects %d input channels per group, input provides %d", op, kernelShape[1], g.cinG))
	}
	g.kSize = g.cinG * g.KH * g.KW

	g.HOut = tensor.ConvOutputSize(g.H, g.KH, stride, padding)
	g.WOut = tensor.ConvOutputSize(g.W, g.KW, stride, padding)
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", op, g.HOut, g.WOut))
	}
	return g
}

// Conv2D performs grouped 2D convolution using the im2col algorithm.
//
// Input shape: [N, C_in, H, W]
// Kernel shape: [C_out, C_in/groups, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// For each sample and group:
//  1. im2col: patches of the group's input channels → col [C_in/g*K_h*K_w, H_out*W_out]
//  2. GEMM: kernel_g [C_out/g, C_in/g*K_h*K_w] @ col → output_g [C_out/g, H_out*W_out]
//
// The GEMM result is already in [C_out, H_out, W_out] order, so no rearranging
// pass is needed. groups == C_in == C_out gives a depthwise convolution.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	requireFloat32("conv2d", input, kernel)
	g := newConvGeometry("conv2d", input.Shape(), kernel.Shape(), stride, padding, groups)

	output := tensor.MustRaw(tensor.Shape{g.N, g.COut, g.HOut, g.WOut}, tensor.Float32, cpu.device)
	in, k, out := input.AsFloat32(), kernel.AsFloat32(), output.AsFloat32()
	P := g.spatial()

	parallel.ForChunks(g.N, func(start, end int) {
		col := make([]float32, g.kSize*P)
		for n := start; n < end; n++ {
			for grp := 0; grp < g.groups; grp++ {
				im2col(col, in, g, n, grp)
				blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
					general(k[grp*g.coutG*g.kSize:], g.coutG, g.kSize),
					general(col, g.kSize, P),
					0,
					general(out[(n*g.COut+grp*g.coutG)*P:], g.coutG, P))
			}
		}
	}, cpu.par.Coarse())

	return output
}

// Conv2DInputBackward computes the gradient with respect to the input.
//
// Per sample and group: dcol = kernel_gᵀ @ grad_g, then col2im scatters dcol
// back into the input layout (accumulating overlapping patches).
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	requireFloat32("conv2d_input_backward", input, kernel, grad)
	g := newConvGeometry("conv2d_input_backward", input.Shape(), kernel.Shape(), stride, padding, groups)
	checkGradShape("conv2d_input_backward", grad, g)

	inputGrad := tensor.MustRaw(input.Shape(), tensor.Float32, cpu.device)
	k, dy, dx := kernel.AsFloat32(), grad.AsFloat32(), inputGrad.AsFloat32()
	P := g.spatial()

	parallel.ForChunks(g.N, func(start, end int) {
		dcol := make([]float32, g.kSize*P)
		for n := start; n < end; n++ {
			for grp := 0; grp < g.groups; grp++ {
				blas32.Gemm(blas.Trans, blas.NoTrans, 1,
					general(k[grp*g.coutG*g.kSize:], g.coutG, g.kSize),
					general(dy[(n*g.COut+grp*g.coutG)*P:], g.coutG, P),
					0,
					general(dcol, g.kSize, P))
				col2im(dx, dcol, g, n, grp)
			}
		}
	}, cpu.par.Coarse())

	return inputGrad
}

// Conv2DKernelBackward computes the gradient with respect to the kernel.
//
// Per sample and group: dkernel_g += grad_g @ colᵀ. Each chunk of samples
// accumulates into its own buffer; chunk results are summed under a lock.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	requireFloat32("conv2d_kernel_backward", input, kernel, grad)
	g := newConvGeometry("conv2d_kernel_backward", input.Shape(), kernel.Shape(), stride, padding, groups)
	checkGradShape("conv2d_kernel_backward", grad, g)

	kernelGrad := tensor.MustRaw(kernel.Shape(), tensor.Float32, cpu.device)
	in, dy, dk := input.AsFloat32(), grad.AsFloat32(), kernelGrad.AsFloat32()
	P := g.spatial()

	var mu sync.Mutex
	parallel.ForChunks(g.N, func(start, end int) {
		col := make([]float32, g.kSize*P)
		partial := make([]float32, len(dk))
		for n := start; n < end; n++ {
			for grp := 0; grp < g.groups; grp++ {
				im2col(col, in, g, n, grp)
				blas32.Gemm(blas.NoTrans, blas.Trans, 1,
					general(dy[(n*g.COut+grp*g.coutG)*P:], g.coutG, P),
					general(col, g.kSize, P),
					1,
					general(partial[grp*g.coutG*g.kSize:], g.coutG, g.kSize))
			}
		}
		mu.Lock()
		for i, v := range partial {
			dk[i] += v
		}
		mu.Unlock()
	}, cpu.par.Coarse())

	return kernelGrad
}

func checkGradShape(op string, grad *tensor.RawTensor, g convGeometry) {
	want := tensor.Shape{g.N, g.COut, g.HOut, g.WOut}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("%s: grad shape %v, expected %v", op, grad.Shape(), want))
	}
}

// general wraps a row-major slice as a blas32 matrix view.
func general(data []float32, rows, cols int) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data[:rows*cols]}
}

// im2col fills col [C_in/g*K_h*K_w, H_out*W_out] with the patches of sample n
// restricted to group grp's input channels. Out-of-bounds (padding) reads are 0.
func im2col(col, in []float32, g convGeometry, n, grp int) {
	P := g.spatial()
	row := 0
	for c := 0; c < g.cinG; c++ {
		plane := in[((n*g.CIn)+grp*g.cinG+c)*g.H*g.W:]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				dst := col[row*P : (row+1)*P]
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							dst[oh*g.WOut+ow] = plane[h*g.W+w]
						} else {
							dst[oh*g.WOut+ow] = 0
						}
					}
				}
				row++
			}
		}
	}
}

// col2im is the adjoint of im2col: it adds every entry of col back to the
// input position it was read from.
func col2im(dx, col []float32, g convGeometry, n, grp int) {
	P := g.spatial()
	row := 0
	for c := 0; c < g.cinG; c++ {
		plane := dx[((n*g.CIn)+grp*g.cinG+c)*g.H*g.W:]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				src := col[row*P : (row+1)*P]
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					if h < 0 || h >= g.H {
						continue
					}
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if w >= 0 && w < g.W {
							plane[h*g.W+w] += src[oh*g.WOut+ow]
						}
					}
				}
				row++
			}
		}
	}
}
