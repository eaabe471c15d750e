package cpu

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// ChannelMoments returns the per-channel mean and biased variance of a
// [N, C, H, W] tensor, each shaped [C].
func (cpu *CPUBackend) ChannelMoments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	requireFloat32("channel_moments", x)
	N, C, H, W := dims4("channel_moments", x)
	mean = tensor.MustRaw(tensor.Shape{C}, tensor.Float32, cpu.device)
	variance = tensor.MustRaw(tensor.Shape{C}, tensor.Float32, cpu.device)

	xs, m, v := x.AsFloat32(), mean.AsFloat32(), variance.AsFloat32()
	plane := H * W
	count := float64(N * plane)

	parallel.For(C, func(c int) {
		var sum float64
		for n := 0; n < N; n++ {
			for _, val := range xs[(n*C+c)*plane : (n*C+c+1)*plane] {
				sum += float64(val)
			}
		}
		mu := sum / count

		var sq float64
		for n := 0; n < N; n++ {
			for _, val := range xs[(n*C+c)*plane : (n*C+c+1)*plane] {
				d := float64(val) - mu
				sq += d * d
			}
		}
		m[c] = float32(mu)
		v[c] = float32(sq / count)
	}, cpu.par.Coarse())

	return mean, variance
}

// BatchNorm2D computes y = gamma * (x - mean) * invStd + beta per channel.
// mean, invStd, gamma and beta are all shaped [C]. The forward kernel is the
// same whether or not the statistics came from x.
func (cpu *CPUBackend) BatchNorm2D(x, mean, invStd, gamma, beta *tensor.RawTensor, _ bool) *tensor.RawTensor {
	requireFloat32("batchnorm2d", x, mean, invStd, gamma, beta)
	N, C, H, W := dims4("batchnorm2d", x)
	checkChannelVectors("batchnorm2d", C, mean, invStd, gamma, beta)

	result := tensor.MustRaw(x.Shape(), tensor.Float32, cpu.device)
	xs, out := x.AsFloat32(), result.AsFloat32()
	m, s, gm, bt := mean.AsFloat32(), invStd.AsFloat32(), gamma.AsFloat32(), beta.AsFloat32()
	plane := H * W

	parallel.ForBatch(N, C, func(n, c int) {
		off := (n*C + c) * plane
		scale := gm[c] * s[c]
		shift := bt[c] - m[c]*scale
		for i := off; i < off+plane; i++ {
			out[i] = xs[i]*scale + shift
		}
	}, cpu.par)

	return result
}

// BatchNorm2DBackward returns gradients for x, gamma and beta.
//
// With x̂ = (x - mean) * invStd and M = N*H*W elements per channel:
//
//	dbeta  = Σ dy
//	dgamma = Σ dy * x̂
//	dx     = gamma * invStd * dy                                   (fixed statistics)
//	dx     = gamma * invStd / M * (M*dy - Σ dy - x̂ * Σ dy*x̂)     (batch statistics)
func (cpu *CPUBackend) BatchNorm2DBackward(x, mean, invStd, gamma, grad *tensor.RawTensor, batchStats bool) (dx, dgamma, dbeta *tensor.RawTensor) {
	requireFloat32("batchnorm2d_backward", x, mean, invStd, gamma, grad)
	N, C, H, W := dims4("batchnorm2d_backward", x)
	checkChannelVectors("batchnorm2d_backward", C, mean, invStd, gamma)
	if !grad.Shape().Equal(x.Shape()) {
		panic(fmt.Sprintf("batchnorm2d_backward: grad shape %v does not match input %v", grad.Shape(), x.Shape()))
	}

	dx = tensor.MustRaw(x.Shape(), tensor.Float32, cpu.device)
	dgamma = tensor.MustRaw(tensor.Shape{C}, tensor.Float32, cpu.device)
	dbeta = tensor.MustRaw(tensor.Shape{C}, tensor.Float32, cpu.device)

	xs, dy, dxs := x.AsFloat32(), grad.AsFloat32(), dx.AsFloat32()
	m, s, gm := mean.AsFloat32(), invStd.AsFloat32(), gamma.AsFloat32()
	dg, db := dgamma.AsFloat32(), dbeta.AsFloat32()
	plane := H * W
	M := float32(N * plane)

	parallel.For(C, func(c int) {
		var sumDy, sumDyXhat float64
		for n := 0; n < N; n++ {
			off := (n*C + c) * plane
			for i := off; i < off+plane; i++ {
				xhat := (xs[i] - m[c]) * s[c]
				sumDy += float64(dy[i])
				sumDyXhat += float64(dy[i] * xhat)
			}
		}
		db[c] = float32(sumDy)
		dg[c] = float32(sumDyXhat)

		scale := gm[c] * s[c]
		for n := 0; n < N; n++ {
			off := (n*C + c) * plane
			for i := off; i < off+plane; i++ {
				if !batchStats {
					dxs[i] = scale * dy[i]
					continue
				}
				xhat := (xs[i] - m[c]) * s[c]
				dxs[i] = scale / M * (M*dy[i] - float32(sumDy) - xhat*float32(sumDyXhat))
			}
		}
	}, cpu.par.Coarse())

	return dx, dgamma, dbeta
}

func checkChannelVectors(op string, channels int, vecs ...*tensor.RawTensor) {
	for _, v := range vecs {
		if !v.Shape().Equal(tensor.Shape{channels}) {
			panic(fmt.Sprintf("%s: per-channel tensor has shape %v, expected [%d]", op, v.Shape(), channels))
		}
	}
}
