package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations; the autodiff
// decorator wraps a Backend and records each call for the backward pass.
//
// Kernels validate shapes and panic on violations. Every kernel returns a
// freshly allocated result and never mutates its inputs, which keeps the
// tensors captured on the gradient tape intact.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar).
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// Reshape returns a tensor with the same data and a new shape.
	Reshape(t *RawTensor, newShape Shape) *RawTensor

	// Conv2D performs grouped 2D convolution.
	// Input [N, C_in, H, W], kernel [C_out, C_in/groups, K_h, K_w].
	// groups == C_in == C_out is a depthwise convolution.
	Conv2D(input, kernel *RawTensor, stride, padding, groups int) *RawTensor
	// Conv2DInputBackward returns ∂L/∂input given ∂L/∂output.
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding, groups int) *RawTensor
	// Conv2DKernelBackward returns ∂L/∂kernel given ∂L/∂output.
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding, groups int) *RawTensor

	// Pooling.
	AvgPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	AvgPool2DBackward(input, grad *RawTensor, kernelSize, stride int) *RawTensor
	AdaptiveAvgPool2D(input *RawTensor, outH, outW int) *RawTensor
	AdaptiveAvgPool2DBackward(input, grad *RawTensor) *RawTensor

	// Clamp limits every element to [lo, hi]. ClampBackward passes the
	// gradient through where lo < x < hi.
	Clamp(x *RawTensor, lo, hi float32) *RawTensor
	ClampBackward(x, grad *RawTensor, lo, hi float32) *RawTensor

	// ChannelMoments returns per-channel mean and biased variance of a
	// [N, C, H, W] tensor, both shaped [C].
	ChannelMoments(x *RawTensor) (mean, variance *RawTensor)
	// BatchNorm2D computes gamma * (x - mean) * invStd + beta per channel.
	// batchStats reports whether mean and invStd were computed from x itself;
	// compute kernels ignore it, the autodiff decorator records it for the
	// backward pass.
	BatchNorm2D(x, mean, invStd, gamma, beta *RawTensor, batchStats bool) *RawTensor
	// BatchNorm2DBackward returns gradients for x, gamma and beta. When
	// batchStats is true, mean and invStd were computed from x itself and
	// the input gradient includes their dependence on x.
	BatchNorm2DBackward(x, mean, invStd, gamma, grad *RawTensor, batchStats bool) (dx, dgamma, dbeta *RawTensor)

	// Reductions.
	Sum(x *RawTensor) *RawTensor               // total sum (scalar result)
	Argmax(x *RawTensor, dim int) *RawTensor // int32 index of maximum along dim

	// Metadata
	Name() string
	Device() Device
}
