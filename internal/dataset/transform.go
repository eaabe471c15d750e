package dataset

import (
	"fmt"
	"image"
	"math"
)

// ImageNet channel statistics used by the default CIFAR-10 pipeline.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Transform turns a decoded picture into the network's CHW float input.
type Transform func(img image.Image) *Image

// Step is one tensor-stage preprocessing step.
type Step func(*Image) *Image

// Compose returns a Transform applying ToTensor followed by steps in order.
func Compose(steps ...Step) Transform {
	return func(img image.Image) *Image {
		out := ToTensor(img)
		for _, step := range steps {
			out = step(out)
		}
		return out
	}
}

// DefaultTransform is ToTensor, Normalize with the ImageNet statistics,
// Resize(32) and CenterCrop(32).
func DefaultTransform() Transform {
	return Compose(
		Normalize(ImageNetMean[:], ImageNetStd[:]),
		Resize(ImageSize),
		CenterCrop(ImageSize),
	)
}

// Normalize maps each channel c to (x - mean[c]) / std[c], in place.
func Normalize(mean, std []float32) Step {
	if len(mean) != len(std) {
		panic(fmt.Sprintf("normalize: %d means but %d stds", len(mean), len(std)))
	}
	for _, s := range std {
		if s == 0 {
			panic("normalize: std must be non-zero")
		}
	}

	return func(im *Image) *Image {
		if im.Channels != len(mean) {
			panic(fmt.Sprintf("normalize: image has %d channels, statistics have %d", im.Channels, len(mean)))
		}
		for c := range im.Channels {
			m, inv := mean[c], 1/std[c]
			plane := im.Plane(c)
			for i, v := range plane {
				plane[i] = (v - m) * inv
			}
		}
		return im
	}
}

// Resize scales the image so its shorter side equals size, keeping the
// aspect ratio, with bilinear interpolation (half-pixel centers).
// Images whose shorter side already equals size are returned unchanged.
func Resize(size int) Step {
	if size <= 0 {
		panic(fmt.Sprintf("resize: invalid size %d", size))
	}

	return func(im *Image) *Image {
		h, w := im.Height, im.Width
		if min(h, w) == size {
			return im
		}

		var outH, outW int
		if h <= w {
			outH, outW = size, size*w/h
		} else {
			outH, outW = size*h/w, size
		}
		return bilinear(im, outH, outW)
	}
}

func bilinear(im *Image, outH, outW int) *Image {
	out := NewImage(im.Channels, outH, outW)
	scaleY := float64(im.Height) / float64(outH)
	scaleX := float64(im.Width) / float64(outW)

	for y := range outH {
		y0, y1, fy := sourceCoord(y, scaleY, im.Height)
		for x := range outW {
			x0, x1, fx := sourceCoord(x, scaleX, im.Width)
			for c := range im.Channels {
				top := (1-fx)*im.At(c, y0, x0) + fx*im.At(c, y0, x1)
				bottom := (1-fx)*im.At(c, y1, x0) + fx*im.At(c, y1, x1)
				out.Set(c, y, x, (1-fy)*top+fy*bottom)
			}
		}
	}
	return out
}

// sourceCoord maps output index i to the two neighbouring input indices and
// the interpolation weight of the second one.
func sourceCoord(i int, scale float64, limit int) (i0, i1 int, frac float32) {
	src := math.Max((float64(i)+0.5)*scale-0.5, 0)
	i0 = min(int(src), limit-1)
	i1 = min(i0+1, limit-1)
	return i0, i1, float32(src - float64(i0))
}

// CenterCrop cuts a size×size window from the center. Images smaller than
// size are zero-padded first.
func CenterCrop(size int) Step {
	if size <= 0 {
		panic(fmt.Sprintf("center_crop: invalid size %d", size))
	}

	return func(im *Image) *Image {
		if im.Height == size && im.Width == size {
			return im
		}

		// Offsets are negative when padding is needed.
		top, left := cropOffset(im.Height, size), cropOffset(im.Width, size)

		out := NewImage(im.Channels, size, size)
		for c := range im.Channels {
			for y := range size {
				sy := y + top
				if sy < 0 || sy >= im.Height {
					continue
				}
				for x := range size {
					sx := x + left
					if sx < 0 || sx >= im.Width {
						continue
					}
					out.Set(c, y, x, im.At(c, sy, sx))
				}
			}
		}
		return out
	}
}

// cropOffset is the first source index of a centered window of length size.
func cropOffset(length, size int) int {
	if length < size {
		return -((size - length) / 2)
	}
	return int(math.RoundToEven(float64(length-size) / 2))
}
