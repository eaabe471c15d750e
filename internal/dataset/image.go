package dataset

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // decoders for LoadImageFile
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a float32 image in channel-major (CHW) layout, the form every
// tensor-stage transform consumes and produces.
type Image struct {
	Channels int
	Height   int
	Width    int
	Pix      []float32 // len = Channels*Height*Width
}

// NewImage allocates a zeroed image.
func NewImage(channels, height, width int) *Image {
	return &Image{
		Channels: channels,
		Height:   height,
		Width:    width,
		Pix:      make([]float32, channels*height*width),
	}
}

// Plane returns the pixels of channel c.
func (im *Image) Plane(c int) []float32 {
	n := im.Height * im.Width
	return im.Pix[c*n : (c+1)*n]
}

// At returns the value at channel c, row y, column x.
func (im *Image) At(c, y, x int) float32 {
	return im.Pix[(c*im.Height+y)*im.Width+x]
}

// Set stores v at channel c, row y, column x.
func (im *Image) Set(c, y, x int, v float32) {
	im.Pix[(c*im.Height+y)*im.Width+x] = v
}

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	out := *im
	out.Pix = append([]float32(nil), im.Pix...)
	return &out
}

// ToTensor converts an 8-bit RGB picture to a 3-channel Image scaled to [0, 1].
func ToTensor(img image.Image) *Image {
	b := img.Bounds()
	out := NewImage(3, b.Dy(), b.Dx())
	r, g, bl := out.Plane(0), out.Plane(1), out.Plane(2)

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			row := nrgba.Pix[nrgba.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < b.Dx(); x++ {
				i := y*b.Dx() + x
				r[i] = float32(row[4*x]) / 255
				g[i] = float32(row[4*x+1]) / 255
				bl[i] = float32(row[4*x+2]) / 255
			}
		}
		return out
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := y*b.Dx() + x
			r[i] = float32(c.R) / 255
			g[i] = float32(c.G) / 255
			bl[i] = float32(c.B) / 255
		}
	}
	return out
}

// LoadImageFile decodes a PNG, JPEG, BMP, TIFF or WebP file.
func LoadImageFile(path string) (image.Image, error) {
	//nolint:gosec // G304: path is supplied by the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
