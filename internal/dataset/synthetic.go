package dataset

import (
	"fmt"
	"image"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Synthetic is a small generated dataset for smoke runs without CIFAR-10
// on disk. Every class has a fixed random prototype picture; items are that
// prototype plus Gaussian pixel noise, so a network can learn to separate
// them.
type Synthetic struct {
	n          int
	numClass   int
	size       int
	seed       uint64
	noise      float64
	prototypes [][]float64 // [class][3*size*size] in [0, 1]
	transform  Transform
}

// NewSynthetic creates n items of size×size RGB pictures over numClass
// classes. A nil transform normalizes with the ImageNet statistics.
func NewSynthetic(n, numClass, size int, seed uint64, transform Transform) (*Synthetic, error) {
	if n < 0 || numClass < 1 || size < 1 {
		return nil, fmt.Errorf("synthetic: invalid n=%d num_class=%d size=%d", n, numClass, size)
	}
	if transform == nil {
		transform = Compose(Normalize(ImageNetMean[:], ImageNetStd[:]))
	}

	uniform := distuv.Uniform{Min: 0.1, Max: 0.9, Src: rand.NewSource(seed)}
	prototypes := make([][]float64, numClass)
	for k := range prototypes {
		p := make([]float64, 3*size*size)
		for i := range p {
			p[i] = uniform.Rand()
		}
		prototypes[k] = p
	}

	return &Synthetic{
		n:          n,
		numClass:   numClass,
		size:       size,
		seed:       seed,
		noise:      0.05,
		prototypes: prototypes,
		transform:  transform,
	}, nil
}

// Len returns the number of items.
func (s *Synthetic) Len() int {
	return s.n
}

// NumClass returns the number of classes.
func (s *Synthetic) NumClass() int {
	return s.numClass
}

// Item returns the transformed picture i; its label is i mod NumClass.
// Items are deterministic for a given seed.
func (s *Synthetic) Item(i int) (*Image, int32, error) {
	img, label, err := s.Raw(i)
	if err != nil {
		return nil, 0, err
	}
	return s.transform(img), label, nil
}

// Raw returns picture i before the transform.
func (s *Synthetic) Raw(i int) (image.Image, int32, error) {
	if i < 0 || i >= s.n {
		return nil, 0, fmt.Errorf("synthetic: index %d out of range [0, %d)", i, s.n)
	}
	label := i % s.numClass
	noise := distuv.Normal{Mu: 0, Sigma: s.noise, Src: rand.NewSource(s.seed + uint64(i) + 1)}

	proto := s.prototypes[label]
	plane := s.size * s.size
	img := image.NewNRGBA(image.Rect(0, 0, s.size, s.size))
	for j := range plane {
		px := img.Pix[4*j:]
		for c := range 3 {
			v := min(max(proto[c*plane+j]+noise.Rand(), 0), 1)
			px[c] = uint8(v*255 + 0.5)
		}
		px[3] = 255
	}
	return img, int32(label), nil
}
