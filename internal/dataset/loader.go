package dataset

import (
	"fmt"
	"iter"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
	"golang.org/x/exp/rand"
)

// Batch is one mini-batch of images stacked in NCHW order.
type Batch struct {
	Images []float32
	Labels []int32
	Shape  tensor.Shape // [N, C, H, W]
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.Labels)
}

// Loader groups dataset items into mini-batches. The last batch may be
// smaller when the dataset size is not a multiple of the batch size.
type Loader struct {
	ds        Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	parallel  parallel.Config
}

// NewLoader creates a loader over ds. With shuffle set, every call to
// Batches visits the items in a fresh permutation drawn from seed.
func NewLoader(ds Dataset, batchSize int, shuffle bool, seed uint64) (*Loader, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("loader: batch size must be positive, got %d", batchSize)
	}
	return &Loader{
		ds:        ds,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		parallel:  parallel.DefaultConfig().Coarse(),
	}, nil
}

// Len returns the number of batches per pass.
func (l *Loader) Len() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int {
	return l.batchSize
}

// Batches iterates one pass over the dataset. Items of a batch are decoded
// in parallel. Iteration stops after the first error.
func (l *Loader) Batches() iter.Seq2[*Batch, error] {
	n := l.ds.Len()
	var order []int
	if l.shuffle {
		order = l.rng.Perm(n)
	} else {
		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
	}

	return func(yield func(*Batch, error) bool) {
		for start := 0; start < n; start += l.batchSize {
			end := min(start+l.batchSize, n)
			batch, err := l.collect(order[start:end])
			if !yield(batch, err) || err != nil {
				return
			}
		}
	}
}

func (l *Loader) collect(indices []int) (*Batch, error) {
	images := make([]*Image, len(indices))
	labels := make([]int32, len(indices))
	errs := make([]error, len(indices))

	parallel.For(len(indices), func(i int) {
		images[i], labels[i], errs[i] = l.ds.Item(indices[i])
	}, l.parallel)

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("loader: item %d: %w", indices[i], err)
		}
	}

	first := images[0]
	shape := tensor.Shape{len(images), first.Channels, first.Height, first.Width}
	stride := len(first.Pix)
	data := make([]float32, len(images)*stride)
	for i, img := range images {
		if img.Channels != first.Channels || img.Height != first.Height || img.Width != first.Width {
			return nil, fmt.Errorf("loader: item %d has shape [%d %d %d], batch has %v",
				indices[i], img.Channels, img.Height, img.Width, shape[1:])
		}
		copy(data[i*stride:], img.Pix)
	}

	return &Batch{Images: data, Labels: labels, Shape: shape}, nil
}

// ToTensors copies a batch into an image tensor and a label tensor on backend.
func ToTensors[B tensor.Backend](b *Batch, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[int32, B], error) {
	images, err := tensor.FromSlice(b.Images, b.Shape, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create images tensor: %w", err)
	}
	labels, err := tensor.FromSlice(b.Labels, tensor.Shape{len(b.Labels)}, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create labels tensor: %w", err)
	}
	return images, labels, nil
}
