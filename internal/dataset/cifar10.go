// Package dataset provides the CIFAR-10 dataset adapter, image transforms and
// a batching loader.
//
// The adapter composes a raw record source with an explicit Transform:
//
//	ds, err := dataset.NewCIFAR10(ctx, "./data", true, nil)
//	img, label, err := ds.Item(0) // DefaultTransform applied
package dataset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CIFAR-10 binary format constants.
const (
	ImageSize   = 32
	NumClasses  = 10
	planeBytes  = ImageSize * ImageSize
	recordBytes = 1 + 3*planeBytes
)

const batchDir = "cifar-10-batches-bin"

var (
	trainFiles = []string{"data_batch_1.bin", "data_batch_2.bin", "data_batch_3.bin", "data_batch_4.bin", "data_batch_5.bin"}
	testFiles  = []string{"test_batch.bin"}

	defaultClasses = []string{"airplane", "automobile", "bird", "cat", "deer", "dog", "frog", "horse", "ship", "truck"}
)

// ErrNotFound is returned when the batch files are missing and download is disabled.
var ErrNotFound = errors.New("dataset not found")

// Dataset is an indexed collection of labelled, preprocessed images.
type Dataset interface {
	Len() int
	Item(i int) (*Image, int32, error)
}

// records is the undecoded content of one or more CIFAR-10 batch files.
type records struct {
	data []byte
}

func (r *records) len() int {
	return len(r.data) / recordBytes
}

// picture decodes record i into an RGB image and its label.
func (r *records) picture(i int) (*image.NRGBA, int32) {
	rec := r.data[i*recordBytes : (i+1)*recordBytes]
	img := image.NewNRGBA(image.Rect(0, 0, ImageSize, ImageSize))
	for j := range planeBytes {
		p := img.Pix[4*j:]
		p[0] = rec[1+j]
		p[1] = rec[1+planeBytes+j]
		p[2] = rec[1+2*planeBytes+j]
		p[3] = 255
	}
	return img, int32(rec[0])
}

// CIFAR10 is the CIFAR-10 train or test split with a preprocessing Transform.
type CIFAR10 struct {
	records   *records
	transform Transform
	classes   []string
	train     bool
}

// NewCIFAR10 opens the CIFAR-10 binary batches under root, downloading and
// extracting the archive first when they are missing. A nil transform
// selects DefaultTransform.
func NewCIFAR10(ctx context.Context, root string, train bool, transform Transform, opts ...Option) (*CIFAR10, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if transform == nil {
		transform = DefaultTransform()
	}

	files := testFiles
	if train {
		files = trainFiles
	}
	if root == "" {
		root = "."
	}
	dir := filepath.Join(root, batchDir)

	if err := ensureDownloaded(ctx, root, dir, o); err != nil {
		return nil, err
	}

	recs := &records{}
	for _, name := range files {
		data, err := readBatchFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		recs.data = append(recs.data, data...)
	}

	classes, err := readClasses(filepath.Join(dir, "batches.meta.txt"))
	if err != nil {
		classes = defaultClasses
	}

	return &CIFAR10{
		records:   recs,
		transform: transform,
		classes:   classes,
		train:     train,
	}, nil
}

// Len returns the number of images.
func (d *CIFAR10) Len() int {
	return d.records.len()
}

// Item returns the transformed image i and its label.
func (d *CIFAR10) Item(i int) (*Image, int32, error) {
	img, label, err := d.Raw(i)
	if err != nil {
		return nil, 0, err
	}
	return d.transform(img), label, nil
}

// Raw returns image i before any transform.
func (d *CIFAR10) Raw(i int) (image.Image, int32, error) {
	if i < 0 || i >= d.Len() {
		return nil, 0, fmt.Errorf("cifar10: index %d out of range [0, %d)", i, d.Len())
	}
	img, label := d.records.picture(i)
	return img, label, nil
}

// NumClass returns the number of classes (10).
func (d *CIFAR10) NumClass() int {
	return NumClasses
}

// Classes returns the class names.
func (d *CIFAR10) Classes() []string {
	return append([]string(nil), d.classes...)
}

// ClassNames returns the standard CIFAR-10 class names in label order.
func ClassNames() []string {
	return append([]string(nil), defaultClasses...)
}

// Train reports whether this is the training split.
func (d *CIFAR10) Train() bool {
	return d.train
}

// readBatchFile loads one binary batch and validates its records.
func readBatchFile(path string) ([]byte, error) {
	//nolint:gosec // G304: path is built from the dataset root
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cifar10: %w", err)
	}
	if len(data)%recordBytes != 0 {
		return nil, fmt.Errorf("cifar10: %s: size %d is not a multiple of the %d-byte record",
			filepath.Base(path), len(data), recordBytes)
	}
	for i := 0; i < len(data); i += recordBytes {
		if data[i] >= NumClasses {
			return nil, fmt.Errorf("cifar10: %s: record %d has label %d",
				filepath.Base(path), i/recordBytes, data[i])
		}
	}
	return data, nil
}

// readClasses loads the class names, one per non-empty line.
func readClasses(path string) ([]string, error) {
	//nolint:gosec // G304: path is built from the dataset root
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scanClasses(f)
}

func scanClasses(r io.Reader) ([]string, error) {
	s := bufio.NewScanner(r)
	var classes []string
	for s.Scan() {
		if line := strings.TrimSpace(s.Text()); line != "" {
			classes = append(classes, line)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if len(classes) != NumClasses {
		return nil, fmt.Errorf("cifar10: expected %d class names, got %d", NumClasses, len(classes))
	}
	return classes, nil
}
