package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ChannelStats computes the per-channel population mean and standard
// deviation of the untransformed images of ds (pixels scaled to [0, 1]).
//
// The result can replace ImageNetMean/ImageNetStd in Normalize when
// statistics of the training corpus itself are preferred.
func ChannelStats(ds *CIFAR10) (mean, std [3]float32, err error) {
	n := ds.Len()
	if n == 0 {
		return mean, std, fmt.Errorf("cifar10: no images")
	}

	var means, sqMeans [3][]float64
	for c := range 3 {
		means[c] = make([]float64, n)
		sqMeans[c] = make([]float64, n)
	}

	plane := make([]float64, planeBytes)
	for i := range n {
		img, _, err := ds.Raw(i)
		if err != nil {
			return mean, std, err
		}
		t := ToTensor(img)
		for c := range 3 {
			for j, v := range t.Plane(c) {
				plane[j] = float64(v)
			}
			m, v := stat.PopMeanVariance(plane, nil)
			means[c][i] = m
			sqMeans[c][i] = v + m*m
		}
	}

	// Every image has the same pixel count, so the corpus moments are the
	// plain averages of the per-image moments.
	for c := range 3 {
		m := floats.Sum(means[c]) / float64(n)
		sq := floats.Sum(sqMeans[c]) / float64(n)
		mean[c] = float32(m)
		std[c] = float32(math.Sqrt(math.Max(sq-m*m, 0)))
	}
	return mean, std, nil
}
