// Package metrics computes classification metrics from ground-truth and
// predicted labels.
//
// Precision, recall and F1 are macro averages over the sorted union of the
// labels seen in either sequence. A class that is never predicted (or never
// present) scores 0 instead of raising a division error.
package metrics

import (
	"fmt"
	"io"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ClassificationMetrics holds one set of truths and predictions.
// It is read-only after construction.
type ClassificationMetrics struct {
	truths []int
	preds  []int
	labels []int
	// confusion[i][j] counts samples of class labels[i] predicted as labels[j].
	confusion *mat.Dense
}

// ClassScore is the per-class breakdown behind the macro averages.
type ClassScore struct {
	Label     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int // number of true samples of this class
}

// New builds metrics from parallel label sequences.
func New(truths, preds []int) (*ClassificationMetrics, error) {
	if len(truths) != len(preds) {
		return nil, fmt.Errorf("metrics: %d truths but %d predictions", len(truths), len(preds))
	}

	m := &ClassificationMetrics{
		truths: slices.Clone(truths),
		preds:  slices.Clone(preds),
	}
	m.labels = slices.Concat(m.truths, m.preds)
	slices.Sort(m.labels)
	m.labels = slices.Compact(m.labels)

	if k := len(m.labels); k > 0 {
		index := make(map[int]int, k)
		for i, l := range m.labels {
			index[l] = i
		}
		m.confusion = mat.NewDense(k, k, nil)
		for i, t := range m.truths {
			r, c := index[t], index[m.preds[i]]
			m.confusion.Set(r, c, m.confusion.At(r, c)+1)
		}
	}
	return m, nil
}

// FromLogits builds metrics taking each row's argmax as the prediction.
func FromLogits(truths []int, logits [][]float32) (*ClassificationMetrics, error) {
	if len(truths) != len(logits) {
		return nil, fmt.Errorf("metrics: %d truths but %d logit rows", len(truths), len(logits))
	}

	preds := make([]int, len(logits))
	row := make([]float64, 0)
	for i, l := range logits {
		if len(l) == 0 {
			return nil, fmt.Errorf("metrics: logit row %d is empty", i)
		}
		row = row[:0]
		for _, v := range l {
			row = append(row, float64(v))
		}
		preds[i] = floats.MaxIdx(row)
	}
	return New(truths, preds)
}

// Len returns the number of samples.
func (m *ClassificationMetrics) Len() int {
	return len(m.truths)
}

// Labels returns the sorted label set.
func (m *ClassificationMetrics) Labels() []int {
	return slices.Clone(m.labels)
}

// ConfusionMatrix returns the confusion matrix indexed by Labels (rows are
// truths, columns predictions), or nil when there are no samples.
func (m *ClassificationMetrics) ConfusionMatrix() mat.Matrix {
	if m.confusion == nil {
		return nil
	}
	return mat.DenseCopyOf(m.confusion)
}

// Accuracy returns the fraction of exact matches.
func (m *ClassificationMetrics) Accuracy() float64 {
	if m.confusion == nil {
		return 0
	}
	return mat.Trace(m.confusion) / float64(len(m.truths))
}

// Precision returns the macro-averaged precision.
func (m *ClassificationMetrics) Precision() float64 {
	return m.macro(func(s ClassScore) float64 { return s.Precision })
}

// Recall returns the macro-averaged recall.
func (m *ClassificationMetrics) Recall() float64 {
	return m.macro(func(s ClassScore) float64 { return s.Recall })
}

// F1Score returns the macro average of the per-class F1 scores.
func (m *ClassificationMetrics) F1Score() float64 {
	return m.macro(func(s ClassScore) float64 { return s.F1 })
}

func (m *ClassificationMetrics) macro(pick func(ClassScore) float64) float64 {
	scores := m.PerClass()
	if len(scores) == 0 {
		return 0
	}
	values := make([]float64, len(scores))
	for i, s := range scores {
		values[i] = pick(s)
	}
	return floats.Sum(values) / float64(len(values))
}

// PerClass returns precision, recall, F1 and support for every label.
func (m *ClassificationMetrics) PerClass() []ClassScore {
	if m.confusion == nil {
		return nil
	}

	k := len(m.labels)
	scores := make([]ClassScore, k)
	for i := range k {
		tp := m.confusion.At(i, i)
		predicted := floats.Sum(mat.Col(nil, i, m.confusion))
		actual := floats.Sum(mat.Row(nil, i, m.confusion))

		s := ClassScore{
			Label:     m.labels[i],
			Precision: safeDiv(tp, predicted),
			Recall:    safeDiv(tp, actual),
			Support:   int(actual),
		}
		s.F1 = safeDiv(2*s.Precision*s.Recall, s.Precision+s.Recall)
		scores[i] = s
	}
	return scores
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// PrintReport writes accuracy, precision, recall and F1 on two lines:
//
//	Accuracy: 36.36% | Precision: 0.2361
//	Recall:   0.3333 | F1 score:  0.2698
func (m *ClassificationMetrics) PrintReport(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Accuracy: %.2f%% | Precision: %.4f\nRecall:   %.4f | F1 score:  %.4f\n",
		m.Accuracy()*100, m.Precision(), m.Recall(), m.F1Score())
	return err
}
