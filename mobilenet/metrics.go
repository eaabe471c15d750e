// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package mobilenet

import "github.com/born-ml/mobilenet/internal/metrics"

// ClassificationMetrics computes accuracy and macro-averaged precision,
// recall and F1 over parallel label sequences.
type ClassificationMetrics = metrics.ClassificationMetrics

// ClassScore holds the per-class figures of ClassificationMetrics.
type ClassScore = metrics.ClassScore

// NewClassificationMetrics compares ground-truth labels with predictions.
func NewClassificationMetrics(truths, preds []int) (*ClassificationMetrics, error) {
	return metrics.New(truths, preds)
}

// ClassificationMetricsFromLogits predicts the argmax of each logits row.
func ClassificationMetricsFromLogits(truths []int, logits [][]float32) (*ClassificationMetrics, error) {
	return metrics.FromLogits(truths, logits)
}
