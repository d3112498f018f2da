// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

// Package anomaly adapts pretrained per-device outlier classifiers to the
// scoring pipeline.
//
// A Model receives a per-device feature table and returns one label per row.
// Models are optional collaborators: a nil or unavailable model simply flags no
// devices. Training is out of scope; IsolationForest only evaluates a forest
// exported to JSON by an offline job.
package anomaly

import (
	"context"
	"errors"
	"fmt"
)

// Label is a classifier verdict for one device.
type Label int

const (
	// Outlier marks an anomalous device.
	Outlier Label = -1
	// Inlier marks a normal device.
	Inlier Label = 1
)

var (
	// ErrFeatureMismatch is returned when a table's columns do not match the
	// columns a model was trained on.
	ErrFeatureMismatch = errors.New("feature columns do not match model")

	// ErrLabelCount is returned when a model returns a label count different
	// from the number of rows it was given.
	ErrLabelCount = errors.New("model returned wrong number of labels")
)

// FeatureTable holds one row of aggregate features per device.
type FeatureTable struct {
	Columns []string
	Devices []int64
	Rows    [][]float64
}

// Len returns the number of device rows.
func (t FeatureTable) Len() int {
	return len(t.Rows)
}

// Model is a pretrained binary outlier classifier.
type Model interface {
	// Available reports whether the model can be invoked.
	Available() bool
	// Predict returns one label per row of table.
	Predict(table FeatureTable) ([]Label, error)
}

// Unavailable is the model used when no artifact is configured or found.
type Unavailable struct{}

// Available always returns false.
func (Unavailable) Available() bool { return false }

// Predict labels every device as an inlier.
func (Unavailable) Predict(table FeatureTable) ([]Label, error) {
	labels := make([]Label, table.Len())
	for i := range labels {
		labels[i] = Inlier
	}
	return labels, nil
}

// PredictFunc adapts a plain function to the Model interface.
type PredictFunc func(FeatureTable) ([]Label, error)

// Available returns true for a non-nil function.
func (f PredictFunc) Available() bool { return f != nil }

// Predict calls f.
func (f PredictFunc) Predict(table FeatureTable) ([]Label, error) {
	return f(table)
}

// IsAvailable reports whether m is non-nil and available.
func IsAvailable(m Model) bool {
	return m != nil && m.Available()
}

// Outliers runs m over table and returns the set of devices labelled Outlier.
// A nil or unavailable model, or an empty table, yields an empty set.
func Outliers(ctx context.Context, m Model, table FeatureTable) (map[int64]bool, error) {
	out := make(map[int64]bool)
	if !IsAvailable(m) || table.Len() == 0 {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	labels, err := m.Predict(table)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(labels) != table.Len() {
		return nil, fmt.Errorf("%w: got %d for %d rows", ErrLabelCount, len(labels), table.Len())
	}
	for i, l := range labels {
		if l == Outlier {
			out[table.Devices[i]] = true
		}
	}
	return out, nil
}
