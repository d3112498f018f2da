// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestQuantile(t *testing.T) {
	t.Parallel()

	scores := []float64{100, 10, 20, 30, 40, 50, 60, 70, 80, 90}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{1, 100},
		{0.5, 55},
		{0.95, 95.5},
		{0.9, 91},
		{1.5, 100},
	}
	for _, tt := range tests {
		if got := Quantile(scores, tt.p); !almostEqual(got, tt.want) {
			t.Errorf("Quantile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if got := Quantile([]float64{42}, 0.95); got != 42 {
		t.Errorf("single value quantile = %v, want 42", got)
	}
	if !math.IsNaN(Quantile(nil, 0.5)) {
		t.Error("quantile of nothing should be NaN")
	}
}

func TestSampleStdDev(t *testing.T) {
	t.Parallel()

	if got := SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); !almostEqual(got, 2.138089935299395) {
		t.Errorf("SampleStdDev = %v, want 2.1380899", got)
	}
	if got := SampleStdDev([]float64{1, math.NaN(), 3}); !almostEqual(got, math.Sqrt2) {
		t.Errorf("SampleStdDev ignoring NaN = %v, want sqrt(2)", got)
	}
	if !math.IsNaN(SampleStdDev([]float64{5})) {
		t.Error("std of one value should be NaN")
	}
}

func TestMedianMinMaxMean(t *testing.T) {
	t.Parallel()

	xs := []float64{3, math.NaN(), 1, 4, 2}
	if got := Median(xs); got != 2.5 {
		t.Errorf("Median = %v, want 2.5", got)
	}
	if got := Min(xs); got != 1 {
		t.Errorf("Min = %v, want 1", got)
	}
	if got := Max(xs); got != 4 {
		t.Errorf("Max = %v, want 4", got)
	}
	if got := Mean(xs); got != 2.5 {
		t.Errorf("Mean = %v, want 2.5", got)
	}
	if !math.IsNaN(Mean([]float64{math.NaN()})) {
		t.Error("mean of only NaN should be NaN")
	}
}
