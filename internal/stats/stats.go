// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

// Package stats holds the small set of descriptive statistics the scoring
// pipeline needs. Every function ignores NaN inputs and returns NaN when the
// statistic is undefined for the remaining values.
package stats

import (
	"math"
	"sort"
)

// Finite returns the non-NaN values of xs in their original order.
func Finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// Mean returns the arithmetic mean, NaN for no values.
func Mean(xs []float64) float64 {
	vals := Finite(xs)
	if len(vals) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// SampleStdDev returns the sample standard deviation (n-1 denominator),
// NaN for fewer than two values.
func SampleStdDev(xs []float64) float64 {
	vals := Finite(xs)
	if len(vals) < 2 {
		return math.NaN()
	}
	mean := Mean(vals)
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

// Median returns the middle value, averaging the two central values for an
// even count. NaN for no values.
func Median(xs []float64) float64 {
	return Quantile(xs, 0.5)
}

// Min returns the smallest value, NaN for no values.
func Min(xs []float64) float64 {
	vals := Finite(xs)
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Min(m, v)
	}
	return m
}

// Max returns the largest value, NaN for no values.
func Max(xs []float64) float64 {
	vals := Finite(xs)
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Max(m, v)
	}
	return m
}

// Quantile returns the p-quantile using linear interpolation between the two
// nearest ranks: position (n-1)*p in the sorted values. p is clamped to [0,1].
func Quantile(xs []float64, p float64) float64 {
	sorted := Finite(xs)
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(1, p))
	pos := float64(len(sorted)-1) * p
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
