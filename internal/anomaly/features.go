// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package anomaly

import (
	"math"
	"sort"

	"github.com/tomtom215/clickshield/internal/stats"
)

// MinCTITSamples is the minimum number of CTIT values a device needs before the
// CTIT model is asked about it.
const MinCTITSamples = 3

// Column sets expected by the two models, in order.
var (
	ClickIntervalColumns = []string{"mean", "std", "median", "count"}
	CTITColumns          = []string{"mean", "std", "median", "count", "min", "max"}
)

// ClickIntervalFeatures aggregates each device's inter-click time deltas.
// NaN deltas are ignored. Devices whose standard deviation is undefined
// (fewer than two deltas) are left out.
func ClickIntervalFeatures(samples map[int64][]float64) FeatureTable {
	table := FeatureTable{Columns: ClickIntervalColumns}
	for _, device := range sortedDevices(samples) {
		vals := stats.Finite(samples[device])
		std := stats.SampleStdDev(vals)
		if math.IsNaN(std) {
			continue
		}
		table.Devices = append(table.Devices, device)
		table.Rows = append(table.Rows, []float64{
			stats.Mean(vals),
			std,
			stats.Median(vals),
			float64(len(vals)),
		})
	}
	return table
}

// CTITFeatures aggregates each device's CTIT values. Devices with fewer than
// MinCTITSamples values are left out.
func CTITFeatures(samples map[int64][]float64) FeatureTable {
	table := FeatureTable{Columns: CTITColumns}
	for _, device := range sortedDevices(samples) {
		vals := stats.Finite(samples[device])
		if len(vals) < MinCTITSamples {
			continue
		}
		table.Devices = append(table.Devices, device)
		table.Rows = append(table.Rows, []float64{
			stats.Mean(vals),
			stats.SampleStdDev(vals),
			stats.Median(vals),
			float64(len(vals)),
			stats.Min(vals),
			stats.Max(vals),
		})
	}
	return table
}

func sortedDevices(samples map[int64][]float64) []int64 {
	devices := make([]int64, 0, len(samples))
	for d := range samples {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i] < devices[j] })
	return devices
}
