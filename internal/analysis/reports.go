// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package analysis

import (
	"sort"
	"time"

	"github.com/tomtom215/clickshield/internal/detection"
)

// Summary condenses a run for logs, the API and the batch report.
type Summary struct {
	TotalRecords      int `json:"total_records"`
	ConversionRecords int `json:"conversion_records"`
	ClickRecords      int `json:"click_records"`
	DroppedRows       int `json:"dropped_rows"`

	TotalDevices     int     `json:"total_devices"`
	BlockedDevices   int     `json:"blocked_devices"`
	DeviceAbuseRatio float64 `json:"device_abuse_ratio"`

	BlockedRecords   int     `json:"blocked_records"`
	RecordAbuseRatio float64 `json:"record_abuse_ratio"`

	Threshold float64          `json:"threshold"`
	Method    detection.Method `json:"method"`

	// PeriodStart and PeriodEnd span the conversion times, or the click
	// times when no record converted.
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`

	// RuleHits counts the records each rule fired on.
	RuleHits map[detection.RuleID]int `json:"rule_hits"`
}

// Summarize builds the summary of scored records and their blocklist.
func Summarize(scored []detection.ScoredRecord, bl detection.Blocklist) Summary {
	s := Summary{
		TotalRecords:   len(scored),
		BlockedDevices: len(bl.Devices),
		Threshold:      bl.Threshold,
		Method:         bl.Method,
		RuleHits:       make(map[detection.RuleID]int),
	}

	devices := make(map[int64]struct{})
	var convStart, convEnd, clickStart, clickEnd time.Time
	for i := range scored {
		r := &scored[i]
		devices[r.DeviceID] = struct{}{}
		if bl.Blocked(r.DeviceID) {
			s.BlockedRecords++
		}
		for id, v := range r.Scores {
			if v > 0 {
				s.RuleHits[id]++
			}
		}

		clickStart, clickEnd = extend(clickStart, clickEnd, r.ClickTime)
		if r.DoneTime != nil {
			convStart, convEnd = extend(convStart, convEnd, *r.DoneTime)
		}
	}
	s.TotalDevices = len(devices)

	if s.TotalDevices > 0 {
		s.DeviceAbuseRatio = float64(s.BlockedDevices) / float64(s.TotalDevices)
	}
	if s.TotalRecords > 0 {
		s.RecordAbuseRatio = float64(s.BlockedRecords) / float64(s.TotalRecords)
	}

	start, end := convStart, convEnd
	if start.IsZero() {
		start, end = clickStart, clickEnd
	}
	if !start.IsZero() {
		s.PeriodStart, s.PeriodEnd = &start, &end
	}
	return s
}

func extend(lo, hi, t time.Time) (time.Time, time.Time) {
	if lo.IsZero() || t.Before(lo) {
		lo = t
	}
	if hi.IsZero() || t.After(hi) {
		hi = t
	}
	return lo, hi
}

// DeviceReportRow describes one blocked device.
type DeviceReportRow struct {
	DeviceID int64 `json:"dvc_idx"`
	MaxScore int   `json:"max_score"`
	// Rules are the display names of the rules fired on the device's
	// highest-scoring record.
	Rules []string `json:"rules"`
}

// DeviceReport lists the blocked devices, highest score first.
func DeviceReport(scored []detection.ScoredRecord, bl detection.Blocklist) []DeviceReportRow {
	best := make(map[int64]int) // device -> index of highest-scoring record
	for i := range scored {
		id := scored[i].DeviceID
		if !bl.Blocked(id) {
			continue
		}
		if j, ok := best[id]; !ok || scored[i].AbuseScore > scored[j].AbuseScore {
			best[id] = i
		}
	}

	rows := make([]DeviceReportRow, 0, len(best))
	for id, i := range best {
		r := &scored[i]
		row := DeviceReportRow{DeviceID: id, MaxScore: r.AbuseScore, Rules: []string{}}
		for _, rule := range detection.Rules() {
			if r.Fired(rule.ID) {
				row.Rules = append(row.Rules, rule.Name)
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].MaxScore != rows[j].MaxScore {
			return rows[i].MaxScore > rows[j].MaxScore
		}
		return rows[i].DeviceID < rows[j].DeviceID
	})
	return rows
}

// MediaReportRow counts blocked devices seen on one media.
type MediaReportRow struct {
	MediaID        int64   `json:"mda_idx"`
	BlockedDevices int     `json:"blocked_devices"`
	SharePct       float64 `json:"share_pct"`
}

// MediaReport returns the top media by number of distinct blocked devices.
// SharePct is relative to all blocked devices.
func MediaReport(scored []detection.ScoredRecord, bl detection.Blocklist, top int) []MediaReportRow {
	perMedia := make(map[int64]map[int64]struct{})
	for i := range scored {
		r := &scored[i]
		if r.NoMedia || !bl.Blocked(r.DeviceID) {
			continue
		}
		set, ok := perMedia[r.MediaID]
		if !ok {
			set = make(map[int64]struct{})
			perMedia[r.MediaID] = set
		}
		set[r.DeviceID] = struct{}{}
	}

	rows := make([]MediaReportRow, 0, len(perMedia))
	total := len(bl.Devices)
	for media, set := range perMedia {
		row := MediaReportRow{MediaID: media, BlockedDevices: len(set)}
		if total > 0 {
			row.SharePct = float64(len(set)) / float64(total) * 100
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].BlockedDevices != rows[j].BlockedDevices {
			return rows[i].BlockedDevices > rows[j].BlockedDevices
		}
		return rows[i].MediaID < rows[j].MediaID
	})
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}
	return rows
}
