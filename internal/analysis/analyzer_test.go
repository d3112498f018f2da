// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package analysis

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/clickshield/internal/detection"
	"github.com/tomtom215/clickshield/internal/ingest"
)

func ptr(f float64) *float64 { return &f }

// sampleInput has one early-hour single conversion (device 1), two unremarkable
// clicks (device 2) and a row without a device id.
func sampleInput() Input {
	return Input{
		Events: []ingest.RawEvent{
			{DeviceID: "1", UserIP: "1.1.1.1", ClickDate: "2026-03-14 03:00:00", DoneDate: "2026-03-14 03:02:00", CTIT: ptr(120), MediaID: 10, AdID: 1},
			{DeviceID: "2", ClickDate: "2026-03-14 12:00:00", MediaID: 20, AdID: 1},
			{DeviceID: "2.0", ClickDate: "2026-03-14 12:30:00", MediaID: 20, AdID: 2},
			{DeviceID: "", ClickDate: "2026-03-14 13:00:00", MediaID: 20, AdID: 2},
		},
		Ads: []ingest.AdMetadata{
			{AdID: 1, AdType: 1, AdCategory: 3, AdName: "spring sale"},
		},
		Hostnames: ingest.HostnameMap{"1.1.1.1": "one.one.one.one"},
	}
}

func absolutePolicy(threshold float64) detection.BlocklistPolicy {
	return detection.BlocklistPolicy{Method: detection.MethodAbsolute, AbsoluteScoreThreshold: threshold}
}

func TestRun_EndToEnd(t *testing.T) {
	opts := DefaultOptions()
	opts.Blocklist = absolutePolicy(30)
	a := New(opts)

	res, err := a.Run(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}

	if len(res.Scored) != 3 {
		t.Fatalf("len(Scored) = %d, want 3", len(res.Scored))
	}
	first := res.Scored[0]
	if first.DeviceID != 1 || first.Mode != detection.ModeConversion || first.AbuseScore != 30 {
		t.Errorf("Scored[0] = device %d mode %s score %d, want device 1 conversion 30",
			first.DeviceID, first.Mode, first.AbuseScore)
	}
	for _, r := range res.Scored[1:] {
		if r.Mode != detection.ModeClick || r.AbuseScore != 0 {
			t.Errorf("click record %d: mode %s score %d", r.Seq, r.Mode, r.AbuseScore)
		}
	}

	if len(res.Blocklist.Devices) != 1 || res.Blocklist.Devices[0] != 1 {
		t.Errorf("Blocklist.Devices = %v, want [1]", res.Blocklist.Devices)
	}

	s := res.Summary
	if s.TotalRecords != 3 || s.ConversionRecords != 1 || s.ClickRecords != 2 || s.DroppedRows != 1 {
		t.Errorf("record counts = %+v", s)
	}
	if s.TotalDevices != 2 || s.BlockedDevices != 1 || s.DeviceAbuseRatio != 0.5 {
		t.Errorf("device counts = %d/%d ratio %v", s.BlockedDevices, s.TotalDevices, s.DeviceAbuseRatio)
	}
	if s.BlockedRecords != 1 || math.Abs(s.RecordAbuseRatio-1.0/3.0) > 1e-9 {
		t.Errorf("blocked records = %d ratio %v", s.BlockedRecords, s.RecordAbuseRatio)
	}
	if s.RuleHits[detection.RuleSuspiciousSingleConv] != 1 {
		t.Errorf("RuleHits = %v", s.RuleHits)
	}
	wantPeriod := time.Date(2026, 3, 14, 3, 2, 0, 0, time.UTC)
	if s.PeriodStart == nil || !s.PeriodStart.Equal(wantPeriod) || !s.PeriodEnd.Equal(wantPeriod) {
		t.Errorf("period = %v..%v, want conversion time %v", s.PeriodStart, s.PeriodEnd, wantPeriod)
	}

	if len(res.Devices) != 1 || res.Devices[0].MaxScore != 30 ||
		len(res.Devices[0].Rules) != 1 || res.Devices[0].Rules[0] != "Suspicious single conversion" {
		t.Errorf("Devices = %+v", res.Devices)
	}
	if len(res.Media) != 1 || res.Media[0].MediaID != 10 || res.Media[0].SharePct != 100 {
		t.Errorf("Media = %+v", res.Media)
	}
}

func TestRun_NoData(t *testing.T) {
	a := New(DefaultOptions())

	for _, in := range []Input{{}, {Events: []ingest.RawEvent{{DeviceID: "0", ClickDate: "2026-03-14"}}}} {
		res, err := a.Run(context.Background(), in)
		if !errors.Is(err, ingest.ErrNoData) {
			t.Errorf("Run() error = %v, want ErrNoData", err)
		}
		if res != nil {
			t.Errorf("Run() result = %+v, want nil", res)
		}
	}
}

func TestRun_InvalidTimestamp(t *testing.T) {
	a := New(DefaultOptions())
	in := Input{Events: []ingest.RawEvent{{DeviceID: "5", ClickDate: "yesterday"}}}
	if _, err := a.Run(context.Background(), in); !errors.Is(err, ingest.ErrInvalidTimestamp) {
		t.Errorf("Run() error = %v, want ErrInvalidTimestamp", err)
	}
}

func TestRunWithPolicy(t *testing.T) {
	a := New(DefaultOptions())

	if _, err := a.RunWithPolicy(context.Background(), sampleInput(), detection.BlocklistPolicy{Method: "vote"}); !errors.Is(err, detection.ErrInvalidBlocklistMethod) {
		t.Errorf("error = %v, want ErrInvalidBlocklistMethod", err)
	}

	res, err := a.RunWithPolicy(context.Background(), sampleInput(), absolutePolicy(31))
	if err != nil {
		t.Fatalf("RunWithPolicy() error = %v", err)
	}
	if len(res.Blocklist.Devices) != 0 {
		t.Errorf("Devices = %v, want none above 31", res.Blocklist.Devices)
	}
	if res.Summary.PeriodStart == nil {
		t.Error("period missing")
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(DefaultOptions()).Run(ctx, sampleInput()); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestModelStatus(t *testing.T) {
	status := New(DefaultOptions()).ModelStatus()
	if status[detection.ModelClickInterval] || status[detection.ModelCTIT] {
		t.Errorf("ModelStatus() = %v, want no models", status)
	}
}
