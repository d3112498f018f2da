// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package source

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/clickshield/internal/analysis"
	"github.com/tomtom215/clickshield/internal/detection"
	"github.com/tomtom215/clickshield/internal/ingest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Threads: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadEvents(t *testing.T) {
	s := openTestStore(t)
	path := writeFile(t, "events.csv", `dvc_idx,user_ip,click_date,done_date,ctit,mda_idx,ads_idx
123.0,10.0.0.1,2026-03-14 03:00:00,2026-03-14 03:01:00,60.5,7,900
,10.0.0.2,2026-03-14 04:00:00,,,7,901
456,,2026-03-14 05:00:00,,,8.0,902
`)

	events, err := s.ReadEvents(context.Background(), path, ingest.DefaultEventColumns())
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}

	first := events[0]
	if first.DeviceID != "123.0" {
		t.Errorf("DeviceID = %q, want raw cell 123.0", first.DeviceID)
	}
	if first.CTIT == nil || *first.CTIT != 60.5 {
		t.Errorf("CTIT = %v, want 60.5", first.CTIT)
	}
	if first.MediaID != 7 || first.AdID != 900 || first.DoneDate == "" {
		t.Errorf("first = %+v", first)
	}
	if events[1].DeviceID != "" || events[1].CTIT != nil || events[1].DoneDate != "" {
		t.Errorf("second = %+v, want null device, ctit and done date", events[1])
	}
	if events[2].UserIP != "" || events[2].MediaID != 8 {
		t.Errorf("third = %+v", events[2])
	}
}

func TestReadEvents_MissingMedia(t *testing.T) {
	s := openTestStore(t)
	path := writeFile(t, "events.csv", `dvc_idx,user_ip,click_date,done_date,ctit,mda_idx,ads_idx
1,,2026-03-14 03:00:00,,,0,1
2,,2026-03-14 03:00:00,,,,1
3,,2026-03-14 03:00:00,,,unknown,1
`)

	events, err := s.ReadEvents(context.Background(), path, ingest.DefaultEventColumns())
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	for i, want := range []bool{false, true, true} {
		if events[i].NoMedia != want {
			t.Errorf("events[%d].NoMedia = %v, want %v (%+v)", i, events[i].NoMedia, want, events[i])
		}
	}
}

func TestReadEvents_CustomColumns(t *testing.T) {
	s := openTestStore(t)
	path := writeFile(t, "events.csv", `device,ip,clicked,converted,seconds,media,ad
5,10.0.0.1,2026-03-14 03:00:00,,,1,2
`)
	cols := ingest.EventColumns{
		DeviceID: "device", UserIP: "ip", ClickDate: "clicked", DoneDate: "converted",
		CTIT: "seconds", MediaID: "media", AdID: "ad",
	}
	events, err := s.ReadEvents(context.Background(), path, cols)
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].DeviceID != "5" || events[0].AdID != 2 {
		t.Errorf("events = %+v", events)
	}

	if _, err := s.ReadEvents(context.Background(), path, ingest.DefaultEventColumns()); err == nil {
		t.Error("ReadEvents() with missing columns should fail")
	}
}

func TestReadAds(t *testing.T) {
	s := openTestStore(t)
	path := writeFile(t, "ads.csv", `ads_idx,ads_type,ads_category,ads_name
900,1,3,Spring sale
900,2,4,Duplicate
abc,1,1,Broken id
`)
	ads, err := s.ReadAds(context.Background(), path, ingest.DefaultAdColumns())
	if err != nil {
		t.Fatalf("ReadAds() error = %v", err)
	}
	if len(ads) != 2 {
		t.Fatalf("len(ads) = %d, want 2 (unparseable id skipped)", len(ads))
	}
	if ads[0] != (ingest.AdMetadata{AdID: 900, AdType: 1, AdCategory: 3, AdName: "Spring sale"}) {
		t.Errorf("ads[0] = %+v", ads[0])
	}
}

func TestLoadHostnames(t *testing.T) {
	path := writeFile(t, "ip_cache.json", `{"10.0.0.1": "ec2-10-0-0-1.compute.amazonaws.com", "10.0.0.2": null}`)
	hosts, err := LoadHostnames(path)
	if err != nil {
		t.Fatalf("LoadHostnames() error = %v", err)
	}
	if hosts["10.0.0.1"] != "ec2-10-0-0-1.compute.amazonaws.com" || hosts["10.0.0.2"] != "" {
		t.Errorf("hosts = %v", hosts)
	}

	for _, p := range []string{"", filepath.Join(t.TempDir(), "missing.json")} {
		hosts, err := LoadHostnames(p)
		if err != nil || len(hosts) != 0 {
			t.Errorf("LoadHostnames(%q) = %v, %v; want empty map", p, hosts, err)
		}
	}

	if _, err := LoadHostnames(writeFile(t, "bad.json", "[1, 2")); err == nil {
		t.Error("LoadHostnames() of corrupt file should fail")
	}
}

func countRows(t *testing.T, s *Store, path string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT count(*) FROM " + csvSource(path)).Scan(&n); err != nil {
		t.Fatalf("count rows of %s: %v", path, err)
	}
	return n
}

func TestExportScored(t *testing.T) {
	s := openTestStore(t)
	done := time.Date(2026, 3, 14, 3, 1, 0, 0, time.UTC)
	scored := []detection.ScoredRecord{
		{
			Record: ingest.Record{
				Seq: 0, DeviceID: 1, UserIP: "10.0.0.1",
				ClickTime: time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC), DoneTime: &done,
				CTIT: 60, MediaID: 7, AdID: 900, Hostname: "unknown", ClicksInWindow: 1,
			},
			Features:   detection.Features{TimeSincePrev: math.NaN(), DeviceClicks: 1},
			Mode:       detection.ModeConversion,
			Scores:     map[detection.RuleID]int{detection.RuleSuspiciousSingleConv: 30},
			AbuseScore: 30,
			Tags:       []string{"[Suspicious_Single_Conversion]"},
		},
		{
			Record: ingest.Record{
				Seq: 1, DeviceID: 2,
				ClickTime: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
				CTIT:      math.NaN(), MediaID: 8, AdID: 901, Hostname: "unknown", ClicksInWindow: 1,
			},
			Features: detection.Features{TimeSincePrev: math.NaN(), DeviceClicks: 1},
			Mode:     detection.ModeClick,
			Scores:   map[detection.RuleID]int{},
		},
	}

	path := filepath.Join(t.TempDir(), "scored.csv")
	if err := s.ExportScored(context.Background(), path, FormatCSV, scored); err != nil {
		t.Fatalf("ExportScored() error = %v", err)
	}
	if n := countRows(t, s, path); n != 2 {
		t.Errorf("exported rows = %d, want 2", n)
	}

	var score int
	var tags string
	q := "SELECT score_suspicious_single_conv, tags FROM " + csvSource(path) + " WHERE dvc_idx = '1'"
	if err := s.db.QueryRow(q).Scan(&score, &tags); err != nil {
		t.Fatalf("query export: %v", err)
	}
	if score != 30 || tags != "[Suspicious_Single_Conversion]" {
		t.Errorf("exported score %d tags %q", score, tags)
	}
}

func TestExportReports(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	bl := detection.Blocklist{
		Devices:      []int64{2},
		Distribution: []detection.DeviceScore{{DeviceID: 1, MaxScore: 10}, {DeviceID: 2, MaxScore: 90}},
		Threshold:    50,
	}
	blPath := filepath.Join(dir, "blocklist.csv")
	if err := s.ExportBlocklist(ctx, blPath, FormatCSV, bl); err != nil {
		t.Fatalf("ExportBlocklist() error = %v", err)
	}
	if n := countRows(t, s, blPath); n != 1 {
		t.Errorf("blocklist rows = %d, want 1", n)
	}

	devPath := filepath.Join(dir, "devices.csv")
	devices := []analysis.DeviceReportRow{{DeviceID: 2, MaxScore: 90, Rules: []string{"Click burst", "Rapid click"}}}
	if err := s.ExportDeviceReport(ctx, devPath, FormatCSV, devices); err != nil {
		t.Fatalf("ExportDeviceReport() error = %v", err)
	}
	if n := countRows(t, s, devPath); n != 1 {
		t.Errorf("device rows = %d, want 1", n)
	}

	mediaPath := filepath.Join(dir, "media.csv")
	media := []analysis.MediaReportRow{{MediaID: 7, BlockedDevices: 1, SharePct: 100}, {MediaID: 8, BlockedDevices: 1, SharePct: 100}}
	if err := s.ExportMediaReport(ctx, mediaPath, FormatCSV, media); err != nil {
		t.Fatalf("ExportMediaReport() error = %v", err)
	}
	if n := countRows(t, s, mediaPath); n != 2 {
		t.Errorf("media rows = %d, want 2", n)
	}
}

func TestExport_Options(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.ExportBlocklist(ctx, "", FormatCSV, detection.Blocklist{}); err != nil {
		t.Errorf("empty path should skip the export, got %v", err)
	}
	err := s.ExportBlocklist(ctx, filepath.Join(t.TempDir(), "out.xlsx"), "xlsx", detection.Blocklist{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}
