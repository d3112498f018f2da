// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package ingest

import (
	"errors"
	"testing"
	"time"
)

func ctit(v float64) *float64 { return &v }

func TestPrepare_EmptyInput(t *testing.T) {
	t.Parallel()

	batch, err := Prepare(nil, nil, nil, DefaultOptions())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if batch == nil || len(batch.Full) != 0 {
		t.Errorf("expected empty non-nil batch, got %+v", batch)
	}
}

func TestPrepare_AllDevicesDropped(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{DeviceID: "0", ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "", ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "nan", ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "12.5", ClickDate: "2024-05-01 10:00:00"},
	}
	batch, err := Prepare(events, nil, nil, DefaultOptions())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if batch.DroppedDevices != 4 {
		t.Errorf("DroppedDevices = %d, want 4", batch.DroppedDevices)
	}
}

func TestPrepare_InvalidTimestamp(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{DeviceID: "1", ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "2", ClickDate: "yesterday-ish"},
	}
	_, err := Prepare(events, nil, nil, DefaultOptions())
	if !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("err = %v, want ErrInvalidTimestamp", err)
	}
}

func TestPrepare_DeviceCoercion(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{DeviceID: "42", ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: " 43.0 ", ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "0.0", ClickDate: "2024-05-01 10:00:00"},
	}
	batch, err := Prepare(events, nil, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(batch.Full) != 2 {
		t.Fatalf("len(Full) = %d, want 2", len(batch.Full))
	}
	if batch.Full[0].DeviceID != 42 || batch.Full[1].DeviceID != 43 {
		t.Errorf("device ids = %d, %d, want 42, 43", batch.Full[0].DeviceID, batch.Full[1].DeviceID)
	}
	if batch.DroppedDevices != 1 {
		t.Errorf("DroppedDevices = %d, want 1", batch.DroppedDevices)
	}
}

func TestPrepare_HostnameAndCloudFlag(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{DeviceID: "1", UserIP: "10.0.0.1", ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "2", UserIP: "10.0.0.2", ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "3", UserIP: "", ClickDate: "2024-05-01 10:00:00"},
	}
	hosts := HostnameMap{"10.0.0.1": "ec2-10-0-0-1.compute-1.AmazonAWS.com"}

	batch, err := Prepare(events, nil, hosts, DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	byDevice := map[int64]Record{}
	for _, r := range batch.Full {
		byDevice[r.DeviceID] = r
	}
	if !byDevice[1].IsCloud {
		t.Error("device 1 should be on a cloud IP")
	}
	if byDevice[2].Hostname != "unknown" || byDevice[2].IsCloud {
		t.Errorf("device 2 hostname = %q cloud = %v, want unknown/false", byDevice[2].Hostname, byDevice[2].IsCloud)
	}
	if byDevice[3].Hostname != "unknown" {
		t.Errorf("device 3 hostname = %q, want unknown", byDevice[3].Hostname)
	}
}

func TestPrepare_AdMetadataFirstOccurrence(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{DeviceID: "1", AdID: 7, ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "1", AdID: 8, ClickDate: "2024-05-01 10:01:00"},
	}
	ads := []AdMetadata{
		{AdID: 7, AdType: 1, AdCategory: 3, AdName: "first"},
		{AdID: 7, AdType: 2, AdCategory: 4, AdName: "dup"},
	}

	batch, err := Prepare(events, ads, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(batch.Full) != 2 {
		t.Fatalf("duplicate metadata multiplied rows: got %d", len(batch.Full))
	}
	if r := batch.Full[0]; !r.HasAdMetadata || r.AdName != "first" || r.AdType != 1 {
		t.Errorf("ad 7 joined as %+v, want first occurrence", r)
	}
	if batch.Full[1].HasAdMetadata {
		t.Error("ad 8 has no metadata and must stay unjoined")
	}
}

func TestPrepare_RollingWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	at := func(sec int) string { return base.Add(time.Duration(sec) * time.Second).Format("2006-01-02 15:04:05") }

	events := []RawEvent{
		{DeviceID: "1", ClickDate: at(200)},
		{DeviceID: "1", ClickDate: at(0)},
		{DeviceID: "1", ClickDate: at(100)},
		{DeviceID: "1", ClickDate: at(600)},
		{DeviceID: "2", ClickDate: at(0)},
	}
	batch, err := Prepare(events, nil, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	want := []struct {
		device int64
		count  int
	}{
		{1, 1}, // t=0
		{1, 2}, // t=100
		{1, 3}, // t=200
		{1, 1}, // t=600, everything else is older than 300s
		{2, 1},
	}
	for i, w := range want {
		r := batch.Full[i]
		if r.DeviceID != w.device || r.ClicksInWindow != w.count {
			t.Errorf("Full[%d] = device %d count %d, want device %d count %d",
				i, r.DeviceID, r.ClicksInWindow, w.device, w.count)
		}
	}
}

func TestPrepare_RollingWindowBoundaryAndTies(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{DeviceID: "1", ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "1", ClickDate: "2024-05-01 10:05:00"}, // exactly 5 minutes later
		{DeviceID: "1", ClickDate: "2024-05-01 10:05:00"},
	}
	batch, err := Prepare(events, nil, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	got := []int{batch.Full[0].ClicksInWindow, batch.Full[1].ClicksInWindow, batch.Full[2].ClicksInWindow}
	want := []int{1, 2, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ClicksInWindow[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPrepare_MediaStatsBeforePartition(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{DeviceID: "1", UserIP: "1.1.1.1", MediaID: 5, ClickDate: "2024-05-01 10:00:00", DoneDate: "2024-05-01 10:00:30", CTIT: ctit(30)},
		{DeviceID: "2", UserIP: "1.1.1.2", MediaID: 5, ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "3", MediaID: 5, ClickDate: "2024-05-01 10:00:00", DoneDate: "2024-05-01 11:00:00"},
		{DeviceID: "0", MediaID: 5, ClickDate: "2024-05-01 10:00:00", DoneDate: "2024-05-01 11:00:00"},
		{DeviceID: "4", MediaID: 9, ClickDate: "2024-05-01 10:00:00"},
	}
	batch, err := Prepare(events, nil, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	m5 := batch.Media[5]
	if m5.Clicks != 3 || m5.Conversions != 2 {
		t.Errorf("media 5 = %+v, want 3 clicks 2 conversions", m5)
	}
	if want := 2.0 / 3.0; m5.CVR != want {
		t.Errorf("media 5 CVR = %v, want %v", m5.CVR, want)
	}
	if batch.Media[9].CVR != 0 {
		t.Errorf("media 9 CVR = %v, want 0", batch.Media[9].CVR)
	}
	if got := batch.MediaClicks()[5]; got != 3 {
		t.Errorf("MediaClicks()[5] = %d, want 3", got)
	}
}

func TestPrepare_MissingMediaExcludedFromStats(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{DeviceID: "1", MediaID: 0, ClickDate: "2024-05-01 10:00:00", DoneDate: "2024-05-01 10:01:00"},
		{DeviceID: "2", NoMedia: true, ClickDate: "2024-05-01 10:00:00", DoneDate: "2024-05-01 10:01:00"},
		{DeviceID: "3", NoMedia: true, ClickDate: "2024-05-01 10:00:00"},
	}
	batch, err := Prepare(events, nil, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(batch.Full) != 3 {
		t.Fatalf("records = %d, want 3", len(batch.Full))
	}
	if got := batch.Media[0]; got.Clicks != 1 || got.Conversions != 1 {
		t.Errorf("media 0 = %+v, want only the row with a real media id", got)
	}
	if len(batch.Media) != 1 {
		t.Errorf("media keys = %v, want only 0", batch.Media)
	}
	for _, r := range batch.Full {
		if want := r.DeviceID != 1; r.NoMedia != want {
			t.Errorf("device %d NoMedia = %v, want %v", r.DeviceID, r.NoMedia, want)
		}
	}
}

func TestPrepare_PartitionExhaustiveAndDisjoint(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{DeviceID: "1", UserIP: "1.1.1.1", ClickDate: "2024-05-01 10:00:00", CTIT: ctit(12)},
		{DeviceID: "1", UserIP: "", ClickDate: "2024-05-01 10:01:00", CTIT: ctit(12)},
		{DeviceID: "2", UserIP: "1.1.1.2", ClickDate: "2024-05-01 10:02:00"},
		{DeviceID: "3", UserIP: "1.1.1.3", ClickDate: "2024-05-01 10:03:00", CTIT: ctit(0)},
		{DeviceID: "4", ClickDate: "2024-05-01 10:04:00"},
	}
	batch, err := Prepare(events, nil, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	seen := map[int]int{}
	for _, r := range batch.Complete {
		seen[r.Seq]++
		if !r.HasCTIT() || !r.HasIP() {
			t.Errorf("record %d in complete without CTIT and IP", r.Seq)
		}
	}
	for _, r := range batch.Incomplete {
		seen[r.Seq]++
	}
	if len(seen) != len(batch.Full) {
		t.Errorf("partition covers %d records, full has %d", len(seen), len(batch.Full))
	}
	for seq, n := range seen {
		if n != 1 {
			t.Errorf("record %d appears %d times across subsets", seq, n)
		}
	}
	if len(batch.Complete) != 2 {
		t.Errorf("len(Complete) = %d, want 2", len(batch.Complete))
	}
}

func TestPrepare_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{DeviceID: "2", ClickDate: "2024-05-01 10:00:00"},
		{DeviceID: "1", ClickDate: "2024-05-01 09:00:00"},
	}
	if _, err := Prepare(events, nil, nil, DefaultOptions()); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if events[0].DeviceID != "2" || events[1].DeviceID != "1" {
		t.Error("Prepare reordered its input")
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 5, 1, 3, 4, 5, 0, time.UTC)
	for _, in := range []string{
		"2024-05-01 03:04:05",
		"2024-05-01T03:04:05",
		"2024-05-01T03:04:05Z",
		"2024-05-01T05:04:05+02:00",
		"2024/05/01 03:04:05",
	} {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}

	// An explicit offset keeps its wall-clock hour.
	got, err := ParseTimestamp("2026-03-14T03:30:00+09:00")
	if err != nil {
		t.Fatalf("ParseTimestamp with offset: %v", err)
	}
	if got.Hour() != 3 {
		t.Errorf("hour with +09:00 offset = %d, want 3", got.Hour())
	}
	if !got.Equal(time.Date(2026, 3, 13, 18, 30, 0, 0, time.UTC)) {
		t.Errorf("instant with +09:00 offset = %v", got.UTC())
	}
	if got, err := ParseTimestamp("2026-03-14 03:30:00"); err != nil || got.Location() != time.UTC {
		t.Errorf("zone-less layout should parse as UTC: %v, %v", got, err)
	}

	if got, err := ParseTimestamp("2024-05-01 03:04:05.250"); err != nil || got.Nanosecond() != 250000000 {
		t.Errorf("fractional seconds: got %v, %v", got, err)
	}
	for _, bad := range []string{"", "   ", "05/01/2024", "not a date"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Errorf("ParseTimestamp(%q) should fail", bad)
		}
	}
}
