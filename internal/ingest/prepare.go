// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package ingest

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/clickshield/internal/hostmatch"
	"github.com/tomtom215/clickshield/internal/logging"
)

// DefaultUnknownHostname is assigned to IPs missing from the hostname map.
const DefaultUnknownHostname = "unknown"

// DefaultWindow is the rolling click window length.
const DefaultWindow = 5 * time.Minute

// Options configures Prepare.
type Options struct {
	// Window is the trailing window used for ClicksInWindow.
	Window time.Duration
	// CloudMarkers are hostname substrings identifying cloud providers.
	CloudMarkers []string
	// UnknownHostname replaces unresolved hostnames.
	UnknownHostname string
}

// DefaultOptions returns the standard ingestion options.
func DefaultOptions() Options {
	return Options{
		Window:          DefaultWindow,
		CloudMarkers:    hostmatch.DefaultCloudMarkers,
		UnknownHostname: DefaultUnknownHostname,
	}
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.CloudMarkers == nil {
		o.CloudMarkers = hostmatch.DefaultCloudMarkers
	}
	if o.UnknownHostname == "" {
		o.UnknownHostname = DefaultUnknownHostname
	}
	return o
}

// Prepare cleans events and derives the batch-level features.
//
// It never mutates its arguments. An unparseable click timestamp fails the
// whole batch with an error wrapping ErrInvalidTimestamp. When nothing survives
// cleaning, Prepare returns an empty Batch together with ErrNoData.
func Prepare(events []RawEvent, ads []AdMetadata, hosts HostnameMap, opts Options) (*Batch, error) {
	opts = opts.withDefaults()
	matcher := hostmatch.New(opts.CloudMarkers)
	adIndex := indexAds(ads)

	batch := &Batch{Media: make(map[int64]MediaStats)}
	records := make([]Record, 0, len(events))

	for i := range events {
		ev := &events[i]

		deviceID, ok := parseDeviceID(string(ev.DeviceID))
		if !ok {
			batch.DroppedDevices++
			continue
		}

		clickTime, err := ParseTimestamp(ev.ClickDate)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidTimestamp, i, err)
		}

		rec := Record{
			Seq:       i,
			DeviceID:  deviceID,
			UserIP:    strings.TrimSpace(ev.UserIP),
			ClickTime: clickTime,
			CTIT:      math.NaN(),
			MediaID:   ev.MediaID,
			AdID:      ev.AdID,
			NoMedia:   ev.NoMedia,
		}
		if done, err := ParseTimestamp(ev.DoneDate); err == nil {
			rec.DoneTime = &done
		}
		if ev.CTIT != nil && !math.IsNaN(*ev.CTIT) {
			rec.CTIT = *ev.CTIT
		}
		if ad, ok := adIndex[ev.AdID]; ok {
			rec.AdType = ad.AdType
			rec.AdCategory = ad.AdCategory
			rec.AdName = ad.AdName
			rec.HasAdMetadata = true
		}

		rec.Hostname = opts.UnknownHostname
		if rec.HasIP() {
			if h := strings.TrimSpace(hosts[rec.UserIP]); h != "" {
				rec.Hostname = h
			}
		}
		rec.IsCloud = matcher.IsCloud(rec.Hostname)

		records = append(records, rec)
	}

	if batch.DroppedDevices > 0 {
		logging.Debug().Int("dropped", batch.DroppedDevices).Msg("Dropped rows without a usable device id")
	}
	if len(records) == 0 {
		return batch, ErrNoData
	}

	SortRecords(records)
	countWindowClicks(records, opts.Window)
	batch.Media = mediaStats(records)
	batch.Full = records
	batch.Complete, batch.Incomplete = Partition(records)

	return batch, nil
}

// indexAds keeps the first metadata row per ad id.
func indexAds(ads []AdMetadata) map[int64]AdMetadata {
	idx := make(map[int64]AdMetadata, len(ads))
	for _, ad := range ads {
		if _, seen := idx[ad.AdID]; !seen {
			idx[ad.AdID] = ad
		}
	}
	return idx
}

// parseDeviceID coerces a raw device cell. Missing, non-numeric, fractional and
// zero ids are rejected.
func parseDeviceID(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
			f > math.MaxInt64 || f < math.MinInt64 {
			return 0, false
		}
		id = int64(f)
	}
	return id, id != 0
}

// SortRecords orders records by device, click time, then input position.
func SortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := &records[i], &records[j]
		if a.DeviceID != b.DeviceID {
			return a.DeviceID < b.DeviceID
		}
		if !a.ClickTime.Equal(b.ClickTime) {
			return a.ClickTime.Before(b.ClickTime)
		}
		return a.Seq < b.Seq
	})
}

// countWindowClicks fills ClicksInWindow over records sorted by SortRecords.
// The window is (t-window, t]; clicks sharing a timestamp share a count.
func countWindowClicks(records []Record, window time.Duration) {
	start := 0
	for start < len(records) {
		end := start
		for end < len(records) && records[end].DeviceID == records[start].DeviceID {
			end++
		}

		lo, hi := start, start
		for i := start; i < end; i++ {
			t := records[i].ClickTime
			cutoff := t.Add(-window)
			for lo < i && !records[lo].ClickTime.After(cutoff) {
				lo++
			}
			if hi < i {
				hi = i
			}
			for hi+1 < end && records[hi+1].ClickTime.Equal(t) {
				hi++
			}
			records[i].ClicksInWindow = hi - lo + 1
		}
		start = end
	}
}

func mediaStats(records []Record) map[int64]MediaStats {
	stats := make(map[int64]MediaStats)
	for i := range records {
		if records[i].NoMedia {
			continue
		}
		s := stats[records[i].MediaID]
		s.Clicks++
		if records[i].Converted() {
			s.Conversions++
		}
		stats[records[i].MediaID] = s
	}
	for id, s := range stats {
		if s.Clicks > 0 {
			s.CVR = float64(s.Conversions) / float64(s.Clicks)
		}
		stats[id] = s
	}
	return stats
}

// Partition splits records into complete (CTIT and IP present) and incomplete.
// Relative order is preserved in both outputs.
func Partition(records []Record) (complete, incomplete []Record) {
	complete = make([]Record, 0, len(records))
	incomplete = make([]Record, 0, len(records))
	for i := range records {
		if records[i].HasCTIT() && records[i].HasIP() {
			complete = append(complete, records[i])
		} else {
			incomplete = append(incomplete, records[i])
		}
	}
	return complete, incomplete
}
