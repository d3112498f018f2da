// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

// Package ingest turns raw ad-event rows into cleaned, feature-enriched records
// ready for scoring.
//
// Prepare joins events with ad metadata and the IP hostname cache, drops
// untrackable devices, parses timestamps, computes the rolling per-device click
// count and the per-media aggregates, and finally partitions the batch into
// complete (conversion) and incomplete (click-only) records.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrNoData is returned when no analyzable record survives cleaning.
	ErrNoData = errors.New("no analyzable data")

	// ErrInvalidTimestamp is returned when a click timestamp cannot be parsed.
	ErrInvalidTimestamp = errors.New("invalid click timestamp")
)

// RawEvent is one input row as read from the event log.
type RawEvent struct {
	// DeviceID is the raw device cell; it is coerced to an integer during Prepare.
	DeviceID DeviceCell `json:"dvc_idx"`
	// UserIP is empty when the IP is unknown.
	UserIP    string   `json:"user_ip"`
	ClickDate string   `json:"click_date"`
	DoneDate  string   `json:"done_date,omitempty"`
	CTIT      *float64 `json:"ctit,omitempty"`
	MediaID   int64    `json:"mda_idx"`
	AdID      int64    `json:"ads_idx"`

	// NoMedia marks a missing or unparseable media id. Such rows are scored
	// but left out of the per-media aggregates.
	NoMedia bool `json:"-"`
}

// UnmarshalJSON decodes an event, setting NoMedia when mda_idx is absent or null.
func (e *RawEvent) UnmarshalJSON(data []byte) error {
	type plain RawEvent
	if err := json.Unmarshal(data, (*plain)(e)); err != nil {
		return err
	}
	var media struct {
		MediaID *int64 `json:"mda_idx"`
	}
	if err := json.Unmarshal(data, &media); err != nil {
		return err
	}
	e.NoMedia = media.MediaID == nil
	if e.NoMedia {
		e.MediaID = 0
	}
	return nil
}

// DeviceCell is a raw device id. In JSON it may be a number or a string.
type DeviceCell string

// UnmarshalJSON accepts a JSON string, number or null.
func (c *DeviceCell) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = DeviceCell(s)
		return nil
	}
	var n json.Number
	if len(data) == 0 || (data[0] != '-' && (data[0] < '0' || data[0] > '9')) {
		return fmt.Errorf("dvc_idx must be a number or a string, got %s", data)
	}
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("dvc_idx must be a number or a string: %w", err)
	}
	*c = DeviceCell(n.String())
	return nil
}

// AdMetadata describes one advertisement.
type AdMetadata struct {
	AdID       int64  `json:"ads_idx"`
	AdType     int    `json:"ads_type"`
	AdCategory int    `json:"ads_category"`
	AdName     string `json:"ads_name,omitempty"`
}

// HostnameMap resolves an IP address to its reverse-DNS hostname.
type HostnameMap map[string]string

// Record is one cleaned event. Records are values; copying a Record never
// shares mutable state except the DoneTime pointer, which is never written
// after Prepare.
type Record struct {
	// Seq is the row's position in the raw input and identifies the record.
	Seq      int
	DeviceID int64
	UserIP   string

	ClickTime time.Time
	DoneTime  *time.Time

	// CTIT is click-to-install time in seconds, NaN when absent.
	CTIT float64

	MediaID       int64
	AdID          int64
	AdType        int
	AdCategory    int
	AdName        string
	HasAdMetadata bool

	Hostname string
	IsCloud  bool

	// ClicksInWindow counts this device's clicks in the trailing window ending
	// at ClickTime, including this one.
	ClicksInWindow int

	// NoMedia is copied from the raw event.
	NoMedia bool
}

// HasCTIT reports whether the record carries a click-to-install time.
func (r *Record) HasCTIT() bool {
	return !math.IsNaN(r.CTIT)
}

// HasIP reports whether the record carries a user IP.
func (r *Record) HasIP() bool {
	return r.UserIP != ""
}

// Converted reports whether the click led to a conversion.
func (r *Record) Converted() bool {
	return r.DoneTime != nil
}

// MediaStats aggregates clicks and conversions for one media placement.
type MediaStats struct {
	Clicks      int     `json:"clicks"`
	Conversions int     `json:"conversions"`
	CVR         float64 `json:"cvr"`
}

// Batch is the output of Prepare.
type Batch struct {
	// Full holds every cleaned record, sorted by device then click time.
	Full []Record
	// Complete holds records with CTIT and IP present.
	Complete []Record
	// Incomplete holds every other record.
	Incomplete []Record
	// Media maps media id to its aggregate stats over Full.
	Media map[int64]MediaStats
	// DroppedDevices counts rows removed for a missing or zero device id.
	DroppedDevices int
}

// MediaClicks returns the per-media click counts.
func (b *Batch) MediaClicks() map[int64]int {
	out := make(map[int64]int, len(b.Media))
	for id, s := range b.Media {
		out[id] = s.Clicks
	}
	return out
}

// MediaCVR returns the per-media conversion rates.
func (b *Batch) MediaCVR() map[int64]float64 {
	out := make(map[int64]float64, len(b.Media))
	for id, s := range b.Media {
		out[id] = s.CVR
	}
	return out
}
