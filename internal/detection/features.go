// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package detection

import (
	"math"

	"github.com/tomtom215/clickshield/internal/ingest"
	"github.com/tomtom215/clickshield/internal/stats"
)

// Features are the per-record values derived from the record set being scored.
type Features struct {
	// TimeSincePrev is seconds since the device's previous click, NaN for its first.
	TimeSincePrev float64 `json:"time_since_prev"`
	DeviceClicks  int     `json:"device_clicks"`
	Hour          int     `json:"hour"`
	DeviceMedia   int     `json:"device_media"`
	// IPDevices is the number of distinct devices seen on the record's IP, 0 without an IP.
	IPDevices int `json:"ip_devices"`
	DeviceIPs int `json:"device_ips"`
	// CTITStdDev is the sample standard deviation of the device's CTIT values, 0
	// when the device has fewer than two.
	CTITStdDev float64 `json:"ctit_std"`
}

type deviceAgg struct {
	clicks int
	media  map[int64]struct{}
	ips    map[string]struct{}
	ctit   []float64
	deltas []float64
}

// deriveFeatures computes features for records, which must be sorted by device
// then click time. The returned slice is parallel to records. Per-device CTIT
// and click delta samples are returned for the anomaly models.
func deriveFeatures(records []ingest.Record) (feats []Features, ctit, deltas map[int64][]float64) {
	devices := make(map[int64]*deviceAgg)
	ipDevices := make(map[string]map[int64]struct{})

	feats = make([]Features, len(records))
	for i := range records {
		r := &records[i]
		agg, ok := devices[r.DeviceID]
		if !ok {
			agg = &deviceAgg{
				media: make(map[int64]struct{}),
				ips:   make(map[string]struct{}),
			}
			devices[r.DeviceID] = agg
		}

		feats[i].TimeSincePrev = math.NaN()
		if i > 0 && records[i-1].DeviceID == r.DeviceID {
			feats[i].TimeSincePrev = r.ClickTime.Sub(records[i-1].ClickTime).Seconds()
			agg.deltas = append(agg.deltas, feats[i].TimeSincePrev)
		}
		feats[i].Hour = r.ClickTime.Hour()

		agg.clicks++
		if !r.NoMedia {
			agg.media[r.MediaID] = struct{}{}
		}
		if r.HasIP() {
			agg.ips[r.UserIP] = struct{}{}
			set, ok := ipDevices[r.UserIP]
			if !ok {
				set = make(map[int64]struct{})
				ipDevices[r.UserIP] = set
			}
			set[r.DeviceID] = struct{}{}
		}
		if r.HasCTIT() {
			agg.ctit = append(agg.ctit, r.CTIT)
		}
	}

	ctit = make(map[int64][]float64, len(devices))
	deltas = make(map[int64][]float64, len(devices))
	stdDev := make(map[int64]float64, len(devices))
	for id, agg := range devices {
		ctit[id] = agg.ctit
		deltas[id] = agg.deltas
		sd := stats.SampleStdDev(agg.ctit)
		if math.IsNaN(sd) {
			sd = 0
		}
		stdDev[id] = sd
	}

	for i := range records {
		r := &records[i]
		agg := devices[r.DeviceID]
		feats[i].DeviceClicks = agg.clicks
		feats[i].DeviceMedia = len(agg.media)
		feats[i].DeviceIPs = len(agg.ips)
		feats[i].CTITStdDev = stdDev[r.DeviceID]
		if r.HasIP() {
			feats[i].IPDevices = len(ipDevices[r.UserIP])
		}
	}
	return feats, ctit, deltas
}
