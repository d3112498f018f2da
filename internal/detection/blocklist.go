// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package detection

import (
	"fmt"
	"math"
	"sort"

	"github.com/tomtom215/clickshield/internal/stats"
)

// Method selects how the blocklist threshold is chosen.
type Method string

const (
	// MethodPercentile takes the threshold from the device score distribution.
	MethodPercentile Method = "percentile"
	// MethodAbsolute uses a fixed threshold.
	MethodAbsolute Method = "absolute"
)

// Sensitivity is a named percentile preset.
type Sensitivity string

const (
	SensitivityRelaxed Sensitivity = "relaxed"
	SensitivityAverage Sensitivity = "average"
	SensitivityStrict  Sensitivity = "strict"
)

var sensitivityPercentiles = map[Sensitivity]float64{
	SensitivityRelaxed: 0.85,
	SensitivityAverage: 0.95,
	SensitivityStrict:  0.97,
}

// Percentile returns the preset percentile and whether s is a known preset.
func (s Sensitivity) Percentile() (float64, bool) {
	p, ok := sensitivityPercentiles[s]
	return p, ok
}

// BlocklistPolicy configures DeriveBlocklist.
type BlocklistPolicy struct {
	Method Method `koanf:"method" json:"method" validate:"omitempty,oneof=percentile absolute"`

	// Percentile is used by MethodPercentile when Sensitivity is empty.
	Percentile float64 `koanf:"percentile" json:"percentile" validate:"gte=0,lte=1"`

	// AbsoluteScoreThreshold is used by MethodAbsolute.
	AbsoluteScoreThreshold float64 `koanf:"absolute_score_threshold" json:"absolute_score_threshold" validate:"gte=0"`

	// Sensitivity, when set, overrides Percentile with a preset.
	Sensitivity Sensitivity `koanf:"sensitivity" json:"sensitivity,omitempty" validate:"omitempty,oneof=relaxed average strict"`
}

// DefaultBlocklistPolicy returns the 95th percentile policy.
func DefaultBlocklistPolicy() BlocklistPolicy {
	return BlocklistPolicy{
		Method:                 MethodPercentile,
		Percentile:             0.95,
		AbsoluteScoreThreshold: 100,
	}
}

// EffectivePercentile returns the percentile after applying Sensitivity.
func (p BlocklistPolicy) EffectivePercentile() float64 {
	if v, ok := p.Sensitivity.Percentile(); ok {
		return v
	}
	return p.Percentile
}

// Validate checks the method, sensitivity and percentile.
func (p BlocklistPolicy) Validate() error {
	switch p.Method {
	case MethodPercentile, MethodAbsolute:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBlocklistMethod, p.Method)
	}
	if p.Sensitivity != "" {
		if _, ok := p.Sensitivity.Percentile(); !ok {
			return fmt.Errorf("unknown blocklist sensitivity %q", p.Sensitivity)
		}
	}
	if p.Method == MethodPercentile {
		pct := p.EffectivePercentile()
		if math.IsNaN(pct) || pct < 0 || pct > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidPercentile, pct)
		}
	}
	return nil
}

// DeviceScore is a device's maximum abuse score over its records.
type DeviceScore struct {
	DeviceID int64 `json:"dvc_idx"`
	MaxScore int   `json:"max_score"`
}

// Blocklist is the result of DeriveBlocklist.
type Blocklist struct {
	// Devices are the blocked device ids in ascending order.
	Devices []int64 `json:"devices"`
	// Distribution holds every device with a positive score, ascending by device.
	Distribution []DeviceScore `json:"distribution"`
	Threshold    float64       `json:"threshold"`
	Method       Method        `json:"method"`
}

// Blocked reports whether device is on the blocklist.
func (b *Blocklist) Blocked(device int64) bool {
	i := sort.Search(len(b.Devices), func(i int) bool { return b.Devices[i] >= device })
	return i < len(b.Devices) && b.Devices[i] == device
}

// DeriveBlocklist blocks every device whose maximum abuse score is at or above
// the policy threshold. Records with a zero score are ignored; when none
// remain the result is empty with a zero threshold.
func DeriveBlocklist(scored []ScoredRecord, policy BlocklistPolicy) (Blocklist, error) {
	if err := policy.Validate(); err != nil {
		return Blocklist{}, err
	}

	maxByDevice := make(map[int64]int)
	for i := range scored {
		s := scored[i].AbuseScore
		if s <= 0 {
			continue
		}
		if cur, ok := maxByDevice[scored[i].DeviceID]; !ok || s > cur {
			maxByDevice[scored[i].DeviceID] = s
		}
	}

	bl := Blocklist{
		Devices:      []int64{},
		Distribution: make([]DeviceScore, 0, len(maxByDevice)),
		Method:       policy.Method,
	}
	if len(maxByDevice) == 0 {
		return bl, nil
	}

	values := make([]float64, 0, len(maxByDevice))
	for id, s := range maxByDevice {
		bl.Distribution = append(bl.Distribution, DeviceScore{DeviceID: id, MaxScore: s})
		values = append(values, float64(s))
	}
	sort.Slice(bl.Distribution, func(i, j int) bool {
		return bl.Distribution[i].DeviceID < bl.Distribution[j].DeviceID
	})

	if policy.Method == MethodAbsolute {
		bl.Threshold = policy.AbsoluteScoreThreshold
	} else {
		bl.Threshold = stats.Quantile(values, policy.EffectivePercentile())
	}

	for _, d := range bl.Distribution {
		if float64(d.MaxScore) >= bl.Threshold {
			bl.Devices = append(bl.Devices, d.DeviceID)
		}
	}
	return bl, nil
}
