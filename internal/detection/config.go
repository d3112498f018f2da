// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package detection

import (
	"fmt"
	"time"
)

// BurstAttackConfig configures the short-window click burst rule.
type BurstAttackConfig struct {
	// ThresholdClicks is the number of clicks in the window that must be exceeded.
	ThresholdClicks int `koanf:"threshold_clicks" json:"threshold_clicks" validate:"min=1"`

	// WindowMinutes is the trailing window length used for the rolling count.
	WindowMinutes int `koanf:"window_min" json:"window_min" validate:"min=1,max=1440"`

	Score int `koanf:"score" json:"score" validate:"min=0"`
}

// Window returns the rolling window as a duration.
func (c BurstAttackConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// DefaultBurstAttackConfig returns sensible defaults.
func DefaultBurstAttackConfig() BurstAttackConfig {
	return BurstAttackConfig{ThresholdClicks: 15, WindowMinutes: 5, Score: 15}
}

// MediaConcentrationConfig configures the media concentration rule.
type MediaConcentrationConfig struct {
	// ThresholdClicks is the device click count that must be exceeded.
	ThresholdClicks int `koanf:"threshold_clicks" json:"threshold_clicks" validate:"min=1"`

	// ThresholdMedia is the distinct media count the device must stay below.
	ThresholdMedia int `koanf:"threshold_mda" json:"threshold_mda" validate:"min=1"`

	Score int `koanf:"score" json:"score" validate:"min=0"`
}

// DefaultMediaConcentrationConfig returns sensible defaults.
func DefaultMediaConcentrationConfig() MediaConcentrationConfig {
	return MediaConcentrationConfig{ThresholdClicks: 20, ThresholdMedia: 2, Score: 20}
}

// AbnormalCVRConfig configures the media conversion rate rule.
type AbnormalCVRConfig struct {
	ThresholdCVR    float64 `koanf:"threshold_cvr" json:"threshold_cvr" validate:"gte=0,lte=1"`
	ThresholdClicks int     `koanf:"threshold_clicks" json:"threshold_clicks" validate:"min=0"`
	Score           int     `koanf:"score" json:"score" validate:"min=0"`
}

// DefaultAbnormalCVRConfig returns sensible defaults.
func DefaultAbnormalCVRConfig() AbnormalCVRConfig {
	return AbnormalCVRConfig{ThresholdCVR: 0.9, ThresholdClicks: 20, Score: 45}
}

// ShortCTITConfig configures the short click-to-install rule.
type ShortCTITConfig struct {
	ThresholdSec float64 `koanf:"threshold_sec" json:"threshold_sec" validate:"gte=0"`
	Score        int     `koanf:"score" json:"score" validate:"min=0"`
}

// DefaultShortCTITConfig returns sensible defaults.
func DefaultShortCTITConfig() ShortCTITConfig {
	return ShortCTITConfig{ThresholdSec: 5, Score: 15}
}

// SuspiciousEarlyHourConfig configures the early-hour rule. StartHour and
// EndHour also define the early-hour window used by suspicious_single_conv
// and combo_stealth_bot.
type SuspiciousEarlyHourConfig struct {
	StartHour int `koanf:"start_hour" json:"start_hour" validate:"min=0,max=23"`
	EndHour   int `koanf:"end_hour" json:"end_hour" validate:"min=0,max=23,gtefield=StartHour"`

	// RapidThresholdSec is the inter-click delta below which an early-hour click is suspicious.
	RapidThresholdSec float64 `koanf:"rapid_threshold_sec" json:"rapid_threshold_sec" validate:"gte=0"`

	// CTITThresholdSec is the CTIT below which an early-hour conversion is suspicious.
	CTITThresholdSec float64 `koanf:"ctit_threshold_sec" json:"ctit_threshold_sec" validate:"gte=0"`

	Score int `koanf:"score" json:"score" validate:"min=0"`
}

// InWindow reports whether hour falls inside [StartHour, EndHour].
func (c SuspiciousEarlyHourConfig) InWindow(hour int) bool {
	return hour >= c.StartHour && hour <= c.EndHour
}

// DefaultSuspiciousEarlyHourConfig returns sensible defaults.
func DefaultSuspiciousEarlyHourConfig() SuspiciousEarlyHourConfig {
	return SuspiciousEarlyHourConfig{
		StartHour:         2,
		EndHour:           6,
		RapidThresholdSec: 2,
		CTITThresholdSec:  10,
		Score:             10,
	}
}

// ConsistentCTITConfig configures the consistent CTIT rule.
type ConsistentCTITConfig struct {
	// ThresholdStd is the CTIT standard deviation the device must stay below.
	ThresholdStd float64 `koanf:"threshold_std" json:"threshold_std" validate:"gte=0"`

	// ThresholdClicks is the device click count that must be exceeded.
	ThresholdClicks int `koanf:"threshold_clicks" json:"threshold_clicks" validate:"min=0"`

	Score int `koanf:"score" json:"score" validate:"min=0"`
}

// DefaultConsistentCTITConfig returns sensible defaults.
func DefaultConsistentCTITConfig() ConsistentCTITConfig {
	return ConsistentCTITConfig{ThresholdStd: 3.0, ThresholdClicks: 4, Score: 40}
}

// FraudLongCTITConfig configures the long CTIT rule.
type FraudLongCTITConfig struct {
	ThresholdSec float64 `koanf:"threshold_sec" json:"threshold_sec" validate:"gte=0"`
	Score        int     `koanf:"score" json:"score" validate:"min=0"`
}

// DefaultFraudLongCTITConfig returns sensible defaults.
func DefaultFraudLongCTITConfig() FraudLongCTITConfig {
	return FraudLongCTITConfig{ThresholdSec: 3600, Score: 35}
}

// ScoreOnlyConfig configures rules whose condition has no tunable threshold.
type ScoreOnlyConfig struct {
	Score int `koanf:"score" json:"score" validate:"min=0"`
}

// HeavyClickSpamConfig configures the heavy click spam rule.
type HeavyClickSpamConfig struct {
	ThresholdClicks int `koanf:"threshold_clicks" json:"threshold_clicks" validate:"min=0"`
	Score           int `koanf:"score" json:"score" validate:"min=0"`
}

// DefaultHeavyClickSpamConfig returns sensible defaults.
func DefaultHeavyClickSpamConfig() HeavyClickSpamConfig {
	return HeavyClickSpamConfig{ThresholdClicks: 50, Score: 20}
}

// RapidClickConfig configures the rapid click rule.
type RapidClickConfig struct {
	ThresholdSec float64 `koanf:"threshold_sec" json:"threshold_sec" validate:"gte=0"`
	Score        int     `koanf:"score" json:"score" validate:"min=0"`
}

// DefaultRapidClickConfig returns sensible defaults.
func DefaultRapidClickConfig() RapidClickConfig {
	return RapidClickConfig{ThresholdSec: 1.0, Score: 10}
}

// ManyDevicesPerIPConfig configures the shared IP rule. IPs with more than
// CarrierThreshold devices are assumed to be carrier-grade NAT and ignored.
type ManyDevicesPerIPConfig struct {
	ThresholdDevices int `koanf:"threshold_devices" json:"threshold_devices" validate:"min=0"`
	CarrierThreshold int `koanf:"carrier_threshold" json:"carrier_threshold" validate:"gtfield=ThresholdDevices"`
	Score            int `koanf:"score" json:"score" validate:"min=0"`
}

// DefaultManyDevicesPerIPConfig returns sensible defaults.
func DefaultManyDevicesPerIPConfig() ManyDevicesPerIPConfig {
	return ManyDevicesPerIPConfig{ThresholdDevices: 6, CarrierThreshold: 10000, Score: 25}
}

// ManyIPsPerDeviceConfig configures the IP rotation rule.
type ManyIPsPerDeviceConfig struct {
	ThresholdIPs int `koanf:"threshold_ips" json:"threshold_ips" validate:"min=0"`
	Score        int `koanf:"score" json:"score" validate:"min=0"`
}

// DefaultManyIPsPerDeviceConfig returns sensible defaults.
func DefaultManyIPsPerDeviceConfig() ManyIPsPerDeviceConfig {
	return ManyIPsPerDeviceConfig{ThresholdIPs: 15, Score: 25}
}

// Config holds the configuration of every rule.
type Config struct {
	BurstAttack          BurstAttackConfig         `koanf:"burst_attack" json:"burst_attack"`
	MediaConcentration   MediaConcentrationConfig  `koanf:"media_concentration" json:"media_concentration"`
	AbnormalCVR          AbnormalCVRConfig         `koanf:"abnormal_cvr" json:"abnormal_cvr"`
	ShortCTIT            ShortCTITConfig           `koanf:"short_ctit" json:"short_ctit"`
	SuspiciousEarlyHour  SuspiciousEarlyHourConfig `koanf:"suspicious_early_hour" json:"suspicious_early_hour"`
	ConsistentCTIT       ConsistentCTITConfig      `koanf:"consistent_ctit" json:"consistent_ctit"`
	FraudLongCTIT        FraudLongCTITConfig       `koanf:"fraud_long_ctit" json:"fraud_long_ctit"`
	SuspiciousSingleConv ScoreOnlyConfig           `koanf:"suspicious_single_conv" json:"suspicious_single_conv"`
	CTITAnomalyModel     ScoreOnlyConfig           `koanf:"ctit_anomaly_model" json:"ctit_anomaly_model"`
	HeavyClickSpam       HeavyClickSpamConfig      `koanf:"heavy_click_spam" json:"heavy_click_spam"`
	AnomalyModel         ScoreOnlyConfig           `koanf:"anomaly_model" json:"anomaly_model"`
	RapidClick           RapidClickConfig          `koanf:"rapid_click" json:"rapid_click"`
	ManyDevicesPerIP     ManyDevicesPerIPConfig    `koanf:"many_devices_per_ip" json:"many_devices_per_ip"`
	ManyIPsPerDevice     ManyIPsPerDeviceConfig    `koanf:"many_ips_per_device" json:"many_ips_per_device"`
	AWSIP                ScoreOnlyConfig           `koanf:"aws_ip" json:"aws_ip"`
	ComboStealthBot      ScoreOnlyConfig           `koanf:"combo_stealth_bot" json:"combo_stealth_bot"`
	ComboFocusedFraud    ScoreOnlyConfig           `koanf:"combo_focused_fraud" json:"combo_focused_fraud"`
}

// DefaultConfig returns the default configuration of all rules.
func DefaultConfig() Config {
	return Config{
		BurstAttack:          DefaultBurstAttackConfig(),
		MediaConcentration:   DefaultMediaConcentrationConfig(),
		AbnormalCVR:          DefaultAbnormalCVRConfig(),
		ShortCTIT:            DefaultShortCTITConfig(),
		SuspiciousEarlyHour:  DefaultSuspiciousEarlyHourConfig(),
		ConsistentCTIT:       DefaultConsistentCTITConfig(),
		FraudLongCTIT:        DefaultFraudLongCTITConfig(),
		SuspiciousSingleConv: ScoreOnlyConfig{Score: 30},
		CTITAnomalyModel:     ScoreOnlyConfig{Score: 35},
		HeavyClickSpam:       DefaultHeavyClickSpamConfig(),
		AnomalyModel:         ScoreOnlyConfig{Score: 45},
		RapidClick:           DefaultRapidClickConfig(),
		ManyDevicesPerIP:     DefaultManyDevicesPerIPConfig(),
		ManyIPsPerDevice:     DefaultManyIPsPerDeviceConfig(),
		AWSIP:                ScoreOnlyConfig{Score: 25},
		ComboStealthBot:      ScoreOnlyConfig{Score: 30},
		ComboFocusedFraud:    ScoreOnlyConfig{Score: 35},
	}
}

// Weight returns the configured score of a rule. Unknown rules weigh 0.
func (c *Config) Weight(id RuleID) int {
	switch id {
	case RuleBurstAttack:
		return c.BurstAttack.Score
	case RuleMediaConcentration:
		return c.MediaConcentration.Score
	case RuleAbnormalCVR:
		return c.AbnormalCVR.Score
	case RuleShortCTIT:
		return c.ShortCTIT.Score
	case RuleSuspiciousEarlyHour:
		return c.SuspiciousEarlyHour.Score
	case RuleConsistentCTIT:
		return c.ConsistentCTIT.Score
	case RuleFraudLongCTIT:
		return c.FraudLongCTIT.Score
	case RuleSuspiciousSingleConv:
		return c.SuspiciousSingleConv.Score
	case RuleCTITAnomalyModel:
		return c.CTITAnomalyModel.Score
	case RuleHeavyClickSpam:
		return c.HeavyClickSpam.Score
	case RuleAnomalyModel:
		return c.AnomalyModel.Score
	case RuleRapidClick:
		return c.RapidClick.Score
	case RuleManyDevicesPerIP:
		return c.ManyDevicesPerIP.Score
	case RuleManyIPsPerDevice:
		return c.ManyIPsPerDevice.Score
	case RuleAWSIP:
		return c.AWSIP.Score
	case RuleComboStealthBot:
		return c.ComboStealthBot.Score
	case RuleComboFocusedFraud:
		return c.ComboFocusedFraud.Score
	}
	return 0
}

// Enabled reports whether a rule has a positive weight.
func (c *Config) Enabled(id RuleID) bool {
	return c.Weight(id) > 0
}

// Validate checks the cross-field constraints that struct tags cannot express
// on their own. Tag validation is done by the config package.
func (c *Config) Validate() error {
	if c.SuspiciousEarlyHour.StartHour > c.SuspiciousEarlyHour.EndHour {
		return fmt.Errorf("suspicious_early_hour: start_hour %d after end_hour %d",
			c.SuspiciousEarlyHour.StartHour, c.SuspiciousEarlyHour.EndHour)
	}
	if c.ManyDevicesPerIP.CarrierThreshold <= c.ManyDevicesPerIP.ThresholdDevices {
		return fmt.Errorf("many_devices_per_ip: carrier_threshold %d must exceed threshold_devices %d",
			c.ManyDevicesPerIP.CarrierThreshold, c.ManyDevicesPerIP.ThresholdDevices)
	}
	for _, r := range registry {
		if c.Weight(r.ID) < 0 {
			return fmt.Errorf("%s: score must not be negative", r.ID)
		}
	}
	return nil
}
