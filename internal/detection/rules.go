// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package detection

import "fmt"

// Mode selects which subset of rules applies to a record set.
type Mode string

const (
	// ModeConversion scores records that carry CTIT and IP.
	ModeConversion Mode = "conversion"
	// ModeClick scores click-only records.
	ModeClick Mode = "click"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeConversion || m == ModeClick
}

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// RuleID identifies a scoring rule.
type RuleID string

const (
	RuleBurstAttack          RuleID = "burst_attack"
	RuleMediaConcentration   RuleID = "media_concentration"
	RuleAbnormalCVR          RuleID = "abnormal_cvr"
	RuleShortCTIT            RuleID = "short_ctit"
	RuleSuspiciousEarlyHour  RuleID = "suspicious_early_hour"
	RuleConsistentCTIT       RuleID = "consistent_ctit"
	RuleFraudLongCTIT        RuleID = "fraud_long_ctit"
	RuleSuspiciousSingleConv RuleID = "suspicious_single_conv"
	RuleCTITAnomalyModel     RuleID = "ctit_anomaly_model"
	RuleHeavyClickSpam       RuleID = "heavy_click_spam"
	RuleAnomalyModel         RuleID = "anomaly_model"
	RuleRapidClick           RuleID = "rapid_click"
	RuleManyDevicesPerIP     RuleID = "many_devices_per_ip"
	RuleManyIPsPerDevice     RuleID = "many_ips_per_device"
	RuleAWSIP                RuleID = "aws_ip"
	RuleComboStealthBot      RuleID = "combo_stealth_bot"
	RuleComboFocusedFraud    RuleID = "combo_focused_fraud"
)

// Stage separates rules evaluated on raw features from rules evaluated over
// other rules' outcomes.
type Stage int

const (
	// StageBase rules depend only on record features.
	StageBase Stage = iota
	// StageCombinator rules are conjunctions over base conditions.
	StageCombinator
)

// RuleInfo describes a rule for reports and the API.
type RuleInfo struct {
	ID          RuleID `json:"id"`
	Tag         string `json:"tag"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Modes       []Mode `json:"modes"`
	Stage       Stage  `json:"-"`
}

// AppliesTo reports whether the rule is evaluated in mode m.
func (r RuleInfo) AppliesTo(m Mode) bool {
	for _, mode := range r.Modes {
		if mode == m {
			return true
		}
	}
	return false
}

var (
	bothModes      = []Mode{ModeConversion, ModeClick}
	conversionOnly = []Mode{ModeConversion}
	clickOnly      = []Mode{ModeClick}
)

// registry is the fixed evaluation and reporting order of all rules.
var registry = []RuleInfo{
	{
		ID: RuleBurstAttack, Tag: "[Burst_Attack]", Name: "Click burst",
		Description: "Unusually many clicks from one device inside a short trailing window.",
		Modes:       bothModes,
	},
	{
		ID: RuleMediaConcentration, Tag: "[Media_Concentration]", Name: "Media concentration",
		Description: "A heavy-clicking device that engages with almost no distinct media.",
		Modes:       bothModes,
	},
	{
		ID: RuleAbnormalCVR, Tag: "[Abnormal_CVR]", Name: "Abnormal conversion rate",
		Description: "Click on a high-volume media whose conversion rate is implausibly high.",
		Modes:       bothModes,
	},
	{
		ID: RuleShortCTIT, Tag: "[Short_CTIT]", Name: "Short click-to-install time",
		Description: "Conversion completed faster than a person could act on the ad.",
		Modes:       conversionOnly,
	},
	{
		ID: RuleSuspiciousEarlyHour, Tag: "[Suspicious_Early_Hour]", Name: "Suspicious early-hour activity",
		Description: "Rapid clicks or very short CTIT during the early-morning hours.",
		Modes:       conversionOnly,
	},
	{
		ID: RuleConsistentCTIT, Tag: "[Consistent_CTIT]", Name: "Mechanically consistent CTIT",
		Description: "A device's conversions all take nearly the same time, typical of scripts.",
		Modes:       conversionOnly,
	},
	{
		ID: RuleFraudLongCTIT, Tag: "[Fraud_Long_CTIT]", Name: "Abnormally long CTIT",
		Description: "Conversion attributed long after the click, typical of click injection.",
		Modes:       conversionOnly,
	},
	{
		ID: RuleSuspiciousSingleConv, Tag: "[Suspicious_Single_Conversion]", Name: "Suspicious single conversion",
		Description: "A device with a single click that converted during the early-morning hours.",
		Modes:       conversionOnly,
	},
	{
		ID: RuleCTITAnomalyModel, Tag: "[CTIT_Anomaly_Model]", Name: "CTIT pattern model",
		Description: "Device flagged by the pretrained CTIT distribution model.",
		Modes:       conversionOnly,
	},
	{
		ID: RuleHeavyClickSpam, Tag: "[Heavy_Click_Spam]", Name: "Heavy click spam",
		Description: "Large click volume from a device that never converts.",
		Modes:       clickOnly,
	},
	{
		ID: RuleAnomalyModel, Tag: "[Anomaly_Model_Flag]", Name: "Click interval model",
		Description: "Device flagged by the pretrained click-interval model.",
		Modes:       clickOnly,
	},
	{
		ID: RuleRapidClick, Tag: "[Rapid_Click]", Name: "Rapid click",
		Description: "Consecutive clicks from one device less than a second apart.",
		Modes:       bothModes,
	},
	{
		ID: RuleManyDevicesPerIP, Tag: "[Many_Devices_Per_IP]", Name: "Many devices per IP",
		Description: "Too many devices behind one IP, excluding carrier-grade NAT ranges.",
		Modes:       bothModes,
	},
	{
		ID: RuleManyIPsPerDevice, Tag: "[Many_IPs_Per_Device]", Name: "Many IPs per device",
		Description: "One device rotating through many IP addresses.",
		Modes:       bothModes,
	},
	{
		ID: RuleAWSIP, Tag: "[AWS_IP_Used]", Name: "Cloud server IP",
		Description: "Traffic from a cloud or datacenter IP on a record that is already suspicious.",
		Modes:       bothModes, Stage: StageCombinator,
	},
	{
		ID: RuleComboStealthBot, Tag: "[Combo_Stealth_Bot]", Name: "Combo: stealth bot",
		Description: "Suspicious cloud IP traffic during the early-morning hours.",
		Modes:       bothModes, Stage: StageCombinator,
	},
	{
		ID: RuleComboFocusedFraud, Tag: "[Combo_Focused_Fraud]", Name: "Combo: focused fraud",
		Description: "Media concentration combined with heavy IP rotation.",
		Modes:       bothModes, Stage: StageCombinator,
	},
}

var registryIndex = func() map[RuleID]int {
	idx := make(map[RuleID]int, len(registry))
	for i, r := range registry {
		idx[r.ID] = i
	}
	return idx
}()

// Rules returns every rule in evaluation order.
func Rules() []RuleInfo {
	out := make([]RuleInfo, len(registry))
	copy(out, registry)
	return out
}

// LookupRule returns the description of id.
func LookupRule(id RuleID) (RuleInfo, bool) {
	i, ok := registryIndex[id]
	if !ok {
		return RuleInfo{}, false
	}
	return registry[i], true
}
