// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package detection

import "github.com/tomtom215/clickshield/internal/ingest"

// evalInput carries everything a base condition may look at for one record.
type evalInput struct {
	cfg    *Config
	rec    *ingest.Record
	feat   *Features
	media  ingest.MediaStats
	clickO bool // device flagged by the click-interval model
	ctitO  bool // device flagged by the CTIT model
}

type condition func(in *evalInput) bool

// baseConditions maps every base rule to its predicate. Predicates ignore the
// rule's weight and mode; gating happens in the scorer.
var baseConditions = map[RuleID]condition{
	RuleBurstAttack: func(in *evalInput) bool {
		return in.rec.ClicksInWindow > in.cfg.BurstAttack.ThresholdClicks
	},
	RuleMediaConcentration: mediaConcentrated,
	RuleAbnormalCVR: func(in *evalInput) bool {
		c := in.cfg.AbnormalCVR
		return in.media.CVR > c.ThresholdCVR && in.media.Clicks > c.ThresholdClicks
	},
	RuleShortCTIT: func(in *evalInput) bool {
		return in.rec.CTIT < in.cfg.ShortCTIT.ThresholdSec
	},
	RuleSuspiciousEarlyHour: func(in *evalInput) bool {
		c := in.cfg.SuspiciousEarlyHour
		if !c.InWindow(in.feat.Hour) {
			return false
		}
		return in.feat.TimeSincePrev < c.RapidThresholdSec || in.rec.CTIT < c.CTITThresholdSec
	},
	RuleConsistentCTIT: func(in *evalInput) bool {
		c := in.cfg.ConsistentCTIT
		return in.feat.CTITStdDev < c.ThresholdStd && in.feat.DeviceClicks > c.ThresholdClicks
	},
	RuleFraudLongCTIT: func(in *evalInput) bool {
		return in.rec.CTIT > in.cfg.FraudLongCTIT.ThresholdSec
	},
	RuleSuspiciousSingleConv: func(in *evalInput) bool {
		return in.feat.DeviceClicks == 1 && in.cfg.SuspiciousEarlyHour.InWindow(in.feat.Hour)
	},
	RuleCTITAnomalyModel: func(in *evalInput) bool { return in.ctitO },
	RuleHeavyClickSpam: func(in *evalInput) bool {
		return in.feat.DeviceClicks > in.cfg.HeavyClickSpam.ThresholdClicks
	},
	RuleAnomalyModel: func(in *evalInput) bool { return in.clickO },
	RuleRapidClick: func(in *evalInput) bool {
		return in.feat.TimeSincePrev < in.cfg.RapidClick.ThresholdSec
	},
	RuleManyDevicesPerIP: func(in *evalInput) bool {
		c := in.cfg.ManyDevicesPerIP
		return in.feat.IPDevices > c.ThresholdDevices && in.feat.IPDevices <= c.CarrierThreshold
	},
	RuleManyIPsPerDevice: manyIPs,
}

func mediaConcentrated(in *evalInput) bool {
	c := in.cfg.MediaConcentration
	return in.feat.DeviceClicks > c.ThresholdClicks && in.feat.DeviceMedia < c.ThresholdMedia
}

func manyIPs(in *evalInput) bool {
	return in.feat.DeviceIPs > in.cfg.ManyIPsPerDevice.ThresholdIPs
}

// outcome is the result of evaluating every rule against one record.
type outcome struct {
	scores map[RuleID]int
	total  int
	tags   []string
}

// evaluate runs both phases for one record in the given mode.
func evaluate(in *evalInput, mode Mode) outcome {
	out := outcome{scores: make(map[RuleID]int, len(registry))}
	fired := make(map[RuleID]bool, len(registry))

	// Phase 1: base rules.
	base := 0
	for _, r := range registry {
		if r.Stage != StageBase {
			continue
		}
		out.scores[r.ID] = 0
		if !r.AppliesTo(mode) || !in.cfg.Enabled(r.ID) {
			continue
		}
		if baseConditions[r.ID](in) {
			fired[r.ID] = true
			out.scores[r.ID] = in.cfg.Weight(r.ID)
			base += out.scores[r.ID]
		}
	}

	// Phase 2: combinators over phase-1 outcomes and raw conditions.
	cloud := in.rec.IsCloud && base > 0
	combos := map[RuleID]bool{
		RuleAWSIP:             cloud,
		RuleComboStealthBot:   cloud && in.cfg.SuspiciousEarlyHour.InWindow(in.feat.Hour),
		RuleComboFocusedFraud: mediaConcentrated(in) && manyIPs(in),
	}
	for _, r := range registry {
		if r.Stage != StageCombinator {
			continue
		}
		out.scores[r.ID] = 0
		if !r.AppliesTo(mode) || !in.cfg.Enabled(r.ID) {
			continue
		}
		if combos[r.ID] {
			fired[r.ID] = true
			out.scores[r.ID] = in.cfg.Weight(r.ID)
		}
	}

	for _, r := range registry {
		if fired[r.ID] {
			out.total += out.scores[r.ID]
			out.tags = append(out.tags, r.Tag)
		}
	}
	return out
}
