// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package detection

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/clickshield/internal/anomaly"
	"github.com/tomtom215/clickshield/internal/ingest"
	"github.com/tomtom215/clickshield/internal/logging"
	"github.com/tomtom215/clickshield/internal/metrics"
)

// Model names used in logs and metrics.
const (
	ModelClickInterval = "click_interval"
	ModelCTIT          = "ctit"
)

// Models holds the optional anomaly models. Nil models are treated as unavailable.
type Models struct {
	// Click flags devices by their inter-click intervals (click mode).
	Click anomaly.Model
	// CTIT flags devices by their CTIT distribution (conversion mode).
	CTIT anomaly.Model
}

// ScoredRecord is a record with its derived features and rule outcomes.
type ScoredRecord struct {
	ingest.Record
	Features Features

	Mode Mode
	// Scores holds every rule's contribution, 0 for rules that did not fire.
	Scores     map[RuleID]int
	AbuseScore int
	// Tags lists the fired rules' tags in registry order.
	Tags []string
}

// TagString joins the tags with single spaces.
func (s *ScoredRecord) TagString() string {
	return strings.Join(s.Tags, " ")
}

// Fired reports whether rule id contributed to the record's score.
func (s *ScoredRecord) Fired(id RuleID) bool {
	return s.Scores[id] > 0
}

// Scorer evaluates the rule catalogue. It is safe for concurrent use.
type Scorer struct {
	cfg    Config
	models Models
}

// NewScorer creates a scorer with its own copy of cfg.
func NewScorer(cfg Config, models Models) *Scorer {
	return &Scorer{cfg: cfg, models: models}
}

// Config returns the scorer's rule configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Models returns the scorer's anomaly models.
func (s *Scorer) Models() Models {
	return s.models
}

// Score evaluates records in the given mode. media supplies the per-media
// aggregates of the whole batch. Records are returned sorted by device then
// click time; the input slice is not modified. Features such as device click
// counts are computed over the records passed to this call.
func (s *Scorer) Score(ctx context.Context, records []ingest.Record, mode Mode, media map[int64]ingest.MediaStats) ([]ScoredRecord, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if len(records) == 0 {
		return []ScoredRecord{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recs := make([]ingest.Record, len(records))
	copy(recs, records)
	ingest.SortRecords(recs)

	feats, ctitSamples, deltaSamples := deriveFeatures(recs)

	var clickOutliers, ctitOutliers map[int64]bool
	if mode == ModeClick && s.cfg.Enabled(RuleAnomalyModel) {
		clickOutliers = s.outliers(ctx, ModelClickInterval, s.models.Click, func() anomaly.FeatureTable {
			return anomaly.ClickIntervalFeatures(deltaSamples)
		})
	}
	if mode == ModeConversion && s.cfg.Enabled(RuleCTITAnomalyModel) {
		ctitOutliers = s.outliers(ctx, ModelCTIT, s.models.CTIT, func() anomaly.FeatureTable {
			return anomaly.CTITFeatures(ctitSamples)
		})
	}

	out := make([]ScoredRecord, len(recs))
	hits := make(map[string]int)
	for i := range recs {
		var ms ingest.MediaStats
		if !recs[i].NoMedia {
			ms = media[recs[i].MediaID]
		}
		in := evalInput{
			cfg:    &s.cfg,
			rec:    &recs[i],
			feat:   &feats[i],
			media:  ms,
			clickO: clickOutliers[recs[i].DeviceID],
			ctitO:  ctitOutliers[recs[i].DeviceID],
		}
		res := evaluate(&in, mode)
		out[i] = ScoredRecord{
			Record:     recs[i],
			Features:   feats[i],
			Mode:       mode,
			Scores:     res.scores,
			AbuseScore: res.total,
			Tags:       res.tags,
		}
		for id, v := range res.scores {
			if v > 0 {
				hits[string(id)]++
			}
		}
	}

	metrics.RecordScoring(string(mode), len(out), hits)
	logging.Ctx(ctx).Debug().
		Str("mode", string(mode)).
		Int("records", len(out)).
		Msg("Scored records")

	return out, nil
}

// outliers asks model about the devices in the table built by build. Any
// failure is logged and counted, and yields no outliers.
func (s *Scorer) outliers(ctx context.Context, name string, model anomaly.Model, build func() anomaly.FeatureTable) map[int64]bool {
	if !anomaly.IsAvailable(model) {
		return nil
	}
	table := build()
	set, err := anomaly.Outliers(ctx, model, table)
	if err != nil {
		metrics.RecordAnomalyError(name)
		logging.Ctx(ctx).Warn().Err(err).
			Str("model", name).
			Int("devices", table.Len()).
			Msg("Anomaly model prediction failed, rule skipped")
		return nil
	}
	metrics.RecordAnomalyPredictions(name, len(set), table.Len()-len(set))
	return set
}
