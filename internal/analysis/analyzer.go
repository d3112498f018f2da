// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

// Package analysis runs one complete scoring pass over a batch of ad events:
// feature preparation, scoring of both record subsets, blocklist derivation
// and the summary reports built from the result.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/clickshield/internal/anomaly"
	"github.com/tomtom215/clickshield/internal/detection"
	"github.com/tomtom215/clickshield/internal/ingest"
	"github.com/tomtom215/clickshield/internal/logging"
	"github.com/tomtom215/clickshield/internal/metrics"
)

// DefaultTopMedia is the default length of the media report.
const DefaultTopMedia = 10

// Input is the raw data of one run.
type Input struct {
	Events    []ingest.RawEvent
	Ads       []ingest.AdMetadata
	Hostnames ingest.HostnameMap
}

// Options configures an Analyzer.
type Options struct {
	Rules     detection.Config
	Models    detection.Models
	Ingest    ingest.Options
	Blocklist detection.BlocklistPolicy
	TopMedia  int
}

// DefaultOptions returns the built-in rule, ingestion and blocklist defaults
// with no anomaly models.
func DefaultOptions() Options {
	return Options{
		Rules:     detection.DefaultConfig(),
		Ingest:    ingest.DefaultOptions(),
		Blocklist: detection.DefaultBlocklistPolicy(),
		TopMedia:  DefaultTopMedia,
	}
}

// Result is the outcome of one run.
type Result struct {
	RunID string `json:"run_id"`

	// Scored holds conversion records followed by click-only records.
	Scored    []detection.ScoredRecord `json:"-"`
	Blocklist detection.Blocklist      `json:"blocklist"`

	Summary Summary           `json:"summary"`
	Devices []DeviceReportRow `json:"devices"`
	Media   []MediaReportRow  `json:"media"`
}

// Analyzer runs analyses with a fixed configuration. It is safe for
// concurrent use.
type Analyzer struct {
	scorer   *detection.Scorer
	ingest   ingest.Options
	policy   detection.BlocklistPolicy
	topMedia int
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	if opts.TopMedia <= 0 {
		opts.TopMedia = DefaultTopMedia
	}
	return &Analyzer{
		scorer:   detection.NewScorer(opts.Rules, opts.Models),
		ingest:   opts.Ingest,
		policy:   opts.Blocklist,
		topMedia: opts.TopMedia,
	}
}

// Rules returns the rule configuration.
func (a *Analyzer) Rules() detection.Config {
	return a.scorer.Config()
}

// Policy returns the default blocklist policy.
func (a *Analyzer) Policy() detection.BlocklistPolicy {
	return a.policy
}

// ModelStatus reports which anomaly models are available.
func (a *Analyzer) ModelStatus() map[string]bool {
	m := a.scorer.Models()
	return map[string]bool{
		detection.ModelClickInterval: anomaly.IsAvailable(m.Click),
		detection.ModelCTIT:          anomaly.IsAvailable(m.CTIT),
	}
}

// Run analyzes in with the configured blocklist policy.
func (a *Analyzer) Run(ctx context.Context, in Input) (*Result, error) {
	return a.RunWithPolicy(ctx, in, a.policy)
}

// RunWithPolicy analyzes in with an explicit blocklist policy.
func (a *Analyzer) RunWithPolicy(ctx context.Context, in Input, policy detection.BlocklistPolicy) (*Result, error) {
	start := time.Now()
	runID := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	logger := logging.Ctx(ctx)

	res, err := a.run(ctx, runID, in, policy)
	duration := time.Since(start)
	if err != nil {
		status := "error"
		if errors.Is(err, ingest.ErrNoData) {
			status = "no_data"
		}
		metrics.RecordAnalysisRun(status, duration)
		logger.Warn().Err(err).Dur("duration", duration).Msg("Analysis failed")
		return nil, err
	}

	metrics.RecordAnalysisRun("success", duration)
	logger.Info().
		Int("records", res.Summary.TotalRecords).
		Int("devices", res.Summary.TotalDevices).
		Int("blocked_devices", res.Summary.BlockedDevices).
		Float64("threshold", res.Summary.Threshold).
		Dur("duration", duration).
		Msg("Analysis complete")
	return res, nil
}

func (a *Analyzer) run(ctx context.Context, runID string, in Input, policy detection.BlocklistPolicy) (*Result, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	stage := time.Now()
	batch, err := ingest.Prepare(in.Events, in.Ads, in.Hostnames, a.ingest)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	metrics.RecordStage("ingest", time.Since(stage))
	metrics.RecordIngestion(len(batch.Complete), len(batch.Incomplete), batch.DroppedDevices)
	logging.Ctx(ctx).Debug().
		Int("complete", len(batch.Complete)).
		Int("incomplete", len(batch.Incomplete)).
		Int("dropped", batch.DroppedDevices).
		Msg("Batch prepared")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	conv, err := a.scorer.Score(ctx, batch.Complete, detection.ModeConversion, batch.Media)
	if err != nil {
		return nil, fmt.Errorf("score conversions: %w", err)
	}
	clicks, err := a.scorer.Score(ctx, batch.Incomplete, detection.ModeClick, batch.Media)
	if err != nil {
		return nil, fmt.Errorf("score clicks: %w", err)
	}
	metrics.RecordStage("score", time.Since(stage))

	scored := make([]detection.ScoredRecord, 0, len(conv)+len(clicks))
	scored = append(scored, conv...)
	scored = append(scored, clicks...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	bl, err := detection.DeriveBlocklist(scored, policy)
	if err != nil {
		return nil, err
	}
	metrics.RecordStage("blocklist", time.Since(stage))
	metrics.RecordBlocklist(len(bl.Devices), bl.Threshold)

	summary := Summarize(scored, bl)
	summary.DroppedRows = batch.DroppedDevices
	summary.ConversionRecords = len(conv)
	summary.ClickRecords = len(clicks)

	return &Result{
		RunID:     runID,
		Scored:    scored,
		Blocklist: bl,
		Summary:   summary,
		Devices:   DeviceReport(scored, bl),
		Media:     MediaReport(scored, bl, a.topMedia),
	}, nil
}
