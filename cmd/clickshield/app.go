// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/clickshield/internal/analysis"
	"github.com/tomtom215/clickshield/internal/anomaly"
	"github.com/tomtom215/clickshield/internal/api"
	"github.com/tomtom215/clickshield/internal/config"
	"github.com/tomtom215/clickshield/internal/detection"
	"github.com/tomtom215/clickshield/internal/logging"
	"github.com/tomtom215/clickshield/internal/source"
	"github.com/tomtom215/clickshield/internal/supervisor"
	"github.com/tomtom215/clickshield/internal/supervisor/services"
)

// newAnalyzer loads the anomaly models and builds the analyzer from cfg.
func newAnalyzer(cfg *config.Config) (*analysis.Analyzer, error) {
	models, err := openModels(cfg.Models)
	if err != nil {
		return nil, err
	}
	return analysis.New(analysis.Options{
		Rules:     cfg.Detection.Rules,
		Models:    models,
		Ingest:    cfg.Detection.IngestOptions(),
		Blocklist: cfg.Blocklist,
		TopMedia:  cfg.Report.TopMedia,
	}), nil
}

// openModels loads both models, each behind its own circuit breaker. A model
// that is not configured or not found leaves its rule disabled.
func openModels(cfg config.ModelsConfig) (detection.Models, error) {
	click, err := anomaly.Open(detection.ModelClickInterval, cfg.ClickPath, cfg.OutlierThreshold)
	if err != nil {
		return detection.Models{}, fmt.Errorf("load %s model: %w", detection.ModelClickInterval, err)
	}
	ctit, err := anomaly.Open(detection.ModelCTIT, cfg.CTITPath, cfg.OutlierThreshold)
	if err != nil {
		return detection.Models{}, fmt.Errorf("load %s model: %w", detection.ModelCTIT, err)
	}

	settings := cfg.BreakerSettings()
	return detection.Models{
		Click: anomaly.NewBreaker(detection.ModelClickInterval, click, settings),
		CTIT:  anomaly.NewBreaker(detection.ModelCTIT, ctit, settings),
	}, nil
}

// runBatch reads the configured input files, runs one analysis and writes
// every configured export.
func runBatch(ctx context.Context, cfg *config.Config, analyzer *analysis.Analyzer) error {
	store, err := source.Open(source.Config{
		Path:      cfg.Database.Path,
		Threads:   cfg.Database.Threads,
		MaxMemory: cfg.Database.MaxMemory,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	in, err := readInput(ctx, store, cfg.Input)
	if err != nil {
		return err
	}

	res, err := analyzer.Run(ctx, in)
	if err != nil {
		return err
	}

	if err := writeOutputs(ctx, store, cfg.Output, res); err != nil {
		return err
	}

	logSummary(res)
	return nil
}

func readInput(ctx context.Context, store *source.Store, cfg config.InputConfig) (analysis.Input, error) {
	events, err := store.ReadEvents(ctx, cfg.EventsPath, cfg.EventColumns)
	if err != nil {
		return analysis.Input{}, err
	}
	ads, err := store.ReadAds(ctx, cfg.AdsPath, cfg.AdColumns)
	if err != nil {
		return analysis.Input{}, err
	}
	hosts, err := source.LoadHostnames(cfg.HostnamesPath)
	if err != nil {
		return analysis.Input{}, err
	}

	logging.Info().
		Int("events", len(events)).
		Int("ads", len(ads)).
		Int("hostnames", len(hosts)).
		Msg("Input loaded")
	return analysis.Input{Events: events, Ads: ads, Hostnames: hosts}, nil
}

func writeOutputs(ctx context.Context, store *source.Store, cfg config.OutputConfig, res *analysis.Result) error {
	if err := store.ExportScored(ctx, cfg.ScoredPath, cfg.Format, res.Scored); err != nil {
		return err
	}
	if err := store.ExportBlocklist(ctx, cfg.BlocklistPath, cfg.Format, res.Blocklist); err != nil {
		return err
	}
	if err := store.ExportDeviceReport(ctx, cfg.DevicesPath, cfg.Format, res.Devices); err != nil {
		return err
	}
	return store.ExportMediaReport(ctx, cfg.MediaPath, cfg.Format, res.Media)
}

func logSummary(res *analysis.Result) {
	s := res.Summary
	event := logging.Info().
		Str("run_id", res.RunID).
		Int("records", s.TotalRecords).
		Int("conversions", s.ConversionRecords).
		Int("clicks", s.ClickRecords).
		Int("dropped_rows", s.DroppedRows).
		Int("devices", s.TotalDevices).
		Int("blocked_devices", s.BlockedDevices).
		Float64("device_abuse_ratio", s.DeviceAbuseRatio).
		Float64("record_abuse_ratio", s.RecordAbuseRatio).
		Str("method", string(s.Method)).
		Float64("threshold", s.Threshold)
	if s.PeriodStart != nil && s.PeriodEnd != nil {
		event = event.Time("period_start", *s.PeriodStart).Time("period_end", *s.PeriodEnd)
	}
	event.Msg("Blocklist summary")

	for _, m := range res.Media {
		logging.Info().
			Int64("media_id", m.MediaID).
			Int("blocked_devices", m.BlockedDevices).
			Float64("share_pct", m.SharePct).
			Msg("Top media by blocked devices")
	}
}

// newHTTPServer builds the API server for serve mode.
func newHTTPServer(cfg *config.Config, analyzer *analysis.Analyzer) *http.Server {
	handler := api.NewHandler(analyzer, api.HandlerOptions{
		Version:      version,
		Timeout:      cfg.Server.Timeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	router := api.NewRouter(handler, cfg.Server)

	writeTimeout := cfg.Server.Timeout
	if writeTimeout > 0 {
		// Leave room to write the timeout response itself.
		writeTimeout += 5 * time.Second
	}
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

// runServe runs the API under the supervisor tree until ctx is canceled.
func runServe(ctx context.Context, cfg *config.Config, analyzer *analysis.Analyzer) error {
	if cfg.HasWildcardCORS() {
		logging.Warn().Msg("CORS allows any origin; set CORS_ORIGINS to restrict it")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	server := newHTTPServer(cfg, analyzer)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	logging.Info().
		Str("addr", server.Addr).
		Interface("models", analyzer.ModelStatus()).
		Msg("Starting supervisor tree")

	err = tree.Serve(ctx)

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	return nil
}
