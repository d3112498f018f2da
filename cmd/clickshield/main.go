// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

// Command clickshield scores ad click and conversion logs for fraud.
//
// # Modes
//
// MODE=batch (default) reads the event log and ad metadata, scores every
// record, derives the device blocklist and writes the scored records, the
// blocklist and the device and media reports:
//
//	EVENTS_PATH=events.csv ADS_PATH=ads.csv clickshield
//
// MODE=serve exposes the same analysis over HTTP (see package api) under the
// supervisor tree until SIGINT or SIGTERM:
//
//	MODE=serve HTTP_PORT=8088 clickshield
//
// # Configuration
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (config.yaml or CONFIG_PATH), then environment variables. See package config.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/clickshield/internal/config"
	"github.com/tomtom215/clickshield/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging.ToLoggingConfig())
	logging.Info().
		Str("version", version).
		Str("mode", cfg.Mode).
		Msg("Starting ClickShield")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize analyzer")
	}

	switch cfg.Mode {
	case config.ModeServe:
		err = runServe(ctx, cfg, analyzer)
	default:
		err = runBatch(ctx, cfg, analyzer)
	}
	if err != nil {
		logging.Err(err).Msg("ClickShield failed")
		stop()
		os.Exit(1)
	}
	logging.Info().Msg("ClickShield stopped")
}
