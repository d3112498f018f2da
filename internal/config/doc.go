// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

/*
Package config provides centralized configuration management for ClickShield.

# Configuration Sources

Configuration is layered with Koanf v2, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file: CONFIG_PATH, or the first of config.yaml, config.yml,
    /etc/clickshield/config.yaml, /etc/clickshield/config.yml
 3. Environment variables, through an explicit mapping table

Unmapped environment variables are ignored so the process environment cannot
pollute configuration.

# Environment Variables

General:
  - MODE: batch (score files and exit) or serve (run the HTTP API)
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Input (batch mode):
  - EVENTS_PATH: event log CSV (required in batch mode)
  - ADS_PATH: ad metadata CSV (required in batch mode)
  - IP_CACHE_PATH: JSON object mapping IP to hostname (optional)

Output (batch mode):
  - OUTPUT_FORMAT: csv or parquet (default: csv)
  - SCORED_OUTPUT_PATH, BLOCKLIST_OUTPUT_PATH, DEVICE_REPORT_PATH,
    MEDIA_REPORT_PATH: empty disables that export

Models:
  - CLICK_MODEL_PATH, CTIT_MODEL_PATH: pretrained isolation forest artifacts
  - OUTLIER_THRESHOLD: override of the artifacts' outlier threshold

Database:
  - DUCKDB_PATH: empty for an in-memory database (default)
  - DUCKDB_THREADS, DUCKDB_MAX_MEMORY

Server (serve mode):
  - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT, MAX_BODY_BYTES
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
  - CORS_ORIGINS: comma-separated list

Blocklist:
  - BLOCKLIST_METHOD: percentile or absolute
  - BLOCKLIST_PERCENTILE, ABSOLUTE_SCORE_THRESHOLD
  - BLOCKLIST_SENSITIVITY: relaxed, average or strict (overrides the percentile)

Detection:
  - BURST_WINDOW_MIN, CLOUD_MARKERS (comma-separated), UNKNOWN_HOSTNAME
  - Individual rule thresholds are set in the YAML file under detection.rules.

# Thread Safety

Config is immutable after Load and safe for concurrent reads.
*/
package config
