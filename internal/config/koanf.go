// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/clickshield/internal/detection"
	"github.com/tomtom215/clickshield/internal/hostmatch"
	"github.com/tomtom215/clickshield/internal/ingest"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/clickshield/config.yaml",
	"/etc/clickshield/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Mode: ModeBatch,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Input: InputConfig{
			EventColumns: ingest.DefaultEventColumns(),
			AdColumns:    ingest.DefaultAdColumns(),
		},
		Output: OutputConfig{
			Format:        FormatCSV,
			ScoredPath:    "scored_records.csv",
			BlocklistPath: "blocklist.csv",
			DevicesPath:   "blocked_devices.csv",
			MediaPath:     "media_report.csv",
		},
		Models: ModelsConfig{
			BreakerMaxFailures: 3,
			BreakerTimeout:     time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "", // in-memory
			Threads:   0,
			MaxMemory: "",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8088,
			Timeout:         60 * time.Second,
			MaxBodyBytes:    64 << 20, // 64MB
			RateLimitReqs:   30,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Detection: DetectionConfig{
			Rules:           detection.DefaultConfig(),
			CloudMarkers:    append([]string(nil), hostmatch.DefaultCloudMarkers...),
			UnknownHostname: ingest.DefaultUnknownHostname,
		},
		Blocklist: detection.DefaultBlocklistPolicy(),
		Report: ReportConfig{
			TopMedia: 10,
		},
	}
}

// Default returns the built-in configuration without consulting files or the environment.
func Default() *Config {
	return defaultConfig()
}

// Load loads configuration using Koanf with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// EVENTS_PATH -> input.events_path
	// BLOCKLIST_METHOD -> blocklist.method
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
	"detection.cloud_markers",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file or defaults), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	"mode": "mode",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Input mappings
	"events_path":   "input.events_path",
	"ads_path":      "input.ads_path",
	"ip_cache_path": "input.hostnames_path",

	// Output mappings
	"output_format":         "output.format",
	"scored_output_path":    "output.scored_path",
	"blocklist_output_path": "output.blocklist_path",
	"device_report_path":    "output.devices_path",
	"media_report_path":     "output.media_path",

	// Model mappings
	"click_model_path":      "models.click_path",
	"ctit_model_path":       "models.ctit_path",
	"outlier_threshold":     "models.outlier_threshold",
	"model_breaker_max":     "models.breaker_max_failures",
	"model_breaker_timeout": "models.breaker_timeout",

	// Database mappings
	"duckdb_path":       "database.path",
	"duckdb_threads":    "database.threads",
	"duckdb_max_memory": "database.max_memory",

	// Server mappings
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"max_body_bytes":      "server.max_body_bytes",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",
	"cors_origins":        "server.cors_origins",

	// Blocklist mappings
	"blocklist_method":         "blocklist.method",
	"blocklist_percentile":     "blocklist.percentile",
	"absolute_score_threshold": "blocklist.absolute_score_threshold",
	"blocklist_sensitivity":    "blocklist.sensitivity",

	// Detection mappings
	"burst_window_min": "detection.rules.burst_attack.window_min",
	"cloud_markers":    "detection.cloud_markers",
	"unknown_hostname": "detection.unknown_hostname",

	// Report mappings
	"report_top_media": "report.top_media",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - EVENTS_PATH -> input.events_path
//   - IP_CACHE_PATH -> input.hostnames_path
//   - HTTP_PORT -> server.port
//   - BLOCKLIST_SENSITIVITY -> blocklist.sensitivity
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
