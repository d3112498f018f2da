// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/clickshield/internal/anomaly"
	"github.com/tomtom215/clickshield/internal/detection"
	"github.com/tomtom215/clickshield/internal/ingest"
	"github.com/tomtom215/clickshield/internal/logging"
)

// Run modes.
const (
	ModeBatch = "batch"
	ModeServe = "serve"
)

// Output formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Config holds all application configuration loaded from defaults, an optional
// YAML file and environment variables.
type Config struct {
	Mode      string                    `koanf:"mode" validate:"oneof=batch serve"`
	Logging   LoggingConfig             `koanf:"logging"`
	Input     InputConfig               `koanf:"input"`
	Output    OutputConfig              `koanf:"output"`
	Models    ModelsConfig              `koanf:"models"`
	Database  DatabaseConfig            `koanf:"database"`
	Server    ServerConfig              `koanf:"server"`
	Detection DetectionConfig           `koanf:"detection"`
	Blocklist detection.BlocklistPolicy `koanf:"blocklist"`
	Report    ReportConfig              `koanf:"report"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller adds file:line to log entries.
	Caller bool `koanf:"caller"`
}

// ToLoggingConfig converts to the logging package's configuration.
func (c LoggingConfig) ToLoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	cfg.Caller = c.Caller
	return cfg
}

// InputConfig locates the batch input files.
type InputConfig struct {
	EventsPath    string              `koanf:"events_path"`
	AdsPath       string              `koanf:"ads_path"`
	HostnamesPath string              `koanf:"hostnames_path"`
	EventColumns  ingest.EventColumns `koanf:"event_columns"`
	AdColumns     ingest.AdColumns    `koanf:"ad_columns"`
}

// OutputConfig locates the batch exports. An empty path disables that export.
type OutputConfig struct {
	Format        string `koanf:"format" validate:"oneof=csv parquet"`
	ScoredPath    string `koanf:"scored_path"`
	BlocklistPath string `koanf:"blocklist_path"`
	DevicesPath   string `koanf:"devices_path"`
	MediaPath     string `koanf:"media_path"`
}

// ModelsConfig locates the pretrained anomaly models.
type ModelsConfig struct {
	ClickPath string `koanf:"click_path"`
	CTITPath  string `koanf:"ctit_path"`

	// OutlierThreshold overrides the artifacts' threshold when positive.
	OutlierThreshold float64 `koanf:"outlier_threshold" validate:"gte=0,lte=1"`

	// BreakerMaxFailures is the consecutive failure count that opens a model's circuit.
	BreakerMaxFailures uint32 `koanf:"breaker_max_failures" validate:"min=1"`

	// BreakerTimeout is how long an open circuit stays open.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// BreakerSettings returns the circuit breaker settings for the anomaly models.
func (c ModelsConfig) BreakerSettings() anomaly.BreakerSettings {
	return anomaly.BreakerSettings{MaxFailures: c.BreakerMaxFailures, Timeout: c.BreakerTimeout}
}

// DatabaseConfig configures the in-process DuckDB used to read and write files.
type DatabaseConfig struct {
	// Path is the database file; empty opens an in-memory database.
	Path string `koanf:"path"`

	// Threads limits DuckDB worker threads; 0 keeps DuckDB's default.
	Threads int `koanf:"threads" validate:"min=0"`

	// MaxMemory is a DuckDB memory limit such as "2GB"; empty keeps the default.
	MaxMemory string `koanf:"max_memory"`
}

// ServerConfig configures the HTTP API in serve mode.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// MaxBodyBytes caps the size of an analyze request body.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"min=1"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DetectionConfig configures feature preparation and the rule catalogue.
type DetectionConfig struct {
	Rules           detection.Config `koanf:"rules"`
	CloudMarkers    []string         `koanf:"cloud_markers" validate:"min=1,dive,required"`
	UnknownHostname string           `koanf:"unknown_hostname" validate:"required"`
}

// IngestOptions returns the feature preparation options for this configuration.
func (c DetectionConfig) IngestOptions() ingest.Options {
	return ingest.Options{
		Window:          c.Rules.BurstAttack.Window(),
		CloudMarkers:    c.CloudMarkers,
		UnknownHostname: c.UnknownHostname,
	}
}

// ReportConfig configures the summary reports.
type ReportConfig struct {
	// TopMedia is the number of media listed in the media report.
	TopMedia int `koanf:"top_media" validate:"min=1"`
}
