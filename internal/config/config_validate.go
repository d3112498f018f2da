// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/clickshield/internal/logging"
	"github.com/tomtom215/clickshield/internal/validation"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}

	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateInput(); err != nil {
		return err
	}

	if err := c.Detection.Rules.Validate(); err != nil {
		return fmt.Errorf("detection.rules: %w", err)
	}

	if err := c.Blocklist.Validate(); err != nil {
		return fmt.Errorf("blocklist: %w", err)
	}

	return c.validateServer()
}

// validateInput requires both input files in batch mode.
func (c *Config) validateInput() error {
	if c.Mode != ModeBatch {
		return nil
	}
	if c.Input.EventsPath == "" {
		return fmt.Errorf("EVENTS_PATH is required in batch mode")
	}
	if c.Input.AdsPath == "" {
		return fmt.Errorf("ADS_PATH is required in batch mode")
	}
	return nil
}

// validateServer checks the rate limit window when limiting is enabled.
func (c *Config) validateServer() error {
	if c.Mode != ModeServe || c.Server.RateLimitDisabled {
		return nil
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Server.RateLimitWindow)
	}
	return nil
}

// validateLogging validates the logging configuration
func (c *Config) validateLogging() error {
	if !logging.ValidLevel(strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

// HasWildcardCORS reports whether any CORS origin is "*".
func (c *Config) HasWildcardCORS() bool {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}
