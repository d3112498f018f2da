// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package anomaly

import (
	"errors"
	"io/fs"

	"github.com/tomtom215/clickshield/internal/logging"
)

// Open loads the forest at path. An empty path or a missing file disables the
// model with a warning; a present but corrupt artifact is an error.
func Open(name, path string, threshold float64) (Model, error) {
	if path == "" {
		logging.Info().Str("model", name).Msg("Anomaly model not configured, rule disabled")
		return Unavailable{}, nil
	}

	forest, err := LoadIsolationForest(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Warn().Str("model", name).Str("path", path).Msg("Anomaly model artifact not found, rule disabled")
		return Unavailable{}, nil
	}
	if err != nil {
		return nil, err
	}
	if threshold > 0 {
		forest.Threshold = threshold
	}
	if forest.Name == "" {
		forest.Name = name
	}

	logging.Info().
		Str("model", name).
		Str("path", path).
		Int("trees", len(forest.Trees)).
		Float64("threshold", forest.Threshold).
		Msg("Anomaly model loaded")
	return forest, nil
}
