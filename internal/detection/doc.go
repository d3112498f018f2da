// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

/*
Package detection scores cleaned ad-click records against a fixed catalogue of
fraud rules and derives a device blocklist from the scores.

# Rules

Seventeen rules are evaluated in the order returned by [Rules]. Each rule has a
typed configuration with its thresholds and an integer weight; a rule whose
weight is 0 is disabled. Rules apply to conversion records, click-only records
or both (see [Mode]).

Evaluation happens in two phases:

  - Base rules are computed from per-record features and the per-media
    aggregates. The two model rules consult pretrained anomaly models through
    the anomaly package.
  - Combinator rules are conjunctions over base conditions. aws_ip fires for
    cloud-hosted traffic only when the record already carries a positive base
    score, so cloud traffic alone never raises a score.

A record's abuse score is the sum of its per-rule scores.

# Blocklist

[DeriveBlocklist] takes each device's maximum abuse score and blocks devices
at or above a threshold chosen by percentile over the score distribution or
set as an absolute value.

# Usage

	scorer := detection.NewScorer(detection.DefaultConfig(), detection.Models{})
	scored, err := scorer.Score(ctx, batch.Complete, detection.ModeConversion, batch.Media)
	if err != nil {
	    return err
	}
	bl, err := detection.DeriveBlocklist(scored, detection.DefaultBlocklistPolicy())

# Thread Safety

A Scorer is immutable after construction and may be shared between
goroutines. Score never modifies its input slice.
*/
package detection

import "errors"

var (
	// ErrInvalidMode is returned for a scoring mode other than conversion or click.
	ErrInvalidMode = errors.New("invalid scoring mode")

	// ErrInvalidBlocklistMethod is returned for an unknown blocklist method.
	ErrInvalidBlocklistMethod = errors.New("invalid blocklist method")

	// ErrInvalidPercentile is returned for a percentile outside [0, 1].
	ErrInvalidPercentile = errors.New("percentile must be within [0, 1]")
)
