// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clickshield/internal/ingest"
	"github.com/tomtom215/clickshield/internal/logging"
)

// csvSource reads every column as text so raw cells such as "123.0" device ids
// reach ingestion unchanged.
func csvSource(path string) string {
	return fmt.Sprintf("read_csv_auto(%s, header = true, all_varchar = true)", quoteLiteral(path))
}

// ReadEvents loads the event log at path using cols to locate the fields.
func (s *Store) ReadEvents(ctx context.Context, path string, cols ingest.EventColumns) ([]ingest.RawEvent, error) {
	query := fmt.Sprintf(`
		SELECT
			%s,
			%s,
			%s,
			%s,
			TRY_CAST(%s AS DOUBLE),
			TRY_CAST(TRY_CAST(%s AS DOUBLE) AS BIGINT),
			TRY_CAST(TRY_CAST(%s AS DOUBLE) AS BIGINT)
		FROM %s`,
		quoteIdent(cols.DeviceID),
		quoteIdent(cols.UserIP),
		quoteIdent(cols.ClickDate),
		quoteIdent(cols.DoneDate),
		quoteIdent(cols.CTIT),
		quoteIdent(cols.MediaID),
		quoteIdent(cols.AdID),
		csvSource(path))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read events %s: %w", path, err)
	}
	defer rows.Close()

	var events []ingest.RawEvent
	for rows.Next() {
		var (
			device, ip, click, done sql.NullString
			ctit                    sql.NullFloat64
			media, ad               sql.NullInt64
		)
		if err := rows.Scan(&device, &ip, &click, &done, &ctit, &media, &ad); err != nil {
			return nil, fmt.Errorf("failed to scan event row %d: %w", len(events), err)
		}
		ev := ingest.RawEvent{
			DeviceID:  ingest.DeviceCell(device.String),
			UserIP:    ip.String,
			ClickDate: click.String,
			DoneDate:  done.String,
			MediaID:   media.Int64,
			AdID:      ad.Int64,
			NoMedia:   !media.Valid,
		}
		if ctit.Valid {
			v := ctit.Float64
			ev.CTIT = &v
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	logging.Ctx(ctx).Info().Str("path", path).Int("rows", len(events)).Msg("Events loaded")
	return events, nil
}

// ReadAds loads the ad metadata at path using cols to locate the fields.
func (s *Store) ReadAds(ctx context.Context, path string, cols ingest.AdColumns) ([]ingest.AdMetadata, error) {
	query := fmt.Sprintf(`
		SELECT
			TRY_CAST(TRY_CAST(%s AS DOUBLE) AS BIGINT),
			TRY_CAST(TRY_CAST(%s AS DOUBLE) AS INTEGER),
			TRY_CAST(TRY_CAST(%s AS DOUBLE) AS INTEGER),
			%s
		FROM %s`,
		quoteIdent(cols.AdID),
		quoteIdent(cols.AdType),
		quoteIdent(cols.AdCategory),
		quoteIdent(cols.AdName),
		csvSource(path))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read ads %s: %w", path, err)
	}
	defer rows.Close()

	var ads []ingest.AdMetadata
	skipped := 0
	for rows.Next() {
		var (
			id, typ, category sql.NullInt64
			name              sql.NullString
		)
		if err := rows.Scan(&id, &typ, &category, &name); err != nil {
			return nil, fmt.Errorf("failed to scan ad row: %w", err)
		}
		if !id.Valid {
			skipped++
			continue
		}
		ads = append(ads, ingest.AdMetadata{
			AdID:       id.Int64,
			AdType:     int(typ.Int64),
			AdCategory: int(category.Int64),
			AdName:     name.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ads: %w", err)
	}

	logging.Ctx(ctx).Info().Str("path", path).Int("rows", len(ads)).Int("skipped", skipped).Msg("Ads loaded")
	return ads, nil
}

// LoadHostnames reads a JSON object mapping IP addresses to hostnames. An empty
// path or a missing file yields an empty map, so every IP resolves to the
// unknown hostname.
func LoadHostnames(path string) (ingest.HostnameMap, error) {
	if path == "" {
		return ingest.HostnameMap{}, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Warn().Str("path", path).Msg("Hostname cache not found, cloud IP detection disabled")
		return ingest.HostnameMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hostname cache: %w", err)
	}

	hosts := ingest.HostnameMap{}
	if err := json.Unmarshal(data, &hosts); err != nil {
		return nil, fmt.Errorf("failed to parse hostname cache %s: %w", path, err)
	}
	logging.Info().Str("path", path).Int("entries", len(hosts)).Msg("Hostname cache loaded")
	return hosts, nil
}
