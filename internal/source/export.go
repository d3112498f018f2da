// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/clickshield/internal/analysis"
	"github.com/tomtom215/clickshield/internal/detection"
	"github.com/tomtom215/clickshield/internal/logging"
)

// Export formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// ErrUnsupportedFormat is returned for an export format other than csv or parquet.
var ErrUnsupportedFormat = errors.New("unsupported export format")

type column struct {
	name string
	typ  string
}

// table is an in-memory result set staged into DuckDB before COPY.
type table struct {
	name    string
	columns []column
	rows    [][]any
}

// ExportScored writes every scored record with its per-rule scores.
func (s *Store) ExportScored(ctx context.Context, path, format string, scored []detection.ScoredRecord) error {
	rules := detection.Rules()
	t := table{
		name: "scored_records",
		columns: []column{
			{"seq", "BIGINT"},
			{"dvc_idx", "BIGINT"},
			{"user_ip", "VARCHAR"},
			{"click_date", "TIMESTAMP"},
			{"done_date", "TIMESTAMP"},
			{"ctit", "DOUBLE"},
			{"mda_idx", "BIGINT"},
			{"ads_idx", "BIGINT"},
			{"ads_type", "INTEGER"},
			{"ads_category", "INTEGER"},
			{"ads_name", "VARCHAR"},
			{"hostname", "VARCHAR"},
			{"is_cloud", "BOOLEAN"},
			{"clicks_in_window", "INTEGER"},
			{"time_since_prev", "DOUBLE"},
			{"device_clicks", "INTEGER"},
			{"mode", "VARCHAR"},
			{"abuse_score", "INTEGER"},
			{"tags", "VARCHAR"},
		},
	}
	for _, r := range rules {
		t.columns = append(t.columns, column{"score_" + string(r.ID), "INTEGER"})
	}

	t.rows = make([][]any, 0, len(scored))
	for i := range scored {
		r := &scored[i]
		row := []any{
			int64(r.Seq),
			r.DeviceID,
			nullString(r.UserIP),
			r.ClickTime,
			nil,
			nullFloat(r.CTIT),
			r.MediaID,
			r.AdID,
			int32(r.AdType),
			int32(r.AdCategory),
			nullString(r.AdName),
			r.Hostname,
			r.IsCloud,
			int32(r.ClicksInWindow),
			nullFloat(r.Features.TimeSincePrev),
			int32(r.Features.DeviceClicks),
			string(r.Mode),
			int32(r.AbuseScore),
			r.TagString(),
		}
		if r.DoneTime != nil {
			row[4] = *r.DoneTime
		}
		if r.NoMedia {
			row[6] = nil
		}
		for _, rule := range rules {
			row = append(row, int32(r.Scores[rule.ID]))
		}
		t.rows = append(t.rows, row)
	}
	return s.export(ctx, path, format, t)
}

// ExportBlocklist writes the blocked devices with their maximum scores.
func (s *Store) ExportBlocklist(ctx context.Context, path, format string, bl detection.Blocklist) error {
	t := table{
		name:    "blocklist",
		columns: []column{{"dvc_idx", "BIGINT"}, {"max_score", "INTEGER"}},
	}
	for _, d := range bl.Distribution {
		if bl.Blocked(d.DeviceID) {
			t.rows = append(t.rows, []any{d.DeviceID, int32(d.MaxScore)})
		}
	}
	return s.export(ctx, path, format, t)
}

// ExportDeviceReport writes the blocked device report.
func (s *Store) ExportDeviceReport(ctx context.Context, path, format string, rows []analysis.DeviceReportRow) error {
	t := table{
		name:    "device_report",
		columns: []column{{"dvc_idx", "BIGINT"}, {"max_score", "INTEGER"}, {"rules", "VARCHAR"}},
	}
	for _, r := range rows {
		t.rows = append(t.rows, []any{r.DeviceID, int32(r.MaxScore), strings.Join(r.Rules, ", ")})
	}
	return s.export(ctx, path, format, t)
}

// ExportMediaReport writes the media report.
func (s *Store) ExportMediaReport(ctx context.Context, path, format string, rows []analysis.MediaReportRow) error {
	t := table{
		name:    "media_report",
		columns: []column{{"mda_idx", "BIGINT"}, {"blocked_devices", "INTEGER"}, {"share_pct", "DOUBLE"}},
	}
	for _, r := range rows {
		t.rows = append(t.rows, []any{r.MediaID, int32(r.BlockedDevices), r.SharePct})
	}
	return s.export(ctx, path, format, t)
}

// export stages t in a temporary table on a dedicated connection and copies
// it to path. An empty path disables the export.
func (s *Store) export(ctx context.Context, path, format string, t table) error {
	if path == "" {
		logging.Ctx(ctx).Debug().Str("table", t.name).Msg("Export disabled")
		return nil
	}
	copyOpts, err := copyOptions(format)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to release export connection")
		}
	}()

	tmp := quoteIdent("tmp_" + t.name + "_" + uuid.NewString()[:8])

	defs := make([]string, len(t.columns))
	marks := make([]string, len(t.columns))
	for i, c := range t.columns {
		defs[i] = quoteIdent(c.name) + " " + c.typ
		marks[i] = "?"
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin export transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TEMPORARY TABLE %s (%s)", tmp, strings.Join(defs, ", "))); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to create temporary export table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", tmp, strings.Join(marks, ", ")))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare export insert: %w", err)
	}
	for i, row := range t.rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("failed to stage %s row %d: %w", t.name, i, err)
		}
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to close export statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export table: %w", err)
	}

	copyQuery := fmt.Sprintf("COPY %s TO %s (%s)", tmp, quoteLiteral(path), copyOpts)
	if _, err := conn.ExecContext(ctx, copyQuery); err != nil {
		return fmt.Errorf("failed to export %s: %w", t.name, err)
	}

	// Clean up temporary table
	if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+tmp); err != nil {
		// Non-fatal error, just log
		logging.Warn().Err(err).Msg("Failed to drop temporary export table")
	}

	logging.Ctx(ctx).Info().
		Str("table", t.name).
		Str("path", path).
		Str("format", format).
		Int("rows", len(t.rows)).
		Msg("Exported")
	return nil
}

func copyOptions(format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return "FORMAT CSV, HEADER true", nil
	case FormatParquet:
		return "FORMAT PARQUET, COMPRESSION 'ZSTD'", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}
