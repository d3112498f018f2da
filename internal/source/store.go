// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

// Package source reads batch inputs and writes batch outputs through an
// in-process DuckDB database. Event and ad CSV files are read with
// read_csv_auto; results are exported with COPY ... TO as CSV or Parquet.
// The database never outlives the process.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/clickshield/internal/logging"
)

// Config configures the DuckDB instance.
type Config struct {
	// Path is the database file; empty opens an in-memory database.
	Path string
	// Threads limits DuckDB worker threads; 0 keeps the default.
	Threads int
	// MaxMemory is a limit such as "2GB"; empty keeps the default.
	MaxMemory string
}

// Store wraps the DuckDB connection pool.
type Store struct {
	db *sql.DB
}

// Open opens a DuckDB database.
func Open(cfg Config) (*Store, error) {
	params := url.Values{}
	// Disable auto-install/auto-load to prevent hangs in restricted network environments
	params.Set("autoinstall_known_extensions", "false")
	params.Set("autoload_known_extensions", "false")
	if cfg.Threads > 0 {
		params.Set("threads", strconv.Itoa(cfg.Threads))
	}
	if cfg.MaxMemory != "" {
		params.Set("max_memory", cfg.MaxMemory)
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.Debug().Str("path", path).Int("threads", cfg.Threads).Msg("DuckDB opened")
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database")
	}
}

// quoteIdent quotes a column or table name for DuckDB.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a string literal for DuckDB.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
