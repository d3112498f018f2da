// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

// Package metrics registers the Prometheus instruments exported on /metrics.
//
// Instruments are package-level promauto variables; callers use the Record*
// helpers so that label sets stay consistent across packages.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analysis Run Metrics
	AnalysisRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickshield_analysis_runs_total",
			Help: "Total number of analysis runs by outcome",
		},
		[]string{"status"}, // "success", "no_data", "invalid_input", "error"
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clickshield_analysis_duration_seconds",
			Help:    "Duration of analysis stages in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"stage"}, // "prepare", "score", "blocklist", "total"
	)

	// Ingestion Metrics
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickshield_records_ingested_total",
			Help: "Records accepted by ingestion, by subset",
		},
		[]string{"subset"}, // "complete", "incomplete"
	)

	RecordsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clickshield_records_dropped_total",
			Help: "Records dropped for a missing or zero device id",
		},
	)

	// Rule Engine Metrics
	RecordsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickshield_records_scored_total",
			Help: "Records scored by analysis mode",
		},
		[]string{"mode"},
	)

	RuleTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickshield_rule_triggers_total",
			Help: "Number of records on which a rule contributed score",
		},
		[]string{"rule", "mode"},
	)

	// Anomaly Model Metrics
	AnomalyPredictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickshield_anomaly_predictions_total",
			Help: "Devices labelled by an anomaly model",
		},
		[]string{"model", "label"}, // label: "outlier", "inlier"
	)

	AnomalyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickshield_anomaly_errors_total",
			Help: "Anomaly model invocations that failed or were rejected",
		},
		[]string{"model"},
	)

	// Blocklist Metrics
	BlockedDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clickshield_blocked_devices",
			Help: "Number of devices on the most recent blocklist",
		},
	)

	BlocklistThreshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clickshield_blocklist_threshold",
			Help: "Score threshold used by the most recent blocklist",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clickshield_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickshield_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickshield_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickshield_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clickshield_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAnalysisRun records the outcome and total duration of one run.
func RecordAnalysisRun(status string, duration time.Duration) {
	AnalysisRunsTotal.WithLabelValues(status).Inc()
	AnalysisDuration.WithLabelValues("total").Observe(duration.Seconds())
}

// RecordStage records the duration of one pipeline stage.
func RecordStage(stage string, duration time.Duration) {
	AnalysisDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordIngestion records the partition sizes and dropped rows of a batch.
func RecordIngestion(complete, incomplete, dropped int) {
	RecordsIngested.WithLabelValues("complete").Add(float64(complete))
	RecordsIngested.WithLabelValues("incomplete").Add(float64(incomplete))
	RecordsDropped.Add(float64(dropped))
}

// RecordScoring records the number of scored records and per-rule hits.
func RecordScoring(mode string, records int, hits map[string]int) {
	RecordsScored.WithLabelValues(mode).Add(float64(records))
	for rule, n := range hits {
		if n > 0 {
			RuleTriggers.WithLabelValues(rule, mode).Add(float64(n))
		}
	}
}

// RecordAnomalyPredictions records outlier and inlier counts for a model.
func RecordAnomalyPredictions(model string, outliers, inliers int) {
	AnomalyPredictions.WithLabelValues(model, "outlier").Add(float64(outliers))
	AnomalyPredictions.WithLabelValues(model, "inlier").Add(float64(inliers))
}

// RecordAnomalyError records a failed or rejected model invocation.
func RecordAnomalyError(model string) {
	AnomalyErrors.WithLabelValues(model).Inc()
}

// RecordBlocklist records the size and threshold of a derived blocklist.
func RecordBlocklist(blocked int, threshold float64) {
	BlockedDevices.Set(float64(blocked))
	BlocklistThreshold.Set(threshold)
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
