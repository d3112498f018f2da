// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordAnalysisRun(t *testing.T) {
	before := testutil.ToFloat64(AnalysisRunsTotal.WithLabelValues("success"))

	RecordAnalysisRun("success", 250*time.Millisecond)

	if got := testutil.ToFloat64(AnalysisRunsTotal.WithLabelValues("success")); got != before+1 {
		t.Errorf("success runs = %v, want %v", got, before+1)
	}
}

func TestRecordStage(t *testing.T) {
	hist, ok := AnalysisDuration.WithLabelValues("prepare").(prometheus.Histogram)
	if !ok {
		t.Fatal("expected a histogram observer")
	}
	before := sampleCount(t, hist)

	RecordStage("prepare", 10*time.Millisecond)
	RecordStage("prepare", 20*time.Millisecond)

	if got := sampleCount(t, hist); got != before+2 {
		t.Errorf("prepare observations = %d, want %d", got, before+2)
	}
}

func TestRecordIngestion(t *testing.T) {
	complete := testutil.ToFloat64(RecordsIngested.WithLabelValues("complete"))
	incomplete := testutil.ToFloat64(RecordsIngested.WithLabelValues("incomplete"))
	dropped := testutil.ToFloat64(RecordsDropped)

	RecordIngestion(3, 5, 2)

	if got := testutil.ToFloat64(RecordsIngested.WithLabelValues("complete")); got != complete+3 {
		t.Errorf("complete = %v, want %v", got, complete+3)
	}
	if got := testutil.ToFloat64(RecordsIngested.WithLabelValues("incomplete")); got != incomplete+5 {
		t.Errorf("incomplete = %v, want %v", got, incomplete+5)
	}
	if got := testutil.ToFloat64(RecordsDropped); got != dropped+2 {
		t.Errorf("dropped = %v, want %v", got, dropped+2)
	}
}

func TestRecordScoring(t *testing.T) {
	burst := testutil.ToFloat64(RuleTriggers.WithLabelValues("burst_attack", "click"))
	scored := testutil.ToFloat64(RecordsScored.WithLabelValues("click"))

	RecordScoring("click", 10, map[string]int{"burst_attack": 4, "rapid_click": 0})

	if got := testutil.ToFloat64(RuleTriggers.WithLabelValues("burst_attack", "click")); got != burst+4 {
		t.Errorf("burst_attack triggers = %v, want %v", got, burst+4)
	}
	if got := testutil.ToFloat64(RecordsScored.WithLabelValues("click")); got != scored+10 {
		t.Errorf("scored = %v, want %v", got, scored+10)
	}
}

func TestRecordBlocklist(t *testing.T) {
	RecordBlocklist(7, 95.5)

	if got := testutil.ToFloat64(BlockedDevices); got != 7 {
		t.Errorf("blocked devices = %v, want 7", got)
	}
	if got := testutil.ToFloat64(BlocklistThreshold); got != 95.5 {
		t.Errorf("threshold = %v, want 95.5", got)
	}
}

func TestRecordAnomaly(t *testing.T) {
	outliers := testutil.ToFloat64(AnomalyPredictions.WithLabelValues("ctit", "outlier"))
	errs := testutil.ToFloat64(AnomalyErrors.WithLabelValues("ctit"))

	RecordAnomalyPredictions("ctit", 2, 8)
	RecordAnomalyError("ctit")

	if got := testutil.ToFloat64(AnomalyPredictions.WithLabelValues("ctit", "outlier")); got != outliers+2 {
		t.Errorf("outliers = %v, want %v", got, outliers+2)
	}
	if got := testutil.ToFloat64(AnomalyErrors.WithLabelValues("ctit")); got != errs+1 {
		t.Errorf("errors = %v, want %v", got, errs+1)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/analyze", "200"))

	RecordAPIRequest("POST", "/api/v1/analyze", 200, 30*time.Millisecond)

	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/analyze", "200")); got != before+1 {
		t.Errorf("requests = %v, want %v", got, before+1)
	}
}

func TestMetricsLint(t *testing.T) {
	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, p := range problems {
		t.Errorf("lint %s: %s", p.Metric, p.Text)
	}
}

func sampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}
