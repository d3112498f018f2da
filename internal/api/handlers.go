// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package api

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clickshield/internal/analysis"
	"github.com/tomtom215/clickshield/internal/detection"
	"github.com/tomtom215/clickshield/internal/ingest"
	"github.com/tomtom215/clickshield/internal/validation"
)

// Handler serves the ClickShield API.
type Handler struct {
	analyzer *analysis.Analyzer
	version  string
	timeout  time.Duration
	maxBody  int64
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Version string
	// Timeout bounds one analyze request; zero means no limit.
	Timeout time.Duration
	// MaxBodyBytes caps the analyze request body.
	MaxBodyBytes int64
}

// NewHandler creates a Handler around analyzer.
func NewHandler(analyzer *analysis.Analyzer, opts HandlerOptions) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 20
	}
	return &Handler{
		analyzer: analyzer,
		version:  opts.Version,
		timeout:  opts.Timeout,
		maxBody:  opts.MaxBodyBytes,
	}
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status       string          `json:"status"`
	Version      string          `json:"version"`
	Models       map[string]bool `json:"models"`
	EnabledRules int             `json:"enabled_rules"`
}

// Health reports liveness, the build version and which anomaly models loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, HealthResponse{
		Status:       "ok",
		Version:      h.version,
		Models:       h.analyzer.ModelStatus(),
		EnabledRules: len(detection.RuleCatalogue(h.analyzer.Rules())),
	}, "")
}

// Rules lists the enabled rules of the active configuration.
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, detection.RuleCatalogue(h.analyzer.Rules()), "")
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Events    []ingest.RawEvent   `json:"events" validate:"required,min=1"`
	Ads       []ingest.AdMetadata `json:"ads"`
	Hostnames ingest.HostnameMap  `json:"hostnames"`

	// Blocklist overrides the named fields of the server's blocklist policy.
	Blocklist json.RawMessage `json:"blocklist,omitempty"`
}

// AnalyzeResponse is the data of a successful analyze call.
type AnalyzeResponse struct {
	*analysis.Result
	Records []RecordView `json:"records,omitempty"`
}

// RecordView is the JSON form of one scored record.
type RecordView struct {
	DeviceID  int64      `json:"dvc_idx"`
	UserIP    string     `json:"user_ip,omitempty"`
	ClickDate time.Time  `json:"click_date"`
	DoneDate  *time.Time `json:"done_date,omitempty"`
	CTIT      *float64   `json:"ctit,omitempty"`
	MediaID   int64      `json:"mda_idx"`
	AdID      int64      `json:"ads_idx"`
	Hostname  string     `json:"hostname"`
	IsCloud   bool       `json:"is_cloud"`
	Mode      string     `json:"mode"`

	TimeSincePrev *float64 `json:"time_since_prev,omitempty"`
	DeviceClicks  int      `json:"device_clicks"`
	Hour          int      `json:"hour"`
	DeviceMedia   int      `json:"device_media"`
	IPDevices     int      `json:"ip_devices"`
	DeviceIPs     int      `json:"device_ips"`
	CTITStdDev    float64  `json:"ctit_std"`

	Scores     map[detection.RuleID]int `json:"scores"`
	AbuseScore int                      `json:"abuse_score"`
	Tags       string                   `json:"tags"`
}

func newRecordView(s *detection.ScoredRecord) RecordView {
	return RecordView{
		DeviceID:      s.DeviceID,
		UserIP:        s.UserIP,
		ClickDate:     s.ClickTime,
		DoneDate:      s.DoneTime,
		CTIT:          finiteOrNil(s.CTIT),
		MediaID:       s.MediaID,
		AdID:          s.AdID,
		Hostname:      s.Hostname,
		IsCloud:       s.IsCloud,
		Mode:          string(s.Mode),
		TimeSincePrev: finiteOrNil(s.Features.TimeSincePrev),
		DeviceClicks:  s.Features.DeviceClicks,
		Hour:          s.Features.Hour,
		DeviceMedia:   s.Features.DeviceMedia,
		IPDevices:     s.Features.IPDevices,
		DeviceIPs:     s.Features.DeviceIPs,
		CTITStdDev:    s.Features.CTITStdDev,
		Scores:        s.Scores,
		AbuseScore:    s.AbuseScore,
		Tags:          s.TagString(),
	}
}

// finiteOrNil maps NaN (absent) to nil; JSON has no NaN.
func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Analyze runs one analysis over the request body. Records are included in
// the response only with ?include_records=true.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	includeRecords := false
	if v := r.URL.Query().Get("include_records"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "INVALID_QUERY", "include_records must be a boolean", err)
			return
		}
		includeRecords = b
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body exceeds the size limit", err)
			return
		}
		respondError(w, r, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body", err)
		return
	}

	var req AnalyzeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "Malformed JSON body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondAPIError(w, r, http.StatusBadRequest, verr.ToAPIError())
		return
	}

	policy := h.analyzer.Policy()
	if len(req.Blocklist) > 0 {
		var err error
		if policy, err = applyPolicyOverride(policy, req.Blocklist); err != nil {
			respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "Malformed blocklist policy", err)
			return
		}
	}
	if err := policy.Validate(); err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, "INVALID_POLICY", err.Error(), err)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.analyzer.RunWithPolicy(ctx, analysis.Input{
		Events:    req.Events,
		Ads:       req.Ads,
		Hostnames: req.Hostnames,
	}, policy)
	if err != nil {
		h.respondAnalysisError(w, r, err)
		return
	}

	out := AnalyzeResponse{Result: res}
	if includeRecords {
		out.Records = make([]RecordView, len(res.Scored))
		for i := range res.Scored {
			out.Records[i] = newRecordView(&res.Scored[i])
		}
	}
	respondSuccess(w, r, out, res.RunID)
}

// applyPolicyOverride merges the fields present in raw onto base. A request
// that sets percentile without sensitivity drops the server's preset.
func applyPolicyOverride(base detection.BlocklistPolicy, raw json.RawMessage) (detection.BlocklistPolicy, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return base, err
	}
	policy := base
	if err := json.Unmarshal(raw, &policy); err != nil {
		return base, err
	}
	_, hasPercentile := fields["percentile"]
	_, hasSensitivity := fields["sensitivity"]
	if hasPercentile && !hasSensitivity {
		policy.Sensitivity = ""
	}
	return policy, nil
}

func (h *Handler) respondAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ingest.ErrNoData):
		respondError(w, r, http.StatusUnprocessableEntity, "NO_DATA", "No analyzable records in the request", err)
	case errors.Is(err, ingest.ErrInvalidTimestamp):
		respondError(w, r, http.StatusUnprocessableEntity, "INVALID_TIMESTAMP", err.Error(), err)
	case errors.Is(err, detection.ErrInvalidBlocklistMethod), errors.Is(err, detection.ErrInvalidPercentile):
		respondError(w, r, http.StatusUnprocessableEntity, "INVALID_POLICY", err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Analysis timed out", err)
	case errors.Is(err, context.Canceled):
		respondError(w, r, http.StatusServiceUnavailable, "CANCELED", "Analysis canceled", err)
	default:
		respondError(w, r, http.StatusInternalServerError, "ANALYSIS_FAILED", "Analysis failed", err)
	}
}
