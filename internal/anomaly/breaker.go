// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package anomaly

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/clickshield/internal/logging"
	"github.com/tomtom215/clickshield/internal/metrics"
)

// BreakerSettings tunes the circuit breaker around a model.
type BreakerSettings struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial call.
	Timeout time.Duration
}

// DefaultBreakerSettings opens after 3 consecutive failures for one minute.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MaxFailures: 3, Timeout: time.Minute}
}

// Breaker guards a model with a circuit breaker. While the circuit is open,
// Predict fails fast with gobreaker.ErrOpenState and the caller treats the
// model's rule as not firing. Long-running servers use it so a model that keeps
// failing is not invoked on every request.
type Breaker struct {
	model Model
	name  string
	cb    *gobreaker.CircuitBreaker[[]Label]
}

// NewBreaker wraps model under the given metrics name.
func NewBreaker(name string, model Model, settings BreakerSettings) *Breaker {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = DefaultBreakerSettings().MaxFailures
	}
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultBreakerSettings().Timeout
	}
	cbName := "anomaly-" + name

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]Label](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Anomaly model circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Breaker{model: model, name: cbName, cb: cb}
}

// Available reports whether the wrapped model is available. An open circuit
// does not make the model unavailable; Predict reports it as an error instead.
func (b *Breaker) Available() bool {
	return IsAvailable(b.model)
}

// Predict calls the wrapped model through the circuit breaker.
func (b *Breaker) Predict(table FeatureTable) ([]Label, error) {
	labels, err := b.cb.Execute(func() ([]Label, error) {
		return b.model.Predict(table)
	})
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return labels, err
}

// State returns the current circuit state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
