// Package observability holds the Prometheus instruments for auth flows.
package observability

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-session-auth/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess         = "success"
	OutcomeValidation      = "validation"
	OutcomeConflict        = "conflict"
	OutcomeNotFound        = "not_found"
	OutcomeUnauthorized    = "unauthorized"
	OutcomeForbidden       = "forbidden"
	OutcomeExpired         = "expired"
	OutcomeMismatch        = "mismatch"
	OutcomeInvalidToken    = "invalid_token"
	OutcomeAlreadyVerified = "already_verified"
	OutcomeDelivery        = "delivery_failed"
	OutcomeError           = "error"
)

// Metrics counts and times auth operations. A nil *Metrics records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the instruments on a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Total number of auth operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_operation_duration_seconds",
				Help:    "Auth operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	m.registry.MustRegister(
		m.operations,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one completed operation.
func (m *Metrics) Observe(operation string, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, Outcome(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome maps an operation error to its label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrTooShort), errors.Is(err, domain.ErrBadRequest):
		return OutcomeValidation
	case errors.Is(err, domain.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return OutcomeForbidden
	case errors.Is(err, domain.ErrExpired):
		return OutcomeExpired
	case errors.Is(err, domain.ErrMismatch):
		return OutcomeMismatch
	case errors.Is(err, domain.ErrInvalidToken):
		return OutcomeInvalidToken
	case errors.Is(err, domain.ErrAlreadyVerified):
		return OutcomeAlreadyVerified
	case errors.Is(err, domain.ErrDelivery):
		return OutcomeDelivery
	default:
		return OutcomeError
	}
}
