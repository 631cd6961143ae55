package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы запроса сброса (label outcome).
const (
	OutcomeIssued         = "issued"
	OutcomeUnknownAccount = "unknown_account"
	OutcomeThrottled      = "throttled"
	OutcomeEmailFailed    = "email_failed"
	OutcomeError          = "error"

	OutcomeSuccess      = "success"
	OutcomeNotFound     = "token_not_found"
	OutcomeAlreadyUsed  = "token_already_used"
	OutcomeExpired      = "token_expired"
	OutcomeCredentialKO = "credential_update_failed"
)

type Metrics struct {
	requests    *prometheus.CounterVec
	completions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "password_reset_requests_total",
			Help: "Password reset requests by outcome.",
		}, []string{"outcome"}),
		completions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "password_reset_completions_total",
			Help: "Password reset completions by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) request(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) completion(outcome string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(outcome).Inc()
}
