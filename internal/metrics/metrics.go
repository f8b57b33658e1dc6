// Package metrics содержит prometheus-коллекторы сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Исходы обработки вебхука.
const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
)

// Metrics набор счётчиков. Методы безопасно вызывать на nil.
type Metrics struct {
	WebhookEvents       *prometheus.CounterVec
	RateLimited         *prometheus.CounterVec
	EntitlementFailOpen prometheus.Counter
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Billing webhook events by type and processing outcome.",
		}, []string{"type", "outcome"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"operation"}),
		EntitlementFailOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entitlement_fail_open_total",
			Help: "Access checks granted because the subscription store was unavailable.",
		}),
	}
	reg.MustRegister(m.WebhookEvents, m.RateLimited, m.EntitlementFailOpen)
	return m
}

// WebhookProcessed учитывает обработанное событие.
func (m *Metrics) WebhookProcessed(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// Limited учитывает отклонённый лимитером запрос.
func (m *Metrics) Limited(operation string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(operation).Inc()
}

// FailOpen учитывает проверку доступа, пропущенную из-за ошибки хранилища.
func (m *Metrics) FailOpen() {
	if m == nil {
		return
	}
	m.EntitlementFailOpen.Inc()
}
