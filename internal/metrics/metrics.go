// Package metrics собирает метрики prometheus по проверкам прав,
// платёжным событиям и фоновым задачам.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

// Metrics хранит коллекторы сервиса и собственный реестр.
type Metrics struct {
	registry        *prometheus.Registry
	decisions       *prometheus.CounterVec
	billingEvents   *prometheus.CounterVec
	billingRetries  prometheus.Counter
	purgedCounters  prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New создаёт и регистрирует коллекторы. Метка service добавляется ко всем метрикам.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: reg,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "entitlement_decisions_total",
			Help:        "Entitlement decisions by operation, tier and outcome.",
			ConstLabels: constLabels,
		}, []string{"op", "tier", "outcome", "reason"}),
		billingEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "billing_events_total",
			Help:        "Verified billing events by type and processing result.",
			ConstLabels: constLabels,
		}, []string{"type", "result"}),
		billingRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "billing_persist_retries_total",
			Help:        "Retried attempts to persist a tier change.",
			ConstLabels: constLabels,
		}),
		purgedCounters: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "usage_counters_purged_total",
			Help:        "Usage counter rows removed by the retention job.",
			ConstLabels: constLabels,
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency by route and status.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.decisions,
		m.billingEvents,
		m.billingRetries,
		m.purgedCounters,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordDecision учитывает результат проверки прав.
func (m *Metrics) RecordDecision(op string, tier models.SubscriptionTier, allowed bool, reason string) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	if reason == "" {
		reason = "none"
	}
	m.decisions.WithLabelValues(op, tier.String(), outcome, reason).Inc()
}

// RecordBillingEvent учитывает обработанное платёжное событие.
func (m *Metrics) RecordBillingEvent(eventType models.BillingEventType, result string) {
	m.billingEvents.WithLabelValues(string(eventType), result).Inc()
}

// RecordBillingRetry учитывает повторную попытку записи тарифа.
func (m *Metrics) RecordBillingRetry() {
	m.billingRetries.Inc()
}

// RecordPurge учитывает удалённые счётчики.
func (m *Metrics) RecordPurge(rows int64) {
	m.purgedCounters.Add(float64(rows))
}

// ObserveRequest учитывает длительность HTTP-запроса.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler отдаёт метрики в формате prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry возвращает реестр коллекторов.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
