// internal/metrics/metrics.go
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/licensehub/license-server/internal/services"
)

const namespace = "license_server"

// LicenseMetrics holds the Prometheus collectors of the license server. It is
// also an audit sink: activation, check and issuance events are counted as
// they are recorded.
type LicenseMetrics struct {
	ActivationsTotal *prometheus.CounterVec
	ChecksTotal      *prometheus.CounterVec
	LicensesIssued   *prometheus.CounterVec
	WebhookFailures  prometheus.Counter
	LoginsTotal      *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

// NewLicenseMetrics registers the collectors with reg. The server passes
// prometheus.DefaultRegisterer; tests pass a fresh registry.
func NewLicenseMetrics(reg prometheus.Registerer) *LicenseMetrics {
	factory := promauto.With(reg)

	return &LicenseMetrics{
		ActivationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "activations_total",
			Help:      "Activation requests by outcome and reason.",
		}, []string{"outcome", "reason"}), // outcome: success, failed
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "checks_total",
			Help:      "Validation checks by reported status.",
		}, []string{"status"}), // status: active, suspended, expired, not_found, domain_not_activated
		LicensesIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "licenses_issued_total",
			Help:      "Licenses created by source.",
		}, []string{"source"}), // source: admin, order, stripe
		WebhookFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "failures_total",
			Help:      "Webhook deliveries rejected or failed.",
		}),
		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "logins_total",
			Help:      "Admin login attempts by outcome.",
		}, []string{"outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
}

// Record implements services.AuditSink.
func (m *LicenseMetrics) Record(_ context.Context, event services.AuditEvent) {
	switch event.Event {
	case services.EventActivationSuccess:
		m.ActivationsTotal.WithLabelValues("success", "").Inc()
	case services.EventActivationFailed:
		m.ActivationsTotal.WithLabelValues("failed", string(event.Reason)).Inc()
	case services.EventValidationCheck:
		status, _ := event.Fields["status"].(string)
		m.ChecksTotal.WithLabelValues(status).Inc()
	case services.EventValidationFailed:
		m.ChecksTotal.WithLabelValues(string(event.Reason)).Inc()
	case services.EventLicenseCreated:
		m.LicensesIssued.WithLabelValues("admin").Inc()
	case services.EventWebhookLicenseCreated:
		source, _ := event.Fields["source"].(string)
		m.LicensesIssued.WithLabelValues(source).Inc()
	case services.EventWebhookFailed, services.EventWebhookError:
		m.WebhookFailures.Inc()
	case services.EventLoginSuccess:
		m.LoginsTotal.WithLabelValues("success").Inc()
	case services.EventLoginFailed:
		m.LoginsTotal.WithLabelValues("failed").Inc()
	}
}
