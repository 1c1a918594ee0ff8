// Package http provides the HTTP transport adapter for the authorization
// service.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/storyglot/authz/internal/service"
)

const metricsNamespace = "storyglot_authz"

// Metrics holds the Prometheus metrics recorded by the HTTP adapter.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ChecksTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers all request metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ChecksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "checks_total",
				Help:      "Total authorization checks by decision",
			},
			[]string{"decision"}, // decision=allow/deny
		),
	}
}

// RegisterEngineStats exports the engine's internal counters (ability cache,
// audit backpressure) as Prometheus collectors backed by the live services.
// Pass nil for services that are not configured.
func RegisterEngineStats(reg prometheus.Registerer, authz *service.AuthorizationService, abilities *service.AbilityService, audits *service.AuditService) {
	if authz != nil {
		reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rbac_denials_total",
				Help:      "Total checks denied by the role-based guard",
			}, func() float64 { return float64(authz.RBACDenials()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "policy_denials_total",
				Help:      "Total checks denied by a resource policy",
			}, func() float64 { return float64(authz.PolicyDenials()) }),
		)
	}
	if abilities != nil {
		reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ability_compiles_total",
				Help:      "Total ability compilations",
			}, func() float64 { return float64(abilities.Compiles()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ability_cache_hits_total",
				Help:      "Total ability cache hits",
			}, func() float64 { return float64(abilities.CacheHits()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ability_cache_misses_total",
				Help:      "Total ability cache misses",
			}, func() float64 { return float64(abilities.CacheMisses()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "ability_cache_entries",
				Help:      "Current number of cached abilities",
			}, func() float64 { return float64(abilities.Size()) }),
		)
	}
	if audits != nil {
		reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "audit_drops_total",
				Help:      "Total audit records dropped due to backpressure",
			}, func() float64 { return float64(audits.Drops()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "audit_channel_depth",
				Help:      "Audit records currently buffered",
			}, func() float64 { return float64(audits.ChannelDepth()) }),
		)
	}
}
