// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_http_requests_total",
		Help: "HTTP requests by method, path and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leads_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	LeadTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_transitions_total",
		Help: "Committed lead status changes by operation and target status",
	}, []string{"operation", "to"})

	IntakeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_intake_total",
		Help: "Dialer intake calls by outcome",
	}, []string{"outcome"})

	SideEffectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_side_effects_total",
		Help: "Outbox deliveries by kind and result",
	}, []string{"kind", "result"})

	OutboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leads_outbox_backlog",
		Help: "Pending outbox rows seen on the last worker poll",
	})
)
