// Package metrics holds the Prometheus collectors shared by the HTTP layer and
// the services. Everything registers on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "leadflow"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	LeadsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leads_ingested_total",
		Help:      "Submissions processed by channel and outcome (created, updated, failed).",
	}, []string{"channel", "outcome"})

	SpamFlagged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spam_flagged_total",
		Help:      "Submissions flagged by the keyword classifier.",
	}, []string{"channel"})

	FacebookFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "facebook_fetches_total",
		Help:      "Graph API follow-up fetches by result.",
	}, []string{"result"})

	OverdueLeads = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sla_overdue_leads",
		Help:      "Overdue leads per tenant as of the last SLA scan.",
	}, []string{"tenant"})
)
