// Package metrics exposes Prometheus instruments for the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesCast counts accepted votes, by anonymity.
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votex_votes_cast_total",
		Help: "Total number of accepted votes, by anonymity.",
	}, []string{"anonymous"})

	// HTTPRequests counts handled requests by route template, not raw path.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votex_http_requests_total",
		Help: "Total number of HTTP requests, by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "votex_http_request_duration_seconds",
		Help:    "HTTP request latency, by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votex_notifications_sent_total",
		Help: "Total number of notifications created, by type.",
	}, []string{"type"})

	ThrottledRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votex_throttled_requests_total",
		Help: "Total number of requests rejected by the vote throttle, by scope.",
	}, []string{"scope"})
)
