// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file instruments HTTP traffic for Prometheus. Requests are labelled by
// route group rather than raw URL so dashboards line up with the service's
// surfaces:
//
//   - lifecycle: send, accept, reject and cancel
//   - reads:     the connection and restriction listings
//   - gate:      messages on a connection
//   - ops:       health, metrics and docs
//   - unmatched: anything no route answered
//
// Failures additionally count the envelope `code` (restricted, conflict,
// invalid_state, ...) so refusals are visible per kind without log queries.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Route groups.
const (
	groupLifecycle = "lifecycle"
	groupReads     = "reads"
	groupGate      = "gate"
	groupOps       = "ops"
	groupUnmatched = "unmatched"
)

// errorCodeKey holds the envelope code of a failed request.
const errorCodeKey = "error_code"

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route group, route and status.",
		},
		[]string{"group", "method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route group.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"group", "method"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Requests currently being served.",
		},
	)

	// httpFailures counts failure envelopes by group and code.
	httpFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_failures_total",
			Help: "Failure responses by route group and envelope code.",
		},
		[]string{"group", "code"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, httpInflight, httpFailures)
}

// SetErrorCode records the envelope code of a failure so Metrics can count
// it. Every writer of a failure envelope calls it.
func SetErrorCode(c *gin.Context, code string) {
	if code != "" {
		c.Set(errorCodeKey, code)
	}
}

// routeGroup classifies a registered route. route is c.FullPath(), empty
// when nothing matched.
func routeGroup(method, route string) string {
	switch {
	case route == "":
		return groupUnmatched
	case strings.HasSuffix(route, "/messages"):
		return groupGate
	case strings.Contains(route, "/connections") || strings.Contains(route, "/posts/"):
		if method == "GET" {
			return groupReads
		}
		return groupLifecycle
	}
	return groupOps
}

// Metrics returns a middleware recording http_requests_total,
// http_request_duration_seconds, http_requests_inflight and, for failures,
// http_failures_total. Mount /metrics with promhttp next to it.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := c.FullPath()
		group := routeGroup(c.Request.Method, route)
		if route == "" {
			route = groupUnmatched
		}
		status := c.Writer.Status()

		httpRequests.WithLabelValues(group, c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(group, c.Request.Method).Observe(time.Since(start).Seconds())
		if code := c.GetString(errorCodeKey); code != "" {
			httpFailures.WithLabelValues(group, code).Inc()
		}
	}
}
