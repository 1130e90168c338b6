// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Auth attempt results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics are the service counters exposed on /metrics.
type Metrics struct {
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	AuthAttempts         *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
}

// NewMetrics creates the service metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentorlik_http_requests_total",
				Help: "HTTP requests by route pattern and status code",
			},
			[]string{"route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mentorlik_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentorlik_auth_attempts_total",
				Help: "Authentication operations by role, operation and result",
			},
			[]string{"role", "operation", "result"},
		),
		NotificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentorlik_notification_failures_total",
				Help: "Best-effort notifications that failed to send, by kind",
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.AuthAttempts, m.NotificationFailures)
	return m
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, status int, seconds float64) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(seconds)
}

// RecordAuthAttempt counts a login, register, verify or refresh outcome.
func (m *Metrics) RecordAuthAttempt(role, operation string, ok bool) {
	result := ResultFailure
	if ok {
		result = ResultSuccess
	}
	m.AuthAttempts.WithLabelValues(role, operation, result).Inc()
}

// RecordNotificationFailure has the signature of
// auth.NotificationFailureRecorder.
func (m *Metrics) RecordNotificationFailure(kind string) {
	m.NotificationFailures.WithLabelValues(kind).Inc()
}
