// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	ReservationOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "class_reservation_operations_total",
			Help: "Reserve and cancel attempts by outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// Middleware records request counts and latency per route template.
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().URL.Path == "/metrics" {
			return next(c)
		}
		start := time.Now()
		err := next(c)
		if err != nil {
			// let echo write the error response so the status is known
			c.Error(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Response().Status)
		RequestTotal.WithLabelValues(c.Request().Method, route, status).Inc()
		RequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
		return nil
	}
}

// ObserveReservation counts one reserve or cancel attempt.
func ObserveReservation(operation, outcome string) {
	ReservationOperations.WithLabelValues(operation, outcome).Inc()
}
