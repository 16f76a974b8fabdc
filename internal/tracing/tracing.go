// Package tracing wires OpenTelemetry. Tracing is off unless
// OTEL_EXPORTER_OTLP_ENDPOINT is set; spans are then still created through
// the global no-op provider, so callers never need to check.
package tracing

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const tracerName = "gym-class-booking/http"

var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Init initializes the global tracer provider and returns a shutdown function.
// If OTEL_EXPORTER_OTLP_ENDPOINT is not set, returns nil (tracing disabled).
func Init(serviceName string) func() {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return nil
	}
	if u, err := parseOTLPEndpoint(endpoint); err == nil {
		endpoint = u
	}
	ctx := context.Background()
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceNameKey.String(serviceName)),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)
	return func() { _ = tp.Shutdown(ctx) }
}

// Middleware extracts trace context from the incoming headers and wraps the
// request in a server span named after the route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tracer := otel.Tracer(tracerName)
			req := c.Request()
			ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			ctx, span := tracer.Start(ctx, req.Method+" "+route)
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			span.SetAttributes(
				attribute.Int("http.status_code", status),
				attribute.String("http.method", req.Method),
				attribute.String("http.route", route),
			)
			if status >= 400 {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			return nil
		}
	}
}

func parseOTLPEndpoint(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if !strings.Contains(raw, "://") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "4318"
	}
	return host + ":" + port, nil
}
