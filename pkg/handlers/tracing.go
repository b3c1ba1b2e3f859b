package handlers

import (
	"net/http"

	"go-killtracker/pkg/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// TracingMiddleware wraps handlers in an OpenTelemetry server span. When
// ENABLE_TELEMETRY is off the middleware passes requests through untouched.
func TracingMiddleware(serviceName string) func(http.Handler) http.Handler {
	if !config.GetBoolEnv("ENABLE_TELEMETRY", true) {
		return func(next http.Handler) http.Handler { return next }
	}

	return otelhttp.NewMiddleware(
		serviceName,
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
	)
}
