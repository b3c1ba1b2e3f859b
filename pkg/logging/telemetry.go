package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"go-killtracker/pkg/config"
	"go-killtracker/pkg/version"
)

// TelemetryManager owns the process-wide logging and telemetry setup:
// the default slog handler, and, when ENABLE_TELEMETRY is on, the OTLP
// trace and log exporters.
type TelemetryManager struct {
	serviceName   string
	endpoint      string
	environment   string
	enabled       bool
	prettyLogs    bool
	level         slog.Level
	shutdownFuncs []func(context.Context) error
	logger        *slog.Logger
}

func NewTelemetryManager() *TelemetryManager {
	return &TelemetryManager{
		serviceName: config.GetEnv("SERVICE_NAME", "killtracker"),
		endpoint:    config.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		environment: config.GetEnv("ENVIRONMENT", "development"),
		enabled:     config.GetBoolEnv("ENABLE_TELEMETRY", false),
		prettyLogs:  config.GetBoolEnv("ENABLE_PRETTY_LOGS", false),
		level:       parseLogLevel(config.GetEnv("LOG_LEVEL", "info")),
	}
}

// Initialize installs the default logger and, when telemetry is enabled,
// the OTLP exporters. Exporter failures degrade to console-only logging
// rather than failing startup.
func (tm *TelemetryManager) Initialize(ctx context.Context) error {
	tm.setupLogger()

	if !tm.enabled {
		slog.Info("Telemetry disabled", slog.String("service", tm.serviceName))
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(tm.serviceName),
			semconv.ServiceVersionKey.String(version.Version),
			semconv.DeploymentEnvironmentKey.String(tm.environment),
		),
	)
	if err != nil {
		return err
	}

	if err := tm.initTracing(ctx, res); err != nil {
		slog.Warn("Failed to initialize tracing", "error", err)
	}
	if err := tm.initLogging(ctx, res); err != nil {
		slog.Warn("Failed to initialize OpenTelemetry logging", "error", err)
	}

	slog.Info("Telemetry initialized",
		slog.String("service", tm.serviceName),
		slog.String("endpoint", tm.endpoint),
		slog.String("log_level", tm.level.String()),
		slog.Bool("pretty_logs", tm.prettyLogs),
	)
	return nil
}

func (tm *TelemetryManager) initTracing(ctx context.Context, res *resource.Resource) error {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(tm.endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithURLPath("/v1/traces"),
	)
	if err != nil {
		return err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tm.shutdownFuncs = append(tm.shutdownFuncs, provider.Shutdown)
	return nil
}

func (tm *TelemetryManager) initLogging(ctx context.Context, res *resource.Resource) error {
	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(tm.endpoint),
		otlploghttp.WithInsecure(),
		otlploghttp.WithURLPath("/v1/logs"),
	)
	if err != nil {
		return err
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(provider)

	tm.shutdownFuncs = append(tm.shutdownFuncs, provider.Shutdown)
	return nil
}

// setupLogger selects Text (pretty) or JSON output and mirrors records to
// OTLP when telemetry is on, then installs the result as the default.
func (tm *TelemetryManager) setupLogger() {
	opts := &slog.HandlerOptions{Level: tm.level}

	var handler slog.Handler
	if tm.prettyLogs {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	if tm.enabled {
		handler = NewOTelHandler(handler)
	}

	tm.logger = slog.New(handler)
	slog.SetDefault(tm.logger)
}

func (tm *TelemetryManager) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down telemetry...")
	for _, shutdown := range tm.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			slog.Error("Error shutting down telemetry component", "error", err)
		}
	}
	return nil
}

func (tm *TelemetryManager) Logger() *slog.Logger {
	return tm.logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
