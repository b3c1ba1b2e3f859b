package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

// mirrorHandler is an slog.Handler that forwards every record to the
// wrapped console/JSON handler and mirrors it to the OTLP log exporter,
// stamped with the active span's trace and span IDs.
type mirrorHandler struct {
	next   slog.Handler
	logger log.Logger
}

// NewOTelHandler wraps a handler with OTLP mirroring
func NewOTelHandler(next slog.Handler) slog.Handler {
	return &mirrorHandler{
		next:   next,
		logger: global.GetLoggerProvider().Logger("killtracker"),
	}
}

func (h *mirrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *mirrorHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.next.Handle(ctx, record)
	if err != nil {
		return err
	}

	out := log.Record{}
	out.SetTimestamp(record.Time)
	out.SetBody(log.StringValue(record.Message))
	out.SetSeverity(severityFor(record.Level))

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		out.AddAttributes(
			log.String("trace_id", span.SpanContext().TraceID().String()),
			log.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttributes(log.String(attr.Key, attr.Value.String()))
		return true
	})

	h.logger.Emit(ctx, out)
	return nil
}

func (h *mirrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &mirrorHandler{next: h.next.WithAttrs(attrs), logger: h.logger}
}

func (h *mirrorHandler) WithGroup(name string) slog.Handler {
	return &mirrorHandler{next: h.next.WithGroup(name), logger: h.logger}
}

func severityFor(level slog.Level) log.Severity {
	switch {
	case level >= slog.LevelError:
		return log.SeverityError
	case level >= slog.LevelWarn:
		return log.SeverityWarn
	case level >= slog.LevelInfo:
		return log.SeverityInfo
	default:
		return log.SeverityDebug
	}
}
