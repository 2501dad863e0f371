// Package logger wires slog structured logging with OpenTelemetry tracing for the
// whole process. Output is JSON by default so backtest runs stay grep-able.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	globalLogger   *slog.Logger
	tracingEnabled bool
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
)

// Config controls handler format, level, and whether spans are emitted.
type Config struct {
	Level          string // DEBUG, INFO, WARN, ERROR
	Format         string // json or text
	TracingEnabled bool
}

// ConfigFromEnv builds a Config from LOG_LEVEL, LOG_FORMAT, and LOG_TRACING_ENABLED.
func ConfigFromEnv() Config {
	return Config{
		Level:          envOr("LOG_LEVEL", "INFO"),
		Format:         envOr("LOG_FORMAT", "json"),
		TracingEnabled: envOr("LOG_TRACING_ENABLED", "false") == "true",
	}
}

// Init initializes the global logger and tracer from environment variables.
func Init() error { return InitWithConfig(ConfigFromEnv()) }

// InitWithConfig initializes the global logger and, when enabled, the tracer.
func InitWithConfig(cfg Config) error {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	tracingEnabled = cfg.TracingEnabled
	if tracingEnabled {
		if err := initTracer(); err != nil {
			globalLogger.Warn("failed to initialize tracer, tracing disabled", "error", err)
			tracingEnabled = false
		}
	}
	return nil
}

func initTracer() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName("finbot"),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return err
	}
	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer("finbot")
	return nil
}

// Shutdown flushes any pending spans.
func Shutdown(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// StartSpan opens a span when tracing is enabled, otherwise returns the current one.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !tracingEnabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

func traceAttrs(ctx context.Context) []any {
	if !tracingEnabled {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return []any{
		"trace_id", span.SpanContext().TraceID().String(),
		"span_id", span.SpanContext().SpanID().String(),
	}
}

func log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if globalLogger == nil {
		globalLogger = slog.Default()
	}
	if attrs := traceAttrs(ctx); attrs != nil {
		args = append(attrs, args...)
	}
	globalLogger.Log(ctx, level, msg, args...)
}

// Debug logs a debug message.
func Debug(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelDebug, msg, args...) }

// Info logs an info message.
func Info(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelInfo, msg, args...) }

// Warn logs a warning message.
func Warn(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelWarn, msg, args...) }

// Error logs an error message.
func Error(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelError, msg, args...) }

// ErrorWithErr logs an error message with the error attached and recorded on the
// active span.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	log(ctx, slog.LevelError, msg, append([]any{"error", err}, args...)...)
}

// Trade logs an executed simulated fill (always at info level).
func Trade(ctx context.Context, ticker, side string, shares int, price, fee float64, reason string, fields ...any) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.AddEvent("trade_executed", trace.WithAttributes(
				attribute.String("ticker", ticker),
				attribute.String("side", side),
				attribute.Int("shares", shares),
				attribute.Float64("price", price),
				attribute.Float64("fee", fee),
				attribute.String("reason", reason),
			))
		}
	}
	all := append([]any{
		"type", "TRADE",
		"ticker", ticker,
		"side", side,
		"shares", shares,
		"price", price,
		"fee", fee,
		"reason", reason,
	}, fields...)
	log(ctx, slog.LevelInfo, "Trade executed", all...)
}

// Decision logs a per-ticker daily decision (always at info level).
func Decision(ctx context.Context, ticker, signal string, score float64, fields ...any) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.AddEvent("trading_decision", trace.WithAttributes(
				attribute.String("ticker", ticker),
				attribute.String("signal", signal),
				attribute.Float64("score", score),
			))
		}
	}
	all := append([]any{
		"type", "DECISION",
		"ticker", ticker,
		"signal", signal,
		"score", score,
	}, fields...)
	log(ctx, slog.LevelInfo, "Trading decision", all...)
}

// OperationTimer measures a named operation with an optional span.
type OperationTimer struct {
	ctx   context.Context
	span  trace.Span
	name  string
	start time.Time
}

// StartOperation opens a timer (and span) for a named operation.
func StartOperation(ctx context.Context, name string, fields ...any) *OperationTimer {
	var span trace.Span
	if tracingEnabled {
		ctx, span = StartSpan(ctx, name)
	}
	Debug(ctx, "Operation started", append([]any{"operation", name}, fields...)...)
	return &OperationTimer{ctx: ctx, span: span, name: name, start: time.Now()}
}

// Context returns the context carrying the operation span.
func (ot *OperationTimer) Context() context.Context { return ot.ctx }

// End closes the operation, logging its duration.
func (ot *OperationTimer) End(fields ...any) {
	elapsed := time.Since(ot.start)
	if tracingEnabled && ot.span != nil {
		ot.span.SetAttributes(attribute.Int64("duration_ms", elapsed.Milliseconds()))
		ot.span.SetStatus(codes.Ok, "completed")
		ot.span.End()
	}
	all := append([]any{"operation", ot.name, "duration_ms", elapsed.Milliseconds()}, fields...)
	Debug(ot.ctx, "Operation completed", all...)
}
