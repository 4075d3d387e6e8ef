package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(component string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for governance operations

// LogEventPublished logs a bus publish with its delivery count.
func (l *Logger) LogEventPublished(ctx context.Context, topic string, tenantID string, delivered int) {
	l.WithContext(ctx).Debug().
		Str("topic", topic).
		Str("tenant_id", tenantID).
		Int("delivered", delivered).
		Msg("event published")
}

// LogEventDropped logs an event that could not be processed.
func (l *Logger) LogEventDropped(ctx context.Context, topic string, reason string) {
	l.WithContext(ctx).Warn().
		Str("topic", topic).
		Str("reason", reason).
		Msg("event dropped")
}

// LogPolicyExecution logs a finished policy run.
func (l *Logger) LogPolicyExecution(ctx context.Context, policyID string, status string, executed, failed int) {
	l.WithContext(ctx).Info().
		Str("policy_id", policyID).
		Str("status", status).
		Int("actions_executed", executed).
		Int("actions_failed", failed).
		Msg("policy execution finished")
}

// LogBatchOperation logs the start of a batch.
func (l *Logger) LogBatchOperation(ctx context.Context, operation string, batchSize int) {
	l.WithContext(ctx).Info().
		Str("operation", operation).
		Int("batch_size", batchSize).
		Msg("processing batch")
}

// LogStorageError logs a failed store operation.
func (l *Logger) LogStorageError(ctx context.Context, operation string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("operation", operation).
		Msg("storage operation failed")
}
