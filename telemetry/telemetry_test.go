package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")
	assert.NotNil(t, logger)
}

func TestLoggerWithContext(t *testing.T) {
	logger := NewLogger("test-component")
	ctx := context.Background()

	ctxLogger := logger.WithContext(ctx)
	assert.NotNil(t, ctxLogger)

	// Must not panic without a span in context
	ctxLogger.Info().Msg("test message")
}

func TestConvenienceMethods(t *testing.T) {
	logger := NewLogger("test-component")
	ctx := context.Background()

	// None of these should panic
	logger.LogEventPublished(ctx, "app.discovered", "t1", 2)
	logger.LogEventDropped(ctx, "app.discovered", "missing tenant")
	logger.LogPolicyExecution(ctx, "pol-1", "partial", 3, 1)
	logger.LogBatchOperation(ctx, "process_apps", 10)
	logger.LogStorageError(ctx, "save_policy", assert.AnError)
}

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})
	assert.Equal(t, "ward", cfg.ServiceName)
	assert.NotEmpty(t, cfg.OTELEndpoint)
}
