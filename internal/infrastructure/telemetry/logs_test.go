package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	lp, err := NewLoggerProvider(ctx, LogsConfig{ServiceName: "oliehub-sync"}, nil)
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))

	core := lp.Core(zapcore.InfoLevel)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestNewLoggerProvider_EnabledWithoutCollector(t *testing.T) {
	// the gRPC exporter dials lazily, so construction succeeds
	ctx := context.Background()
	lp, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "oliehub-sync",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, lp.IsEnabled())

	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = lp.Shutdown(shutdownCtx)
}

func TestLoggerProvider_CoreFiltersLevel(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	lp := &LoggerProvider{provider: provider, logger: zap.NewNop(), config: LogsConfig{ServiceName: "oliehub-sync"}}

	core := lp.Core(zapcore.WarnLevel)
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}
	log := zap.New(core).With(zap.String("sync_type", "orders"))

	log.Info("sync started")
	log.Warn("tiny rate limited")
	log.Error("sync failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "tiny rate limited", entries[0].Message)
	assert.Equal(t, "orders", entries[0].ContextMap()["sync_type"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
