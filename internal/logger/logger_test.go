package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
)

func TestNewLoggerTeesExtraCores(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	l, err := NewLogger(LoggerConfig{
		ServiceName: "host-metrics",
		IsDebug:     true,
		OutputPaths: []string{"/dev/null"},
		Cores:       []zapcore.Core{core},
	})
	require.NoError(t, err)

	l.Debug("sample recorded", WithSample(models.NewSample(1, 2, 3, time.Now())))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "sample recorded", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "host-metrics", fields["service"])
	assert.Contains(t, fields, "pid")
	assert.Contains(t, fields, "sample")
}

func TestNewLoggerInfoLevelByDefault(t *testing.T) {
	l, err := NewLogger(LoggerConfig{ServiceName: "host-metrics", OutputPaths: []string{"/dev/null"}})
	require.NoError(t, err)

	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
}

type recordingProcessor struct {
	mu      sync.Mutex
	records []string
}

func (p *recordingProcessor) OnEmit(_ context.Context, record *sdklog.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.records = append(p.records, record.Body().AsString())

	return nil
}

func (p *recordingProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool { return true }
func (p *recordingProcessor) Shutdown(context.Context) error                         { return nil }
func (p *recordingProcessor) ForceFlush(context.Context) error                       { return nil }

func TestNewLoggerExportsThroughLogsProvider(t *testing.T) {
	processor := &recordingProcessor{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.WithoutCancel(t.Context()))
	})

	l, err := NewLogger(LoggerConfig{
		ServiceName:  "host-metrics",
		LogsProvider: provider,
		OutputPaths:  []string{"/dev/null"},
	})
	require.NoError(t, err)

	l.Info("Metrics logged")
	l.Debug("not enabled")

	processor.mu.Lock()
	defer processor.mu.Unlock()

	assert.Equal(t, []string{"Metrics logged"}, processor.records)
}
