package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/recorder"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store/memory"
)

// slowStore blocks reads until the context is done.
type slowStore struct {
	*memory.Store
}

func (s slowStore) MostRecent(ctx context.Context) (*models.Sample, error) {
	<-ctx.Done()

	return nil, store.ConnectionError("most recent", ctx.Err())
}

func TestGetLatestMetricsEmpty(t *testing.T) {
	svc := NewService(memory.New(), time.Second, zaptest.NewLogger(t))

	got, err := svc.GetLatestMetrics(t.Context())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetLatestMetricsBackendUnavailable(t *testing.T) {
	svc := NewService(store.NewUnavailable(errors.New("dial tcp: connection refused")), time.Second, zaptest.NewLogger(t))

	got, err := svc.GetLatestMetrics(t.Context())
	require.ErrorIs(t, err, ErrBackendUnavailable)
	require.ErrorIs(t, err, store.ErrConnectionUnavailable)
	assert.Nil(t, got)
}

func TestGetLatestMetricsTimeout(t *testing.T) {
	svc := NewService(slowStore{memory.New()}, 20*time.Millisecond, zaptest.NewLogger(t))

	start := time.Now()
	_, err := svc.GetLatestMetrics(t.Context())
	require.ErrorIs(t, err, ErrBackendUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetLatestMetricsIdempotent(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Insert(t.Context(), models.NewSample(1, 2, 3, time.Now())))

	svc := NewService(s, time.Second, zaptest.NewLogger(t))

	first, err := svc.GetLatestMetrics(t.Context())
	require.NoError(t, err)

	for range 5 {
		again, err := svc.GetLatestMetrics(t.Context())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestGetLatestMetricsReturnsNewestInsert(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := memory.New()

	older := models.NewSample(10, 20, 30, start)
	newer := models.NewSample(15, 25, 35, start.Add(60*time.Second))
	require.NoError(t, s.Insert(t.Context(), older))
	require.NoError(t, s.Insert(t.Context(), newer))

	svc := NewService(s, time.Second, zaptest.NewLogger(t))

	got, err := svc.GetLatestMetrics(t.Context())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)
	assert.InDelta(t, 15.0, got.CPUUsage, 1e-9)
	assert.InDelta(t, 25.0, got.MemoryUsage, 1e-9)
	assert.InDelta(t, 35.0, got.DiskUsage, 1e-9)
	assert.Equal(t, "2025-03-01T12:01:00.000Z", got.Timestamp)
}

type scriptedSampler struct {
	clock  clockwork.Clock
	values [][3]float64
	next   int
}

func (s *scriptedSampler) Capture(context.Context) (models.Sample, error) {
	v := s.values[s.next]
	s.next++

	return models.NewSample(v[0], v[1], v[2], s.clock.Now()), nil
}

func TestLatestMetricsFollowRecordedCycles(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	s := memory.New()
	sampler := &scriptedSampler{clock: clock, values: [][3]float64{{15, 25, 35}, {40.125, 50, 60.004}}}

	r, err := recorder.New(sampler, s, zaptest.NewLogger(t), recorder.WithClock(clock))
	require.NoError(t, err)

	svc := NewService(s, time.Second, zaptest.NewLogger(t))

	// t=0
	require.NoError(t, r.RunOnce(t.Context()))

	got, err := svc.GetLatestMetrics(t.Context())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 15.0, got.CPUUsage, 1e-9)
	assert.InDelta(t, 25.0, got.MemoryUsage, 1e-9)
	assert.InDelta(t, 35.0, got.DiskUsage, 1e-9)
	assert.Equal(t, "2025-03-01T12:00:00.000Z", got.Timestamp)
	assert.NotEmpty(t, got.ID)

	// t=60
	clock.Advance(time.Minute)
	require.NoError(t, r.RunOnce(t.Context()))

	got, err = svc.GetLatestMetrics(t.Context())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 40.13, got.CPUUsage, 1e-9)
	assert.InDelta(t, 60.0, got.DiskUsage, 1e-9)
	assert.Equal(t, "2025-03-01T12:01:00.000Z", got.Timestamp)
}
