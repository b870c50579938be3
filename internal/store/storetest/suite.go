// Package storetest holds the behavior every store backend must share.
package storetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store"
)

// Factory returns an empty store. Cleanup should be registered on t.
type Factory func(t *testing.T) store.Store

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("empty store has no most recent sample", func(t *testing.T) {
		s := newStore(t)

		latest, err := s.MostRecent(t.Context())
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	t.Run("insert then most recent returns the inserted sample", func(t *testing.T) {
		s := newStore(t)
		sample := models.NewSample(10, 20, 30, baseTime)

		require.NoError(t, s.Insert(t.Context(), sample))

		latest, err := s.MostRecent(t.Context())
		require.NoError(t, err)
		require.NotNil(t, latest)
		AssertSampleEqual(t, sample, *latest)
	})

	t.Run("most recent follows each sequential insert", func(t *testing.T) {
		s := newStore(t)

		for i := range 5 {
			sample := models.NewSample(float64(i), float64(i*2), float64(i*3), baseTime.Add(time.Duration(i)*time.Minute))
			require.NoError(t, s.Insert(t.Context(), sample))

			latest, err := s.MostRecent(t.Context())
			require.NoError(t, err)
			require.NotNil(t, latest)
			AssertSampleEqual(t, sample, *latest)
		}
	})

	t.Run("greatest timestamp wins over insertion order", func(t *testing.T) {
		s := newStore(t)
		newer := models.NewSample(15, 25, 35, baseTime.Add(time.Minute))
		older := models.NewSample(10, 20, 30, baseTime)

		require.NoError(t, s.Insert(t.Context(), newer))
		require.NoError(t, s.Insert(t.Context(), older))

		latest, err := s.MostRecent(t.Context())
		require.NoError(t, err)
		require.NotNil(t, latest)
		AssertSampleEqual(t, newer, *latest)
	})

	t.Run("equal timestamps resolve to the latest insert", func(t *testing.T) {
		s := newStore(t)
		first := models.NewSample(1, 1, 1, baseTime)
		second := models.NewSample(2, 2, 2, baseTime)

		require.NoError(t, s.Insert(t.Context(), first))
		require.NoError(t, s.Insert(t.Context(), second))

		latest, err := s.MostRecent(t.Context())
		require.NoError(t, err)
		require.NotNil(t, latest)
		AssertSampleEqual(t, second, *latest)
	})

	t.Run("repeated reads are identical", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(t.Context(), models.NewSample(5, 6, 7, baseTime)))

		first, err := s.MostRecent(t.Context())
		require.NoError(t, err)
		second, err := s.MostRecent(t.Context())
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("ping succeeds", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(t.Context()))
	})
}

func AssertSampleEqual(t *testing.T, want, got models.Sample) {
	t.Helper()

	assert.Equal(t, want.ID, got.ID)
	assert.InDelta(t, want.CPUUsage, got.CPUUsage, 1e-9)
	assert.InDelta(t, want.MemoryUsage, got.MemoryUsage, 1e-9)
	assert.InDelta(t, want.DiskUsage, got.DiskUsage, 1e-9)
	assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp: want %s, got %s", want.Timestamp, got.Timestamp)
}
