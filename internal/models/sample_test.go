package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "already two decimals", in: 12.34, want: 12.34},
		{name: "rounds half up", in: 12.345, want: 12.35},
		{name: "rounds down", in: 12.344, want: 12.34},
		{name: "zero", in: 0, want: 0},
		{name: "negative clamps to zero", in: -3, want: 0},
		{name: "above hundred clamps", in: 100.004, want: 100},
		{name: "nan becomes zero", in: math.NaN(), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Round2(tt.in), 1e-9)
		})
	}
}

func TestNewSample(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.FixedZone("CET", 3600))

	s := NewSample(10.129, 20.5, 30, ts)

	assert.NotEmpty(t, s.ID)
	assert.InDelta(t, 10.13, s.CPUUsage, 1e-9)
	assert.InDelta(t, 20.5, s.MemoryUsage, 1e-9)
	assert.InDelta(t, 30.0, s.DiskUsage, 1e-9)
	assert.Equal(t, time.UTC, s.Timestamp.Location())
	assert.Equal(t, 123000000, s.Timestamp.Nanosecond())
	require.NoError(t, s.Validate())
}

func TestSampleValidate(t *testing.T) {
	valid := NewSample(1, 2, 3, time.Now())

	t.Run("missing id", func(t *testing.T) {
		s := valid
		s.ID = ""
		assert.ErrorIs(t, s.Validate(), ErrInvalidSample)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		s := valid
		s.Timestamp = time.Time{}
		assert.ErrorIs(t, s.Validate(), ErrInvalidSample)
	})

	t.Run("out of range", func(t *testing.T) {
		s := valid
		s.DiskUsage = 101
		assert.ErrorContains(t, s.Validate(), "diskUsage out of range")
	})
}
