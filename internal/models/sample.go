package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidSample = errors.New("invalid sample")

// Sample is a single timestamped observation of host utilization.
// All usage values are percentages in [0, 100].
type Sample struct {
	ID          string    `json:"id"`
	CPUUsage    float64   `json:"cpuUsage"`
	MemoryUsage float64   `json:"memoryUsage"`
	DiskUsage   float64   `json:"diskUsage"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewSample creates a sample captured at ts. Values are rounded to two decimals.
func NewSample(cpu, memory, disk float64, ts time.Time) Sample {
	return Sample{
		ID:          uuid.NewString(),
		CPUUsage:    Round2(cpu),
		MemoryUsage: Round2(memory),
		DiskUsage:   Round2(disk),
		Timestamp:   ts.UTC().Truncate(time.Millisecond),
	}
}

func (s Sample) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSample)
	}

	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSample)
	}

	for name, v := range map[string]float64{
		"cpuUsage":    s.CPUUsage,
		"memoryUsage": s.MemoryUsage,
		"diskUsage":   s.DiskUsage,
	} {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("%w: %s out of range: %v", ErrInvalidSample, name, v)
		}
	}

	return nil
}

// Round2 rounds half-up to two decimal places and clamps the result to [0, 100].
func Round2(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}

	rounded := math.Floor(v*100+0.5) / 100
	if rounded > 100 {
		return 100
	}

	return rounded
}
