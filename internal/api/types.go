package api

import (
	"time"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
)

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// ServerMetrics is the wire representation of a single host sample.
type ServerMetrics struct {
	ID          string  `json:"id"`
	CPUUsage    float64 `json:"cpuUsage"`
	MemoryUsage float64 `json:"memoryUsage"`
	DiskUsage   float64 `json:"diskUsage"`
	Timestamp   string  `json:"timestamp"`
}

// Error defines model for Error.
type Error struct {
	// Code Error code
	Code int32 `json:"code"`

	// Message Error
	Message string `json:"message"`
}

// Health defines model for the health check response.
type Health struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func FromSample(s models.Sample) ServerMetrics {
	return ServerMetrics{
		ID:          s.ID,
		CPUUsage:    s.CPUUsage,
		MemoryUsage: s.MemoryUsage,
		DiskUsage:   s.DiskUsage,
		Timestamp:   FormatTimestamp(s.Timestamp),
	}
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
