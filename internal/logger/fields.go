package logger

import (
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
)

func WithSampleID(sampleID string) zap.Field {
	return zap.String("sample.id", sampleID)
}

func WithStoreDriver(driver string) zap.Field {
	return zap.String("store.driver", driver)
}

func WithSample(sample models.Sample) zap.Field {
	return zap.Dict("sample",
		zap.String("id", sample.ID),
		zap.Float64("cpu_usage", sample.CPUUsage),
		zap.Float64("memory_usage", sample.MemoryUsage),
		zap.Float64("disk_usage", sample.DiskUsage),
		zap.Time("timestamp", sample.Timestamp),
	)
}
