package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
)

var (
	ErrConnectionUnavailable = errors.New("store connection unavailable")
	ErrWriteFailed           = errors.New("store write failed")
)

// Store is an append-only time series of samples.
type Store interface {
	// Insert durably persists one sample. It never retries.
	Insert(ctx context.Context, sample models.Sample) error
	// MostRecent returns the sample with the greatest timestamp, the latest
	// inserted one on ties. It returns nil, nil when the store is empty.
	MostRecent(ctx context.Context) (*models.Sample, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func ConnectionError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrConnectionUnavailable, err)
}

func WriteError(err error) error {
	return fmt.Errorf("insert: %w: %w", ErrWriteFailed, err)
}
