package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/api"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store"
)

const DefaultTimeout = 5 * time.Second

var ErrBackendUnavailable = errors.New("metrics backend unavailable")

type Service struct {
	store   store.Store
	timeout time.Duration
	logger  *zap.Logger
}

func NewService(s store.Store, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Service{store: s, timeout: timeout, logger: logger}
}

// GetLatestMetrics returns the most recent persisted sample, or nil when
// nothing has been recorded yet.
func (s *Service) GetLatestMetrics(ctx context.Context) (*api.ServerMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sample, err := s.store.MostRecent(ctx)
	if err != nil {
		s.logger.Warn("Failed to read latest metrics", zap.Error(err))

		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	if sample == nil {
		return nil, nil
	}

	metrics := api.FromSample(*sample)

	return &metrics, nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.store.Ping(ctx)
}
