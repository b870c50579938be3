package memory

import (
	"context"
	"sync"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store"
)

// Store keeps samples in insertion order. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	samples []models.Sample
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) Insert(ctx context.Context, sample models.Sample) error {
	if err := ctx.Err(); err != nil {
		return store.WriteError(err)
	}

	if err := sample.Validate(); err != nil {
		return store.WriteError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample)

	return nil
}

func (s *Store) MostRecent(ctx context.Context) (*models.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.ConnectionError("most recent", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Sample
	for i := range s.samples {
		if latest == nil || !s.samples[i].Timestamp.Before(latest.Timestamp) {
			latest = &s.samples[i]
		}
	}

	if latest == nil {
		return nil, nil
	}

	out := *latest

	return &out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.samples)
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Close(context.Context) error {
	return nil
}
