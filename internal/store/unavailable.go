package store

import (
	"context"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
)

// Unavailable stands in for a backend that could not be constructed, so the
// service can still start and report the failure per request.
type Unavailable struct {
	Err error
}

var _ Store = (*Unavailable)(nil)

func NewUnavailable(err error) *Unavailable {
	return &Unavailable{Err: err}
}

func (u *Unavailable) Insert(context.Context, models.Sample) error {
	return ConnectionError("insert", u.Err)
}

func (u *Unavailable) MostRecent(context.Context) (*models.Sample, error) {
	return nil, ConnectionError("most recent", u.Err)
}

func (u *Unavailable) Ping(context.Context) error {
	return ConnectionError("ping", u.Err)
}

func (u *Unavailable) Close(context.Context) error {
	return nil
}
