package poller

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/api"
)

const DefaultInterval = 60 * time.Second

type Fetcher interface {
	FetchLatest(ctx context.Context) (*api.ServerMetrics, error)
}

// UpdateFunc receives a copy of the window every time a new sample arrives.
type UpdateFunc func(window []api.ServerMetrics)

type Poller struct {
	fetcher  Fetcher
	window   *Window
	clock    clockwork.Clock
	interval time.Duration
	onUpdate UpdateFunc
	logger   *zap.Logger
}

type Option func(*Poller)

func WithClock(clock clockwork.Clock) Option {
	return func(p *Poller) {
		p.clock = clock
	}
}

func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		p.interval = interval
	}
}

func WithWindowSize(size int) Option {
	return func(p *Poller) {
		p.window = NewWindow(size)
	}
}

func New(fetcher Fetcher, onUpdate UpdateFunc, logger *zap.Logger, options ...Option) (*Poller, error) {
	p := &Poller{
		fetcher:  fetcher,
		window:   NewWindow(DefaultWindowSize),
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		onUpdate: onUpdate,
		logger:   logger,
	}

	for _, option := range options {
		option(p)
	}

	if p.interval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	return p, nil
}

// Run polls immediately and then once per interval until ctx is done.
// Failed polls are logged and leave the window untouched.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	metrics, err := p.fetcher.FetchLatest(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("Failed to poll latest metrics", zap.Error(err))
		}

		return
	}

	if metrics == nil {
		p.logger.Debug("No metrics recorded yet")

		return
	}

	if !p.window.Push(*metrics) {
		return
	}

	if p.onUpdate != nil {
		p.onUpdate(p.window.Items())
	}
}
