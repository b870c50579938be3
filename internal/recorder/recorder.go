package recorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopMetric "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/logger"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/telemetry"
)

const (
	DefaultInterval = 60 * time.Second

	// persistTimeout bounds a single insert. The insert is detached from the
	// loop context so a Stop during a cycle does not drop the sample.
	persistTimeout = 30 * time.Second

	meterName = "github.com/e2b-dev/infra/packages/host-metrics/internal/recorder"
)

var (
	ErrAlreadyStarted = errors.New("recorder already started")
	ErrNotStarted     = errors.New("recorder not started")
)

type State int32

const (
	StateIdle State = iota
	StateSampling
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StatePersisting:
		return "persisting"
	default:
		return "unknown"
	}
}

type Sampler interface {
	Capture(ctx context.Context) (models.Sample, error)
}

type Recorder struct {
	sampler Sampler
	store   store.Store
	logger  *zap.Logger

	clock         clockwork.Clock
	interval      time.Duration
	runOnStart    bool
	meterProvider metric.MeterProvider

	// cycleMu makes cycles single-flight, for the loop and RunOnce alike.
	cycleMu sync.Mutex
	state   atomic.Int32
	last    atomic.Pointer[models.Sample]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	recorded metric.Int64Counter
	failed   metric.Int64Counter
}

type Option func(*Recorder)

func WithInterval(interval time.Duration) Option {
	return func(r *Recorder) {
		r.interval = interval
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(r *Recorder) {
		r.clock = clock
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Recorder) {
		r.meterProvider = mp
	}
}

// WithRunOnStart captures a sample as soon as the loop starts instead of
// waiting for the first tick.
func WithRunOnStart() Option {
	return func(r *Recorder) {
		r.runOnStart = true
	}
}

func New(sampler Sampler, s store.Store, l *zap.Logger, options ...Option) (*Recorder, error) {
	r := &Recorder{
		sampler:       sampler,
		store:         s,
		logger:        l,
		clock:         clockwork.NewRealClock(),
		interval:      DefaultInterval,
		meterProvider: noopMetric.MeterProvider{},
	}

	for _, option := range options {
		option(r)
	}

	if r.interval <= 0 {
		return nil, errors.New("recorder interval must be positive")
	}

	if err := r.registerMeters(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Recorder) registerMeters() error {
	meter := r.meterProvider.Meter(meterName)

	var err error
	r.recorded, err = telemetry.GetCounter(meter, telemetry.SamplesRecordedCounterName)
	if err != nil {
		return err
	}

	r.failed, err = telemetry.GetCounter(meter, telemetry.SamplesFailedCounterName)
	if err != nil {
		return err
	}

	gauges := map[telemetry.GaugeFloatType]func(models.Sample) float64{
		telemetry.CPUUsageGaugeName:    func(s models.Sample) float64 { return s.CPUUsage },
		telemetry.MemoryUsageGaugeName: func(s models.Sample) float64 { return s.MemoryUsage },
		telemetry.DiskUsageGaugeName:   func(s models.Sample) float64 { return s.DiskUsage },
	}

	for name, value := range gauges {
		_, err := telemetry.GetGaugeFloat(meter, name, func(_ context.Context, o metric.Float64Observer) error {
			if last := r.last.Load(); last != nil {
				o.Observe(value(*last))
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *Recorder) State() State {
	return State(r.state.Load())
}

// Start launches the recording loop. It runs until Stop is called or ctx is done.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := r.clock.NewTicker(r.interval)

	r.cancel = cancel
	r.done = done

	go func() {
		defer close(done)
		defer ticker.Stop()

		r.logger.Info("Recorder started", zap.Duration("interval", r.interval))

		if r.runOnStart {
			_ = r.RunOnce(loopCtx)
		}

		for {
			select {
			case <-loopCtx.Done():
				r.logger.Info("Recorder stopped")

				return
			case <-ticker.Chan():
				// RunOnce logs and counts its own failures.
				_ = r.RunOnce(loopCtx)
			}
		}
	}()

	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if done == nil {
		return ErrNotStarted
	}

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce captures one sample and persists it. Failures are logged and
// returned, and nothing is written when sampling fails.
func (r *Recorder) RunOnce(ctx context.Context) error {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()
	defer r.state.Store(int32(StateIdle))

	r.state.Store(int32(StateSampling))

	sample, err := r.sampler.Capture(ctx)
	if err != nil {
		r.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "sampling")))
		r.logger.Error("Failed to capture host metrics", zap.Error(err))

		return err
	}

	r.state.Store(int32(StatePersisting))

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := r.store.Insert(persistCtx, sample); err != nil {
		r.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "persisting")))
		r.logger.Error("Failed to persist host metrics", logger.WithSampleID(sample.ID), zap.Error(err))

		return err
	}

	r.last.Store(&sample)
	r.recorded.Add(ctx, 1)
	r.logger.Info("Metrics logged", logger.WithSample(sample))

	return nil
}
