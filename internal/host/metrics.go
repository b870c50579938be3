package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
)

const DefaultDiskPath = "/"

var ErrSampling = errors.New("sampling failed")

// SamplingError is returned when one of the OS reads fails. No sample is produced.
type SamplingError struct {
	Source string
	Err    error
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("%s: reading %s: %v", ErrSampling, e.Source, e.Err)
}

func (e *SamplingError) Unwrap() []error {
	return []error{ErrSampling, e.Err}
}

type (
	cpuPercentFunc    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMemoryFunc func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsageFunc     func(ctx context.Context, path string) (*disk.UsageStat, error)
)

type Sampler struct {
	diskPath string
	clock    clockwork.Clock

	// Overridable readers for testing.
	cpuPercent    cpuPercentFunc
	virtualMemory virtualMemoryFunc
	diskUsage     diskUsageFunc
}

type Option func(*Sampler)

func WithDiskPath(path string) Option {
	return func(s *Sampler) {
		s.diskPath = path
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Sampler) {
		s.clock = clock
	}
}

func NewSampler(options ...Option) *Sampler {
	s := &Sampler{
		diskPath:      DefaultDiskPath,
		clock:         clockwork.NewRealClock(),
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Capture reads the current CPU, memory and disk utilization of the host.
func (s *Sampler) Capture(ctx context.Context) (models.Sample, error) {
	// Percent with zero interval compares against the previous call, it does not block.
	cpuPcts, err := s.cpuPercent(ctx, 0, false)
	if err != nil {
		return models.Sample{}, &SamplingError{Source: "cpu", Err: err}
	}

	if len(cpuPcts) == 0 {
		return models.Sample{}, &SamplingError{Source: "cpu", Err: errors.New("no cpu stats returned")}
	}

	v, err := s.virtualMemory(ctx)
	if err != nil {
		return models.Sample{}, &SamplingError{Source: "memory", Err: err}
	}

	if v.Total == 0 {
		return models.Sample{}, &SamplingError{Source: "memory", Err: errors.New("total memory is zero")}
	}

	memPct := float64(v.Total-min(v.Available, v.Total)) / float64(v.Total) * 100

	usage, err := s.diskUsage(ctx, s.diskPath)
	if err != nil {
		return models.Sample{}, &SamplingError{Source: "disk " + s.diskPath, Err: err}
	}

	return models.NewSample(cpuPcts[0], memPct, usage.UsedPercent, s.clock.Now()), nil
}
