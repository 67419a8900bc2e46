package sysperf

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/procfs"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

// DefaultName is the record name given to samples.
const DefaultName = "GatewaySystemPerformance"

const (
	defaultDiskPath = "/"
	minInterval     = time.Second
)

// Handler receives each sample. *hub.Hub satisfies it.
type Handler interface {
	OnPerformanceSample(ctx context.Context, resource envelope.Resource, s *envelope.PerformanceSample) bool
}

// Observer additionally receives each sample, for example a metrics
// collector.
type Observer interface {
	ObservePerformance(s *envelope.PerformanceSample)
}

// Logger is the logging interface used by the sampler.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers an observer called after the handler.
func WithObserver(o Observer) Option {
	return func(s *Sampler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithName overrides DefaultName.
func WithName(name string) Option {
	return func(s *Sampler) {
		if name != "" {
			s.name = name
		}
	}
}

// Sampler periodically reads host utilisation.
type Sampler struct {
	handler   Handler
	observers []Observer
	logger    Logger
	src       source
	name      string
	diskPath  string
	interval  time.Duration

	mu      sync.Mutex
	prevCPU *cpuTimes
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a sampler reading the local /proc.
//
// Parameters:
//   - cfg: poll interval and disk path
//   - handler: receives every sample
//
// Returns:
//   - *Sampler: ready to Start
//   - error: if procfs cannot be opened
func New(cfg config.SystemPerfConfig, handler Handler, opts ...Option) (*Sampler, error) {
	src, err := newProcSource(procfs.DefaultMountPoint)
	if err != nil {
		return nil, err
	}
	return newSampler(cfg, handler, src, opts...), nil
}

func newSampler(cfg config.SystemPerfConfig, handler Handler, src source, opts ...Option) *Sampler {
	interval := time.Duration(cfg.PollSeconds) * time.Second
	if interval < minInterval {
		interval = minInterval
	}
	diskPath := cfg.DiskPath
	if diskPath == "" {
		diskPath = defaultDiskPath
	}

	s := &Sampler{
		handler:  handler,
		logger:   noopLogger{},
		src:      src,
		name:     DefaultName,
		diskPath: diskPath,
		interval: interval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the poll loop in the background until Stop or ctx is done.
// A sample is taken immediately. Calling Start twice is a no-op.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(ctx, done)
}

// Stop ends the poll loop and waits for it to exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sampler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Sampler) poll(ctx context.Context) {
	sample := s.Sample()
	if !s.handler.OnPerformanceSample(ctx, envelope.ResourceSystemPerf, sample) {
		s.logger.Warn("performance sample rejected", "resource", envelope.ResourceSystemPerf)
	}
	for _, o := range s.observers {
		o.ObservePerformance(sample)
	}
}

// Sample reads the current utilisation figures. A figure whose source
// cannot be read reports 0 and flags the sample with HasError.
func (s *Sampler) Sample() *envelope.PerformanceSample {
	cpu, cpuErr := s.cpuUtilization()
	if cpuErr != nil {
		s.logger.Warn("cpu utilisation unavailable", "error", cpuErr)
	}

	mem, memErr := s.src.memory()
	if memErr != nil {
		s.logger.Warn("memory utilisation unavailable", "error", memErr)
		mem = 0
	}
	disk, diskErr := s.src.disk(s.diskPath)
	if diskErr != nil {
		s.logger.Warn("disk utilisation unavailable", "path", s.diskPath, "error", diskErr)
		disk = 0
	}

	p := envelope.NewPerformanceSample(s.name)
	p.SetUtilization(cpu, mem, disk)
	if cpuErr != nil || memErr != nil || diskErr != nil {
		p.SetError(true)
	}
	s.logger.Debug("performance sampled", "cpu", cpu, "memory", mem, "disk", disk, "has_error", p.HasError)
	return p
}

func (s *Sampler) cpuUtilization() (float64, error) {
	now, err := s.src.cpu()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	prev := s.prevCPU
	s.prevCPU = &now
	s.mu.Unlock()

	busy, total := now.busy, now.total
	if prev != nil && now.total > prev.total {
		busy -= prev.busy
		total -= prev.total
	}
	if total <= 0 {
		return 0, nil
	}
	return clamp(busy / total), nil
}
