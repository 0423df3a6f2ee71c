package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidInterval = errors.New("invalid job interval")

const DefaultWatchdogInterval = 10 * time.Second

// Job is one unit of recurring work.
type Job func(ctx context.Context) error

type entry struct {
	name     string
	interval time.Duration
	job      Job
}

// Scheduler runs every registered job on its own goroutine at a fixed cadence until the
// context is canceled. A failing or panicking run is logged and the job keeps its cadence.
type Scheduler struct {
	logger *zap.Logger
	jobs   []entry
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Every registers job to run immediately and then once per interval.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("%s every %s: %w", name, interval, ErrInvalidInterval)
	}
	s.jobs = append(s.jobs, entry{name: name, interval: interval, job: job})
	return nil
}

// Watchdog registers the order evaluation loop of a live paper engine.
func (s *Scheduler) Watchdog(interval time.Duration, evaluate Job) error {
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	return s.Every("watchdog", interval, evaluate)
}

// Run blocks until ctx is done and returns nil on a clean shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, e := range s.jobs {
		g.Go(func() error {
			s.loop(ctx, e)
			return nil
		})
	}

	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	s.logger.Debug("job started", zap.String("job", e.name), zap.Duration("interval", e.interval))
	for {
		s.runOnce(ctx, e)

		select {
		case <-ctx.Done():
			s.logger.Debug("job stopped", zap.String("job", e.name))
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, e entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", zap.String("job", e.name), zap.Any("panic", r))
		}
	}()

	if err := e.job(ctx); err != nil {
		s.logger.Warn("job failed", zap.String("job", e.name), zap.Error(err))
	}
}
