// Package schedule runs a job on a cron schedule until its context ends.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs one job on a cron schedule. A run that is still going when
// the next one is due causes that next run to be skipped.
type Scheduler struct {
	spec      string
	job       func(ctx context.Context)
	immediate bool
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// RunImmediately also runs the job once when Run starts.
func RunImmediately() Option {
	return func(s *Scheduler) { s.immediate = true }
}

// New validates spec, a standard five-field cron expression or a descriptor
// such as "@hourly", and returns a Scheduler for job.
func New(spec string, job func(ctx context.Context), logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s := &Scheduler{spec: spec, job: job, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	log := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.job(ctx) }); err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}

	// The immediate run goes through the same chain, so a scheduled run
	// overlapping it is skipped.
	var wg sync.WaitGroup
	if s.immediate {
		job := c.Entries()[0].WrappedJob
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run()
		}()
	}
	c.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "next", c.Entries()[0].Next)

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
