// Package scheduler repeats a report run on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled run.
type Job func(ctx context.Context) error

// Scheduler runs a single job on a standard five-field cron spec. A tick
// that fires while the previous run is still busy is skipped.
type Scheduler struct {
	cronEngine *cron.Cron
	logger     *slog.Logger
	spec       string
	job        Job
	timeout    time.Duration
}

// New validates spec and prepares the scheduler. loc defaults to time.Local.
// A zero timeout lets each run take as long as it needs.
func New(logger *slog.Logger, spec string, loc *time.Location, timeout time.Duration, job Job) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		spec:    spec,
		job:     job,
		timeout: timeout,
	}, nil
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// a running job to finish. Jobs receive ctx, so cancellation reaches them.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.cronEngine.AddFunc(s.spec, func() {
		s.runJob(ctx)
	})
	if err != nil {
		return fmt.Errorf("could not add report job: %w", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Scheduler started.", "schedule", s.spec)

	<-ctx.Done()
	s.logger.Info("Stopping scheduler...")
	<-s.cronEngine.Stop().Done()
	s.logger.Info("Scheduler stopped.")
	return nil
}

func (s *Scheduler) runJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.logger.Info("Cron job triggered for report run.")
	if err := s.job(ctx); err != nil {
		s.logger.Error("Scheduled report run failed", "error", err)
	}
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
