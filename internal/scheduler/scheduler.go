// Package scheduler fires the periodic intake jobs from cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lcoppola/dropforward/internal/logging"
)

// Job is one periodic unit of work. The context carries the per-run
// timeout; a run exceeding it must abort rather than block the next tick.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. Each job type runs at most one instance
// at a time; a tick arriving while the previous run is still going is
// skipped.
type Scheduler struct {
	cron       *cron.Cron
	runTimeout time.Duration
	logger     *slog.Logger
}

// New returns a stopped Scheduler. runTimeout bounds every triggered run.
func New(runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithComponent(logger, "scheduler")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithChain(
				cron.SkipIfStillRunning(cl),
				cron.Recover(cl),
			),
		),
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Add schedules job under the given cron expression. An invalid expression
// is an error for this job only; previously added jobs are unaffected.
func (s *Scheduler) Add(name, expr string, job Job) error {
	_, err := s.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed",
				logging.Operation(name),
				slog.Duration(logging.KeyDuration, time.Since(start)),
				logging.Err(err),
			)
			return
		}
		s.logger.Info("scheduled job finished",
			logging.Operation(name),
			slog.Duration(logging.KeyDuration, time.Since(start)),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s job with expression %q: %w", name, expr, err)
	}

	s.logger.Info("job scheduled",
		logging.Operation(name),
		slog.String("expression", expr),
	)
	return nil
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish or for ctx to
// expire, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain scheduled jobs: %w", ctx.Err())
	}
}

// cronLogger adapts slog to the cron runner's logging interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, logging.KeyError, err)...)
}
