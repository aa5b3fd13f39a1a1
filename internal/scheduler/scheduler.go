package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// jobTimeout bounds a single run of either job.
const jobTimeout = 2 * time.Minute

// Jobs is the reconciliation work run in the background.
type Jobs interface {
	RetryPending(ctx context.Context) (int, error)
	ResyncAllGoals(ctx context.Context, month string) (int, error)
	CurrentMonth() string
}

// Scheduler replays queued aggregate syncs and recounts monthly goals on
// cron schedules.
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
	log  *slog.Logger
}

// New creates a Scheduler. Specs use the standard five-field cron syntax or
// descriptors such as "@every 5m". A run still in progress when its next
// turn comes is skipped.
func New(jobs Jobs, loc *time.Location, retrySpec, resyncSpec string, log *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs: jobs,
		log:  log,
	}
	if _, err := s.cron.AddFunc(retrySpec, s.retry); err != nil {
		return nil, fmt.Errorf("scheduling pending retry %q: %w", retrySpec, err)
	}
	if _, err := s.cron.AddFunc(resyncSpec, s.resync); err != nil {
		return nil, fmt.Errorf("scheduling goal resync %q: %w", resyncSpec, err)
	}
	return s, nil
}

// Start replays the pending queue once and then starts the schedule.
func (s *Scheduler) Start() {
	s.retry()
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the schedule and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", "error", ctx.Err())
	}
}

func (s *Scheduler) retry() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := s.jobs.RetryPending(ctx)
	if err != nil {
		s.log.Error("retrying pending syncs", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("pending syncs resolved", "count", n)
	}
}

func (s *Scheduler) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	month := s.jobs.CurrentMonth()
	n, err := s.jobs.ResyncAllGoals(ctx, month)
	if err != nil {
		s.log.Error("resyncing monthly goals", "month", month, "error", err)
		return
	}
	s.log.Info("monthly goals resynced", "month", month, "count", n)
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
