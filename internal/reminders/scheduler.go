package reminders

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// NextRun returns the first time strictly after now at hour:00 in loc.
func NextRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}

// Scheduler runs a Job every day at a fixed local hour.
type Scheduler struct {
	job    *Job
	hour   int
	logger *zap.Logger
}

// NewScheduler creates a Scheduler for job at hour (0-23) in the job's location.
func NewScheduler(job *Job, hour int, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{job: job, hour: hour, logger: logger}
}

// Run blocks until ctx is done, running the job at every scheduled time.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := NextRun(s.job.clock(), s.hour, s.job.loc)
		s.logger.Info("Next reminder run scheduled", zap.Time("at", next))

		timer := time.NewTimer(next.Sub(s.job.clock()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.job.Run(ctx); err != nil {
			s.logger.Error("Reminder job failed", zap.Error(err))
		}
	}
}
