// Package reminders sends the morning "you have a parking spot today" reminders.
package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/cache"
	"github.com/gustavlindstroms/parkmalmokontor/internal/dates"
	"github.com/gustavlindstroms/parkmalmokontor/internal/db"
	"github.com/gustavlindstroms/parkmalmokontor/internal/messagequeue"
)

const (
	lockTTL     = 23 * time.Hour
	contentType = "application/json"
)

// Message is published to the reminder queue for the SMS sender to deliver.
type Message struct {
	BookingID    string `json:"bookingId"`
	To           string `json:"to"`
	Body         string `json:"body"`
	Date         string `json:"date"`
	LicensePlate string `json:"licensePlate"`
}

// Result summarizes one run.
type Result struct {
	Date    string
	Sent    int
	Skipped bool // another instance holds the day's lock
	Errors  []error
}

// Summary mirrors the log line operators look for.
func (r Result) Summary() string {
	switch {
	case r.Skipped:
		return fmt.Sprintf("Reminders for %s already handled by another instance.", r.Date)
	case len(r.Errors) > 0:
		return fmt.Sprintf("Completed with %d errors. Check logs for details.", len(r.Errors))
	default:
		return fmt.Sprintf("Successfully sent %d reminders.", r.Sent)
	}
}

// JobConfig carries the collaborators of a Job.
type JobConfig struct {
	Repository db.BookingRepository
	Publisher  messagequeue.Publisher
	Locker     cache.Locker
	Queue      string
	Clock      func() time.Time
	Location   *time.Location
	Logger     *zap.Logger
}

// Job finds today's bookings without a reminder and queues one SMS per booking.
type Job struct {
	repo      db.BookingRepository
	publisher messagequeue.Publisher
	locker    cache.Locker
	queue     string
	clock     func() time.Time
	loc       *time.Location
	logger    *zap.Logger
}

// NewJob creates a Job. Repository, Publisher and Queue are required.
func NewJob(cfg JobConfig) (*Job, error) {
	if cfg.Repository == nil {
		return nil, errors.New("reminders: repository is required")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("reminders: publisher is required")
	}
	if cfg.Queue == "" {
		return nil, errors.New("reminders: queue is required")
	}
	job := &Job{
		repo:      cfg.Repository,
		publisher: cfg.Publisher,
		locker:    cfg.Locker,
		queue:     cfg.Queue,
		clock:     cfg.Clock,
		loc:       cfg.Location,
		logger:    cfg.Logger,
	}
	if job.locker == nil {
		job.locker = cache.LocalLocker{}
	}
	if job.clock == nil {
		job.clock = time.Now
	}
	if job.loc == nil {
		job.loc = time.Local
	}
	if job.logger == nil {
		job.logger = zap.NewNop()
	}
	return job, nil
}

// Run processes today's bookings. Per-booking failures are collected in the result;
// only a failed lookup or lock aborts the run.
func (j *Job) Run(ctx context.Context) (Result, error) {
	today := dates.Today(j.clock(), j.loc)
	result := Result{Date: today}
	logger := j.logger.With(zap.String("date", today))
	logger.Info("Running reminder job")

	lockKey := "parkering:reminders:" + today
	acquired, err := j.locker.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		return result, err
	}
	if !acquired {
		result.Skipped = true
		logger.Info(result.Summary())
		return result, nil
	}

	bookings, err := j.repo.Find(ctx, db.BookingQuery{Date: today, PendingReminder: true})
	if err != nil {
		// Nothing was sent; let a retry run today.
		if releaseErr := j.locker.Release(context.WithoutCancel(ctx), lockKey); releaseErr != nil {
			logger.Error("Failed to release reminder lock", zap.Error(releaseErr))
		}
		return result, fmt.Errorf("query bookings: %w", err)
	}

	for _, booking := range bookings {
		to := FormatPhoneNumber(booking.PhoneNumber)
		if to == "" {
			continue
		}
		body, err := json.Marshal(Message{
			BookingID:    booking.ID,
			To:           to,
			Body:         fmt.Sprintf("Påminnelse: Du har en parkering bokad idag (%s).", booking.LicensePlate),
			Date:         booking.Date,
			LicensePlate: booking.LicensePlate,
		})
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if err := j.publisher.Publish(ctx, j.queue, contentType, body); err != nil {
			logger.Error("Failed to queue reminder", zap.String("to", to), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Errorf("failed to queue reminder to %s: %w", to, err))
			continue
		}
		if err := j.repo.MarkReminderSent(ctx, booking.ID); err != nil {
			logger.Error("Failed to mark reminder sent", zap.String("bookingID", booking.ID), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Errorf("mark booking %s: %w", booking.ID, err))
			continue
		}
		result.Sent++
	}

	if result.Sent == 0 && len(result.Errors) == 0 {
		logger.Info("No bookings found that require a reminder.")
	} else {
		logger.Info(result.Summary(), zap.Int("sent", result.Sent), zap.Int("errors", len(result.Errors)))
	}
	return result, nil
}
