package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/cache"
	"github.com/gustavlindstroms/parkmalmokontor/internal/config"
	"github.com/gustavlindstroms/parkmalmokontor/internal/db"
	"github.com/gustavlindstroms/parkmalmokontor/internal/logging"
	"github.com/gustavlindstroms/parkmalmokontor/internal/messagequeue"
	"github.com/gustavlindstroms/parkmalmokontor/internal/reminders"
)

func newRemindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Queue today's booking reminders once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemind(cmd.Context())
		},
	}
}

func runRemind(ctx context.Context) error {
	appConfig, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.AppEnv)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	loc, err := appConfig.Location()
	if err != nil {
		return err
	}
	be, err := openBackend(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer be.close() //nolint:errcheck

	job, closeJob, err := newReminderJob(ctx, appConfig, be.bookings, loc, logger)
	if err != nil {
		return err
	}
	defer closeJob()

	result, err := job.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info(result.Summary())
	return nil
}

// newReminderJob connects the reminder queue and, when REDIS_ADDR is set, the run lock.
func newReminderJob(ctx context.Context, appConfig *config.Config, bookings db.BookingRepository, loc *time.Location, logger *zap.Logger) (*reminders.Job, func(), error) {
	if appConfig.RabbitMQURL == "" {
		return nil, nil, errors.New("RABBITMQ_URL is required for reminders")
	}
	publisher, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL, Logger: logger})
	if err != nil {
		return nil, nil, err
	}

	var locker cache.Locker = cache.LocalLocker{}
	if appConfig.RedisAddr != "" {
		redisLocker, err := cache.NewRedisLocker(ctx, cache.NewRedisLockerConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		if err != nil {
			publisher.Close()
			return nil, nil, err
		}
		locker = redisLocker
	}

	job, err := reminders.NewJob(reminders.JobConfig{
		Repository: bookings,
		Publisher:  publisher,
		Locker:     locker,
		Queue:      appConfig.ReminderQueue,
		Clock:      time.Now,
		Location:   loc,
		Logger:     logger,
	})
	if err != nil {
		publisher.Close()
		locker.Close()
		return nil, nil, err
	}
	return job, func() {
		publisher.Close()
		locker.Close()
	}, nil
}
