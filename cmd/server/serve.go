package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/api"
	"github.com/gustavlindstroms/parkmalmokontor/internal/config"
	"github.com/gustavlindstroms/parkmalmokontor/internal/logging"
	"github.com/gustavlindstroms/parkmalmokontor/internal/middleware"
	"github.com/gustavlindstroms/parkmalmokontor/internal/reminders"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	cmd.Flags().String("port", "", "HTTP port")
	if err := viperBind(cmd, "PORT", "port"); err != nil {
		panic(err)
	}
	return cmd
}

func runServer(ctx context.Context) error {
	appConfig, envFile, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.AppEnv)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	logger.Info("Application configuration loaded", zap.String("env", appConfig.AppEnv), zap.String("envFile", envFile))

	spots, err := appConfig.Spots()
	if err != nil {
		return err
	}
	loc, err := appConfig.Location()
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(signalCtx, appConfig, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer be.close() //nolint:errcheck

	if appConfig.ReminderEnabled {
		job, closeJob, err := newReminderJob(signalCtx, appConfig, be.bookings, loc, logger)
		if err != nil {
			return err
		}
		defer closeJob()
		go reminders.NewScheduler(job, appConfig.ReminderHour, logger).Run(signalCtx)
	}

	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORSMiddleware(appConfig.ClientURL))

	api.SetupRoutes(
		router,
		logger,
		middleware.NewAuthMiddleware(be.verifier, appConfig.AuthProvider == config.AuthProviderAnonymous, logger),
		api.NewBookingHandler(api.BookingHandlerConfig{
			Repository: be.bookings,
			Spots:      spots,
			Location:   loc,
			Clock:      time.Now,
			Heartbeat:  appConfig.StreamHeartbeat(),
			Logger:     logger,
		}),
		api.NewCarHandler(be.cars, appConfig.StreamHeartbeat(), logger),
		api.NewUserHandler(spots, logger),
	)

	httpServer := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return signalCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-signalCtx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("Server exiting gracefully.")
	return nil
}
