package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/config"
	"github.com/gustavlindstroms/parkmalmokontor/internal/db"
	"github.com/gustavlindstroms/parkmalmokontor/internal/middleware"
)

// backend bundles the store and identity provider selected by STORE_DRIVER.
type backend struct {
	bookings db.BookingRepository
	cars     db.CarRepository
	verifier middleware.TokenVerifier
	close    func() error
}

func openBackend(ctx context.Context, appConfig *config.Config, logger *zap.Logger) (*backend, error) {
	switch appConfig.StoreDriver {
	case config.StoreDriverMemory:
		if appConfig.IsProduction() {
			return nil, errors.New("STORE_DRIVER=memory is not allowed in production")
		}
		logger.Warn("Using in-memory store and unverified tokens; data is lost on restart")
		store := db.NewMemoryStore(time.Now)
		return &backend{
			bookings: store.Bookings(),
			cars:     store.Cars(),
			verifier: middleware.InsecureVerifier{},
			close:    func() error { return nil },
		}, nil
	default:
		initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		clients, err := db.InitFirebase(initCtx, appConfig, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			bookings: db.NewFirestoreBookingRepository(clients.Firestore, logger),
			cars:     db.NewFirestoreCarRepository(clients.Firestore, logger),
			verifier: clients.Auth,
			close:    clients.Close,
		}, nil
	}
}
