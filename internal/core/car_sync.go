package core

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/db"
	"github.com/gustavlindstroms/parkmalmokontor/internal/identity"
	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
	"github.com/gustavlindstroms/parkmalmokontor/internal/plate"
)

// CarSyncConfig carries the collaborators of a CarSync.
type CarSyncConfig struct {
	Repository db.CarRepository
	User       identity.User
	Logger     *zap.Logger
}

// CarSnapshot is a consistent copy of a CarSync's state.
type CarSnapshot struct {
	Cars    []models.Car `json:"cars"`
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
}

// CarSync keeps the user's car list in step with the store while attached.
type CarSync struct {
	repo   db.CarRepository
	user   identity.User
	logger *zap.Logger

	mu         sync.Mutex
	generation uint64
	stop       db.Unsubscribe
	cars       []models.Car
	loading    bool
	errMsg     string
	ready      chan struct{}
	release    func()
	changes    chan struct{}
}

// NewCarSync creates a car list synchronizer for cfg.User.
func NewCarSync(cfg CarSyncConfig) (*CarSync, error) {
	if cfg.Repository == nil {
		return nil, ErrMissingRepository
	}
	if cfg.User.UID == "" {
		return nil, ErrMissingIdentity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ready := make(chan struct{})
	close(ready)

	return &CarSync{
		repo:    cfg.Repository,
		user:    cfg.User,
		logger:  logger.With(zap.String("userID", cfg.User.UID)),
		cars:    []models.Car{},
		ready:   ready,
		release: func() {},
		changes: make(chan struct{}, 1),
	}, nil
}

// SortCars orders cars newest first when both have a creation time and by plate otherwise.
// The comparator is not a total order on lists mixing both kinds; the sort is stable.
func SortCars(cars []models.Car) {
	sort.SliceStable(cars, func(i, j int) bool {
		a, b := cars[i], cars[j]
		if !a.CreatedAt.IsZero() && !b.CreatedAt.IsZero() {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.LicensePlate < b.LicensePlate
	})
}

// Attach starts following the user's cars, replacing any earlier registration.
func (s *CarSync) Attach(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	generation := s.generation
	previous := s.stop
	s.stop = nil
	s.loading = true
	s.errMsg = ""
	ready := make(chan struct{})
	var readyOnce sync.Once
	markReady := func() { readyOnce.Do(func() { close(ready) }) }
	released := s.release
	s.ready, s.release = ready, markReady
	s.mu.Unlock()

	released()
	if previous != nil {
		previous()
	}

	stop := s.repo.Listen(ctx, db.CarQuery{UserID: s.user.UID},
		func(docs []*models.Car) {
			next := make([]models.Car, 0, len(docs))
			for _, car := range docs {
				next = append(next, *car)
			}
			SortCars(next)

			s.mu.Lock()
			if s.generation != generation {
				s.mu.Unlock()
				return
			}
			s.cars = next
			s.loading = false
			s.errMsg = ""
			s.mu.Unlock()
			markReady()
			s.notify()
		},
		func(err error) {
			s.mu.Lock()
			if s.generation != generation {
				s.mu.Unlock()
				return
			}
			s.loading = false
			s.errMsg = loadCarsFailed
			s.mu.Unlock()
			s.logger.Error("Error fetching cars", zap.Error(err))
			markReady()
			s.notify()
		},
	)

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		stop()
		return
	}
	s.stop = stop
	s.mu.Unlock()
}

// Detach stops following the store. It is safe to call more than once.
func (s *CarSync) Detach() {
	s.mu.Lock()
	s.generation++
	previous := s.stop
	s.stop = nil
	s.loading = false
	ready := make(chan struct{})
	close(ready)
	released := s.release
	s.ready, s.release = ready, func() {}
	s.mu.Unlock()

	released()
	if previous != nil {
		previous()
	}
}

// Cars returns a copy of the sorted list.
func (s *CarSync) Cars() []models.Car {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyCars()
}

func (s *CarSync) copyCars() []models.Car {
	cars := make([]models.Car, len(s.cars))
	copy(cars, s.cars)
	return cars
}

// AddCar normalizes input and stores it as a new car unless the list already has it.
func (s *CarSync) AddCar(ctx context.Context, input string) (*models.Car, error) {
	normalized, err := plate.Parse(input)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, car := range s.cars {
		if car.LicensePlate == normalized {
			s.mu.Unlock()
			return nil, ErrCarExists
		}
	}
	s.mu.Unlock()

	car := &models.Car{LicensePlate: normalized, UserID: s.user.UID}
	if err := validate.Struct(car); err != nil {
		return nil, err
	}
	if _, err := s.repo.Create(ctx, s.user.UID, car); err != nil {
		s.logger.Error("Error adding car", zap.String("licensePlate", normalized), zap.Error(err))
		return nil, classifyWrite(err, ErrAddPermissionDenied, ErrAddCarFailed)
	}
	return car, nil
}

// RemoveCar deletes a car by id. Ownership is enforced by the store.
func (s *CarSync) RemoveCar(ctx context.Context, carID string) error {
	if err := s.repo.Delete(ctx, s.user.UID, carID); err != nil {
		s.logger.Error("Error removing car", zap.String("carID", carID), zap.Error(err))
		return classifyWrite(err, ErrRemovePermission, ErrRemoveCarFailed)
	}
	return nil
}

// Snapshot returns the current state.
func (s *CarSync) Snapshot() CarSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CarSnapshot{
		Cars:    s.copyCars(),
		Loading: s.loading,
		Error:   s.errMsg,
	}
}

// Changes signals after every state change. Signals coalesce.
func (s *CarSync) Changes() <-chan struct{} {
	return s.changes
}

// WaitReady blocks until the current registration delivered its first push or error.
func (s *CarSync) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}


func (s *CarSync) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
