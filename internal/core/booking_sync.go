package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/dates"
	"github.com/gustavlindstroms/parkmalmokontor/internal/db"
	"github.com/gustavlindstroms/parkmalmokontor/internal/identity"
	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
	"github.com/gustavlindstroms/parkmalmokontor/internal/plate"
)

var validate = validator.New()

// BookingSyncConfig carries the collaborators of a BookingSync.
type BookingSyncConfig struct {
	Repository db.BookingRepository
	User       identity.User
	Clock      func() time.Time
	Location   *time.Location
	Spots      []int // empty accepts any positive spot
	Logger     *zap.Logger
}

// BookingSnapshot is a consistent copy of a BookingSync's derived state.
// Map and Bookings must be treated as read-only.
type BookingSnapshot struct {
	Map      models.BookingMap `json:"bookingMap"`
	Bookings []models.Booking  `json:"bookings"`
	Loading  bool              `json:"loading"`
	Error    string            `json:"error,omitempty"`
}

// BookingSync keeps a BookingMap in step with one live booking query at a time.
type BookingSync struct {
	repo   db.BookingRepository
	user   identity.User
	clock  func() time.Time
	loc    *time.Location
	spots  map[int]bool
	logger *zap.Logger

	mu         sync.Mutex
	generation uint64
	stop       db.Unsubscribe
	bookingMap models.BookingMap
	loading    bool
	errMsg     string
	ready      chan struct{}
	release    func() // closes ready once
	changes    chan struct{}
}

// NewBookingSync creates a synchronizer for cfg.User. It fails when the user has no id.
func NewBookingSync(cfg BookingSyncConfig) (*BookingSync, error) {
	if cfg.Repository == nil {
		return nil, ErrMissingRepository
	}
	if cfg.User.UID == "" {
		return nil, ErrMissingIdentity
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var spots map[int]bool
	if len(cfg.Spots) > 0 {
		spots = make(map[int]bool, len(cfg.Spots))
		for _, spot := range cfg.Spots {
			spots[spot] = true
		}
	}

	ready := make(chan struct{})
	close(ready)

	return &BookingSync{
		repo:       cfg.Repository,
		user:       cfg.User,
		clock:      clock,
		loc:        loc,
		spots:      spots,
		logger:     logger.With(zap.String("userID", cfg.User.UID)),
		bookingMap: models.BookingMap{},
		ready:      ready,
		release:    func() {},
		changes:    make(chan struct{}, 1),
	}, nil
}

// SubscribeToDate follows the bookings of a single date. An empty date leaves the
// current subscription running.
func (s *BookingSync) SubscribeToDate(ctx context.Context, date string) {
	if date == "" {
		return
	}
	s.subscribe(ctx, db.BookingQuery{Date: date}, func(bookings []*models.Booking) models.BookingMap {
		result := models.BookingMap{date: {}}
		for _, b := range bookings {
			result[date][b.Spot] = models.OccupantOf(b)
		}
		return result
	})
}

// SubscribeToDateRange follows the bookings with start <= date <= end. If either bound is
// empty the map is cleared and nothing is subscribed.
func (s *BookingSync) SubscribeToDateRange(ctx context.Context, start, end string) {
	if start == "" || end == "" {
		s.Unsubscribe()
		s.mu.Lock()
		s.bookingMap = models.BookingMap{}
		s.mu.Unlock()
		s.notify()
		return
	}
	s.subscribe(ctx, db.BookingQuery{StartDate: start, EndDate: end}, groupByDate)
}

// SubscribeToUserBookings follows the user's bookings from today on. Today is fixed
// when the subscription starts.
func (s *BookingSync) SubscribeToUserBookings(ctx context.Context) {
	today := dates.Today(s.clock(), s.loc)
	s.subscribe(ctx, db.BookingQuery{UserID: s.user.UID, StartDate: today}, groupByDate)
}

func groupByDate(bookings []*models.Booking) models.BookingMap {
	result := models.BookingMap{}
	for _, b := range bookings {
		day, ok := result[b.Date]
		if !ok {
			day = make(map[int]models.Occupant)
			result[b.Date] = day
		}
		day[b.Spot] = models.OccupantOf(b)
	}
	return result
}

// subscribe tears the previous registration down before registering q. Pushes carry the
// generation they were registered under and are dropped once it is stale.
func (s *BookingSync) subscribe(ctx context.Context, q db.BookingQuery, build func([]*models.Booking) models.BookingMap) {
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

	stop := s.repo.Listen(ctx, q,
		func(bookings []*models.Booking) {
			next := build(bookings)
			s.mu.Lock()
			if s.generation != generation {
				s.mu.Unlock()
				return
			}
			s.bookingMap = next
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
			s.errMsg = loadBookingsFailed
			s.mu.Unlock()
			s.logger.Error("Error fetching bookings", zap.Error(err))
			markReady()
			s.notify()
		},
	)

	s.mu.Lock()
	if s.generation != generation {
		// Replaced while registering.
		s.mu.Unlock()
		stop()
		return
	}
	s.stop = stop
	s.mu.Unlock()
}

// Unsubscribe stops the active subscription. The current map is kept.
func (s *BookingSync) Unsubscribe() {
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

// Bookings flattens the current map. Order is unspecified.
func (s *BookingSync) Bookings() []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookingMap.Flatten()
}

// UserHasBookingOnDate reports whether the user occupies any spot on date.
func (s *BookingSync) UserHasBookingOnDate(date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, occupant := range s.bookingMap[date] {
		if occupant.UserID == s.user.UID {
			return true
		}
	}
	return false
}

// CanCancel reports whether the user owns the booking at date/spot.
func (s *BookingSync) CanCancel(date string, spot int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	occupant, ok := s.bookingMap.Occupant(date, spot)
	return ok && occupant.UserID == s.user.UID
}

// CreateBooking reserves spot on date for the user. The same-day and spot checks run
// before the insert; the repository re-checks both atomically.
func (s *BookingSync) CreateBooking(ctx context.Context, date string, spot int, licensePlate, phoneNumber string) (*models.Booking, error) {
	normalized, err := s.validateBooking(date, spot, licensePlate)
	if err != nil {
		return nil, err
	}

	mine, err := s.repo.Find(ctx, db.BookingQuery{Date: date, UserID: s.user.UID, Limit: 1})
	if err != nil {
		s.logger.Error("Error checking existing bookings", zap.String("date", date), zap.Error(err))
		return nil, classifyWrite(err, ErrCreatePermissionDenied, ErrCreateFailed)
	}
	if len(mine) > 0 {
		return nil, ErrAlreadyBookedToday
	}

	taken, err := s.repo.Find(ctx, db.BookingQuery{Date: date, Spot: spot, Limit: 1})
	if err != nil {
		s.logger.Error("Error checking spot", zap.String("date", date), zap.Int("spot", spot), zap.Error(err))
		return nil, classifyWrite(err, ErrCreatePermissionDenied, ErrCreateFailed)
	}
	if len(taken) > 0 {
		return nil, ErrSpotTaken
	}

	booking := &models.Booking{
		Date:         date,
		Spot:         spot,
		LicensePlate: normalized,
		Name:         s.user.Name(),
		UserID:       s.user.UID,
		PhoneNumber:  strings.TrimSpace(phoneNumber),
	}
	if err := validate.Struct(booking); err != nil {
		return nil, err
	}

	if _, err := s.repo.Create(ctx, s.user.UID, booking); err != nil {
		switch {
		case errors.Is(err, db.ErrUserDateConflict):
			return nil, ErrAlreadyBookedToday
		case errors.Is(err, db.ErrSpotConflict):
			return nil, ErrSpotTaken
		}
		s.logger.Error("Error creating booking", zap.String("date", date), zap.Int("spot", spot), zap.Error(err))
		return nil, classifyWrite(err, ErrCreatePermissionDenied, ErrCreateFailed)
	}

	s.logger.Info("Booking created", zap.String("bookingID", booking.ID), zap.String("date", date), zap.Int("spot", spot))
	return booking, nil
}

func (s *BookingSync) validateBooking(date string, spot int, licensePlate string) (string, error) {
	if !dates.Valid(date) {
		return "", ErrInvalidDate
	}
	if spot < 1 || (s.spots != nil && !s.spots[spot]) {
		return "", ErrUnknownSpot
	}
	return plate.Parse(licensePlate)
}

// CancelBooking deletes a booking by id. Ownership is enforced by the store.
func (s *BookingSync) CancelBooking(ctx context.Context, bookingID string) error {
	if err := s.repo.Delete(ctx, s.user.UID, bookingID); err != nil {
		s.logger.Error("Error cancelling booking", zap.String("bookingID", bookingID), zap.Error(err))
		return classifyWrite(err, ErrCancelPermissionDenied, ErrCancelFailed)
	}
	s.logger.Info("Booking cancelled", zap.String("bookingID", bookingID))
	return nil
}

// CancelBookingBySpot cancels the booking shown at date/spot in the current map.
func (s *BookingSync) CancelBookingBySpot(ctx context.Context, date string, spot int) error {
	s.mu.Lock()
	occupant, ok := s.bookingMap.Occupant(date, spot)
	s.mu.Unlock()
	if !ok {
		return ErrBookingNotFound
	}
	return s.CancelBooking(ctx, occupant.ID)
}

// Snapshot returns the current derived state.
func (s *BookingSync) Snapshot() BookingSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BookingSnapshot{
		Map:      s.bookingMap,
		Bookings: s.bookingMap.Flatten(),
		Loading:  s.loading,
		Error:    s.errMsg,
	}
}

// Changes signals after every state change. Signals coalesce; read Snapshot on receipt.
func (s *BookingSync) Changes() <-chan struct{} {
	return s.changes
}

// WaitReady blocks until the current subscription delivered its first push or error.
func (s *BookingSync) WaitReady(ctx context.Context) error {
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


func (s *BookingSync) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
