package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
)

// MemoryStore is an in-process document store with live queries. It backs
// local development (STORE_DRIVER=memory) and tests, and applies the same
// owner-only write policy and per-day uniqueness as the Firestore repositories.
type MemoryStore struct {
	// pushMu is held from capturing a write's result sets until they are delivered,
	// so listeners see snapshots in write order.
	pushMu sync.Mutex

	mu       sync.Mutex
	clock    func() time.Time
	bookings map[string]models.Booking
	cars     map[string]models.Car

	nextListener     int64
	bookingListeners map[int64]*bookingListener
	carListeners     map[int64]*carListener
}

type bookingListener struct {
	query      BookingQuery
	onSnapshot func([]*models.Booking)
}

type carListener struct {
	query      CarQuery
	onSnapshot func([]*models.Car)
}

// NewMemoryStore returns an empty store. clock stamps createdAt; nil means time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		clock:            clock,
		bookings:         make(map[string]models.Booking),
		cars:             make(map[string]models.Car),
		bookingListeners: make(map[int64]*bookingListener),
		carListeners:     make(map[int64]*carListener),
	}
}

// Bookings returns the booking repository view of the store.
func (s *MemoryStore) Bookings() BookingRepository {
	return memoryBookings{s}
}

// Cars returns the car repository view of the store.
func (s *MemoryStore) Cars() CarRepository {
	return memoryCars{s}
}

func matchBooking(q BookingQuery, b models.Booking) bool {
	switch {
	case q.Date != "" && b.Date != q.Date:
		return false
	case q.StartDate != "" && b.Date < q.StartDate:
		return false
	case q.EndDate != "" && b.Date > q.EndDate:
		return false
	case q.UserID != "" && b.UserID != q.UserID:
		return false
	case q.Spot > 0 && b.Spot != q.Spot:
		return false
	case q.PendingReminder && b.ReminderSent:
		return false
	}
	return true
}

// selectBookings must be called with s.mu held.
func (s *MemoryStore) selectBookings(q BookingQuery) []*models.Booking {
	results := make([]*models.Booking, 0)
	for _, b := range s.bookings {
		if matchBooking(q, b) {
			booking := b
			results = append(results, &booking)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results
}

// selectCars must be called with s.mu held.
func (s *MemoryStore) selectCars(q CarQuery) []*models.Car {
	results := make([]*models.Car, 0)
	for _, c := range s.cars {
		if c.UserID == q.UserID {
			car := c
			results = append(results, &car)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results
}

// pendingPushes snapshots every listener's result set; deliver them after unlocking
// mu but before releasing pushMu.
func (s *MemoryStore) pendingPushes() []func() {
	pushes := make([]func(), 0, len(s.bookingListeners)+len(s.carListeners))
	for _, l := range s.bookingListeners {
		listener, results := l, s.selectBookings(l.query)
		pushes = append(pushes, func() { listener.onSnapshot(results) })
	}
	for _, l := range s.carListeners {
		listener, results := l, s.selectCars(l.query)
		pushes = append(pushes, func() { listener.onSnapshot(results) })
	}
	return pushes
}

func deliver(pushes []func()) {
	for _, push := range pushes {
		push()
	}
}

type memoryBookings struct{ s *MemoryStore }

func (m memoryBookings) Listen(_ context.Context, q BookingQuery, onSnapshot func([]*models.Booking), _ func(error)) Unsubscribe {
	s := m.s
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	s.mu.Lock()
	s.nextListener++
	id := s.nextListener
	s.bookingListeners[id] = &bookingListener{query: q, onSnapshot: onSnapshot}
	initial := s.selectBookings(q)
	s.mu.Unlock()

	onSnapshot(initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.bookingListeners, id)
			s.mu.Unlock()
		})
	}
}

func (m memoryBookings) Find(_ context.Context, q BookingQuery) ([]*models.Booking, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.selectBookings(q), nil
}

func (m memoryBookings) Create(_ context.Context, actorID string, booking *models.Booking) (string, error) {
	if actorID == "" || booking.UserID != actorID {
		return "", permissionDenied(bookingsCollection, "new")
	}
	s := m.s
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	s.mu.Lock()
	if len(s.selectBookings(BookingQuery{Date: booking.Date, UserID: booking.UserID, Limit: 1})) > 0 {
		s.mu.Unlock()
		return "", ErrUserDateConflict
	}
	if len(s.selectBookings(BookingQuery{Date: booking.Date, Spot: booking.Spot, Limit: 1})) > 0 {
		s.mu.Unlock()
		return "", ErrSpotConflict
	}
	stored := *booking
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.clock().UTC()
	s.bookings[stored.ID] = stored
	pushes := s.pendingPushes()
	s.mu.Unlock()

	booking.ID = stored.ID
	booking.CreatedAt = stored.CreatedAt
	deliver(pushes)
	return stored.ID, nil
}

func (m memoryBookings) Delete(_ context.Context, actorID, bookingID string) error {
	s := m.s
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	s.mu.Lock()
	existing, ok := s.bookings[bookingID]
	if !ok || existing.UserID != actorID {
		s.mu.Unlock()
		return permissionDenied(bookingsCollection, bookingID)
	}
	delete(s.bookings, bookingID)
	pushes := s.pendingPushes()
	s.mu.Unlock()

	deliver(pushes)
	return nil
}

func (m memoryBookings) MarkReminderSent(_ context.Context, bookingID string) error {
	s := m.s
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	s.mu.Lock()
	existing, ok := s.bookings[bookingID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	existing.ReminderSent = true
	s.bookings[bookingID] = existing
	pushes := s.pendingPushes()
	s.mu.Unlock()

	deliver(pushes)
	return nil
}

type memoryCars struct{ s *MemoryStore }

func (m memoryCars) Listen(_ context.Context, q CarQuery, onSnapshot func([]*models.Car), _ func(error)) Unsubscribe {
	s := m.s
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	s.mu.Lock()
	s.nextListener++
	id := s.nextListener
	s.carListeners[id] = &carListener{query: q, onSnapshot: onSnapshot}
	initial := s.selectCars(q)
	s.mu.Unlock()

	onSnapshot(initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.carListeners, id)
			s.mu.Unlock()
		})
	}
}

func (m memoryCars) Create(_ context.Context, actorID string, car *models.Car) (string, error) {
	if actorID == "" || car.UserID != actorID {
		return "", permissionDenied(carsCollection, "new")
	}
	s := m.s
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	s.mu.Lock()
	stored := *car
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.clock().UTC()
	s.cars[stored.ID] = stored
	pushes := s.pendingPushes()
	s.mu.Unlock()

	car.ID = stored.ID
	car.CreatedAt = stored.CreatedAt
	deliver(pushes)
	return stored.ID, nil
}

func (m memoryCars) Delete(_ context.Context, actorID, carID string) error {
	s := m.s
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	s.mu.Lock()
	existing, ok := s.cars[carID]
	if !ok || existing.UserID != actorID {
		s.mu.Unlock()
		return permissionDenied(carsCollection, carID)
	}
	delete(s.cars, carID)
	pushes := s.pendingPushes()
	s.mu.Unlock()

	deliver(pushes)
	return nil
}
