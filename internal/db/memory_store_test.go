package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
)

func fixedClock() time.Time {
	return time.Date(2025, time.January, 6, 7, 0, 0, 0, time.UTC)
}

func TestMemoryBookingsEnforceDailyUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore(fixedClock).Bookings()

	id, err := repo.Create(ctx, "u1", &models.Booking{Date: "2025-01-10", Spot: 3, LicensePlate: "ABC123", UserID: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = repo.Create(ctx, "u1", &models.Booking{Date: "2025-01-10", Spot: 4, LicensePlate: "ABC123", UserID: "u1"})
	assert.ErrorIs(t, err, ErrUserDateConflict)

	_, err = repo.Create(ctx, "u2", &models.Booking{Date: "2025-01-10", Spot: 3, LicensePlate: "XYZ789", UserID: "u2"})
	assert.ErrorIs(t, err, ErrSpotConflict)

	_, err = repo.Create(ctx, "u2", &models.Booking{Date: "2025-01-11", Spot: 3, LicensePlate: "XYZ789", UserID: "u2"})
	assert.NoError(t, err)
}

func TestMemoryBookingsOwnerPolicy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore(fixedClock).Bookings()

	_, err := repo.Create(ctx, "u2", &models.Booking{Date: "2025-01-10", Spot: 1, UserID: "u1"})
	assert.True(t, IsPermissionDenied(err))

	id, err := repo.Create(ctx, "u1", &models.Booking{Date: "2025-01-10", Spot: 1, UserID: "u1"})
	require.NoError(t, err)

	err = repo.Delete(ctx, "u2", id)
	assert.True(t, IsPermissionDenied(err))

	require.NoError(t, repo.Delete(ctx, "u1", id))
	assert.True(t, IsPermissionDenied(repo.Delete(ctx, "u1", id)))
}

func TestMemoryBookingsListenPushesFullResultSet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore(fixedClock).Bookings()

	var pushes [][]*models.Booking
	unsubscribe := repo.Listen(ctx, BookingQuery{StartDate: "2025-01-06", EndDate: "2025-01-10"}, func(b []*models.Booking) {
		pushes = append(pushes, b)
	}, func(error) { t.Fatal("unexpected listen error") })

	_, err := repo.Create(ctx, "u1", &models.Booking{Date: "2025-01-06", Spot: 1, UserID: "u1"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, "u2", &models.Booking{Date: "2025-01-10", Spot: 1, UserID: "u2"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, "u3", &models.Booking{Date: "2025-01-11", Spot: 1, UserID: "u3"})
	require.NoError(t, err)

	require.Len(t, pushes, 4)
	assert.Empty(t, pushes[0])
	assert.Len(t, pushes[1], 1)
	assert.Len(t, pushes[2], 2)
	assert.Len(t, pushes[3], 2, "out-of-range write still pushes the unchanged result set")

	unsubscribe()
	unsubscribe()
	_, err = repo.Create(ctx, "u4", &models.Booking{Date: "2025-01-07", Spot: 2, UserID: "u4"})
	require.NoError(t, err)
	assert.Len(t, pushes, 4)
}

func TestMemoryBookingsDeliverPushesInWriteOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore(fixedClock).Bookings()

	var (
		mu     sync.Mutex
		sizes  []int
		hold   sync.Once
		held   = make(chan struct{})
		resume = make(chan struct{})
	)
	unsubscribe := repo.Listen(ctx, BookingQuery{Date: "2025-01-10"}, func(b []*models.Booking) {
		mu.Lock()
		sizes = append(sizes, len(b))
		mu.Unlock()
		if len(b) == 1 {
			hold.Do(func() {
				close(held)
				<-resume
			})
		}
	}, nil)
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := repo.Create(ctx, "u1", &models.Booking{Date: "2025-01-10", Spot: 1, UserID: "u1"})
		assert.NoError(t, err)
	}()
	<-held
	go func() {
		defer wg.Done()
		_, err := repo.Create(ctx, "u2", &models.Booking{Date: "2025-01-10", Spot: 2, UserID: "u2"})
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)
	close(resume)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, sizes)
}

func TestMemoryBookingsPendingReminders(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore(fixedClock).Bookings()

	id, err := repo.Create(ctx, "u1", &models.Booking{Date: "2025-01-06", Spot: 1, UserID: "u1"})
	require.NoError(t, err)

	pending, err := repo.Find(ctx, BookingQuery{Date: "2025-01-06", PendingReminder: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fixedClock(), pending[0].CreatedAt)

	require.NoError(t, repo.MarkReminderSent(ctx, id))
	pending, err = repo.Find(ctx, BookingQuery{Date: "2025-01-06", PendingReminder: true})
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, repo.MarkReminderSent(ctx, "missing"), ErrNotFound)
}

func TestMemoryCars(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore(fixedClock).Cars()

	var latest []*models.Car
	unsubscribe := repo.Listen(ctx, CarQuery{UserID: "u1"}, func(c []*models.Car) { latest = c }, nil)
	defer unsubscribe()

	id, err := repo.Create(ctx, "u1", &models.Car{LicensePlate: "ABC123", UserID: "u1"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, "u2", &models.Car{LicensePlate: "XYZ789", UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, id, latest[0].ID)

	assert.True(t, IsPermissionDenied(repo.Delete(ctx, "u2", id)))
	require.NoError(t, repo.Delete(ctx, "u1", id))
	assert.Empty(t, latest)
}
