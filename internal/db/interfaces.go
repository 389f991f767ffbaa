package db

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
)

const (
	bookingsCollection = "bookings"
	carsCollection     = "cars"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUserDateConflict is returned by Create when the user already holds a booking that day.
	ErrUserDateConflict = errors.New("user already has a booking on this date")
	// ErrSpotConflict is returned by Create when the spot is already booked that day.
	ErrSpotConflict = errors.New("spot already booked on this date")
)

// Unsubscribe tears a live query down. Calling it more than once is a no-op.
type Unsubscribe func()

// BookingQuery filters the bookings collection. Zero-valued fields are not applied.
type BookingQuery struct {
	Date            string // date == Date
	StartDate       string // date >= StartDate
	EndDate         string // date <= EndDate
	UserID          string // userId == UserID
	Spot            int    // spot == Spot
	PendingReminder bool   // reminderSent == false
	Limit           int
}

// CarQuery filters the cars collection.
type CarQuery struct {
	UserID string
}

// BookingRepository is the document-store surface the booking synchronizer and the reminder job use.
// Writes take the acting user id; the repository enforces the owner-only document policy
// and reports a violation as a gRPC PermissionDenied status.
type BookingRepository interface {
	// Listen pushes the full result set of q on every change until the returned func is called.
	Listen(ctx context.Context, q BookingQuery, onSnapshot func([]*models.Booking), onError func(error)) Unsubscribe
	Find(ctx context.Context, q BookingQuery) ([]*models.Booking, error)
	Create(ctx context.Context, actorID string, booking *models.Booking) (string, error)
	Delete(ctx context.Context, actorID, bookingID string) error
	MarkReminderSent(ctx context.Context, bookingID string) error
}

// CarRepository is the document-store surface of the car synchronizer.
type CarRepository interface {
	Listen(ctx context.Context, q CarQuery, onSnapshot func([]*models.Car), onError func(error)) Unsubscribe
	Create(ctx context.Context, actorID string, car *models.Car) (string, error)
	Delete(ctx context.Context, actorID, carID string) error
}

// IsPermissionDenied reports whether err is the store's authorization denial.
func IsPermissionDenied(err error) bool {
	return err != nil && status.Code(err) == codes.PermissionDenied
}

func permissionDenied(collection, docID string) error {
	return status.Errorf(codes.PermissionDenied, "missing or insufficient permissions on %s/%s", collection, docID)
}
