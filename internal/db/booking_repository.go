package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
)

// firestoreBookingRepository implements BookingRepository using Firestore.
type firestoreBookingRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreBookingRepository creates a new instance of firestoreBookingRepository.
func NewFirestoreBookingRepository(client *firestore.Client, logger *zap.Logger) BookingRepository {
	if client == nil {
		panic("Firestore client is not initialized for BookingRepository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &firestoreBookingRepository{client: client, logger: logger}
}

func (r *firestoreBookingRepository) query(q BookingQuery) firestore.Query {
	query := r.client.Collection(bookingsCollection).Query
	if q.Date != "" {
		query = query.Where("date", "==", q.Date)
	}
	if q.StartDate != "" {
		query = query.Where("date", ">=", q.StartDate)
	}
	if q.EndDate != "" {
		query = query.Where("date", "<=", q.EndDate)
	}
	if q.UserID != "" {
		query = query.Where("userId", "==", q.UserID)
	}
	if q.Spot > 0 {
		query = query.Where("spot", "==", q.Spot)
	}
	if q.PendingReminder {
		query = query.Where("reminderSent", "==", false)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

func (r *firestoreBookingRepository) decode(doc *firestore.DocumentSnapshot) (*models.Booking, bool) {
	var booking models.Booking
	if err := doc.DataTo(&booking); err != nil {
		r.logger.Warn("Skipping undecodable booking", zap.String("bookingID", doc.Ref.ID), zap.Error(err))
		return nil, false
	}
	booking.ID = doc.Ref.ID
	return &booking, true
}

// Listen subscribes to the bookings matching q.
func (r *firestoreBookingRepository) Listen(ctx context.Context, q BookingQuery, onSnapshot func([]*models.Booking), onError func(error)) Unsubscribe {
	return listen(ctx, r.query(q), func(docs []*firestore.DocumentSnapshot) {
		bookings := make([]*models.Booking, 0, len(docs))
		for _, doc := range docs {
			if booking, ok := r.decode(doc); ok {
				bookings = append(bookings, booking)
			}
		}
		onSnapshot(bookings)
	}, onError)
}

// Find runs q once.
func (r *firestoreBookingRepository) Find(ctx context.Context, q BookingQuery) ([]*models.Booking, error) {
	iter := r.query(q).Documents(ctx)
	defer iter.Stop()

	var bookings []*models.Booking
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate bookings: %w", err)
		}
		if booking, ok := r.decode(doc); ok {
			bookings = append(bookings, booking)
		}
	}
	return bookings, nil
}

// Create inserts booking inside a transaction that re-checks both per-day
// invariants, so two concurrent writers cannot both land.
func (r *firestoreBookingRepository) Create(ctx context.Context, actorID string, booking *models.Booking) (string, error) {
	if actorID == "" || booking.UserID != actorID {
		return "", permissionDenied(bookingsCollection, "new")
	}

	docRef := r.client.Collection(bookingsCollection).NewDoc()
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		sameUser, err := tx.Documents(r.query(BookingQuery{Date: booking.Date, UserID: booking.UserID, Limit: 1})).GetAll()
		if err != nil {
			return err
		}
		if len(sameUser) > 0 {
			return ErrUserDateConflict
		}
		sameSpot, err := tx.Documents(r.query(BookingQuery{Date: booking.Date, Spot: booking.Spot, Limit: 1})).GetAll()
		if err != nil {
			return err
		}
		if len(sameSpot) > 0 {
			return ErrSpotConflict
		}
		return tx.Create(docRef, booking)
	})
	if err != nil {
		if errors.Is(err, ErrUserDateConflict) || errors.Is(err, ErrSpotConflict) {
			return "", err
		}
		return "", fmt.Errorf("failed to create booking: %w", err)
	}
	booking.ID = docRef.ID
	booking.CreatedAt = readCreatedAt(ctx, docRef, r.logger)
	return docRef.ID, nil
}

// readCreatedAt fetches the server-assigned createdAt of a freshly written document.
// A failed read is logged and yields the zero time; the write itself succeeded.
func readCreatedAt(ctx context.Context, docRef *firestore.DocumentRef, logger *zap.Logger) time.Time {
	snap, err := docRef.Get(ctx)
	if err != nil {
		logger.Warn("Failed to read back created document", zap.String("path", docRef.Path), zap.Error(err))
		return time.Time{}
	}
	value, err := snap.DataAt("createdAt")
	if err != nil {
		return time.Time{}
	}
	createdAt, _ := value.(time.Time)
	return createdAt
}

// Delete removes a booking owned by actorID.
func (r *firestoreBookingRepository) Delete(ctx context.Context, actorID, bookingID string) error {
	if bookingID == "" {
		return errors.New("bookingID cannot be empty for Delete operation")
	}
	docRef := r.client.Collection(bookingsCollection).Doc(bookingID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return permissionDenied(bookingsCollection, bookingID)
			}
			return err
		}
		owner, _ := snap.DataAt("userId")
		if owner != actorID {
			return permissionDenied(bookingsCollection, bookingID)
		}
		return tx.Delete(docRef)
	})
	if err != nil {
		return fmt.Errorf("failed to delete booking '%s': %w", bookingID, err)
	}
	return nil
}

// MarkReminderSent flags a booking as reminded. Used by the reminder job only.
func (r *firestoreBookingRepository) MarkReminderSent(ctx context.Context, bookingID string) error {
	_, err := r.client.Collection(bookingsCollection).Doc(bookingID).Update(ctx, []firestore.Update{
		{Path: "reminderSent", Value: true},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("booking '%s': %w", bookingID, ErrNotFound)
		}
		return fmt.Errorf("failed to mark reminder sent for booking '%s': %w", bookingID, err)
	}
	return nil
}
