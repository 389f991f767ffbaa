package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
)

// firestoreCarRepository implements CarRepository using Firestore.
type firestoreCarRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreCarRepository creates a new instance of firestoreCarRepository.
func NewFirestoreCarRepository(client *firestore.Client, logger *zap.Logger) CarRepository {
	if client == nil {
		panic("Firestore client is not initialized for CarRepository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &firestoreCarRepository{client: client, logger: logger}
}

// Listen subscribes to the cars of q.UserID.
func (r *firestoreCarRepository) Listen(ctx context.Context, q CarQuery, onSnapshot func([]*models.Car), onError func(error)) Unsubscribe {
	query := r.client.Collection(carsCollection).Where("userId", "==", q.UserID)
	return listen(ctx, query, func(docs []*firestore.DocumentSnapshot) {
		cars := make([]*models.Car, 0, len(docs))
		for _, doc := range docs {
			var car models.Car
			if err := doc.DataTo(&car); err != nil {
				r.logger.Warn("Skipping undecodable car", zap.String("carID", doc.Ref.ID), zap.Error(err))
				continue
			}
			car.ID = doc.Ref.ID
			cars = append(cars, &car)
		}
		onSnapshot(cars)
	}, onError)
}

// Create adds a car for actorID with a server-assigned creation time.
func (r *firestoreCarRepository) Create(ctx context.Context, actorID string, car *models.Car) (string, error) {
	if actorID == "" || car.UserID != actorID {
		return "", permissionDenied(carsCollection, "new")
	}
	docRef := r.client.Collection(carsCollection).NewDoc()
	if _, err := docRef.Create(ctx, car); err != nil {
		return "", fmt.Errorf("failed to create car: %w", err)
	}
	car.ID = docRef.ID
	car.CreatedAt = readCreatedAt(ctx, docRef, r.logger)
	return docRef.ID, nil
}

// Delete removes a car owned by actorID.
func (r *firestoreCarRepository) Delete(ctx context.Context, actorID, carID string) error {
	if carID == "" {
		return errors.New("carID cannot be empty for Delete operation")
	}
	docRef := r.client.Collection(carsCollection).Doc(carID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return permissionDenied(carsCollection, carID)
			}
			return err
		}
		owner, _ := snap.DataAt("userId")
		if owner != actorID {
			return permissionDenied(carsCollection, carID)
		}
		return tx.Delete(docRef)
	})
	if err != nil {
		return fmt.Errorf("failed to delete car '%s': %w", carID, err)
	}
	return nil
}
