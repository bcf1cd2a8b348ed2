package interfaces

import (
	"context"
	"errors"
	"time"

	"nepway/internal/models"
	"nepway/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrConditionFailed is returned when a conditional write matched no
	// document. Callers re-read to learn which precondition failed.
	ErrConditionFailed = errors.New("write precondition not met")
)

// StatusChange describes a conditional status write: it applies only while
// the ride is still in From.
type StatusChange struct {
	From          models.RideStatus
	To            models.RideStatus
	TimestampKey  string
	At            time.Time
	PaymentStatus models.PaymentStatus
	DistanceKm    *float64
	ActualFare    *float64
}

type RideRepository interface {
	// Basic operations
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// Listing
	ListByStatus(ctx context.Context, status models.RideStatus, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	ListByDriver(ctx context.Context, driverID primitive.ObjectID) ([]*models.Ride, error)
	ListByPassenger(ctx context.Context, passengerID primitive.ObjectID) ([]*models.Ride, error)

	// Conditional writes
	BookSeat(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error)
	AddPassengerSeats(ctx context.Context, rideID, driverID, passengerID primitive.ObjectID, seats int) (*models.Ride, error)
	RemovePassengerSeats(ctx context.Context, rideID, passengerID primitive.ObjectID, seats int) (*models.Ride, error)
	TransitionStatus(ctx context.Context, rideID primitive.ObjectID, change StatusChange) (*models.Ride, error)

	// Sweeping
	ExpireStale(ctx context.Context, today, now string, at time.Time) (int64, error)
}
