package interfaces

import (
	"context"
	"time"

	"nepway/internal/models"
	"nepway/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRequestRepository interface {
	// Basic operations
	Create(ctx context.Context, request *models.RideRequest) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.RideRequest, error)

	// Listing
	ListPending(ctx context.Context, params *utils.PaginationParams) ([]*models.RideRequest, int64, error)
	ListByPassenger(ctx context.Context, passengerID primitive.ObjectID) ([]*models.RideRequest, error)

	// Conditional writes
	Claim(ctx context.Context, requestID, driverID primitive.ObjectID, at time.Time) (*models.RideRequest, error)
	ReleaseClaim(ctx context.Context, requestID, driverID primitive.ObjectID) (*models.RideRequest, error)
	AttachRide(ctx context.Context, requestID, driverID, rideID primitive.ObjectID) (*models.RideRequest, error)
	Cancel(ctx context.Context, requestID, passengerID primitive.ObjectID) (*models.RideRequest, error)
	CompleteForRide(ctx context.Context, rideID primitive.ObjectID) (int64, error)

	// Sweeping
	ExpireStale(ctx context.Context, today, now string, at time.Time) (int64, error)
}
