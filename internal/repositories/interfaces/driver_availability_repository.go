package interfaces

import (
	"context"

	"nepway/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverAvailabilityRepository interface {
	Get(ctx context.Context, driverID primitive.ObjectID) (*models.DriverAvailability, error)
	// Upsert writes the flag and last-active time. A nil location keeps the
	// previously reported one.
	Upsert(ctx context.Context, availability *models.DriverAvailability) (*models.DriverAvailability, error)
}
