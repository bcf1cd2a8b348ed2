package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DriverLocation is the last position a driver reported with an availability update.
type DriverLocation struct {
	Lat         float64   `json:"lat" bson:"lat"`
	Lng         float64   `json:"lng" bson:"lng"`
	LastUpdated time.Time `json:"last_updated" bson:"last_updated"`
}

// DriverAvailability is keyed by the driver's user id. A driver with no
// document is unavailable.
type DriverAvailability struct {
	DriverID        primitive.ObjectID `json:"driver_id" bson:"_id"`
	IsAvailable     bool               `json:"is_available" bson:"is_available"`
	CurrentLocation *DriverLocation    `json:"current_location,omitempty" bson:"current_location,omitempty"`
	LastActive      *time.Time         `json:"last_active,omitempty" bson:"last_active,omitempty"`
}

// UpdateAvailabilityInput is the body of PATCH /api/drivers/availability.
type UpdateAvailabilityInput struct {
	IsAvailable *bool        `json:"is_available" validate:"required"`
	Location    *Coordinates `json:"location,omitempty"`
}
