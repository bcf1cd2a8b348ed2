package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRequestStatus string

const (
	RideRequestStatusPending   RideRequestStatus = "pending"
	RideRequestStatusAccepted  RideRequestStatus = "accepted"
	RideRequestStatusCompleted RideRequestStatus = "completed"
	RideRequestStatusCancelled RideRequestStatus = "cancelled"
	RideRequestStatusExpired   RideRequestStatus = "expired"
)

type RideRequest struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	PassengerID     primitive.ObjectID  `json:"passenger_id" bson:"passenger"`
	From            string              `json:"from" bson:"from"`
	To              string              `json:"to" bson:"to"`
	FromCoordinates Coordinates         `json:"from_coordinates" bson:"from_coordinates"`
	ToCoordinates   Coordinates         `json:"to_coordinates" bson:"to_coordinates"`
	PreferredDate   string              `json:"preferred_date" bson:"preferred_date"` // YYYY-MM-DD
	PreferredTime   string              `json:"preferred_time" bson:"preferred_time"` // HH:MM
	MaxPricePerSeat float64             `json:"max_price_per_seat" bson:"max_price_per_seat"`
	SeatsNeeded     int                 `json:"seats_needed" bson:"seats_needed"`
	Description     string              `json:"description,omitempty" bson:"description,omitempty"`
	Status          RideRequestStatus   `json:"status" bson:"status"`
	AcceptedBy      *primitive.ObjectID `json:"accepted_by,omitempty" bson:"accepted_by,omitempty"`
	AcceptedRide    *primitive.ObjectID `json:"accepted_ride,omitempty" bson:"accepted_ride,omitempty"`
	AcceptedAt      *time.Time          `json:"accepted_at,omitempty" bson:"accepted_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" bson:"updated_at"`
}

func (r *RideRequest) Terminal() bool {
	switch r.Status {
	case RideRequestStatusCompleted, RideRequestStatusCancelled, RideRequestStatusExpired:
		return true
	}
	return false
}
