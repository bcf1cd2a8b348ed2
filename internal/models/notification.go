package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationTypeRideRequest NotificationType = "ride_request"
	NotificationTypeRideBooking NotificationType = "ride_booking"
)

const RideStatusNotificationTitle = "Ride Status Update"

type Notification struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID         primitive.ObjectID  `json:"user_id" bson:"user_id"`
	Type           NotificationType    `json:"type" bson:"type"`
	Title          string              `json:"title" bson:"title"`
	Message        string              `json:"message" bson:"message"`
	RelatedRide    *primitive.ObjectID `json:"related_ride,omitempty" bson:"related_ride,omitempty"`
	RelatedRequest *primitive.ObjectID `json:"related_request,omitempty" bson:"related_request,omitempty"`
	CreatedAt      time.Time           `json:"created_at" bson:"created_at"`
}
