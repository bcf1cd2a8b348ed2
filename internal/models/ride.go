package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string
type PaymentStatus string
type PaymentMethod string

const (
	RideStatusActive         RideStatus = "active"
	RideStatusDriverAssigned RideStatus = "driver_assigned"
	RideStatusDriverArrived  RideStatus = "driver_arrived"
	RideStatusStarted        RideStatus = "ride_started"
	RideStatusCompleted      RideStatus = "ride_completed"
	RideStatusCancelled      RideStatus = "cancelled"
	RideStatusExpired        RideStatus = "expired"

	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"

	PaymentMethodCash PaymentMethod = "cash"
)

// RideStatuses is the full set a ride status may take.
var RideStatuses = []RideStatus{
	RideStatusActive,
	RideStatusDriverAssigned,
	RideStatusDriverArrived,
	RideStatusStarted,
	RideStatusCompleted,
	RideStatusCancelled,
	RideStatusExpired,
}

func (s RideStatus) Valid() bool {
	for _, status := range RideStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status change is possible.
func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled || s == RideStatusExpired
}

// InProgress covers every non-terminal state past creation.
func (s RideStatus) InProgress() bool {
	switch s {
	case RideStatusActive, RideStatusDriverAssigned, RideStatusDriverArrived, RideStatusStarted:
		return true
	}
	return false
}

type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat" validate:"latitude"`
	Lng float64 `json:"lng" bson:"lng" validate:"longitude"`
}

type VehicleInfo struct {
	Make        string `json:"make,omitempty" bson:"make,omitempty" validate:"omitempty,max=50"`
	Model       string `json:"model,omitempty" bson:"model,omitempty" validate:"omitempty,max=50"`
	Color       string `json:"color,omitempty" bson:"color,omitempty" validate:"omitempty,max=30"`
	PlateNumber string `json:"plate_number,omitempty" bson:"plate_number,omitempty" validate:"omitempty,max=20"`
}

type Ride struct {
	ID              primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	DriverID        primitive.ObjectID   `json:"driver_id" bson:"driver"`
	From            string               `json:"from" bson:"from"`
	To              string               `json:"to" bson:"to"`
	FromCoordinates *Coordinates         `json:"from_coordinates,omitempty" bson:"from_coordinates,omitempty"`
	ToCoordinates   *Coordinates         `json:"to_coordinates,omitempty" bson:"to_coordinates,omitempty"`
	Date            string               `json:"date" bson:"date"` // YYYY-MM-DD
	Time            string               `json:"time" bson:"time"` // HH:MM
	AvailableSeats  int                  `json:"available_seats" bson:"available_seats"`
	PricePerSeat    float64              `json:"price_per_seat" bson:"price_per_seat"`
	Passengers      []primitive.ObjectID `json:"passengers" bson:"passengers"`
	Status          RideStatus           `json:"status" bson:"status"`
	Description     string               `json:"description,omitempty" bson:"description,omitempty"`
	VehicleInfo     *VehicleInfo         `json:"vehicle_info,omitempty" bson:"vehicle_info,omitempty"`

	PaymentMethod PaymentMethod `json:"payment_method" bson:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status" bson:"payment_status"`
	DistanceKm    *float64      `json:"distance_km,omitempty" bson:"distance_km,omitempty"`
	EstimatedFare *float64      `json:"estimated_fare,omitempty" bson:"estimated_fare,omitempty"`
	ActualFare    *float64      `json:"actual_fare,omitempty" bson:"actual_fare,omitempty"`

	DriverAssignedAt *time.Time `json:"driver_assigned_at,omitempty" bson:"driver_assigned_at,omitempty"`
	DriverArrivedAt  *time.Time `json:"driver_arrived_at,omitempty" bson:"driver_arrived_at,omitempty"`
	RideStartedAt    *time.Time `json:"ride_started_at,omitempty" bson:"ride_started_at,omitempty"`
	RideCompletedAt  *time.Time `json:"ride_completed_at,omitempty" bson:"ride_completed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	ExpiredAt        *time.Time `json:"expired_at,omitempty" bson:"expired_at,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (r *Ride) SeatsLeft() int {
	return r.AvailableSeats - len(r.Passengers)
}

func (r *Ride) HasPassenger(userID primitive.ObjectID) bool {
	for _, p := range r.Passengers {
		if p == userID {
			return true
		}
	}
	return false
}

// UniquePassengers returns passengers in booking order with duplicate seats
// collapsed.
func (r *Ride) UniquePassengers() []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(r.Passengers))
	out := make([]primitive.ObjectID, 0, len(r.Passengers))
	for _, p := range r.Passengers {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// RideStatusView is the read model returned by the ride status endpoint.
type RideStatusView struct {
	RideID           primitive.ObjectID `json:"ride_id"`
	Status           RideStatus         `json:"status"`
	PassengerCount   int                `json:"passenger_count"`
	SeatsLeft        int                `json:"seats_left"`
	DriverAssignedAt *time.Time         `json:"driver_assigned_at,omitempty"`
	DriverArrivedAt  *time.Time         `json:"driver_arrived_at,omitempty"`
	RideStartedAt    *time.Time         `json:"ride_started_at,omitempty"`
	RideCompletedAt  *time.Time         `json:"ride_completed_at,omitempty"`
	DistanceKm       *float64           `json:"distance_km,omitempty"`
	ActualFare       *float64           `json:"actual_fare,omitempty"`
	PaymentStatus    PaymentStatus      `json:"payment_status"`
}

func (r *Ride) StatusView() *RideStatusView {
	return &RideStatusView{
		RideID:           r.ID,
		Status:           r.Status,
		PassengerCount:   len(r.Passengers),
		SeatsLeft:        r.SeatsLeft(),
		DriverAssignedAt: r.DriverAssignedAt,
		DriverArrivedAt:  r.DriverArrivedAt,
		RideStartedAt:    r.RideStartedAt,
		RideCompletedAt:  r.RideCompletedAt,
		DistanceKm:       r.DistanceKm,
		ActualFare:       r.ActualFare,
		PaymentStatus:    r.PaymentStatus,
	}
}

// DriverStats summarises a driver's rides for the driver dashboard.
type DriverStats struct {
	TotalRides    int     `json:"total_rides"`
	ActiveRides   int     `json:"active_rides"`
	TotalEarnings float64 `json:"total_earnings"`
	TodayEarnings float64 `json:"today_earnings"`
}
