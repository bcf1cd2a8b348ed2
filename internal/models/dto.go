package models

// CreateRideInput is the body of POST /api/rides.
type CreateRideInput struct {
	From            string       `json:"from" validate:"required,not_blank,max=200"`
	To              string       `json:"to" validate:"required,not_blank,max=200"`
	FromCoordinates *Coordinates `json:"from_coordinates,omitempty"`
	ToCoordinates   *Coordinates `json:"to_coordinates,omitempty"`
	Date            string       `json:"date" validate:"required,ride_date"`
	Time            string       `json:"time" validate:"required,clock_time"`
	AvailableSeats  int          `json:"available_seats" validate:"required,min=1,max=8"`
	PricePerSeat    float64      `json:"price_per_seat" validate:"gte=0"`
	Description     string       `json:"description,omitempty" validate:"max=500"`
	VehicleInfo     *VehicleInfo `json:"vehicle_info,omitempty"`
}

// CreateRideRequestInput is the body of POST /api/ride-requests.
type CreateRideRequestInput struct {
	From            string      `json:"from" validate:"required,not_blank,max=200"`
	To              string      `json:"to" validate:"required,not_blank,max=200"`
	FromCoordinates Coordinates `json:"from_coordinates"`
	ToCoordinates   Coordinates `json:"to_coordinates"`
	PreferredDate   string      `json:"preferred_date" validate:"required,ride_date"`
	PreferredTime   string      `json:"preferred_time" validate:"required,clock_time"`
	MaxPricePerSeat float64     `json:"max_price_per_seat" validate:"gte=0"`
	SeatsNeeded     int         `json:"seats_needed" validate:"required,min=1,max=6"`
	Description     string      `json:"description,omitempty" validate:"max=500"`
}

// AcceptRideRequestInput optionally names an existing ride of the driver.
type AcceptRideRequestInput struct {
	RideID string `json:"ride_id,omitempty" validate:"omitempty,object_id"`
}

type UpdateRideStatusInput struct {
	Status string `json:"status" validate:"required"`
}

type FareEstimateQuery struct {
	FromLat float64 `form:"fromLat" validate:"latitude"`
	FromLng float64 `form:"fromLng" validate:"longitude"`
	ToLat   float64 `form:"toLat" validate:"latitude"`
	ToLng   float64 `form:"toLng" validate:"longitude"`
}

type FareEstimate struct {
	DistanceKm float64 `json:"distance_km"`
	Fare       float64 `json:"fare"`
}

// MyRides groups the caller's rides by the part they play in them.
type MyRides struct {
	AsDriver    []*Ride `json:"as_driver"`
	AsPassenger []*Ride `json:"as_passenger"`
}

// AcceptResult is returned by a successful acceptance.
type AcceptResult struct {
	Request     *RideRequest `json:"request"`
	Ride        *Ride        `json:"ride"`
	RideCreated bool         `json:"ride_created"`
}
