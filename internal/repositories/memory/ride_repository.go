// Package memory holds in-process implementations of the repository
// interfaces. Every conditional write runs under one mutex, which gives the
// same single-winner guarantee as the MongoDB filters.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"nepway/internal/models"
	"nepway/internal/repositories/interfaces"
	"nepway/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRepository struct {
	mu    sync.RWMutex
	rides map[primitive.ObjectID]*models.Ride
}

var _ interfaces.RideRepository = (*RideRepository)(nil)

func NewRideRepository() *RideRepository {
	return &RideRepository{rides: make(map[primitive.ObjectID]*models.Ride)}
}

func (r *RideRepository) Create(_ context.Context, ride *models.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	if ride.Passengers == nil {
		ride.Passengers = []primitive.ObjectID{}
	}
	r.rides[ride.ID] = cloneRide(ride)
	return nil
}

func (r *RideRepository) GetByID(_ context.Context, id primitive.ObjectID) (*models.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ride, ok := r.rides[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cloneRide(ride), nil
}

func (r *RideRepository) ListByStatus(_ context.Context, status models.RideStatus, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	matched := r.filter(func(ride *models.Ride) bool { return ride.Status == status })
	sort.SliceStable(matched, func(i, j int) bool {
		return scheduleKey(matched[i].Date, matched[i].Time) < scheduleKey(matched[j].Date, matched[j].Time)
	})
	return paginate(matched, params), int64(len(matched)), nil
}

func (r *RideRepository) ListByDriver(_ context.Context, driverID primitive.ObjectID) ([]*models.Ride, error) {
	matched := r.filter(func(ride *models.Ride) bool { return ride.DriverID == driverID })
	sortRidesNewestFirst(matched)
	return matched, nil
}

func (r *RideRepository) ListByPassenger(_ context.Context, passengerID primitive.ObjectID) ([]*models.Ride, error) {
	matched := r.filter(func(ride *models.Ride) bool { return ride.HasPassenger(passengerID) })
	sortRidesNewestFirst(matched)
	return matched, nil
}

func (r *RideRepository) BookSeat(_ context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[rideID]
	if !ok ||
		ride.Status != models.RideStatusActive ||
		ride.DriverID == userID ||
		ride.HasPassenger(userID) ||
		len(ride.Passengers) >= ride.AvailableSeats {
		return nil, interfaces.ErrConditionFailed
	}

	ride.Passengers = append(ride.Passengers, userID)
	ride.UpdatedAt = time.Now()
	return cloneRide(ride), nil
}

func (r *RideRepository) AddPassengerSeats(_ context.Context, rideID, driverID, passengerID primitive.ObjectID, seats int) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[rideID]
	if !ok ||
		ride.DriverID != driverID ||
		ride.Status != models.RideStatusActive ||
		len(ride.Passengers)+seats > ride.AvailableSeats {
		return nil, interfaces.ErrConditionFailed
	}

	for i := 0; i < seats; i++ {
		ride.Passengers = append(ride.Passengers, passengerID)
	}
	ride.UpdatedAt = time.Now()
	return cloneRide(ride), nil
}

func (r *RideRepository) RemovePassengerSeats(_ context.Context, rideID, passengerID primitive.ObjectID, seats int) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[rideID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}

	for i := len(ride.Passengers) - 1; i >= 0 && seats > 0; i-- {
		if ride.Passengers[i] == passengerID {
			ride.Passengers = append(ride.Passengers[:i], ride.Passengers[i+1:]...)
			seats--
		}
	}
	ride.UpdatedAt = time.Now()
	return cloneRide(ride), nil
}

func (r *RideRepository) TransitionStatus(_ context.Context, rideID primitive.ObjectID, change interfaces.StatusChange) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[rideID]
	if !ok || ride.Status != change.From {
		return nil, interfaces.ErrConditionFailed
	}

	at := change.At
	ride.Status = change.To
	ride.UpdatedAt = at
	switch change.TimestampKey {
	case "driver_assigned_at":
		ride.DriverAssignedAt = &at
	case "driver_arrived_at":
		ride.DriverArrivedAt = &at
	case "ride_started_at":
		ride.RideStartedAt = &at
	case "ride_completed_at":
		ride.RideCompletedAt = &at
	case "cancelled_at":
		ride.CancelledAt = &at
	case "expired_at":
		ride.ExpiredAt = &at
	}
	if change.PaymentStatus != "" {
		ride.PaymentStatus = change.PaymentStatus
	}
	if change.DistanceKm != nil {
		d := *change.DistanceKm
		ride.DistanceKm = &d
	}
	if change.ActualFare != nil {
		f := *change.ActualFare
		ride.ActualFare = &f
	}
	return cloneRide(ride), nil
}

func (r *RideRepository) ExpireStale(_ context.Context, today, now string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired int64
	for _, ride := range r.rides {
		if ride.Status != models.RideStatusActive || !isStale(ride.Date, ride.Time, today, now) {
			continue
		}
		stamp := at
		ride.Status = models.RideStatusExpired
		ride.ExpiredAt = &stamp
		ride.UpdatedAt = at
		expired++
	}
	return expired, nil
}

func (r *RideRepository) filter(keep func(*models.Ride) bool) []*models.Ride {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Ride, 0)
	for _, ride := range r.rides {
		if keep(ride) {
			out = append(out, cloneRide(ride))
		}
	}
	return out
}

func sortRidesNewestFirst(rides []*models.Ride) {
	sort.SliceStable(rides, func(i, j int) bool {
		return scheduleKey(rides[i].Date, rides[i].Time) > scheduleKey(rides[j].Date, rides[j].Time)
	})
}

func cloneRide(ride *models.Ride) *models.Ride {
	cp := *ride
	cp.Passengers = append([]primitive.ObjectID{}, ride.Passengers...)
	if ride.FromCoordinates != nil {
		c := *ride.FromCoordinates
		cp.FromCoordinates = &c
	}
	if ride.ToCoordinates != nil {
		c := *ride.ToCoordinates
		cp.ToCoordinates = &c
	}
	if ride.VehicleInfo != nil {
		v := *ride.VehicleInfo
		cp.VehicleInfo = &v
	}
	return &cp
}
