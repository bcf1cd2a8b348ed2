package services

import (
	"context"
	"errors"
	"time"

	"nepway/internal/apperrors"
	"nepway/internal/models"
	"nepway/internal/repositories/interfaces"
	"nepway/internal/utils"
	"nepway/internal/validators"
	"nepway/pkg/scheduler"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverService interface {
	GetStats(ctx context.Context, driverID primitive.ObjectID) (*models.DriverStats, error)
	GetAvailability(ctx context.Context, driverID primitive.ObjectID) (*models.DriverAvailability, error)
	SetAvailability(ctx context.Context, driverID primitive.ObjectID, input *models.UpdateAvailabilityInput) (*models.DriverAvailability, error)
}

type driverService struct {
	rides        interfaces.RideRepository
	availability interfaces.DriverAvailabilityRepository
	clock        scheduler.Clock
	location     *time.Location
}

func NewDriverService(
	rides interfaces.RideRepository,
	availability interfaces.DriverAvailabilityRepository,
	clock scheduler.Clock,
	location *time.Location,
) DriverService {
	if clock == nil {
		clock = scheduler.RealClock()
	}
	if location == nil {
		location = time.UTC
	}
	return &driverService{rides: rides, availability: availability, clock: clock, location: location}
}

// GetStats counts completed and in-progress rides and sums earnings over
// completed rides. A ride earns its seat price for every booked seat.
func (s *driverService) GetStats(ctx context.Context, driverID primitive.ObjectID) (*models.DriverStats, error) {
	rides, err := s.rides.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, apperrors.Internal("failed to load driver rides", err)
	}

	today, _ := utils.DateAndClock(s.clock.Now(), s.location)
	stats := &models.DriverStats{}

	for _, ride := range rides {
		if ride.Status.InProgress() {
			stats.ActiveRides++
		}
		if ride.Status != models.RideStatusCompleted {
			continue
		}

		stats.TotalRides++
		earned := ride.PricePerSeat * float64(len(ride.Passengers))
		stats.TotalEarnings += earned
		if ride.RideCompletedAt != nil {
			if completedOn, _ := utils.DateAndClock(*ride.RideCompletedAt, s.location); completedOn == today {
				stats.TodayEarnings += earned
			}
		}
	}

	stats.TotalEarnings = utils.RoundTo(stats.TotalEarnings, 2)
	stats.TodayEarnings = utils.RoundTo(stats.TodayEarnings, 2)
	return stats, nil
}

// GetAvailability reports a driver who never set availability as unavailable.
func (s *driverService) GetAvailability(ctx context.Context, driverID primitive.ObjectID) (*models.DriverAvailability, error) {
	availability, err := s.availability.Get(ctx, driverID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return &models.DriverAvailability{DriverID: driverID}, nil
		}
		return nil, apperrors.Internal("failed to load driver availability", err)
	}
	return availability, nil
}

func (s *driverService) SetAvailability(ctx context.Context, driverID primitive.ObjectID, input *models.UpdateAvailabilityInput) (*models.DriverAvailability, error) {
	if err := validators.Validate(input); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	update := &models.DriverAvailability{
		DriverID:    driverID,
		IsAvailable: *input.IsAvailable,
		LastActive:  &now,
	}
	if input.Location != nil {
		update.CurrentLocation = &models.DriverLocation{
			Lat:         input.Location.Lat,
			Lng:         input.Location.Lng,
			LastUpdated: now,
		}
	}

	availability, err := s.availability.Upsert(ctx, update)
	if err != nil {
		return nil, apperrors.Internal("failed to update driver availability", err)
	}
	return availability, nil
}
