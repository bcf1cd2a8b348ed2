package services

import (
	"context"
	"errors"
	"fmt"

	"nepway/internal/apperrors"
	"nepway/internal/models"
	"nepway/internal/observability"
	"nepway/internal/repositories/interfaces"
	"nepway/internal/utils"
	"nepway/internal/validators"
	"nepway/pkg/events"
	"nepway/pkg/logger"
	"nepway/pkg/scheduler"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideService interface {
	// Ride Management
	CreateRide(ctx context.Context, identity models.Identity, input *models.CreateRideInput) (*models.Ride, error)
	ListActiveRides(ctx context.Context, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	GetMyRides(ctx context.Context, userID primitive.ObjectID) (*models.MyRides, error)

	// Booking
	BookSeat(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error)

	// Status Management
	GetRideStatus(ctx context.Context, rideID primitive.ObjectID) (*models.RideStatusView, error)
	UpdateRideStatus(ctx context.Context, rideID, userID primitive.ObjectID, status string) (*models.Ride, error)
	CancelRide(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error)
}

type rideService struct {
	rides       interfaces.RideRepository
	transitions *StatusTransitioner
	progression *AutoProgression
	notifier    NotificationService
	emitter     *EventEmitter
	clock       scheduler.Clock
	logger      *logger.Logger
}

func NewRideService(
	rides interfaces.RideRepository,
	transitions *StatusTransitioner,
	progression *AutoProgression,
	notifier NotificationService,
	emitter *EventEmitter,
	clock scheduler.Clock,
	log *logger.Logger,
) RideService {
	if clock == nil {
		clock = scheduler.RealClock()
	}
	return &rideService{
		rides:       rides,
		transitions: transitions,
		progression: progression,
		notifier:    notifier,
		emitter:     emitter,
		clock:       clock,
		logger:      log.WithField("component", "ride_service"),
	}
}

func (s *rideService) CreateRide(ctx context.Context, identity models.Identity, input *models.CreateRideInput) (*models.Ride, error) {
	if !identity.IsDriver() {
		return nil, apperrors.Forbidden(apperrors.CodeDriverOnly, "only drivers can create rides")
	}
	if err := validators.Validate(input); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ride := &models.Ride{
		ID:              primitive.NewObjectID(),
		DriverID:        identity.UserID,
		From:            input.From,
		To:              input.To,
		FromCoordinates: input.FromCoordinates,
		ToCoordinates:   input.ToCoordinates,
		Date:            input.Date,
		Time:            input.Time,
		AvailableSeats:  input.AvailableSeats,
		PricePerSeat:    input.PricePerSeat,
		Passengers:      []primitive.ObjectID{},
		Status:          models.RideStatusActive,
		Description:     input.Description,
		VehicleInfo:     input.VehicleInfo,
		PaymentMethod:   models.PaymentMethodCash,
		PaymentStatus:   models.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	stampEstimate(ride)

	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, apperrors.Internal("failed to create ride", err)
	}

	s.logger.LogRideEvent(ride.ID, "created", map[string]interface{}{
		"driver_id": ride.DriverID.Hex(),
		"seats":     ride.AvailableSeats,
	})
	s.emitter.Emit(ctx, events.RideCreated, ride.ID.Hex(), map[string]interface{}{
		"driver": ride.DriverID.Hex(),
		"date":   ride.Date,
		"time":   ride.Time,
		"seats":  ride.AvailableSeats,
	})
	return ride, nil
}

func (s *rideService) ListActiveRides(ctx context.Context, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	rides, total, err := s.rides.ListByStatus(ctx, models.RideStatusActive, params)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list rides", err)
	}
	return rides, total, nil
}

func (s *rideService) GetMyRides(ctx context.Context, userID primitive.ObjectID) (*models.MyRides, error) {
	asDriver, err := s.rides.ListByDriver(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list driver rides", err)
	}
	asPassenger, err := s.rides.ListByPassenger(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list passenger rides", err)
	}
	return &models.MyRides{AsDriver: asDriver, AsPassenger: asPassenger}, nil
}

// BookSeat adds userID to the ride in one conditional write. On a miss the
// ride is re-read only to explain which precondition failed.
func (s *rideService) BookSeat(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rides.BookSeat(ctx, rideID, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrConditionFailed) || errors.Is(err, interfaces.ErrNotFound) {
			err = s.classifyBookingMiss(ctx, rideID, userID)
		} else {
			err = apperrors.Internal("failed to book seat", err)
		}
		observability.BookingsTotal.WithLabelValues(bookingResult(err)).Inc()
		return nil, err
	}
	observability.BookingsTotal.WithLabelValues(observability.ResultSuccess).Inc()

	s.logger.LogRideEvent(ride.ID, "seat_booked", map[string]interface{}{
		"passenger_id": userID.Hex(),
		"seats_left":   ride.SeatsLeft(),
	})

	relatedRide := ride.ID
	s.notifier.Notify(ctx, &models.Notification{
		UserID:      ride.DriverID,
		Type:        models.NotificationTypeRideBooking,
		Title:       "New Booking",
		Message:     fmt.Sprintf("A passenger booked a seat on your ride from %s to %s.", ride.From, ride.To),
		RelatedRide: &relatedRide,
	})
	s.emitter.Emit(ctx, events.RideBooked, ride.ID.Hex(), map[string]interface{}{
		"passenger":  userID.Hex(),
		"seats_left": ride.SeatsLeft(),
	})

	if len(ride.Passengers) == 1 {
		s.progression.Schedule(ctx, ride)
	}
	return ride, nil
}

func (s *rideService) classifyBookingMiss(ctx context.Context, rideID, userID primitive.ObjectID) error {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return apperrors.NotFound(apperrors.CodeRideNotFound, "ride not found")
		}
		return apperrors.Internal("failed to load ride", err)
	}

	switch {
	case ride.DriverID == userID:
		return apperrors.Forbidden(apperrors.CodeOwnRide, "you cannot book your own ride")
	case ride.Status != models.RideStatusActive:
		return apperrors.Conflict(apperrors.CodeRideNotActive, "ride is no longer active")
	case ride.HasPassenger(userID):
		return apperrors.Conflict(apperrors.CodeAlreadyBooked, "you have already booked this ride")
	case ride.SeatsLeft() <= 0:
		return apperrors.Conflict(apperrors.CodeRideFull, "ride is full")
	}
	// Every precondition holds again: the ride changed between the write and
	// the read.
	return apperrors.Internal("booking state changed, please retry", nil)
}

func bookingResult(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindConflict:
		return observability.ResultConflict
	case apperrors.KindForbidden, apperrors.KindNotFound:
		return observability.ResultRejected
	}
	return observability.ResultError
}

func (s *rideService) GetRideStatus(ctx context.Context, rideID primitive.ObjectID) (*models.RideStatusView, error) {
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	return ride.StatusView(), nil
}

func (s *rideService) UpdateRideStatus(ctx context.Context, rideID, userID primitive.ObjectID, status string) (*models.Ride, error) {
	ride, err := s.getOwnedRide(ctx, rideID, userID)
	if err != nil {
		return nil, err
	}

	tr, err := ResolveStatusChange(ride.Status, status)
	if err != nil {
		return nil, err
	}
	return s.transitions.Apply(ctx, ride, tr, "driver", TransitionExtras{})
}

func (s *rideService) CancelRide(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.getOwnedRide(ctx, rideID, userID)
	if err != nil {
		return nil, err
	}

	tr, ok := NextTransition(ride.Status, ActionCancel)
	if !ok {
		return nil, illegalTransition(ride.Status, models.RideStatusCancelled)
	}
	return s.transitions.Apply(ctx, ride, tr, "driver", TransitionExtras{})
}

func (s *rideService) getRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeRideNotFound, "ride not found")
		}
		return nil, apperrors.Internal("failed to load ride", err)
	}
	return ride, nil
}

func (s *rideService) getOwnedRide(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != userID {
		return nil, apperrors.Forbidden(apperrors.CodeNotRideOwner, "only the ride's driver can change it")
	}
	return ride, nil
}

// stampEstimate records the haversine distance and tariff fare when both
// ends of the ride are known.
func stampEstimate(ride *models.Ride) {
	if ride.FromCoordinates == nil || ride.ToCoordinates == nil {
		return
	}
	estimate := EstimateFare(ride.FromCoordinates, ride.ToCoordinates)
	distance, fare := estimate.DistanceKm, estimate.Fare
	ride.DistanceKm = &distance
	ride.EstimatedFare = &fare
}
