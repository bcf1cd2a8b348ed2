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

// Seats added on top of the request when acceptance creates a new ride, so
// other passengers can still book it.
const acceptedRideSpareSeats = 3

const (
	stepClaimRequest = "claim_request"
	stepAssignRide   = "assign_ride"
	stepAttachRide   = "attach_ride"
)

type RideRequestService interface {
	// Request Management
	CreateRequest(ctx context.Context, identity models.Identity, input *models.CreateRideRequestInput) (*models.RideRequest, error)
	ListPendingRequests(ctx context.Context, params *utils.PaginationParams) ([]*models.RideRequest, int64, error)
	GetMyRequests(ctx context.Context, passengerID primitive.ObjectID) ([]*models.RideRequest, error)
	CancelRequest(ctx context.Context, requestID, passengerID primitive.ObjectID) (*models.RideRequest, error)

	// Matching
	AcceptRequest(ctx context.Context, identity models.Identity, requestID primitive.ObjectID, existingRideID *primitive.ObjectID) (*models.AcceptResult, error)
}

type rideRequestService struct {
	requests    interfaces.RideRequestRepository
	rides       interfaces.RideRepository
	progression *AutoProgression
	notifier    NotificationService
	emitter     *EventEmitter
	clock       scheduler.Clock
	logger      *logger.Logger
}

func NewRideRequestService(
	requests interfaces.RideRequestRepository,
	rides interfaces.RideRepository,
	progression *AutoProgression,
	notifier NotificationService,
	emitter *EventEmitter,
	clock scheduler.Clock,
	log *logger.Logger,
) RideRequestService {
	if clock == nil {
		clock = scheduler.RealClock()
	}
	return &rideRequestService{
		requests:    requests,
		rides:       rides,
		progression: progression,
		notifier:    notifier,
		emitter:     emitter,
		clock:       clock,
		logger:      log.WithField("component", "ride_request_service"),
	}
}

func (s *rideRequestService) CreateRequest(ctx context.Context, identity models.Identity, input *models.CreateRideRequestInput) (*models.RideRequest, error) {
	if err := validators.Validate(input); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	request := &models.RideRequest{
		ID:              primitive.NewObjectID(),
		PassengerID:     identity.UserID,
		From:            input.From,
		To:              input.To,
		FromCoordinates: input.FromCoordinates,
		ToCoordinates:   input.ToCoordinates,
		PreferredDate:   input.PreferredDate,
		PreferredTime:   input.PreferredTime,
		MaxPricePerSeat: input.MaxPricePerSeat,
		SeatsNeeded:     input.SeatsNeeded,
		Description:     input.Description,
		Status:          models.RideRequestStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, apperrors.Internal("failed to create ride request", err)
	}

	s.logger.LogRequestEvent(request.ID, "created", map[string]interface{}{
		"passenger_id": request.PassengerID.Hex(),
		"seats":        request.SeatsNeeded,
	})
	relatedRequest := request.ID
	s.notifier.Notify(ctx, &models.Notification{
		UserID:         request.PassengerID,
		Type:           models.NotificationTypeRideRequest,
		Title:          "Ride Request Posted",
		Message:        fmt.Sprintf("Your ride request from %s to %s is now visible to drivers.", request.From, request.To),
		RelatedRequest: &relatedRequest,
	})
	s.emitter.Emit(ctx, events.RequestCreated, request.ID.Hex(), map[string]interface{}{
		"passenger": request.PassengerID.Hex(),
		"date":      request.PreferredDate,
		"time":      request.PreferredTime,
		"seats":     request.SeatsNeeded,
	})
	return request, nil
}

func (s *rideRequestService) ListPendingRequests(ctx context.Context, params *utils.PaginationParams) ([]*models.RideRequest, int64, error) {
	requests, total, err := s.requests.ListPending(ctx, params)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list ride requests", err)
	}
	return requests, total, nil
}

func (s *rideRequestService) GetMyRequests(ctx context.Context, passengerID primitive.ObjectID) ([]*models.RideRequest, error) {
	requests, err := s.requests.ListByPassenger(ctx, passengerID)
	if err != nil {
		return nil, apperrors.Internal("failed to list ride requests", err)
	}
	return requests, nil
}

func (s *rideRequestService) CancelRequest(ctx context.Context, requestID, passengerID primitive.ObjectID) (*models.RideRequest, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.PassengerID != passengerID {
		return nil, apperrors.Forbidden(apperrors.CodeNotRequestOwner, "only the passenger can cancel this request")
	}

	cancelled, err := s.requests.Cancel(ctx, requestID, passengerID)
	if err != nil {
		if errors.Is(err, interfaces.ErrConditionFailed) {
			return nil, apperrors.Conflict(apperrors.CodeRequestUnavailable, "only pending requests can be cancelled")
		}
		return nil, apperrors.Internal("failed to cancel ride request", err)
	}

	s.logger.LogRequestEvent(requestID, "cancelled", nil)
	s.emitter.Emit(ctx, events.RequestCancelled, requestID.Hex(), map[string]interface{}{
		"passenger": passengerID.Hex(),
	})
	return cancelled, nil
}

// acceptance holds what the acceptance saga's steps hand to each other.
type acceptance struct {
	request    *models.RideRequest
	driverID   primitive.ObjectID
	existingID *primitive.ObjectID

	ride        *models.Ride
	rideCreated bool
	attached    *models.RideRequest
}

// AcceptRequest runs claim, assign and attach as a saga. A failure after the
// claim returns the request to pending so another driver can take it.
func (s *rideRequestService) AcceptRequest(ctx context.Context, identity models.Identity, requestID primitive.ObjectID, existingRideID *primitive.ObjectID) (*models.AcceptResult, error) {
	if !identity.IsDriver() {
		return nil, apperrors.Forbidden(apperrors.CodeDriverOnly, "only drivers can accept ride requests")
	}

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.PassengerID == identity.UserID {
		return nil, apperrors.Forbidden(apperrors.CodeOwnRequest, "you cannot accept your own ride request")
	}

	a := &acceptance{request: request, driverID: identity.UserID, existingID: existingRideID}
	saga := NewSaga("accept_ride_request", s.logger.WithRequestID(requestID.Hex())).
		AddStep(SagaStep{Name: stepClaimRequest, Action: s.claimStep(a), Compensate: s.releaseClaimStep(a)}).
		AddStep(SagaStep{Name: stepAssignRide, Action: s.assignRideStep(a), Compensate: s.unassignRideStep(a)}).
		AddStep(SagaStep{Name: stepAttachRide, Action: s.attachRideStep(a)})

	if err := saga.Execute(ctx); err != nil {
		observability.AcceptancesTotal.WithLabelValues(bookingResult(err)).Inc()

		var sagaErr *SagaError
		if errors.As(err, &sagaErr) && sagaErr.Step != stepClaimRequest {
			s.emitter.Emit(ctx, events.RequestCompensated, requestID.Hex(), map[string]interface{}{
				"driver":      identity.UserID.Hex(),
				"failed_step": sagaErr.Step,
			})
		}
		return nil, err
	}
	observability.AcceptancesTotal.WithLabelValues(observability.ResultSuccess).Inc()

	s.logger.LogRequestEvent(requestID, "accepted", map[string]interface{}{
		"driver_id":    identity.UserID.Hex(),
		"ride_id":      a.ride.ID.Hex(),
		"ride_created": a.rideCreated,
	})

	rideID := a.ride.ID
	s.notifier.Notify(ctx, &models.Notification{
		UserID:         request.PassengerID,
		Type:           models.NotificationTypeRideRequest,
		Title:          "Ride Request Accepted",
		Message:        fmt.Sprintf("A driver accepted your ride request from %s to %s.", request.From, request.To),
		RelatedRide:    &rideID,
		RelatedRequest: &requestID,
	})
	s.emitter.Emit(ctx, events.RequestAccepted, requestID.Hex(), map[string]interface{}{
		"driver":       identity.UserID.Hex(),
		"ride":         rideID.Hex(),
		"ride_created": a.rideCreated,
	})

	if a.rideCreated {
		s.progression.Schedule(ctx, a.ride)
	}

	return &models.AcceptResult{Request: a.attached, Ride: a.ride, RideCreated: a.rideCreated}, nil
}

func (s *rideRequestService) claimStep(a *acceptance) func(context.Context) error {
	return func(ctx context.Context) error {
		claimed, err := s.requests.Claim(ctx, a.request.ID, a.driverID, s.clock.Now())
		if err != nil {
			if errors.Is(err, interfaces.ErrConditionFailed) {
				return apperrors.Conflict(apperrors.CodeRequestUnavailable, "ride request is no longer available")
			}
			return apperrors.Internal("failed to claim ride request", err)
		}
		a.request = claimed
		return nil
	}
}

func (s *rideRequestService) releaseClaimStep(a *acceptance) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := s.requests.ReleaseClaim(ctx, a.request.ID, a.driverID); err != nil {
			return fmt.Errorf("failed to release claim on request %s: %w", a.request.ID.Hex(), err)
		}
		return nil
	}
}

func (s *rideRequestService) assignRideStep(a *acceptance) func(context.Context) error {
	return func(ctx context.Context) error {
		if a.existingID != nil {
			return s.addToExistingRide(ctx, a)
		}
		return s.createRideForRequest(ctx, a)
	}
}

func (s *rideRequestService) addToExistingRide(ctx context.Context, a *acceptance) error {
	seats := a.request.SeatsNeeded
	ride, err := s.rides.AddPassengerSeats(ctx, *a.existingID, a.driverID, a.request.PassengerID, seats)
	if err == nil {
		a.ride = ride
		return nil
	}
	if !errors.Is(err, interfaces.ErrConditionFailed) && !errors.Is(err, interfaces.ErrNotFound) {
		return apperrors.Internal("failed to add passenger to ride", err)
	}

	current, err := s.rides.GetByID(ctx, *a.existingID)
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		return apperrors.NotFound(apperrors.CodeRideNotFound, "ride not found")
	case err != nil:
		return apperrors.Internal("failed to load ride", err)
	case current.DriverID != a.driverID:
		return apperrors.Forbidden(apperrors.CodeNotRideOwner, "you can only add passengers to your own ride")
	case current.Status != models.RideStatusActive:
		return apperrors.Conflict(apperrors.CodeRideNotActive, "ride is no longer active")
	case current.SeatsLeft() < seats:
		return apperrors.Conflict(apperrors.CodeInsufficientSeats,
			fmt.Sprintf("ride has %d seats left, request needs %d", current.SeatsLeft(), seats))
	}
	return apperrors.Internal("ride changed while adding passenger, please retry", nil)
}

func (s *rideRequestService) createRideForRequest(ctx context.Context, a *acceptance) error {
	request := a.request
	now := s.clock.Now()

	passengers := make([]primitive.ObjectID, 0, request.SeatsNeeded)
	for i := 0; i < request.SeatsNeeded; i++ {
		passengers = append(passengers, request.PassengerID)
	}
	from, to := request.FromCoordinates, request.ToCoordinates

	ride := &models.Ride{
		ID:              primitive.NewObjectID(),
		DriverID:        a.driverID,
		From:            request.From,
		To:              request.To,
		FromCoordinates: &from,
		ToCoordinates:   &to,
		Date:            request.PreferredDate,
		Time:            request.PreferredTime,
		AvailableSeats:  request.SeatsNeeded + acceptedRideSpareSeats,
		PricePerSeat:    request.MaxPricePerSeat,
		Passengers:      passengers,
		Status:          models.RideStatusActive,
		Description:     request.Description,
		PaymentMethod:   models.PaymentMethodCash,
		PaymentStatus:   models.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	stampEstimate(ride)

	if err := s.rides.Create(ctx, ride); err != nil {
		return apperrors.Internal("failed to create ride for request", err)
	}
	a.ride = ride
	a.rideCreated = true
	return nil
}

func (s *rideRequestService) unassignRideStep(a *acceptance) func(context.Context) error {
	return func(ctx context.Context) error {
		if a.ride == nil {
			return nil
		}

		if a.rideCreated {
			_, err := s.rides.TransitionStatus(ctx, a.ride.ID, interfaces.StatusChange{
				From:         models.RideStatusActive,
				To:           models.RideStatusCancelled,
				TimestampKey: "cancelled_at",
				At:           s.clock.Now(),
			})
			if err != nil {
				return fmt.Errorf("failed to cancel ride %s: %w", a.ride.ID.Hex(), err)
			}
			return nil
		}

		if _, err := s.rides.RemovePassengerSeats(ctx, a.ride.ID, a.request.PassengerID, a.request.SeatsNeeded); err != nil {
			return fmt.Errorf("failed to remove passenger from ride %s: %w", a.ride.ID.Hex(), err)
		}
		return nil
	}
}

func (s *rideRequestService) attachRideStep(a *acceptance) func(context.Context) error {
	return func(ctx context.Context) error {
		attached, err := s.requests.AttachRide(ctx, a.request.ID, a.driverID, a.ride.ID)
		if err != nil {
			if errors.Is(err, interfaces.ErrConditionFailed) {
				return apperrors.Conflict(apperrors.CodeRequestUnavailable, "ride request is no longer available")
			}
			return apperrors.Internal("failed to attach ride to request", err)
		}
		a.attached = attached
		return nil
	}
}

func (s *rideRequestService) getRequest(ctx context.Context, requestID primitive.ObjectID) (*models.RideRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeRequestNotFound, "ride request not found")
		}
		return nil, apperrors.Internal("failed to load ride request", err)
	}
	return request, nil
}
