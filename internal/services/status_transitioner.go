package services

import (
	"context"
	"errors"

	"nepway/internal/apperrors"
	"nepway/internal/models"
	"nepway/internal/observability"
	"nepway/internal/repositories/interfaces"
	"nepway/pkg/events"
	"nepway/pkg/logger"
	"nepway/pkg/scheduler"
)

const actorAutoProgression = "auto_progression"

// TransitionExtras carries values recorded alongside a status change.
type TransitionExtras struct {
	DistanceKm *float64
	ActualFare *float64
}

// StatusTransitioner applies lifecycle transitions and their effects. The
// write is conditional on the ride still being in the transition's source
// state, so concurrent writers cannot both win.
type StatusTransitioner struct {
	rides    interfaces.RideRepository
	requests interfaces.RideRequestRepository
	notifier NotificationService
	emitter  *EventEmitter
	clock    scheduler.Clock
	logger   *logger.Logger
}

func NewStatusTransitioner(
	rides interfaces.RideRepository,
	requests interfaces.RideRequestRepository,
	notifier NotificationService,
	emitter *EventEmitter,
	clock scheduler.Clock,
	log *logger.Logger,
) *StatusTransitioner {
	if clock == nil {
		clock = scheduler.RealClock()
	}
	return &StatusTransitioner{
		rides:    rides,
		requests: requests,
		notifier: notifier,
		emitter:  emitter,
		clock:    clock,
		logger:   log.WithField("component", "status_transitioner"),
	}
}

func (t *StatusTransitioner) Apply(ctx context.Context, ride *models.Ride, tr Transition, actor string, extras TransitionExtras) (*models.Ride, error) {
	change := interfaces.StatusChange{
		From:          tr.From,
		To:            tr.To,
		TimestampKey:  tr.Effects.TimestampKey,
		At:            t.clock.Now(),
		PaymentStatus: tr.Effects.PaymentStatus,
		DistanceKm:    extras.DistanceKm,
		ActualFare:    extras.ActualFare,
	}

	updated, err := t.rides.TransitionStatus(ctx, ride.ID, change)
	if err != nil {
		if errors.Is(err, interfaces.ErrConditionFailed) || errors.Is(err, interfaces.ErrNotFound) {
			return nil, t.classifyMiss(ctx, ride, tr)
		}
		return nil, apperrors.Internal("failed to update ride status", err)
	}

	observability.StatusTransitionsTotal.WithLabelValues(string(tr.From), string(tr.To), actor).Inc()
	t.logger.LogRideEvent(updated.ID, "status_changed", map[string]interface{}{
		"from":  tr.From,
		"to":    tr.To,
		"actor": actor,
	})

	t.applyEffects(ctx, updated, tr)
	return updated, nil
}

func (t *StatusTransitioner) classifyMiss(ctx context.Context, ride *models.Ride, tr Transition) error {
	current, err := t.rides.GetByID(ctx, ride.ID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return apperrors.NotFound(apperrors.CodeRideNotFound, "ride not found")
		}
		return apperrors.Internal("failed to load ride", err)
	}
	return illegalTransition(current.Status, tr.To)
}

func (t *StatusTransitioner) applyEffects(ctx context.Context, ride *models.Ride, tr Transition) {
	if tr.Effects.CompleteRequests {
		completed, err := t.requests.CompleteForRide(ctx, ride.ID)
		if err != nil {
			t.logger.WithRideID(ride.ID).WithError(err).Error("Failed to complete ride requests")
		} else if completed > 0 {
			t.logger.WithRideID(ride.ID).Infof("Completed %d ride requests", completed)
		}
	}

	if tr.Effects.PassengerMessage != "" && t.notifier != nil {
		t.notifier.NotifyRideStatus(ctx, ride, tr.Effects.PassengerMessage)
	}

	if t.emitter != nil {
		t.emitter.Emit(ctx, events.RideStatusChanged, ride.ID.Hex(), map[string]interface{}{
			"from":   tr.From,
			"to":     tr.To,
			"driver": ride.DriverID.Hex(),
		})
	}
}
