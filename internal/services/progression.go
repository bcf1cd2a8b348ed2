package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nepway/internal/apperrors"
	"nepway/internal/config"
	"nepway/internal/models"
	"nepway/internal/repositories/interfaces"
	"nepway/pkg/cache"
	"nepway/pkg/logger"
	"nepway/pkg/scheduler"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AutoProgression walks a booked ride through its lifecycle on a timer
// (demo mode). Each step only fires from the state it expects, so a ride that
// was cancelled or moved on by its driver is left alone.
type AutoProgression struct {
	cfg         *config.LifecycleConfig
	scheduler   *scheduler.Scheduler
	cache       cache.Cache
	rides       interfaces.RideRepository
	transitions *StatusTransitioner
	logger      *logger.Logger
}

func NewAutoProgression(
	cfg *config.LifecycleConfig,
	sched *scheduler.Scheduler,
	c cache.Cache,
	rides interfaces.RideRepository,
	transitions *StatusTransitioner,
	log *logger.Logger,
) *AutoProgression {
	return &AutoProgression{
		cfg:         cfg,
		scheduler:   sched,
		cache:       c,
		rides:       rides,
		transitions: transitions,
		logger:      log.WithField("component", "auto_progression"),
	}
}

type progressionStep struct {
	action Action
	offset time.Duration
}

// Schedule queues the progression of ride once. Later calls for the same
// ride are ignored while the first schedule is live.
func (p *AutoProgression) Schedule(ctx context.Context, ride *models.Ride) bool {
	if p == nil || !p.cfg.AutoProgression {
		return false
	}

	distance := p.tripDistance(ride)
	steps := p.steps(distance)
	horizon := steps[len(steps)-1].offset + time.Minute

	if p.cache != nil {
		fresh, err := p.cache.SetNX(ctx, progressionKey(ride.ID), p.scheduler.Clock().Now().Unix(), horizon)
		if err != nil {
			// Steps are conditional writes, so a duplicate schedule is harmless.
			p.logger.WithRideID(ride.ID).WithError(err).Warn("Progression guard unavailable, scheduling anyway")
		} else if !fresh {
			p.logger.WithRideID(ride.ID).Debug("Progression already scheduled")
			return false
		}
	}

	price := ride.PricePerSeat
	for _, step := range steps {
		name := fmt.Sprintf("progression:%s:%s", step.action, ride.ID.Hex())
		p.scheduler.After(name, step.offset, p.stepTask(ride.ID, step.action, distance, price))
	}

	p.logger.LogRideEvent(ride.ID, "progression_scheduled", map[string]interface{}{
		"distance_km":  distance,
		"completes_in": steps[len(steps)-1].offset.String(),
	})
	return true
}

func (p *AutoProgression) steps(distanceKm float64) []progressionStep {
	delay := p.cfg.ProgressionDelay
	travel := time.Duration(float64(p.cfg.CompletionPerKm) * distanceKm)
	return []progressionStep{
		{action: ActionAssignDriver, offset: delay + p.cfg.AssignOffset},
		{action: ActionArrive, offset: delay + p.cfg.ArriveOffset},
		{action: ActionStart, offset: delay + p.cfg.StartOffset},
		{action: ActionComplete, offset: delay + p.cfg.StartOffset + travel},
	}
}

func (p *AutoProgression) tripDistance(ride *models.Ride) float64 {
	if ride.DistanceKm != nil && *ride.DistanceKm > 0 {
		return *ride.DistanceKm
	}
	if ride.FromCoordinates != nil && ride.ToCoordinates != nil {
		return Distance(*ride.FromCoordinates, *ride.ToCoordinates)
	}
	return p.cfg.DefaultDistanceKm
}

func (p *AutoProgression) stepTask(rideID primitive.ObjectID, action Action, distanceKm, price float64) scheduler.Task {
	return func(ctx context.Context) error {
		ride, err := p.rides.GetByID(ctx, rideID)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load ride %s: %w", rideID.Hex(), err)
		}

		tr, ok := NextTransition(ride.Status, action)
		if !ok {
			p.logger.WithRideID(rideID).WithFields(map[string]interface{}{
				"action": action,
				"status": ride.Status,
			}).Debug("Progression step skipped")
			return nil
		}

		var extras TransitionExtras
		if action == ActionComplete {
			extras.DistanceKm = &distanceKm
			extras.ActualFare = &price
		}

		_, err = p.transitions.Apply(ctx, ride, tr, actorAutoProgression, extras)
		if apperrors.KindOf(err) == apperrors.KindConflict {
			return nil
		}
		return err
	}
}

func progressionKey(rideID primitive.ObjectID) string {
	return "progression:" + rideID.Hex()
}
