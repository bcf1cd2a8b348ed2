package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"nepway/internal/observability"
	"nepway/internal/repositories/interfaces"
	"nepway/internal/utils"
	"nepway/pkg/cache"
	"nepway/pkg/events"
	"nepway/pkg/logger"
	"nepway/pkg/scheduler"
)

const sweepLockKey = "lock:expiry_sweep"

type SweepResult struct {
	Rides    int64 `json:"rides"`
	Requests int64 `json:"requests"`
}

// ExpirySweeper moves active rides and pending requests whose scheduled
// date and time have passed to expired. Records are never deleted.
type ExpirySweeper struct {
	rides    interfaces.RideRepository
	requests interfaces.RideRequestRepository
	cache    cache.Cache
	emitter  *EventEmitter
	clock    scheduler.Clock
	location *time.Location
	interval time.Duration
	logger   *logger.Logger

	started atomic.Bool
}

func NewExpirySweeper(
	rides interfaces.RideRepository,
	requests interfaces.RideRequestRepository,
	c cache.Cache,
	emitter *EventEmitter,
	clock scheduler.Clock,
	location *time.Location,
	interval time.Duration,
	log *logger.Logger,
) *ExpirySweeper {
	if location == nil {
		location = time.UTC
	}
	return &ExpirySweeper{
		rides:    rides,
		requests: requests,
		cache:    c,
		emitter:  emitter,
		clock:    clock,
		location: location,
		interval: interval,
		logger:   log.WithField("component", "expiry_sweeper"),
	}
}

// Register runs the sweep once now and then every interval.
func (s *ExpirySweeper) Register(sched *scheduler.Scheduler) {
	sched.Every("expiry_sweep", s.interval, s.run)
}

// run sweeps under the shared lock. The start-up sweep always runs, even
// when another instance swept moments ago.
func (s *ExpirySweeper) run(ctx context.Context) error {
	startup := s.started.CompareAndSwap(false, true)
	if s.cache != nil {
		// One instance sweeps per interval; the lock simply lapses.
		acquired, err := s.cache.SetNX(ctx, sweepLockKey, s.clock.Now().Unix(), s.interval/2)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("Sweep lock unavailable, sweeping anyway")
		case !acquired && !startup:
			s.logger.Debug("Sweep already run by another instance")
			return nil
		}
	}

	_, err := s.Sweep(ctx)
	return err
}

// Sweep expires everything scheduled before the current minute. It is
// idempotent.
func (s *ExpirySweeper) Sweep(ctx context.Context) (SweepResult, error) {
	at := s.clock.Now()
	today, now := utils.DateAndClock(at, s.location)

	var result SweepResult
	var err error

	result.Rides, err = s.rides.ExpireStale(ctx, today, now, at)
	if err != nil {
		return result, fmt.Errorf("failed to expire rides: %w", err)
	}
	result.Requests, err = s.requests.ExpireStale(ctx, today, now, at)
	if err != nil {
		return result, fmt.Errorf("failed to expire ride requests: %w", err)
	}

	observability.ExpiredTotal.WithLabelValues("ride").Add(float64(result.Rides))
	observability.ExpiredTotal.WithLabelValues("ride_request").Add(float64(result.Requests))

	if result.Rides > 0 || result.Requests > 0 {
		s.logger.WithFields(map[string]interface{}{
			"rides":    result.Rides,
			"requests": result.Requests,
			"today":    today,
			"now":      now,
		}).Info("Expired stale rides and requests")

		if s.emitter != nil {
			s.emitter.Emit(ctx, events.RecordsExpired, today, map[string]interface{}{
				"rides":    result.Rides,
				"requests": result.Requests,
			})
		}
	}
	return result, nil
}
