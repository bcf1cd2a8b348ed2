package services

import (
	"context"
	"sync"
	"time"

	"nepway/pkg/events"
	"nepway/pkg/logger"
	"nepway/pkg/scheduler"
)

// EventEmitter publishes domain events in the background. A broker outage
// never fails the operation that produced the event.
type EventEmitter struct {
	publisher events.Publisher
	clock     scheduler.Clock
	timeout   time.Duration
	logger    *logger.Logger
	wg        sync.WaitGroup
}

func NewEventEmitter(publisher events.Publisher, clock scheduler.Clock, timeout time.Duration, log *logger.Logger) *EventEmitter {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if clock == nil {
		clock = scheduler.RealClock()
	}
	return &EventEmitter{
		publisher: publisher,
		clock:     clock,
		timeout:   timeout,
		logger:    log.WithField("component", "event_emitter"),
	}
}

// Emit is a no-op on a nil emitter.
func (e *EventEmitter) Emit(ctx context.Context, eventType events.Type, key string, data map[string]interface{}) {
	if e == nil {
		return
	}
	event := events.New(eventType, key, e.clock.Now(), data)
	pubCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if e.timeout > 0 {
			var cancel context.CancelFunc
			pubCtx, cancel = context.WithTimeout(pubCtx, e.timeout)
			defer cancel()
		}
		if err := e.publisher.Publish(pubCtx, event); err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"event_type": event.Type,
				"event_key":  event.Key,
			}).Warn("Failed to publish domain event")
		}
	}()
}

// Wait blocks until every in-flight publish has finished.
func (e *EventEmitter) Wait() {
	if e == nil {
		return
	}
	e.wg.Wait()
}
