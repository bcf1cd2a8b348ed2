// Package events publishes ride domain events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	RideCreated        Type = "ride.created"
	RideBooked         Type = "ride.booked"
	RideStatusChanged  Type = "ride.status_changed"
	RequestCreated     Type = "request.created"
	RequestAccepted    Type = "request.accepted"
	RequestCompensated Type = "request.compensated"
	RequestCancelled   Type = "request.cancelled"
	RecordsExpired     Type = "records.expired"
)

// Event is the envelope written to the broker.
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	Key        string                 `json:"key"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

func New(eventType Type, key string, at time.Time, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
