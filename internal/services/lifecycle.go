package services

import (
	"fmt"

	"nepway/internal/apperrors"
	"nepway/internal/models"
)

// Action is a lifecycle command applied to a ride.
type Action string

const (
	ActionAssignDriver Action = "assign_driver"
	ActionArrive       Action = "arrive"
	ActionStart        Action = "start"
	ActionComplete     Action = "complete"
	ActionCancel       Action = "cancel"
	ActionExpire       Action = "expire"
)

// Effects are the side effects attached to a transition.
type Effects struct {
	TimestampKey     string
	PaymentStatus    models.PaymentStatus
	PassengerMessage string
	CompleteRequests bool
}

type Transition struct {
	From   models.RideStatus
	Action Action
	To     models.RideStatus
	// SystemOnly transitions are never accepted from a caller.
	SystemOnly bool
	Effects    Effects
}

type transitionKey struct {
	from   models.RideStatus
	action Action
}

var lifecycleTable = buildLifecycleTable([]Transition{
	{
		From: models.RideStatusActive, Action: ActionAssignDriver, To: models.RideStatusDriverAssigned,
		Effects: Effects{
			TimestampKey:     "driver_assigned_at",
			PassengerMessage: "Your driver has been assigned and is on the way!",
		},
	},
	{
		From: models.RideStatusDriverAssigned, Action: ActionArrive, To: models.RideStatusDriverArrived,
		Effects: Effects{
			TimestampKey:     "driver_arrived_at",
			PassengerMessage: "Your driver has arrived at the pickup location.",
		},
	},
	{
		From: models.RideStatusDriverArrived, Action: ActionStart, To: models.RideStatusStarted,
		Effects: Effects{
			TimestampKey:     "ride_started_at",
			PassengerMessage: "Your ride has started. Enjoy your journey!",
		},
	},
	{
		From: models.RideStatusStarted, Action: ActionComplete, To: models.RideStatusCompleted,
		Effects: Effects{
			TimestampKey:     "ride_completed_at",
			PaymentStatus:    models.PaymentStatusCompleted,
			PassengerMessage: "Your ride has been completed. Please rate your experience.",
			CompleteRequests: true,
		},
	},
	{
		From: models.RideStatusActive, Action: ActionCancel, To: models.RideStatusCancelled,
		Effects: Effects{
			TimestampKey:     "cancelled_at",
			PassengerMessage: "Your ride has been cancelled.",
		},
	},
	{
		From: models.RideStatusDriverAssigned, Action: ActionCancel, To: models.RideStatusCancelled,
		Effects: Effects{
			TimestampKey:     "cancelled_at",
			PassengerMessage: "Your ride has been cancelled.",
		},
	},
	{
		From: models.RideStatusActive, Action: ActionExpire, To: models.RideStatusExpired,
		SystemOnly: true,
		Effects:    Effects{TimestampKey: "expired_at"},
	},
})

func buildLifecycleTable(transitions []Transition) map[transitionKey]Transition {
	table := make(map[transitionKey]Transition, len(transitions))
	for _, t := range transitions {
		key := transitionKey{from: t.From, action: t.Action}
		if _, dup := table[key]; dup {
			panic(fmt.Sprintf("duplicate lifecycle transition %s/%s", t.From, t.Action))
		}
		table[key] = t
	}
	return table
}

// NextTransition looks up what action does to a ride in state from.
func NextTransition(from models.RideStatus, action Action) (Transition, bool) {
	t, ok := lifecycleTable[transitionKey{from: from, action: action}]
	return t, ok
}

// actionFor names the action a caller means when asking for status to.
// Statuses only the system sets, such as expired, have none.
func actionFor(to models.RideStatus) (Action, bool) {
	switch to {
	case models.RideStatusDriverAssigned:
		return ActionAssignDriver, true
	case models.RideStatusDriverArrived:
		return ActionArrive, true
	case models.RideStatusStarted:
		return ActionStart, true
	case models.RideStatusCompleted:
		return ActionComplete, true
	case models.RideStatusCancelled:
		return ActionCancel, true
	}
	return "", false
}

// ResolveStatusChange validates a caller-requested move from one status to
// another. Unknown statuses and statuses a caller may never request are
// validation errors; anything the table does not hold, including skips and
// moves out of terminal states, is a conflict.
func ResolveStatusChange(from models.RideStatus, requested string) (Transition, error) {
	to := models.RideStatus(requested)
	action, ok := actionFor(to)
	if !to.Valid() || !ok {
		return Transition{}, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidStatus,
			fmt.Sprintf("invalid ride status %q", requested))
	}

	t, ok := NextTransition(from, action)
	if !ok || t.SystemOnly {
		return Transition{}, illegalTransition(from, to)
	}
	return t, nil
}

func illegalTransition(from, to models.RideStatus) *apperrors.Error {
	return apperrors.Conflict(apperrors.CodeIllegalTransition,
		fmt.Sprintf("cannot change ride status from %s to %s", from, to))
}
