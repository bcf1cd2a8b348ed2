package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"nepway/internal/apperrors"
	"nepway/pkg/logger"
)

func TestSagaCompensatesCompletedStepsInReverse(t *testing.T) {
	var trace []string
	record := func(s string) func(context.Context) error {
		return func(context.Context) error {
			trace = append(trace, s)
			return nil
		}
	}
	stepErr := apperrors.Conflict(apperrors.CodeInsufficientSeats, "no seats")

	saga := NewSaga("test", logger.NewDiscard()).
		AddStep(SagaStep{Name: "one", Action: record("do one"), Compensate: record("undo one")}).
		AddStep(SagaStep{Name: "two", Action: record("do two")}).
		AddStep(SagaStep{Name: "three", Action: record("do three"), Compensate: record("undo three")}).
		AddStep(SagaStep{
			Name:       "four",
			Action:     func(context.Context) error { return stepErr },
			Compensate: record("undo four"),
		})

	err := saga.Execute(context.Background())

	var sagaErr *SagaError
	if !errors.As(err, &sagaErr) || sagaErr.Step != "four" {
		t.Fatalf("Execute() error = %v, want SagaError at step four", err)
	}
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("Execute() error does not unwrap to the step error: %v", err)
	}

	want := []string{"do one", "do two", "do three", "undo three", "undo one"}
	if !reflect.DeepEqual(trace, want) {
		t.Errorf("trace = %v, want %v", trace, want)
	}
}

func TestSagaReportsFailedCompensation(t *testing.T) {
	saga := NewSaga("test", logger.NewDiscard()).
		AddStep(SagaStep{
			Name:       "claim",
			Action:     func(context.Context) error { return nil },
			Compensate: func(context.Context) error { return errors.New("store down") },
		}).
		AddStep(SagaStep{
			Name:   "assign",
			Action: func(context.Context) error { return errors.New("boom") },
		})

	err := saga.Execute(context.Background())

	var sagaErr *SagaError
	if !errors.As(err, &sagaErr) {
		t.Fatalf("Execute() error = %v, want SagaError", err)
	}
	if !reflect.DeepEqual(sagaErr.CompensationFails, []string{"claim"}) {
		t.Errorf("CompensationFails = %v, want [claim]", sagaErr.CompensationFails)
	}
}

func TestSagaCompensatesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	compensated := false

	saga := NewSaga("test", logger.NewDiscard()).
		AddStep(SagaStep{
			Name:   "claim",
			Action: func(context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compensated = ctx.Err() == nil
				return nil
			},
		}).
		AddStep(SagaStep{
			Name: "assign",
			Action: func(ctx context.Context) error {
				cancel()
				return ctx.Err()
			},
		})

	if err := saga.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if !compensated {
		t.Error("compensation ran with a cancelled context")
	}
}

func TestSagaSuccessRunsNoCompensation(t *testing.T) {
	undone := false
	saga := NewSaga("test", logger.NewDiscard()).
		AddStep(SagaStep{
			Name:       "only",
			Action:     func(context.Context) error { return nil },
			Compensate: func(context.Context) error { undone = true; return nil },
		})

	if err := saga.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if undone {
		t.Error("compensation ran after success")
	}
}
