package services

import (
	"context"
	"fmt"

	"nepway/internal/observability"
	"nepway/pkg/logger"
)

// SagaStep is one forward action of a saga and the action that undoes it.
// Compensate may be nil for steps with nothing to undo.
type SagaStep struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// SagaError reports the step that failed. Unwrap yields the step's error so
// callers can still match on its kind.
type SagaError struct {
	Saga              string
	Step              string
	Err               error
	CompensationFails []string
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("saga %s failed at %s: %v", e.Saga, e.Step, e.Err)
}

func (e *SagaError) Unwrap() error {
	return e.Err
}

// Saga runs its steps in order. When a step fails, every step that already
// completed is compensated in reverse order.
type Saga struct {
	name   string
	steps  []SagaStep
	logger *logger.Logger
}

func NewSaga(name string, log *logger.Logger) *Saga {
	return &Saga{name: name, logger: log.WithField("saga", name)}
}

func (s *Saga) AddStep(step SagaStep) *Saga {
	s.steps = append(s.steps, step)
	return s
}

func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			s.logger.WithError(err).WithField("step", step.Name).Warn("Saga step failed, compensating")
			sagaErr := &SagaError{Saga: s.name, Step: step.Name, Err: err}
			sagaErr.CompensationFails = s.compensate(ctx, i)
			return sagaErr
		}
	}
	return nil
}

// compensate undoes steps[0:failed] in reverse. Compensation outlives the
// caller's cancellation so a dropped client cannot leave a half-applied saga.
func (s *Saga) compensate(ctx context.Context, failed int) []string {
	ctx = context.WithoutCancel(ctx)

	var fails []string
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.WithError(err).WithField("step", step.Name).Error("Saga compensation failed")
			observability.CompensationsTotal.WithLabelValues(s.name, step.Name, observability.ResultError).Inc()
			fails = append(fails, step.Name)
			continue
		}
		observability.CompensationsTotal.WithLabelValues(s.name, step.Name, observability.ResultSuccess).Inc()
	}
	return fails
}
