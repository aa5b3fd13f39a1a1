package models

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to status codes with errors.Is.
var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

// Specific errors, each wrapping one kind.
var (
	ErrNoActiveSession  = fmt.Errorf("no active session: %w", ErrNotFound)
	ErrExerciseNotFound = fmt.Errorf("exercise: %w", ErrNotFound)
	ErrSetNotFound      = fmt.Errorf("set: %w", ErrNotFound)
	ErrWorkoutNotFound  = fmt.Errorf("workout: %w", ErrNotFound)
	ErrNoActivePlan     = fmt.Errorf("no active plan: %w", ErrNotFound)
	ErrGoalNotFound     = fmt.Errorf("monthly goal: %w", ErrNotFound)
	ErrWeightNotFound   = fmt.Errorf("weight entry: %w", ErrNotFound)
	ErrTemplateNotFound = fmt.Errorf("workout template: %w", ErrNotFound)

	ErrSessionActive    = fmt.Errorf("a session is already active: %w", ErrConflict)
	ErrSessionFinishing = fmt.Errorf("session is finishing: %w", ErrConflict)
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) true for any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Unavailable marks err as a persistence failure while keeping it inspectable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
}
