package statemachine

import (
	"errors"
	"fmt"
)

// ErrNoTransition indicates the current state defines nothing for the event.
type ErrNoTransition struct {
	State State
	Event Event
}

func (e *ErrNoTransition) Error() string {
	return fmt.Sprintf("no transition from state %q for event %q", e.State, e.Event)
}

// ErrTransitionRejected indicates every candidate transition was blocked by
// its guards.
type ErrTransitionRejected struct {
	State State
	Event Event
}

func (e *ErrTransitionRejected) Error() string {
	return fmt.Sprintf("transition from state %q for event %q rejected by guards", e.State, e.Event)
}

func IsNoTransition(err error) bool {
	var e *ErrNoTransition
	return errors.As(err, &e)
}

func IsRejected(err error) bool {
	var e *ErrTransitionRejected
	return errors.As(err, &e)
}
