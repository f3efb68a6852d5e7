// Package statemachine implements a small guarded finite state machine.
// The compose module uses it to enforce the operator flow from mode choice
// through preview to copy or send.
package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// State and Event are plain strings; the zero value is not a valid state.
type (
	State string
	Event string
)

// Guard decides at Fire time whether a transition is allowed.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Action runs before the state changes; an error aborts the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

type transition struct {
	to      State
	guards  []Guard
	actions []Action
}

// Machine is safe for concurrent use.
type Machine struct {
	mu          sync.RWMutex
	initial     State
	current     State
	transitions map[State]map[Event][]transition
}

func New(initial State) *Machine {
	return &Machine{
		initial:     initial,
		current:     initial,
		transitions: make(map[State]map[Event][]transition),
	}
}

// AddTransition registers from --event--> to. Multiple transitions for the
// same from/event pair are allowed; the first one whose guards all pass
// wins, which gives guard-based branching with priority ordering.
func (m *Machine) AddTransition(from, to State, event Event, guards []Guard, actions []Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitions[from] == nil {
		m.transitions[from] = make(map[Event][]transition)
	}
	m.transitions[from][event] = append(m.transitions[from][event],
		transition{to: to, guards: guards, actions: actions})
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Fire applies event. It returns ErrNoTransition when the current state has
// no transition for the event, ErrTransitionRejected when guards block every
// candidate, and the action's error when an action fails.
func (m *Machine) Fire(ctx context.Context, event Event, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := m.transitions[m.current][event]
	if len(candidates) == 0 {
		return &ErrNoTransition{State: m.current, Event: event}
	}

	next := m.firstAllowed(ctx, candidates, event, data)
	if next == nil {
		return &ErrTransitionRejected{State: m.current, Event: event}
	}

	for _, action := range next.actions {
		if action == nil {
			continue
		}
		if err := action(ctx, m.current, next.to, event, data); err != nil {
			return fmt.Errorf("transition action: %w", err)
		}
	}

	m.current = next.to
	return nil
}

// CanFire reports whether Fire would find an allowed transition, without
// running actions or changing state.
func (m *Machine) CanFire(ctx context.Context, event Event, data any) bool {
	return m.Check(ctx, event, data) == nil
}

// Check reports whether Fire would succeed, returning the same error Fire
// would, without running actions or changing state. Callers that must do
// fallible work between the permission check and the state change use Check
// first and Fire only once the work succeeds.
func (m *Machine) Check(ctx context.Context, event Event, data any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := m.transitions[m.current][event]
	if len(candidates) == 0 {
		return &ErrNoTransition{State: m.current, Event: event}
	}
	if m.firstAllowed(ctx, candidates, event, data) == nil {
		return &ErrTransitionRejected{State: m.current, Event: event}
	}
	return nil
}

// Reset returns the machine to its initial state.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

func (m *Machine) firstAllowed(ctx context.Context, candidates []transition, event Event, data any) *transition {
	for i := range candidates {
		allowed := true
		for _, guard := range candidates[i].guards {
			if guard != nil && !guard(ctx, m.current, event, data) {
				allowed = false
				break
			}
		}
		if allowed {
			return &candidates[i]
		}
	}
	return nil
}
