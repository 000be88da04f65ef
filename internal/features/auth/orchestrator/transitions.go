package orchestrator

import (
	"fmt"
	"sync"

	"clockout-watcher/internal/features/auth/domain"
)

// buildTransitionMatrix defines the allowed refresh state transitions
func buildTransitionMatrix() map[domain.State]map[domain.Event]domain.State {
	matrix := make(map[domain.State]map[domain.Event]domain.State)

	matrix[domain.StateIdle] = map[domain.Event]domain.State{
		domain.EventCallIssued: domain.StateCallInFlight,
	}

	matrix[domain.StateCallInFlight] = map[domain.Event]domain.State{
		domain.EventCallSucceeded: domain.StateDoneSuccess,
		domain.EventCallFailed:    domain.StateClassifyingFailure,
	}

	matrix[domain.StateClassifyingFailure] = map[domain.Event]domain.State{
		domain.EventAuthRejected:   domain.StateExtracting,
		domain.EventNonAuthFailure: domain.StateDoneFailed,
		domain.EventRefreshSkipped: domain.StateDoneFailed,
	}

	matrix[domain.StateExtracting] = map[domain.Event]domain.State{
		domain.EventTokenRefreshed:   domain.StateRetryingCall,
		domain.EventExtractionFailed: domain.StateDoneFailed,
	}

	matrix[domain.StateRetryingCall] = map[domain.Event]domain.State{
		domain.EventRetrySucceeded: domain.StateDoneSuccess,
		domain.EventRetryRejected:  domain.StateDoneFailed,
		domain.EventNonAuthFailure: domain.StateDoneFailed,
	}

	return matrix
}

// callState tracks the refresh state machine for one wrapped API call.
// Every transition is validated against the matrix, so an illegal path
// (a second retry, extraction after success) fails loudly instead of
// looping.
type callState struct {
	matrix  map[domain.State]map[domain.Event]domain.State
	current domain.State
	history []domain.Event
	mu      sync.Mutex
}

// newCallState creates a call state tracker starting in Idle
func newCallState() *callState {
	return &callState{
		matrix:  buildTransitionMatrix(),
		current: domain.StateIdle,
	}
}

// transition applies an event, validating it against the matrix
func (c *callState) transition(event domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stateTransitions, exists := c.matrix[c.current]
	if !exists {
		return fmt.Errorf("no transitions defined for state %s", c.current)
	}

	next, exists := stateTransitions[event]
	if !exists {
		return fmt.Errorf("event %s is not valid for state %s", event, c.current)
	}

	c.current = next
	c.history = append(c.history, event)
	return nil
}

// State returns the current state
func (c *callState) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// History returns the events applied so far
func (c *callState) History() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Event, len(c.history))
	copy(out, c.history)
	return out
}
