// Package control implements a bang-bang (on/off) controller whose state
// transitions can be constrained by minimum time-in-state limits, protecting
// relay-switched hardware from short cycling.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected via a now function supplied at construction.
package control

import (
	"fmt"
	"time"
)

// State represents the logical state of the controlled output.
// It is a closed two-valued enumeration: ON and OFF only.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// Opposite returns the other state. It is total: any value that is not
// StateOn maps to StateOn, so Opposite(Opposite(s)) == s for both states.
func (s State) Opposite() State {
	if s == StateOn {
		return StateOff
	}
	return StateOn
}

// StateHolder is the contract shared by all controller variants.
// Implementations decide whether a requested transition is currently legal;
// they never touch hardware themselves.
//
// A StateHolder assumes exclusive, non-concurrent access. Callers that share
// one across goroutines must synchronize externally.
type StateHolder interface {
	// State returns the most recently committed state.
	State() State

	// Set requests a transition to the given state. On success the new
	// state is committed; on failure nothing changes and the returned
	// error describes why the transition was refused.
	Set(State) error

	// Bang requests a transition to the opposite of the current state.
	// It is defined purely in terms of State and Set, so any legality
	// policy in Set applies to Bang as well.
	Bang() error
}

// Handler is called before a transition to its state commits.
// Returning a non-nil error vetoes the transition and leaves the
// controller unchanged.
type Handler func() error

// TooSoonError reports a transition refused because the minimum
// time-in-state for the current state has not yet elapsed.
type TooSoonError struct {
	// From is the state the controller is (and stays) in.
	From State
	// To is the state that was requested.
	To State
	// Remaining is how long until the transition will be permitted,
	// as of the refused call.
	Remaining time.Duration
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("transition %s -> %s denied: %v remaining in minimum time-in-state", e.From, e.To, e.Remaining)
}
