// Package lifecycle models the activity state of an owner and gates work on
// it.
//
// States are totally ordered:
//
//	Destroyed < Initialized < Created < Started < Resumed
//
// A Signal reports the current state and notifies observers of every
// change. Registry is the standard Signal, driven by SetState or
// HandleEvent. RepeatOnLifecycle runs a block each time a Signal rises to a
// threshold and cancels it when the Signal falls below.
package lifecycle

import (
	"fmt"
	"strings"
)

// State is the activity state of an owner.
type State int

const (
	// Destroyed is terminal. No transition leaves it.
	Destroyed State = iota
	// Initialized is the state of a constructed owner that has not been
	// created yet.
	Initialized
	// Created owners exist but are not visible.
	Created
	// Started owners are visible.
	Started
	// Resumed owners are visible and interactive.
	Resumed
)

var stateNames = [...]string{
	Destroyed:   "destroyed",
	Initialized: "initialized",
	Created:     "created",
	Started:     "started",
	Resumed:     "resumed",
}

func (s State) String() string {
	if s < Destroyed || s > Resumed {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// IsAtLeast reports whether s is at or above other.
func (s State) IsAtLeast(other State) bool {
	return s >= other
}

// ParseState parses a state name as returned by String. Matching is case
// insensitive.
func ParseState(name string) (State, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range stateNames {
		if n == name {
			return State(s), nil
		}
	}
	return 0, fmt.Errorf("lifecycle: unknown state %q", name)
}

// Event is a single step between adjacent states.
type Event int

const (
	OnCreate Event = iota
	OnStart
	OnResume
	OnPause
	OnStop
	OnDestroy
)

var eventNames = [...]string{
	OnCreate:  "ON_CREATE",
	OnStart:   "ON_START",
	OnResume:  "ON_RESUME",
	OnPause:   "ON_PAUSE",
	OnStop:    "ON_STOP",
	OnDestroy: "ON_DESTROY",
}

func (e Event) String() string {
	if e < OnCreate || e > OnDestroy {
		return fmt.Sprintf("Event(%d)", int(e))
	}
	return eventNames[e]
}

// TargetState returns the state reached after e.
func (e Event) TargetState() State {
	switch e {
	case OnCreate, OnStop:
		return Created
	case OnStart, OnPause:
		return Started
	case OnResume:
		return Resumed
	default:
		return Destroyed
	}
}

// UpTo returns the event that moves an owner up into s.
func UpTo(s State) (Event, bool) {
	switch s {
	case Created:
		return OnCreate, true
	case Started:
		return OnStart, true
	case Resumed:
		return OnResume, true
	}
	return 0, false
}

// DownFrom returns the event that moves an owner down out of s.
func DownFrom(s State) (Event, bool) {
	switch s {
	case Created:
		return OnDestroy, true
	case Started:
		return OnStop, true
	case Resumed:
		return OnPause, true
	}
	return 0, false
}
