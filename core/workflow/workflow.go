// Package workflow holds the four-state linear lifecycle shared by incidents and plan actions.
package workflow

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusOngoing  Status = "ongoing"
	StatusResolved Status = "resolved"
	StatusDone     Status = "done"
)

var ordered = []Status{StatusPending, StatusOngoing, StatusResolved, StatusDone}

func Statuses() []Status {
	out := make([]Status, len(ordered))
	copy(out, ordered)
	return out
}

func (s Status) Valid() bool {
	for _, st := range ordered {
		if st == s {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDone
}

type Transition string

const (
	StartWork  Transition = "start_work"
	CloseWork  Transition = "close_work"
	MarkAsDone Transition = "mark_as_done"
)

type edge struct {
	from Status
	to   Status
}

var edges = map[Transition]edge{
	StartWork:  {from: StatusPending, to: StatusOngoing},
	CloseWork:  {from: StatusOngoing, to: StatusResolved},
	MarkAsDone: {from: StatusResolved, to: StatusDone},
}

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownTransition = errors.New("unknown transition")
	ErrTerminal          = errors.New("status is terminal")
)

func ParseTransition(raw string) (Transition, error) {
	t := Transition(raw)
	if _, ok := edges[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransition, raw)
	}
	return t, nil
}

func (t Transition) Source() Status { return edges[t].from }
func (t Transition) Target() Status { return edges[t].to }

// Apply returns the target status when current matches the transition's source.
func (t Transition) Apply(current Status) (Status, error) {
	e, ok := edges[t]
	if !ok {
		return current, fmt.Errorf("%w: %q", ErrUnknownTransition, string(t))
	}
	if current != e.from {
		return current, fmt.Errorf("%w: %s requires %s, status is %s", ErrInvalidTransition, t, e.from, current)
	}
	return e.to, nil
}

// Next returns the single forward transition available from current.
func Next(current Status) (Transition, error) {
	if current.Terminal() {
		return "", ErrTerminal
	}
	for t, e := range edges {
		if e.from == current {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: no transition from %q", ErrInvalidTransition, string(current))
}
