package stream

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned by Transition for moves the state
// machine does not allow.
var ErrIllegalTransition = errors.New("stream: illegal status transition")

// transitions lists every legal move. Only Active has exits.
var transitions = map[Status][]Status{
	StatusActive: {StatusCompleted, StatusCancelled, StatusTerminated},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCancelled, StatusCompleted, StatusTerminated:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the stream to status to. Moving a Completed stream to
// Completed is a no-op, which keeps renewal of an already expired stream
// idempotent with respect to status.
func (s *Stream) Transition(to Status) error {
	if s.Status == to && to == StatusCompleted {
		return nil
	}
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.Status, to)
	}
	s.Status = to
	return nil
}

// Active reports whether the stream is Active.
func (s *Stream) Active() bool { return s.Status == StatusActive }

// CanWithdraw reports whether the creator may still pull funds. Completed
// streams accept a final withdrawal of whatever accrued before end_time.
func (s *Stream) CanWithdraw() bool {
	return s.Status == StatusActive || s.Status == StatusCompleted
}

// CanRenew reports whether the stream is eligible for renewal at now,
// ignoring the grace window. Streams that ended by cancellation or
// termination, or that were already renewed, are not eligible.
func (s *Stream) CanRenew(now uint64) bool {
	if !s.AutoRenew || s.RenewedBy != 0 {
		return false
	}
	switch s.Status {
	case StatusActive:
		return now >= s.EndTime
	case StatusCompleted:
		return true
	default:
		return false
	}
}

// GraceLapsed reports whether now is past end_time plus grace.
func (s *Stream) GraceLapsed(now, grace uint64) bool {
	deadline := s.EndTime + grace
	if deadline < s.EndTime {
		return false
	}
	return now > deadline
}
