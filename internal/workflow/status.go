// Package workflow holds the job application lifecycle: the status set and
// the table of legal transitions between them.
package workflow

import (
	"fmt"
	"strings"
)

// Status is a job application lifecycle state.
type Status string

const (
	StatusPending            Status = "pending"
	StatusSubmitted          Status = "submitted"
	StatusReviewed           Status = "reviewed"
	StatusScreeningInterview Status = "screening-interview"
	StatusTechnicalInterview Status = "technical-interview"
	StatusFinalHRInterview   Status = "final-hr-interview"
	StatusTeamMatching       Status = "team-matching"
	StatusAccepted           Status = "accepted"
	StatusRejected           Status = "rejected"
	StatusOfferLetter        Status = "offer-letter"
)

// Initial is the status assigned to a freshly created application.
const Initial = StatusPending

var ordered = []Status{
	StatusPending,
	StatusSubmitted,
	StatusReviewed,
	StatusScreeningInterview,
	StatusTechnicalInterview,
	StatusFinalHRInterview,
	StatusTeamMatching,
	StatusAccepted,
	StatusRejected,
	StatusOfferLetter,
}

var transitions = map[Status][]Status{
	StatusPending:            {StatusSubmitted},
	StatusSubmitted:          {StatusReviewed},
	StatusReviewed:           {StatusScreeningInterview},
	StatusScreeningInterview: {StatusTechnicalInterview},
	StatusTechnicalInterview: {StatusFinalHRInterview},
	StatusFinalHRInterview:   {StatusTeamMatching},
	StatusTeamMatching:       {StatusAccepted, StatusRejected},
	StatusAccepted:           {StatusOfferLetter},
	StatusRejected:           {},
	StatusOfferLetter:        {},
}

// All returns every status in lifecycle order.
func All() []Status {
	out := make([]Status, len(ordered))
	copy(out, ordered)
	return out
}

// Parse normalises and validates a status string.
func Parse(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	return status, status.Valid()
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// AllowedNext lists the statuses reachable from s through the table.
func (s Status) AllowedNext() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether target is a legal next status for s.
func (s Status) CanTransitionTo(target Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// CanReject reports whether the administrative reject override applies.
func (s Status) CanReject() bool {
	return s.Valid() && s != StatusRejected
}

// CanRestore reports whether the administrative restore override applies.
func (s Status) CanRestore() bool {
	return s == StatusRejected
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// Latest resolves the current status from a history ordered oldest first.
func Latest(history []Status) Status {
	if len(history) == 0 {
		return Initial
	}
	return history[len(history)-1]
}

// TransitionError reports a move the table does not allow.
type TransitionError struct {
	Current Status
	Target  Status
	Allowed []Status
}

func (e *TransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, status := range e.Allowed {
		allowed[i] = string(status)
	}
	list := strings.Join(allowed, ", ")
	if list == "" {
		list = "none"
	}
	return fmt.Sprintf("cannot move application from %s to %s (allowed: %s)", e.Current, e.Target, list)
}

// Check validates current -> target against the table.
func Check(current, target Status) error {
	if current.CanTransitionTo(target) {
		return nil
	}
	return &TransitionError{
		Current: current,
		Target:  target,
		Allowed: current.AllowedNext(),
	}
}
