package domain

import "fmt"

// Status is the report lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusReviewed  Status = "reviewed"
	StatusPublished Status = "published"
)

// Event is a lifecycle transition request.
type Event string

const (
	// EventSubmit is the only transition this engine issues itself.
	EventSubmit Event = "submit"
	// EventReview and EventPublish are teacher-side actions; the reducer
	// still models them because fetched reports can arrive in any state.
	EventReview  Event = "review"
	EventPublish Event = "publish"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusReviewed, StatusPublished:
		return true
	}
	return false
}

// Mutable reports whether report content and sections may change.
func (s Status) Mutable() bool {
	return s == StatusDraft
}

// Terminal reports whether no further transition exists.
func (s Status) Terminal() bool {
	return s == StatusPublished
}

// Transition is the pure lifecycle reducer: draft -> submitted -> reviewed ->
// published, one step per event, no skips and no way back.
func Transition(s Status, ev Event) (Status, error) {
	switch s {
	case StatusDraft:
		if ev == EventSubmit {
			return StatusSubmitted, nil
		}
	case StatusSubmitted:
		if ev == EventReview {
			return StatusReviewed, nil
		}
	case StatusReviewed:
		if ev == EventPublish {
			return StatusPublished, nil
		}
	}
	return s, fmt.Errorf("invalid report transition %s on %s", ev, s)
}
