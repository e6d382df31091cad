package draft

import (
	"errors"
	"strings"
)

var (
	// ErrSessionClosed rejects any operation after Close.
	ErrSessionClosed = errors.New("report session closed")
	// ErrNoReport means no report exists yet for this (project, group).
	// It is a normal state, not a failure of the fetch itself.
	ErrNoReport = errors.New("no report exists for this group yet")
	// ErrReportExists rejects CreateReport when the session already holds one.
	ErrReportExists = errors.New("report already exists")
	// ErrSectionNotFound rejects edits addressed to an unknown section.
	ErrSectionNotFound = errors.New("section not found")
	// ErrUnsavedEdits rejects Refresh while local edits are still pending,
	// so a refetch can never silently discard keystrokes.
	ErrUnsavedEdits = errors.New("unsaved local edits pending; save or discard first")
)

// EmptyReportError blocks submission of a report with no sections.
type EmptyReportError struct{}

func (EmptyReportError) Error() string {
	return "report has no sections; add at least one before submitting"
}

// BlankSectionsError blocks submission while sections have no content.
// Titles keeps report order so the message reads top to bottom.
type BlankSectionsError struct {
	Titles []string
}

func (e BlankSectionsError) Error() string {
	return "sections without content: " + strings.Join(e.Titles, ", ")
}
