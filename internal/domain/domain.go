package domain

import (
	"fmt"
	"time"
)

// ContentKind identifies the markup flavor of a section body.
type ContentKind string

const (
	KindHTML     ContentKind = "html"
	KindMarkdown ContentKind = "markdown"
	KindPlain    ContentKind = "plain"
)

// Report is one group's project report with its ordered sections.
type Report struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	GroupID     string     `json:"group_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status" enum:"draft,submitted,reviewed,published"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty" format:"date-time"`
	CreatedAt   time.Time  `json:"created_at" format:"date-time"`
	UpdatedAt   time.Time  `json:"updated_at" format:"date-time"`
	Sections    []Section  `json:"sections,omitempty"`
}

// Section is one ordered block of report content.
type Section struct {
	ID        string      `json:"id"`
	ReportID  string      `json:"report_id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Kind      ContentKind `json:"content_type" enum:"html,markdown,plain"`
	Order     int         `json:"order"`
	UpdatedAt time.Time   `json:"updated_at" format:"date-time"`
}

// ReportPatch is a partial update of report content fields.
type ReportPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// IsZero reports whether the patch carries no changes.
func (p ReportPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil
}

// Apply merges the patch into r.
func (p ReportPatch) Apply(r *Report) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
}

// SectionPatch is a partial update of a section.
type SectionPatch struct {
	Title   *string      `json:"title,omitempty"`
	Content *string      `json:"content,omitempty"`
	Kind    *ContentKind `json:"content_type,omitempty"`
	Order   *int         `json:"order,omitempty"`
}

// IsZero reports whether the patch carries no changes.
func (p SectionPatch) IsZero() bool {
	return p.Title == nil && p.Content == nil && p.Kind == nil && p.Order == nil
}

// Apply merges the patch into s.
func (p SectionPatch) Apply(s *Section) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Content != nil {
		s.Content = *p.Content
	}
	if p.Kind != nil {
		s.Kind = *p.Kind
	}
	if p.Order != nil {
		s.Order = *p.Order
	}
}

// Merge overlays other onto p, keeping p's fields where other is unset.
// Successive edits to one section coalesce into a single patch this way.
func (p SectionPatch) Merge(other SectionPatch) SectionPatch {
	if other.Title != nil {
		p.Title = other.Title
	}
	if other.Content != nil {
		p.Content = other.Content
	}
	if other.Kind != nil {
		p.Kind = other.Kind
	}
	if other.Order != nil {
		p.Order = other.Order
	}
	return p
}

// ConflictError rejects a mutation because the report left the draft state.
// Raised locally before any network call, and by the client when the server
// answers 409.
type ConflictError struct {
	Status  Status
	Message string
}

func (e ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("report is %s; content can only change while draft", e.Status)
}
