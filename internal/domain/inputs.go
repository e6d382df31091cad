package domain

// NewReport are the caller-supplied fields for report creation.
type NewReport struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// NewSection are the caller-supplied fields for section creation. The ID is
// generated client-side so an optimistic local copy and the server row agree.
type NewSection struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Content string      `json:"content,omitempty"`
	Kind    ContentKind `json:"content_type,omitempty"`
	Order   int         `json:"order"`
}
