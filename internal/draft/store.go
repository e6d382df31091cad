package draft

import (
	"context"

	"rapport/internal/domain"
)

// Store is the persistence contract the session consumes. The HTTP client in
// internal/persistence satisfies it; tests use an in-memory fake.
type Store interface {
	// FetchReport returns the group's report with its sections, or an error
	// satisfying errors.Is(err, persistence.ErrNotFound) when none exists.
	FetchReport(ctx context.Context, projectID, groupID string) (domain.Report, error)
	CreateReport(ctx context.Context, projectID, groupID string, in domain.NewReport) (domain.Report, error)
	UpdateReport(ctx context.Context, reportID string, patch domain.ReportPatch) (domain.Report, error)
	CreateSection(ctx context.Context, reportID string, in domain.NewSection) (domain.Section, error)
	UpdateSection(ctx context.Context, sectionID string, patch domain.SectionPatch) (domain.Section, error)
	DeleteSection(ctx context.Context, sectionID string) error
	SubmitReport(ctx context.Context, reportID string) (domain.Report, error)
}
