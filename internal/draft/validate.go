package draft

import (
	"strings"

	"rapport/internal/domain"
)

// Validate decides submit-eligibility from the ordered section list alone.
// It performs no I/O and never consults the scheduler.
func Validate(sections []domain.Section) error {
	if len(sections) == 0 {
		return EmptyReportError{}
	}
	var blank []string
	for _, sec := range sections {
		if strings.TrimSpace(sec.Content) == "" {
			blank = append(blank, sec.Title)
		}
	}
	if len(blank) > 0 {
		return BlankSectionsError{Titles: blank}
	}
	return nil
}
