package draft_test

import (
	"errors"
	"strings"
	"testing"

	"rapport/internal/domain"
	"rapport/internal/draft"
)

func TestValidateEmptyReport(t *testing.T) {
	err := draft.Validate(nil)
	var empty draft.EmptyReportError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyReportError, got %v", err)
	}
}

func TestValidateBlankSectionsKeepReportOrder(t *testing.T) {
	sections := []domain.Section{
		{Title: "Intro", Content: "   ", Order: 0},
		{Title: "Body", Content: "hello", Order: 1},
		{Title: "Conclusion", Content: "\n\t", Order: 2},
	}
	err := draft.Validate(sections)
	var blank draft.BlankSectionsError
	if !errors.As(err, &blank) {
		t.Fatalf("expected BlankSectionsError, got %v", err)
	}
	if len(blank.Titles) != 2 || blank.Titles[0] != "Intro" || blank.Titles[1] != "Conclusion" {
		t.Fatalf("expected [Intro Conclusion], got %v", blank.Titles)
	}
	if !strings.Contains(err.Error(), "Intro") || strings.Contains(err.Error(), "Body") {
		t.Fatalf("message should name Intro but not Body: %q", err.Error())
	}
}

func TestValidateOK(t *testing.T) {
	sections := []domain.Section{
		{Title: "Intro", Content: "written"},
		{Title: "Body", Content: "also written"},
	}
	if err := draft.Validate(sections); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
