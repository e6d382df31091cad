package domain_test

import (
	"testing"

	"rapport/internal/domain"
)

func TestTransitionHappyPath(t *testing.T) {
	s := domain.StatusDraft
	s, err := domain.Transition(s, domain.EventSubmit)
	if err != nil || s != domain.StatusSubmitted {
		t.Fatalf("submit: got %s, %v", s, err)
	}
	s, err = domain.Transition(s, domain.EventReview)
	if err != nil || s != domain.StatusReviewed {
		t.Fatalf("review: got %s, %v", s, err)
	}
	s, err = domain.Transition(s, domain.EventPublish)
	if err != nil || s != domain.StatusPublished {
		t.Fatalf("publish: got %s, %v", s, err)
	}
	if !s.Terminal() {
		t.Fatalf("published should be terminal")
	}
}

func TestTransitionRejectsSkipsAndRepeats(t *testing.T) {
	cases := []struct {
		from domain.Status
		ev   domain.Event
	}{
		{domain.StatusDraft, domain.EventReview},
		{domain.StatusDraft, domain.EventPublish},
		{domain.StatusSubmitted, domain.EventSubmit},
		{domain.StatusSubmitted, domain.EventPublish},
		{domain.StatusReviewed, domain.EventSubmit},
		{domain.StatusPublished, domain.EventSubmit},
		{domain.StatusPublished, domain.EventPublish},
	}
	for _, tc := range cases {
		if got, err := domain.Transition(tc.from, tc.ev); err == nil {
			t.Fatalf("expected error for %s on %s, got %s", tc.ev, tc.from, got)
		}
	}
}

func TestMutability(t *testing.T) {
	if !domain.StatusDraft.Mutable() {
		t.Fatalf("draft must be mutable")
	}
	for _, s := range []domain.Status{domain.StatusSubmitted, domain.StatusReviewed, domain.StatusPublished} {
		if s.Mutable() {
			t.Fatalf("%s must not be mutable", s)
		}
	}
}

func TestSectionPatchMerge(t *testing.T) {
	a, ab := "a", "ab"
	title := "Intro"
	p := domain.SectionPatch{Content: &a}
	p = p.Merge(domain.SectionPatch{Content: &ab})
	p = p.Merge(domain.SectionPatch{Title: &title})
	if p.Content == nil || *p.Content != "ab" {
		t.Fatalf("latest content must win, got %v", p.Content)
	}
	if p.Title == nil || *p.Title != "Intro" {
		t.Fatalf("title must carry through merge")
	}
}
