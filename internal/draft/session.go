// Package draft implements the report drafting and submission engine: one
// session per (project, group) report, optimistic in-memory edits, a
// debounced autosave scheduler, and a guarded submit transition.
package draft

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rapport/internal/domain"
	"rapport/internal/persistence"
)

const (
	// DefaultWindow is the autosave quiescence window.
	DefaultWindow = 2 * time.Second
	// DefaultCommitTimeout bounds every persistence call; a stalled commit
	// surfaces as an error instead of leaving the status on saving forever.
	DefaultCommitTimeout = 15 * time.Second
)

// Options configure a Session.
type Options struct {
	ProjectID     string
	GroupID       string
	Window        time.Duration // 0 -> DefaultWindow
	CommitTimeout time.Duration // 0 -> DefaultCommitTimeout
	Logger        *zap.Logger
	Now           func() time.Time
	NewID         func() string
}

// Session owns one group's report aggregate for the lifetime of an editing
// session. All exported methods are safe for concurrent use; the deferred
// autosave timer fires on its own goroutine.
type Session struct {
	store         Store
	log           *zap.Logger
	now           func() time.Time
	newID         func() string
	projectID     string
	groupID       string
	commitTimeout time.Duration
	sched         *scheduler

	// commitMu serializes every persistence write. Submit and SaveNow take
	// it before doing anything else, so they wait out in-flight autosaves.
	commitMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	report   *domain.Report
	sections []domain.Section
	dirty    map[string]domain.SectionPatch
}

// Open fetches the group's report and returns a ready session. A missing
// report is a normal state: the session opens empty and CreateReport starts
// the draft.
func Open(ctx context.Context, store Store, opts Options) (*Session, error) {
	if opts.ProjectID == "" || opts.GroupID == "" {
		return nil, errors.New("project and group are required")
	}
	s := &Session{
		store:         store,
		log:           opts.Logger,
		now:           opts.Now,
		newID:         opts.NewID,
		projectID:     opts.ProjectID,
		groupID:       opts.GroupID,
		commitTimeout: opts.CommitTimeout,
		dirty:         map[string]domain.SectionPatch{},
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	if s.commitTimeout <= 0 {
		s.commitTimeout = DefaultCommitTimeout
	}
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	s.sched = newScheduler(window, s.now, s.autosave)

	rep, err := store.FetchReport(ctx, opts.ProjectID, opts.GroupID)
	switch {
	case err == nil:
		s.mu.Lock()
		s.adoptReportLocked(rep)
		s.mu.Unlock()
	case errors.Is(err, persistence.ErrNotFound):
		// no report yet; session opens empty
	default:
		return nil, err
	}
	return s, nil
}

// Close ends the session: the armed autosave timer is cancelled and any
// not-yet-committed edits are discarded.
func (s *Session) Close() {
	s.sched.Cancel()
	s.mu.Lock()
	s.closed = true
	s.dirty = map[string]domain.SectionPatch{}
	s.mu.Unlock()
}

// --- queries ---

// HasReport reports whether a report exists for the group.
func (s *Session) HasReport() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report != nil
}

// Report returns a copy of the aggregate with its ordered sections.
func (s *Session) Report() (domain.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return domain.Report{}, false
	}
	rep := *s.report
	rep.Sections = append([]domain.Section(nil), s.sections...)
	return rep, true
}

// SectionList returns the sections in report order.
func (s *Session) SectionList() []domain.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Section(nil), s.sections...)
}

// CanEdit reports whether content mutations are currently allowed.
func (s *Session) CanEdit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.report != nil && s.report.Status.Mutable()
}

// CanSubmit reports whether a submit attempt could plausibly succeed.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.report != nil && s.report.Status.Mutable() && len(s.sections) > 0
}

// SaveStatus returns the autosave indicator.
func (s *Session) SaveStatus() SaveStatus {
	return s.sched.Status()
}

// HasPendingSave reports whether a debounced commit is armed or edits are
// waiting to be pushed.
func (s *Session) HasPendingSave() bool {
	if s.sched.Pending() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty) > 0
}

// --- commands ---

// CreateReport creates the group's report; exactly one per (project, group).
func (s *Session) CreateReport(ctx context.Context, title, description string) (domain.Report, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Report{}, ErrSessionClosed
	}
	if s.report != nil {
		s.mu.Unlock()
		return domain.Report{}, ErrReportExists
	}
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()
	rep, err := s.store.CreateReport(cctx, s.projectID, s.groupID, domain.NewReport{Title: title, Description: description})
	if err != nil {
		return domain.Report{}, err
	}
	s.mu.Lock()
	s.adoptReportLocked(rep)
	s.mu.Unlock()
	s.log.Info("report created", zap.String("report_id", rep.ID))
	return rep, nil
}

// UpdateReport patches title/description: optimistic apply, immediate commit.
func (s *Session) UpdateReport(ctx context.Context, patch domain.ReportPatch) (domain.Report, error) {
	if patch.IsZero() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.report == nil {
			return domain.Report{}, ErrNoReport
		}
		return *s.report, nil
	}
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if err := s.guardMutableLocked(); err != nil {
		s.mu.Unlock()
		return domain.Report{}, err
	}
	patch.Apply(s.report)
	reportID := s.report.ID
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()
	rep, err := s.store.UpdateReport(cctx, reportID, patch)
	if err != nil {
		// optimistic title/description stay; the caller decides what to do
		return domain.Report{}, err
	}
	s.mu.Lock()
	s.reconcileReportLocked(rep)
	rep = *s.report
	s.mu.Unlock()
	return rep, nil
}

// AddSection appends a section at order = len(sections). The ID is generated
// locally so the confirmed server copy slots back in by identity.
func (s *Session) AddSection(ctx context.Context, title, content string, kind domain.ContentKind) (domain.Section, error) {
	if kind == "" {
		kind = domain.KindHTML
	}
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if err := s.guardMutableLocked(); err != nil {
		s.mu.Unlock()
		return domain.Section{}, err
	}
	in := domain.NewSection{
		ID:      s.newID(),
		Title:   title,
		Content: content,
		Kind:    kind,
		Order:   len(s.sections),
	}
	reportID := s.report.ID
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()
	sec, err := s.store.CreateSection(cctx, reportID, in)
	if err != nil {
		return domain.Section{}, err
	}
	s.mu.Lock()
	s.sections = append(s.sections, sec)
	s.sortSectionsLocked()
	s.mu.Unlock()
	s.log.Debug("section added", zap.String("section_id", sec.ID), zap.Int("order", sec.Order))
	return sec, nil
}

// UpdateSection applies the patch to the local copy immediately and either
// arms the debounce timer (default) or flushes right away (immediate=true,
// e.g. before navigating away). Debounced commit failures surface through
// SaveStatus, immediate ones through the returned error.
func (s *Session) UpdateSection(ctx context.Context, sectionID string, patch domain.SectionPatch, immediate bool) (domain.Section, error) {
	s.mu.Lock()
	if err := s.guardMutableLocked(); err != nil {
		s.mu.Unlock()
		return domain.Section{}, err
	}
	idx := s.indexOfLocked(sectionID)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Section{}, fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}
	patch.Apply(&s.sections[idx])
	s.sections[idx].UpdatedAt = s.now()
	s.sortSectionsLocked()
	s.dirty[sectionID] = s.dirty[sectionID].Merge(patch)
	sec := s.sections[s.indexOfLocked(sectionID)]
	s.mu.Unlock()

	if immediate {
		if err := s.flush(ctx); err != nil {
			return sec, err
		}
		s.mu.Lock()
		if i := s.indexOfLocked(sectionID); i >= 0 {
			sec = s.sections[i]
		}
		s.mu.Unlock()
		return sec, nil
	}
	s.sched.Arm()
	return sec, nil
}

// DeleteSection removes the section remotely, then locally, and renumbers the
// survivors to contiguous order values. The renumbering persists lazily
// through the scheduler so one delete does not fan out into N eager writes.
func (s *Session) DeleteSection(ctx context.Context, sectionID string) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if err := s.guardMutableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.indexOfLocked(sectionID) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()
	if err := s.store.DeleteSection(cctx, sectionID); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.indexOfLocked(sectionID)
	if idx >= 0 {
		s.sections = append(s.sections[:idx], s.sections[idx+1:]...)
	}
	delete(s.dirty, sectionID)
	renumbered := false
	for i := range s.sections {
		if s.sections[i].Order != i {
			order := i
			s.sections[i].Order = order
			s.dirty[s.sections[i].ID] = s.dirty[s.sections[i].ID].Merge(domain.SectionPatch{Order: &order})
			renumbered = true
		}
	}
	s.mu.Unlock()
	if renumbered {
		s.sched.Arm()
	}
	s.log.Debug("section deleted", zap.String("section_id", sectionID))
	return nil
}

// SaveNow cancels any armed timer and pushes every pending edit before
// returning: once it resolves, all prior edits are durable.
func (s *Session) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()
	return s.flush(ctx)
}

// Submit flushes pending autosaves, validates, and requests the
// draft -> submitted transition. It takes the commit lock first, so it can
// never overlap an in-flight autosave commit.
func (s *Session) Submit(ctx context.Context) (domain.Report, error) {
	s.sched.Disarm()
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := s.commitDirty(ctx); err != nil {
		return domain.Report{}, fmt.Errorf("flush before submit: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Report{}, ErrSessionClosed
	}
	if s.report == nil {
		s.mu.Unlock()
		return domain.Report{}, ErrNoReport
	}
	if _, err := domain.Transition(s.report.Status, domain.EventSubmit); err != nil {
		status := s.report.Status
		s.mu.Unlock()
		return domain.Report{}, domain.ConflictError{Status: status}
	}
	if err := Validate(s.sections); err != nil {
		s.mu.Unlock()
		return domain.Report{}, err
	}
	reportID := s.report.ID
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()
	rep, err := s.store.SubmitReport(cctx, reportID)
	if err != nil {
		return domain.Report{}, err
	}
	s.mu.Lock()
	s.reconcileReportLocked(rep)
	rep = *s.report
	s.mu.Unlock()
	s.log.Info("report submitted", zap.String("report_id", rep.ID))
	return rep, nil
}

// Refresh refetches the aggregate. Refused while local edits are pending so
// a refetch can never clobber unsynchronized keystrokes.
func (s *Session) Refresh(ctx context.Context) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if len(s.dirty) > 0 || s.sched.Pending() {
		s.mu.Unlock()
		return ErrUnsavedEdits
	}
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()
	rep, err := s.store.FetchReport(cctx, s.projectID, s.groupID)
	switch {
	case err == nil:
		s.mu.Lock()
		s.adoptReportLocked(rep)
		s.mu.Unlock()
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		s.mu.Lock()
		s.report = nil
		s.sections = nil
		s.mu.Unlock()
		return nil
	default:
		return err
	}
}

// --- autosave plumbing ---

// autosave is the timer callback: commit whatever is dirty, convert failures
// into scheduler status instead of propagating.
func (s *Session) autosave() {
	if err := s.flush(context.Background()); err != nil {
		s.log.Warn("autosave commit failed", zap.Error(err))
	}
}

func (s *Session) flush(ctx context.Context) error {
	s.sched.Disarm()
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	return s.commitDirty(ctx)
}

// commitDirty pushes the accumulated patches, one update per dirty section.
// Caller holds commitMu. On failure the uncommitted patches are folded back
// into the dirty set underneath any edits made meanwhile, so nothing typed is
// ever lost and the next save retries naturally.
func (s *Session) commitDirty(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if len(s.dirty) == 0 {
		s.mu.Unlock()
		return nil
	}
	pending := s.dirty
	s.dirty = map[string]domain.SectionPatch{}
	ids := make([]string, 0, len(pending))
	for _, sec := range s.sections {
		if _, ok := pending[sec.ID]; ok {
			ids = append(ids, sec.ID)
		}
	}
	// patches for sections deleted meanwhile are dropped
	s.mu.Unlock()

	gen := s.sched.Begin()
	for i, id := range ids {
		cctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
		sec, err := s.store.UpdateSection(cctx, id, pending[id])
		cancel()
		if err != nil {
			s.mu.Lock()
			for _, rest := range ids[i:] {
				if s.indexOfLocked(rest) >= 0 {
					s.dirty[rest] = pending[rest].Merge(s.dirty[rest])
				}
			}
			s.mu.Unlock()
			s.sched.Finish(gen, err)
			return err
		}
		s.mu.Lock()
		s.reconcileSectionLocked(sec)
		s.mu.Unlock()
	}
	s.sched.Finish(gen, nil)
	return nil
}

// --- reconciliation ---

func (s *Session) adoptReportLocked(rep domain.Report) {
	sections := rep.Sections
	rep.Sections = nil
	s.report = &rep
	s.sections = append([]domain.Section(nil), sections...)
	s.dirty = map[string]domain.SectionPatch{}
	s.sortSectionsLocked()
}

// reconcileReportLocked replaces the report scalars with the server-confirmed
// copy; sections are tracked separately and untouched here.
func (s *Session) reconcileReportLocked(rep domain.Report) {
	rep.Sections = nil
	s.report = &rep
}

// reconcileSectionLocked swaps in the server-confirmed section, then replays
// any patch that accumulated while the commit was in flight so optimistic
// edits stay visible.
func (s *Session) reconcileSectionLocked(sec domain.Section) {
	idx := s.indexOfLocked(sec.ID)
	if idx < 0 {
		return
	}
	if p, ok := s.dirty[sec.ID]; ok {
		p.Apply(&sec)
	}
	s.sections[idx] = sec
	s.sortSectionsLocked()
}

func (s *Session) indexOfLocked(sectionID string) int {
	for i := range s.sections {
		if s.sections[i].ID == sectionID {
			return i
		}
	}
	return -1
}

func (s *Session) sortSectionsLocked() {
	sort.SliceStable(s.sections, func(i, j int) bool {
		return s.sections[i].Order < s.sections[j].Order
	})
}

func (s *Session) guardMutableLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.report == nil {
		return ErrNoReport
	}
	if !s.report.Status.Mutable() {
		return domain.ConflictError{Status: s.report.Status}
	}
	return nil
}
