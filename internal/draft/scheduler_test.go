package draft

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestSchedulerDebounceResetsDeadline(t *testing.T) {
	var fired atomic.Int32
	sc := newScheduler(60*time.Millisecond, fixedNow, func() { fired.Add(1) })
	defer sc.Cancel()

	sc.Arm()
	time.Sleep(30 * time.Millisecond)
	sc.Arm() // pushes the deadline out again
	time.Sleep(40 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("timer fired before the full quiescence window elapsed")
	}
	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("expected exactly one fire, got %d", fired.Load())
	}
	if sc.Pending() {
		t.Fatalf("no timer should remain armed after firing")
	}
}

func TestSchedulerDisarm(t *testing.T) {
	var fired atomic.Int32
	sc := newScheduler(20*time.Millisecond, fixedNow, func() { fired.Add(1) })
	defer sc.Cancel()

	sc.Arm()
	sc.Disarm()
	if sc.Pending() {
		t.Fatalf("disarm must clear the pending timer")
	}
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("disarmed timer must not fire")
	}
}

func TestSchedulerCancelStopsLateFires(t *testing.T) {
	var fired atomic.Int32
	sc := newScheduler(20*time.Millisecond, fixedNow, func() { fired.Add(1) })
	sc.Arm()
	sc.Cancel()
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("cancelled scheduler must not fire")
	}
	sc.Arm() // arming after cancel is a no-op
	if sc.Pending() {
		t.Fatalf("cancelled scheduler must not arm")
	}
}

func TestSchedulerStaleGenerationDiscarded(t *testing.T) {
	sc := newScheduler(time.Hour, fixedNow, func() {})
	defer sc.Cancel()

	g1 := sc.Begin()
	g2 := sc.Begin()
	sc.Finish(g2, nil)
	if st := sc.Status(); st.State != SaveSaved {
		t.Fatalf("latest generation must record saved, got %s", st.State)
	}
	// the older commit completes late with an error; its effect is discarded
	sc.Finish(g1, errors.New("stale failure"))
	st := sc.Status()
	if st.State != SaveSaved || st.Message != "" {
		t.Fatalf("stale completion must not overwrite status, got %s %q", st.State, st.Message)
	}
	if !st.LastSaved.Equal(fixedNow()) {
		t.Fatalf("last saved should come from the injected clock")
	}
}

func TestSchedulerErrorThenSaved(t *testing.T) {
	sc := newScheduler(time.Hour, fixedNow, func() {})
	defer sc.Cancel()

	g := sc.Begin()
	sc.Finish(g, errors.New("boom"))
	if st := sc.Status(); st.State != SaveError || st.Message != "boom" {
		t.Fatalf("expected error status, got %s %q", st.State, st.Message)
	}
	g = sc.Begin()
	if st := sc.Status(); st.State != SaveSaving {
		t.Fatalf("begin must flip to saving, got %s", st.State)
	}
	sc.Finish(g, nil)
	if st := sc.Status(); st.State != SaveSaved || st.Message != "" {
		t.Fatalf("success must clear the error message, got %s %q", st.State, st.Message)
	}
}
