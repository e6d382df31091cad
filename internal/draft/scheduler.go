package draft

import (
	"sync"
	"time"
)

// SaveState is the single autosave indicator exposed to callers.
type SaveState string

const (
	SaveIdle   SaveState = "idle"
	SaveSaving SaveState = "saving"
	SaveSaved  SaveState = "saved"
	SaveError  SaveState = "error"
)

// SaveStatus is a snapshot of the autosave indicator.
type SaveStatus struct {
	State     SaveState
	LastSaved time.Time
	Message   string
}

// scheduler owns the debounce timer and the save status for one session.
// Every commit batch gets a generation number; a completion whose generation
// is no longer the latest issued must not touch the status, closing the
// out-of-order hazard of overlapping commits.
type scheduler struct {
	window time.Duration
	now    func() time.Time
	fire   func()

	mu        sync.Mutex
	timer     *time.Timer
	closed    bool
	gen       uint64
	state     SaveState
	lastSaved time.Time
	lastErr   string
}

func newScheduler(window time.Duration, now func() time.Time, fire func()) *scheduler {
	return &scheduler{
		window: window,
		now:    now,
		fire:   fire,
		state:  SaveIdle,
	}
}

// Arm starts or resets the quiescence timer. Each call pushes the deadline
// out by the full window: debounce, not throttle.
func (sc *scheduler) Arm() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return
	}
	if sc.timer != nil {
		sc.timer.Stop()
	}
	sc.timer = time.AfterFunc(sc.window, func() {
		sc.mu.Lock()
		if sc.closed {
			sc.mu.Unlock()
			return
		}
		sc.timer = nil
		sc.mu.Unlock()
		sc.fire()
	})
}

// Disarm cancels any armed timer without tearing the scheduler down.
func (sc *scheduler) Disarm() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.timer != nil {
		sc.timer.Stop()
		sc.timer = nil
	}
}

// Pending reports whether a deferred commit is armed.
func (sc *scheduler) Pending() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.timer != nil
}

// Cancel tears the scheduler down; armed and late-firing timers become no-ops.
func (sc *scheduler) Cancel() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.closed = true
	if sc.timer != nil {
		sc.timer.Stop()
		sc.timer = nil
	}
}

// Begin stamps a new commit batch and flips the indicator to saving.
func (sc *scheduler) Begin() uint64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.gen++
	sc.state = SaveSaving
	return sc.gen
}

// Finish records a commit outcome unless a newer batch was issued since.
func (sc *scheduler) Finish(gen uint64, err error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed || gen != sc.gen {
		return
	}
	if err != nil {
		sc.state = SaveError
		sc.lastErr = err.Error()
		return
	}
	sc.state = SaveSaved
	sc.lastSaved = sc.now()
	sc.lastErr = ""
}

// Status returns the current indicator snapshot.
func (sc *scheduler) Status() SaveStatus {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return SaveStatus{State: sc.state, LastSaved: sc.lastSaved, Message: sc.lastErr}
}
