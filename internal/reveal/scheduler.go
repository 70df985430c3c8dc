// Package reveal defers showing a freshly downloaded image until a
// scheduled wall-clock time. The state machine is
// Idle → Scheduled → (Fired | Cancelled), with an overdue shortcut that
// fires synchronously when a wake event arrives after the trigger time.
package reveal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// boundary is the wall-clock grid reveals snap to. Repeated wake events
// within the same window coalesce onto one trigger time.
const boundary = 5 * time.Minute

// State is the transient, in-memory reveal record. Never persisted.
type State struct {
	// HeldDate is the calendar day withheld from the gallery
	HeldDate time.Time
	// TriggerAt is when the reveal fires
	TriggerAt time.Time
	// Started reports whether the trigger wait is running
	Started bool
	// Message is the UI status text for the pending reveal
	Message string
}

// Hooks are the actions a firing or cancelled reveal performs. Bound once
// at wiring time; the scheduler never reaches into the tracker or gallery
// directly.
type Hooks struct {
	// Redownload re-runs the missing-date download cycle
	Redownload func(ctx context.Context)
	// Reload rebuilds the gallery collection, with no date held back
	Reload func()
	// MoveToNewest places the cursor on the newest image
	MoveToNewest func()
}

// Scheduler holds at most one reveal state per provider
type Scheduler struct {
	logger *zap.Logger

	mu     sync.Mutex
	state  *State
	cancel context.CancelFunc
	hooks  Hooks
	now    func() time.Time
}

// NewScheduler creates an idle scheduler on the system clock
func NewScheduler(logger *zap.Logger) *Scheduler {
	return NewSchedulerWithClock(logger, time.Now)
}

// NewSchedulerWithClock creates an idle scheduler reading wall-clock time
// from now. Boundary snapping and overdue detection use now; the
// asynchronous trigger wait still runs on the system timer.
func NewSchedulerWithClock(logger *zap.Logger, now func() time.Time) *Scheduler {
	return &Scheduler{
		logger: logger,
		now:    now,
	}
}

// Bind attaches the reveal actions. Must be called before the first
// Schedule; separate from construction because the download tracker the
// hooks close over is built after the scheduler.
func (s *Scheduler) Bind(hooks Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = hooks
}

// NextBoundary returns the next 5-minute wall-clock boundary strictly
// after t
func NextBoundary(t time.Time) time.Time {
	return t.Truncate(boundary).Add(boundary)
}

// Schedule transitions Idle → Scheduled for the given held date. If a state
// already exists it is returned unchanged; an in-flight reveal takes
// priority over a new one.
func (s *Scheduler) Schedule(heldDate time.Time) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		return s.state
	}

	s.state = &State{
		HeldDate:  heldDate,
		TriggerAt: NextBoundary(s.now()),
	}
	s.logger.Info("Reveal scheduled",
		zap.Time("heldDate", heldDate),
		zap.Time("triggerAt", s.state.TriggerAt))
	return s.state
}

// Pending reports whether a reveal state exists
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != nil
}

// HeldDate returns the withheld calendar day, false when idle
func (s *Scheduler) HeldDate() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return time.Time{}, false
	}
	return s.state.HeldDate, true
}

// SetMessage updates the UI status text of the pending reveal; no-op when
// idle
func (s *Scheduler) SetMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil {
		s.state.Message = text
	}
}

// Message returns the pending reveal's status text
func (s *Scheduler) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return ""
	}
	return s.state.Message
}

// RemoveIfOverdue fires the reveal synchronously when the trigger time has
// passed. A still-future trigger stays scheduled untouched; the pending
// wait (if started) keeps running.
func (s *Scheduler) RemoveIfOverdue(ctx context.Context) {
	s.mu.Lock()
	if s.state == nil || !s.now().After(s.state.TriggerAt) {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Reveal overdue, firing immediately",
		zap.Time("triggerAt", s.state.TriggerAt))
	s.clearLocked()
	hooks := s.hooks
	s.mu.Unlock()

	fire(ctx, hooks)
}

// StartTrigger arms the asynchronous wait until the trigger time.
// Idempotent: an already-started trigger is left alone. The wait is
// cancellable both by ctx and by DeleteTrigger/Cancel.
func (s *Scheduler) StartTrigger(ctx context.Context) {
	s.mu.Lock()
	if s.state == nil || s.state.Started {
		s.mu.Unlock()
		return
	}
	s.state.Started = true
	triggerAt := s.state.TriggerAt

	waitCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("Reveal trigger started", zap.Time("triggerAt", triggerAt))

	go func() {
		timer := time.NewTimer(time.Until(triggerAt))
		defer timer.Stop()

		select {
		case <-waitCtx.Done():
			s.logger.Info("Reveal wait cancelled")
			return
		case <-timer.C:
		}

		s.mu.Lock()
		if s.state == nil {
			// deleted between the timer firing and us getting the lock
			s.mu.Unlock()
			return
		}
		s.clearLocked()
		hooks := s.hooks
		s.mu.Unlock()

		s.logger.Info("Reveal fired", zap.Time("triggerAt", triggerAt))
		fire(ctx, hooks)
	}()
}

// DeleteTrigger transitions to Cancelled without running the reveal action.
// Used when the download that was to produce the revealed image failed, so
// the UI does not wait forever.
func (s *Scheduler) DeleteTrigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return
	}
	s.logger.Info("Reveal trigger deleted", zap.Time("heldDate", s.state.HeldDate))
	s.clearLocked()
}

// Cancel is the user-initiated cancellation: the pending wait stops, the
// gallery reloads with nothing held back and the cursor moves to the newest
// image. The download is NOT re-run.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	if s.state == nil {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Reveal cancelled by user", zap.Time("heldDate", s.state.HeldDate))
	s.clearLocked()
	hooks := s.hooks
	s.mu.Unlock()

	if hooks.Reload != nil {
		hooks.Reload()
	}
	if hooks.MoveToNewest != nil {
		hooks.MoveToNewest()
	}
}

// clearLocked resets to Idle and stops any pending wait. Callers hold s.mu.
func (s *Scheduler) clearLocked() {
	s.state = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// fire runs the full reveal action: re-download, reload without the held
// date, cursor to newest
func fire(ctx context.Context, hooks Hooks) {
	if hooks.Redownload != nil {
		hooks.Redownload(ctx)
	}
	if hooks.Reload != nil {
		hooks.Reload()
	}
	if hooks.MoveToNewest != nil {
		hooks.MoveToNewest()
	}
}
