package reveal

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNextBoundary(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{
			name:     "Mid window rounds up",
			now:      time.Date(2025, 3, 10, 14, 32, 12, 0, time.UTC),
			expected: time.Date(2025, 3, 10, 14, 35, 0, 0, time.UTC),
		},
		{
			name:     "Exactly on a boundary moves to the next one",
			now:      time.Date(2025, 3, 10, 14, 35, 0, 0, time.UTC),
			expected: time.Date(2025, 3, 10, 14, 40, 0, 0, time.UTC),
		},
		{
			name:     "Crosses the hour",
			now:      time.Date(2025, 3, 10, 14, 58, 30, 0, time.UTC),
			expected: time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
		},
		{
			name:     "Crosses midnight",
			now:      time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC),
			expected: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextBoundary(tt.now)
			if !got.Equal(tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
			if !got.After(tt.now) {
				t.Error("boundary must be strictly after now")
			}
			if got.Minute()%5 != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
				t.Errorf("%v is not on a 5-minute wall-clock boundary", got)
			}
		})
	}
}

func TestScheduleIsSingleFlight(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	dayA := time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)
	dayB := dayA.AddDate(0, 0, 1)

	first := s.Schedule(dayA)
	second := s.Schedule(dayB)

	if first != second {
		t.Error("second schedule must return the existing state")
	}
	if held, _ := s.HeldDate(); !held.Equal(dayA) {
		t.Errorf("held date overwritten: %v", held)
	}
}

func TestRemoveIfOverdueFiresExactlyOnce(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var redownloads, reloads, moves atomic.Int32
	s.Bind(Hooks{
		Redownload:   func(context.Context) { redownloads.Add(1) },
		Reload:       func() { reloads.Add(1) },
		MoveToNewest: func() { moves.Add(1) },
	})

	s.Schedule(time.Now())
	// push the clock past the trigger
	s.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	s.RemoveIfOverdue(context.Background())
	s.RemoveIfOverdue(context.Background())

	if got := redownloads.Load(); got != 1 {
		t.Errorf("expected exactly one redownload, got %d", got)
	}
	if reloads.Load() != 1 || moves.Load() != 1 {
		t.Errorf("expected one reload and one move, got %d/%d", reloads.Load(), moves.Load())
	}
	if s.Pending() {
		t.Error("fired reveal must return to idle")
	}
}

func TestRemoveIfOverdueKeepsFutureTrigger(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var fired atomic.Int32
	s.Bind(Hooks{Redownload: func(context.Context) { fired.Add(1) }})

	s.Schedule(time.Now())
	s.RemoveIfOverdue(context.Background())

	if fired.Load() != 0 {
		t.Error("future trigger must not fire")
	}
	if !s.Pending() {
		t.Error("future trigger must stay scheduled")
	}
}

func TestStartTriggerFiresAtTriggerTime(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	done := make(chan struct{})
	s.Bind(Hooks{Redownload: func(context.Context) { close(done) }})

	s.Schedule(time.Now())
	// pull the trigger time into the immediate future
	s.mu.Lock()
	s.state.TriggerAt = time.Now().Add(20 * time.Millisecond)
	s.mu.Unlock()

	s.StartTrigger(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reveal did not fire")
	}
	if s.Pending() {
		t.Error("fired reveal must return to idle")
	}
}

func TestStartTriggerIsIdempotent(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var fired atomic.Int32
	s.Bind(Hooks{Redownload: func(context.Context) { fired.Add(1) }})

	s.Schedule(time.Now())
	s.mu.Lock()
	s.state.TriggerAt = time.Now().Add(30 * time.Millisecond)
	s.mu.Unlock()

	s.StartTrigger(context.Background())
	s.StartTrigger(context.Background())
	s.StartTrigger(context.Background())

	time.Sleep(300 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("expected a single fire, got %d", got)
	}
}

func TestDeleteTriggerSuppressesReveal(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var fired atomic.Int32
	s.Bind(Hooks{Redownload: func(context.Context) { fired.Add(1) }})

	s.Schedule(time.Now())
	s.mu.Lock()
	s.state.TriggerAt = time.Now().Add(50 * time.Millisecond)
	s.mu.Unlock()
	s.StartTrigger(context.Background())

	s.DeleteTrigger()

	time.Sleep(300 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("deleted trigger must never fire")
	}
	if s.Pending() {
		t.Error("expected idle after delete")
	}
}

func TestUserCancelReloadsWithoutRedownload(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var redownloads, reloads, moves atomic.Int32
	s.Bind(Hooks{
		Redownload:   func(context.Context) { redownloads.Add(1) },
		Reload:       func() { reloads.Add(1) },
		MoveToNewest: func() { moves.Add(1) },
	})

	s.Schedule(time.Now())
	s.StartTrigger(context.Background())
	s.Cancel()

	time.Sleep(100 * time.Millisecond)
	if redownloads.Load() != 0 {
		t.Error("user cancel must not re-run the download")
	}
	if reloads.Load() != 1 || moves.Load() != 1 {
		t.Errorf("expected reload and cursor move, got %d/%d", reloads.Load(), moves.Load())
	}
	if s.Pending() {
		t.Error("expected idle after cancel")
	}
}

func TestSetMessage(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	s.SetMessage("ignored while idle")
	if s.Message() != "" {
		t.Error("message on idle scheduler must be empty")
	}

	s.Schedule(time.Now())
	s.SetMessage("Downloading images")
	if s.Message() != "Downloading images" {
		t.Errorf("unexpected message %q", s.Message())
	}
}
