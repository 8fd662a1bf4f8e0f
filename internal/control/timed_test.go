package control

import (
	"errors"
	"testing"
	"time"
)

var _ StateHolder = (*TimedOnOff)(nil)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestNewTimedOnOffInitialState(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, nil, 0, 0, clock.Now)

	if c.State() != StateOn {
		t.Errorf("expected ON, got %s", c.State())
	}
	if !c.IsOn() || c.IsOff() {
		t.Errorf("IsOn/IsOff inconsistent with state %s", c.State())
	}
}

func TestUnconstrainedToggles(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, nil, 0, 0, clock.Now)

	// No minimums: bang flips freely without the clock moving.
	want := []State{StateOff, StateOn, StateOff}
	for i, w := range want {
		if err := c.Bang(); err != nil {
			t.Fatalf("bang %d: unexpected error: %v", i, err)
		}
		if c.State() != w {
			t.Errorf("bang %d: expected %s, got %s", i, w, c.State())
		}
	}
}

func TestMinimumOffConstraint(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, nil, 0, 10*time.Second, clock.Now)

	// ON has no minimum: immediate transition to OFF is allowed.
	if err := c.Bang(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsOff() {
		t.Fatalf("expected OFF, got %s", c.State())
	}

	// Now locked in OFF for 10s.
	if err := c.Bang(); err == nil {
		t.Fatal("expected denial immediately after entering OFF")
	}
	if !c.IsOff() {
		t.Errorf("state changed on denied bang: %s", c.State())
	}

	clock.Advance(9 * time.Second)
	if err := c.Bang(); err == nil {
		t.Fatal("expected denial at 9s of 10s minimum")
	}

	clock.Advance(1 * time.Second)
	if err := c.Bang(); err != nil {
		t.Fatalf("expected success at exactly 10s, got %v", err)
	}
	if !c.IsOn() {
		t.Errorf("expected ON, got %s", c.State())
	}
}

func TestMinimumOnConstraint(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, nil, 10*time.Second, 0, clock.Now)

	// The creation instant starts the ON dwell window.
	if err := c.Bang(); err == nil {
		t.Fatal("expected denial immediately after construction")
	}
	if !c.IsOn() {
		t.Errorf("state changed on denied bang: %s", c.State())
	}

	clock.Advance(9 * time.Second)
	if err := c.Bang(); err == nil {
		t.Fatal("expected denial at 9s of 10s minimum")
	}

	clock.Advance(1 * time.Second)
	if err := c.Bang(); err != nil {
		t.Fatalf("expected success at 10s, got %v", err)
	}
	if !c.IsOff() {
		t.Errorf("expected OFF, got %s", c.State())
	}

	// OFF has no minimum: straight back on, which restarts the ON window.
	if err := c.Bang(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Bang(); err == nil {
		t.Fatal("expected denial after re-entering ON")
	}
}

func TestMinimumOnAndOff(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, nil, 10*time.Second, 10*time.Second, clock.Now)

	// Walk two full cycles; each transition requires a 10s wait.
	want := []State{StateOff, StateOn, StateOff, StateOn}
	for i, w := range want {
		if err := c.Bang(); err == nil {
			t.Fatalf("cycle %d: expected denial before minimum elapsed", i)
		}

		clock.Advance(9 * time.Second)
		if err := c.Bang(); err == nil {
			t.Fatalf("cycle %d: expected denial at 9s", i)
		}

		clock.Advance(1 * time.Second)
		if err := c.Bang(); err != nil {
			t.Fatalf("cycle %d: expected success at 10s, got %v", i, err)
		}
		if c.State() != w {
			t.Errorf("cycle %d: expected %s, got %s", i, w, c.State())
		}
	}
}

func TestDenialReturnsTooSoonError(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, nil, 10*time.Second, 0, clock.Now)

	clock.Advance(3 * time.Second)
	err := c.Set(StateOff)

	var tooSoon *TooSoonError
	if !errors.As(err, &tooSoon) {
		t.Fatalf("expected *TooSoonError, got %v", err)
	}
	if tooSoon.From != StateOn {
		t.Errorf("From: expected ON, got %s", tooSoon.From)
	}
	if tooSoon.To != StateOff {
		t.Errorf("To: expected OFF, got %s", tooSoon.To)
	}
	if tooSoon.Remaining != 7*time.Second {
		t.Errorf("Remaining: expected 7s, got %v", tooSoon.Remaining)
	}
}

func TestDenialLeavesTimestampUnchanged(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, nil, 10*time.Second, 0, clock.Now)

	// Repeated denials must not shift the dwell window.
	for i := 0; i < 5; i++ {
		clock.Advance(1 * time.Second)
		if err := c.Bang(); err == nil {
			t.Fatalf("attempt %d: expected denial", i)
		}
	}

	// 5s elapsed in total: exactly 5s should remain.
	if got := c.Remaining(); got != 5*time.Second {
		t.Errorf("Remaining: expected 5s, got %v", got)
	}

	clock.Advance(5 * time.Second)
	if err := c.Bang(); err != nil {
		t.Fatalf("expected success once the original window elapsed, got %v", err)
	}
}

func TestSameStateSetDoesNotResetWindow(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, nil, 10*time.Second, 0, clock.Now)

	// Re-asserting the current state mid-window is a no-op success.
	clock.Advance(5 * time.Second)
	if err := c.Set(StateOn); err != nil {
		t.Fatalf("same-state set: unexpected error: %v", err)
	}

	// The no-op must not have restarted the ON window.
	clock.Advance(5 * time.Second)
	if err := c.Set(StateOff); err != nil {
		t.Fatalf("expected success 10s after construction, got %v", err)
	}
	if !c.IsOff() {
		t.Errorf("expected OFF, got %s", c.State())
	}
}

func TestClockRegressionDenies(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, nil, 10*time.Second, 0, clock.Now)

	clock.Advance(15 * time.Second)
	// The window has elapsed, but the clock then jumps backwards past the
	// construction instant. Elapsed time saturates at zero: deny.
	clock.Advance(-20 * time.Second)

	err := c.Bang()
	var tooSoon *TooSoonError
	if !errors.As(err, &tooSoon) {
		t.Fatalf("expected *TooSoonError after clock regression, got %v", err)
	}
	if tooSoon.Remaining != 10*time.Second {
		t.Errorf("Remaining: expected full 10s, got %v", tooSoon.Remaining)
	}
	if !c.IsOn() {
		t.Errorf("state changed on denied bang: %s", c.State())
	}
}

func TestHandlerVetoAfterConstraintMet(t *testing.T) {
	vetoErr := errors.New("relay fault")
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, func() error { return vetoErr }, 10*time.Second, 0, clock.Now)

	clock.Advance(10 * time.Second)
	if err := c.Bang(); !errors.Is(err, vetoErr) {
		t.Fatalf("expected veto error, got %v", err)
	}
	if !c.IsOn() {
		t.Errorf("state changed on vetoed bang: %s", c.State())
	}

	// The veto must not have consumed the window: once the fault clears
	// the transition goes through without further waiting.
	if got := c.Remaining(); got != 0 {
		t.Errorf("Remaining after veto: expected 0, got %v", got)
	}
}

func TestRemaining(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOff, nil, nil, 0, 10*time.Second, clock.Now)

	if got := c.Remaining(); got != 10*time.Second {
		t.Errorf("at t=0: expected 10s, got %v", got)
	}

	clock.Advance(4 * time.Second)
	if got := c.Remaining(); got != 6*time.Second {
		t.Errorf("at t=4s: expected 6s, got %v", got)
	}

	clock.Advance(6 * time.Second)
	if got := c.Remaining(); got != 0 {
		t.Errorf("at t=10s: expected 0, got %v", got)
	}

	clock.Advance(time.Hour)
	if got := c.Remaining(); got != 0 {
		t.Errorf("long after window: expected 0, got %v", got)
	}
}

func TestRemainingUnconstrainedState(t *testing.T) {
	clock := newFakeClock()
	c := NewTimedOnOff(StateOn, nil, nil, 0, 10*time.Second, clock.Now)

	// ON carries no minimum, so nothing is remaining while ON.
	if got := c.Remaining(); got != 0 {
		t.Errorf("expected 0 for unconstrained state, got %v", got)
	}
}

// TestDwellScenario walks the canonical timeline: minimum 10s in both
// states, created ON at t=0.
func TestDwellScenario(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	c := NewTimedOnOff(StateOn, nil, nil, 10*time.Second, 10*time.Second, clock.Now)

	steps := []struct {
		at        time.Duration
		wantErr   bool
		wantState State
	}{
		{5 * time.Second, true, StateOn},   // 5s elapsed, denied
		{10 * time.Second, false, StateOff}, // window met, commits
		{15 * time.Second, true, StateOff},  // only 5s since last change
		{20 * time.Second, false, StateOn},  // window met again
	}

	for i, step := range steps {
		clock.now = start.Add(step.at)
		err := c.Bang()
		if step.wantErr && err == nil {
			t.Fatalf("step %d (t=%v): expected denial", i, step.at)
		}
		if !step.wantErr && err != nil {
			t.Fatalf("step %d (t=%v): unexpected error: %v", i, step.at, err)
		}
		if c.State() != step.wantState {
			t.Errorf("step %d (t=%v): expected %s, got %s", i, step.at, step.wantState, c.State())
		}
	}
}
