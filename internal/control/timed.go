package control

import "time"

// TimedOnOff wraps a bare OnOff and refuses to leave a state before that
// state's minimum time-in-state has elapsed. This is the anti-short-cycle
// guard: a boiler that just fired stays on for at least minimumOn, and once
// off stays off for at least minimumOff.
type TimedOnOff struct {
	inner       *OnOff
	minimumOn   time.Duration
	minimumOff  time.Duration
	lastChanged time.Time
	now         func() time.Time
}

// NewTimedOnOff creates a time-constrained controller in the given initial
// state. minimumOn and minimumOff are the minimum durations the controller
// must spend in ON and OFF before the next transition away is permitted;
// zero disables the constraint for that state. now supplies the current
// time and must be monotonic; the creation instant counts as the first
// transition, so a fresh controller is already inside its dwell window.
func NewTimedOnOff(initial State, handleOn, handleOff Handler, minimumOn, minimumOff time.Duration, now func() time.Time) *TimedOnOff {
	return &TimedOnOff{
		inner:       NewOnOff(initial, handleOn, handleOff),
		minimumOn:   minimumOn,
		minimumOff:  minimumOff,
		lastChanged: now(),
		now:         now,
	}
}

// State returns the most recently committed state.
func (c *TimedOnOff) State() State {
	return c.inner.State()
}

// Set transitions to next, provided the current state's minimum
// time-in-state has elapsed. Setting the current state is a no-op success:
// it is not a transition, runs no handler, passes no dwell check, and does
// not touch the last-changed timestamp. A refused call returns
// *TooSoonError and leaves everything unchanged.
func (c *TimedOnOff) Set(next State) error {
	current := c.inner.State()
	if next == current {
		return nil
	}

	if min := c.minimum(current); min > 0 {
		elapsed := elapsedSince(c.lastChanged, c.now())
		if elapsed < min {
			return &TooSoonError{
				From:      current,
				To:        next,
				Remaining: min - elapsed,
			}
		}
	}

	if err := c.inner.Set(next); err != nil {
		return err
	}
	c.lastChanged = c.now()
	return nil
}

// Bang flips the state, subject to the same time-in-state check as Set.
func (c *TimedOnOff) Bang() error {
	return c.Set(c.State().Opposite())
}

// IsOn reports whether the controller is in the ON state.
func (c *TimedOnOff) IsOn() bool {
	return c.inner.IsOn()
}

// IsOff reports whether the controller is in the OFF state.
func (c *TimedOnOff) IsOff() bool {
	return c.inner.IsOff()
}

// Remaining returns how long until a transition away from the current
// state is permitted. Zero means a transition is allowed now.
func (c *TimedOnOff) Remaining() time.Duration {
	min := c.minimum(c.inner.State())
	if min == 0 {
		return 0
	}
	elapsed := elapsedSince(c.lastChanged, c.now())
	if elapsed >= min {
		return 0
	}
	return min - elapsed
}

// minimum returns the time-in-state constraint for the given state.
func (c *TimedOnOff) minimum(s State) time.Duration {
	if s == StateOn {
		return c.minimumOn
	}
	return c.minimumOff
}

// elapsedSince computes now - last, saturating at zero. A clock that
// reports an instant before the last transition means the injected now
// function is misbehaving; treating the elapsed time as zero keeps a
// constrained transition denied rather than spuriously granted.
func elapsedSince(last, now time.Time) time.Duration {
	if now.Before(last) {
		return 0
	}
	return now.Sub(last)
}
