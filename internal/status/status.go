// Package status provides a thread-safe status tracker for the boiler-relay
// daemon. It is read by HTTP handlers while the run loop updates it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/boiler-relay/internal/control"
)

// Config contains daemon configuration for display.
type Config struct {
	MinimumOnMs  int64
	MinimumOffMs int64
	HeartbeatMs  int64
	Broker       string
	HTTPPort     string
	Pin          int
	InitialState string
}

// TransitionCounts tracks the number of each transition outcome since startup.
type TransitionCounts struct {
	On     int
	Off    int
	Denied int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	State         control.State
	LockedFor     time.Duration
	Counts        TransitionCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the relay state, the remaining lockout, and the counts.
// Called from runLoop after every command and on every tick.
func (t *Tracker) Update(state control.State, lockedFor time.Duration, counts TransitionCounts) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.LockedFor = lockedFor
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
