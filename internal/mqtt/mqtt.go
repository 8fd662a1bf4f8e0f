// Package mqtt provides MQTT command intake and event publishing with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/boiler-relay/internal/control"
)

// TopicCommand is the MQTT topic the daemon listens on for relay commands.
const TopicCommand = "energy/boiler/relay/command"

// TopicEvents is the MQTT topic for relay transition events.
const TopicEvents = "energy/boiler/relay/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "energy/boiler/relay/system"

// Command is a relay command received over MQTT.
type Command string

const (
	CommandOn     Command = "ON"
	CommandOff    Command = "OFF"
	CommandToggle Command = "TOGGLE"
)

// ParseCommand parses a raw command payload. Payloads are matched
// case-insensitively with surrounding whitespace ignored.
func ParseCommand(payload []byte) (Command, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "1", "TRUE":
		return CommandOn, nil
	case "OFF", "0", "FALSE":
		return CommandOff, nil
	case "TOGGLE", "BANG":
		return CommandToggle, nil
	}
	return "", fmt.Errorf("unknown command %q", payload)
}

// EventType represents a relay transition outcome.
type EventType string

const (
	EventRelayOn  EventType = "RELAY_ON"
	EventRelayOff EventType = "RELAY_OFF"
	// EventDenied reports a command refused by the minimum
	// time-in-state guard.
	EventDenied EventType = "DENIED"
)

// Event represents a relay transition outcome to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	// State is the relay state after the attempt. For DENIED events it
	// is the state the relay stayed in.
	State control.State
	// Remaining is the lockout left on a DENIED event, zero otherwise.
	Remaining time.Duration
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a relay event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// CommandSource delivers relay commands received from the broker.
type CommandSource interface {
	// Commands returns the channel commands are delivered on.
	Commands() <-chan Command
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Relay RelayPayload `json:"relay"`
}

// RelayPayload contains the relay event details.
type RelayPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	State     string `json:"state"`
	// RetryInSeconds is how long until a denied command would be
	// accepted; present on DENIED events only.
	RetryInSeconds int64 `json:"retry_in_seconds,omitempty"`
}

// FormatPayload creates the JSON payload for a relay event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Relay: RelayPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			State:     string(event.State),
		},
	}
	if event.Type == EventDenied {
		// Round up so a retry at the advertised time is never early.
		payload.Relay.RetryInSeconds = int64((event.Remaining + time.Second - 1) / time.Second)
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
