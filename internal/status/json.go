package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string     `json:"event,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	Relay            string     `json:"relay"`
	LockedForSeconds int64      `json:"locked_for_seconds"`
	UptimeSeconds    int64      `json:"uptime_seconds"`
	StartTime        string     `json:"start_time"`
	Timestamp        string     `json:"timestamp"`
	MQTT             MQTTStatus `json:"mqtt"`
	Counts           CountsJSON `json:"transition_counts"`
	Config           ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	On     int `json:"relay_on"`
	Off    int `json:"relay_off"`
	Denied int `json:"denied"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	MinimumOnMs  int64  `json:"minimum_on_ms"`
	MinimumOffMs int64  `json:"minimum_off_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPPort     string `json:"http_port"`
	Pin          int    `json:"pin"`
	InitialState string `json:"initial_state"`
}

func buildInner(snap Snapshot) StatusInner {
	relay := string(snap.State)
	if relay == "" {
		relay = "UNKNOWN"
	}

	return StatusInner{
		Relay:            relay,
		LockedForSeconds: int64(snap.LockedFor.Truncate(time.Second).Seconds()),
		UptimeSeconds:    int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:        snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:        snap.Now.UTC().Format(time.RFC3339),
		MQTT:             MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			On:     snap.Counts.On,
			Off:    snap.Counts.Off,
			Denied: snap.Counts.Denied,
		},
		Config: ConfigJSON{
			MinimumOnMs:  snap.Config.MinimumOnMs,
			MinimumOffMs: snap.Config.MinimumOffMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPPort:     snap.Config.HTTPPort,
			Pin:          snap.Config.Pin,
			InitialState: snap.Config.InitialState,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
