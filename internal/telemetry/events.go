// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between padmond and its clients: connection state
// changes, decimated sample snapshots, pad hits, and recording lifecycle.
package telemetry

import (
	"time"

	"github.com/strikeline/padmon/internal/monitor"
	"github.com/strikeline/padmon/internal/record"
	"github.com/strikeline/padmon/internal/wire"
)

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventState     EventType = "state"
	EventSnapshot  EventType = "snapshot"
	EventHit       EventType = "hit"
	EventRecording EventType = "recording"
	EventLog       EventType = "log"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type EventType `json:"type"`
	TS   string    `json:"ts"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         monitor.State `json:"state"`
	UptimeSeconds int64         `json:"uptime_seconds"`
}

// StateChange is emitted whenever the serial connection moves between
// states (e.g. CONNECTING -> CONNECTED, CONNECTED -> ERROR).
type StateChange struct {
	Event
	Status monitor.Status `json:"status"`
}

// ChannelSample is the newest reading for one channel at snapshot time.
type ChannelSample struct {
	Label     string `json:"label"`
	Triggered bool   `json:"triggered"`
	Raw       int    `json:"raw"`
	Threshold int    `json:"threshold"`
}

// SampleSnapshot is the decimated live view pushed at the snapshot interval:
// the newest reading per channel plus the running counters. Full histories
// stay on the HTTP side; this keeps the socket cheap at device sample rates.
type SampleSnapshot struct {
	Event
	Seq            uint64                          `json:"seq"`
	Samples        uint64                          `json:"samples"`
	DecodeFailures uint64                          `json:"decode_failures"`
	Channels       [wire.NumChannels]ChannelSample `json:"channels"`
}

// Hit is emitted on a channel's trigger rising edge.
type Hit struct {
	Event
	Channel string `json:"channel"`
	Raw     int    `json:"raw"`
}

// Recording reports a recording session starting, stopping, or failing.
type Recording struct {
	Event
	Status record.Status `json:"status"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}
