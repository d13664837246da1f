package monitor

import (
	"github.com/strikeline/padmon/internal/record"
	"github.com/strikeline/padmon/internal/wire"
)

// ChannelTrace is one channel's identity plus its recent history, oldest
// first.
type ChannelTrace struct {
	Channel   wire.Channel   `json:"channel"`
	Threshold int            `json:"threshold"`
	Entries   []wire.Reading `json:"entries"`
}

// Snapshot is a self-consistent view of the whole engine: connection
// status, counters, and every channel history, all taken under one lock.
// Seq increases on every observable change, so consumers can cheaply skip
// snapshots they have already seen.
type Snapshot struct {
	Status         Status                         `json:"status"`
	Seq            uint64                         `json:"seq"`
	Samples        uint64                         `json:"samples"`
	DecodeFailures uint64                         `json:"decode_failures"`
	Capacity       int                            `json:"capacity"`
	Channels       [wire.NumChannels]ChannelTrace `json:"channels"`
	Recorder       record.Status                  `json:"recorder"`
}

// Latest returns the current snapshot. If nothing changed since the last
// call the cached snapshot is returned as-is, so back-to-back calls during
// a quiet stream are both cheap and identical.
func (e *Engine) Latest() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cached != nil && e.cachedVersion == e.version {
		// Histories and counters are pinned by the version, but the recorder
		// advances its row count on its own clock.
		snap := *e.cached
		if e.recorder != nil {
			snap.Recorder = e.recorder.Status()
		}
		return snap
	}

	snap := Snapshot{
		Status:         e.status,
		Seq:            e.version,
		Samples:        e.samples,
		DecodeFailures: e.decodeFailures,
		Capacity:       e.rings[0].Cap(),
	}
	for i, r := range e.rings {
		snap.Channels[i] = ChannelTrace{
			Channel:   wire.Channels[i],
			Threshold: e.thresholds[i],
			Entries:   r.Snapshot(),
		}
	}
	if e.recorder != nil {
		snap.Recorder = e.recorder.Status()
	}

	e.cached = &snap
	e.cachedVersion = e.version
	return snap
}
