package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestHitPayload(t *testing.T) {
	h := Hit{
		Timestamp: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
		Channel:   "Don Left",
		Raw:       612,
	}

	b, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["channel"] != "Don Left" {
		t.Errorf("channel = %v", decoded["channel"])
	}
	if decoded["raw"] != float64(612) {
		t.Errorf("raw = %v", decoded["raw"])
	}
	if decoded["timestamp"] != "2026-08-24T12:00:00Z" {
		t.Errorf("timestamp = %v", decoded["timestamp"])
	}
}

func TestFakeRecordsHits(t *testing.T) {
	f := NewFake()

	if err := f.PublishHit(Hit{Channel: "Ka Left", Raw: 480}); err != nil {
		t.Fatal(err)
	}
	if err := f.PublishHit(Hit{Channel: "Ka Right", Raw: 500}); err != nil {
		t.Fatal(err)
	}

	hits := f.Hits()
	if len(hits) != 2 || hits[0].Channel != "Ka Left" || hits[1].Raw != 500 {
		t.Errorf("hits = %v", hits)
	}

	f.FailWith(errors.New("broker down"))
	if err := f.PublishHit(Hit{}); err == nil {
		t.Error("expected publish failure")
	}
	if len(f.Hits()) != 2 {
		t.Error("failed publish was recorded")
	}

	f.Close()
	if !f.Closed() {
		t.Error("fake not closed")
	}
}
