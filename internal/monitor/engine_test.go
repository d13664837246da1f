package monitor

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/strikeline/padmon/internal/port"
	"github.com/strikeline/padmon/internal/wire"
)

func newTestEngine(t *testing.T, opts Options) (*Engine, *port.FakePort) {
	t.Helper()

	f := port.NewFakePort()
	opts.Logger = log.New(io.Discard, "", 0)
	opts.Open = func(string) (port.Port, error) { return f, nil }
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Millisecond
	}

	e, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Disconnect() })
	return e, f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestIngestKeepsNewest(t *testing.T) {
	e, f := newTestEngine(t, Options{Capacity: 2})

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}

	f.FeedLine("F,0,F,0,F,0,F,0")
	f.FeedLine("T,4095,F,0,F,0,F,0")
	f.FeedLine("this is not a sample")
	f.FeedLine("F,10,T,20,F,30,F,40")

	waitFor(t, "3 samples and 1 decode failure", func() bool {
		s := e.Latest()
		return s.Samples == 3 && s.DecodeFailures == 1
	})

	snap := e.Latest()
	if snap.Status.State != StateConnected {
		t.Errorf("state = %s, want CONNECTED after a decode failure", snap.Status.State)
	}

	// Capacity 2, so each channel holds exactly the two newest readings.
	want := []wire.Reading{{Triggered: true, Raw: 4095}, {Triggered: false, Raw: 10}}
	got := snap.Channels[0].Entries
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("channel 0 entries = %v, want %v", got, want)
	}
	if snap.Channels[1].Entries[1] != (wire.Reading{Triggered: true, Raw: 20}) {
		t.Errorf("channel 1 newest = %v", snap.Channels[1].Entries[1])
	}
}

func TestFirmwareChatterIsNotAFailure(t *testing.T) {
	e, f := newTestEngine(t, Options{})

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}

	f.FeedLine("[boot] pad controller v2.1")
	f.FeedLine("F,1,F,2,F,3,F,4")

	waitFor(t, "one sample", func() bool { return e.Latest().Samples == 1 })

	if n := e.Latest().DecodeFailures; n != 0 {
		t.Errorf("decode failures = %d, want 0 for bracketed chatter", n)
	}
}

func TestConnectEmptyPort(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	st, err := e.Connect("")
	if !errors.Is(err, ErrEmptyPort) {
		t.Fatalf("err = %v, want ErrEmptyPort", err)
	}
	if st.State != StateDisconnected {
		t.Errorf("state = %s, want DISCONNECTED unchanged", st.State)
	}
}

func TestConnectOpenFailureThenRetry(t *testing.T) {
	f := port.NewFakePort()
	calls := 0
	e, err := New(Options{
		Logger:      log.New(io.Discard, "", 0),
		ReadTimeout: 5 * time.Millisecond,
		Open: func(string) (port.Port, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("no such device")
			}
			return f, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Disconnect()

	st, err := e.Connect("/dev/fake")
	if err == nil {
		t.Fatal("expected open error")
	}
	if st.State != StateError || st.Reason == "" {
		t.Fatalf("status = %+v, want ERROR with reason", st)
	}

	// Error is a valid starting point for another attempt.
	st, err = e.Connect("/dev/fake")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if st.State != StateConnected {
		t.Errorf("retry state = %s, want CONNECTED", st.State)
	}
}

func TestConnectWhileConnectedIsNoop(t *testing.T) {
	e, f := newTestEngine(t, Options{})

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}
	st, err := e.Connect("/dev/other")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateConnected || st.Port != "/dev/fake" {
		t.Errorf("second connect changed status: %+v", st)
	}
	// Only the original start-stream command went out.
	if got := f.Writes(); got != "2000\n" {
		t.Errorf("writes = %q", got)
	}
}

func TestDisconnect(t *testing.T) {
	e, f := newTestEngine(t, Options{})

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}
	f.FeedLine("F,1,F,2,F,3,F,4")
	waitFor(t, "one sample", func() bool { return e.Latest().Samples == 1 })

	st := e.Disconnect()
	if st.State != StateDisconnected {
		t.Fatalf("state = %s, want DISCONNECTED", st.State)
	}
	if !f.Closed() {
		t.Error("port left open after disconnect")
	}
	if !strings.HasSuffix(f.Writes(), "2001\n") {
		t.Errorf("no stop-stream command sent, writes = %q", f.Writes())
	}

	// History survives the disconnect; only a new connection clears it.
	if got := e.Latest().Samples; got != 1 {
		t.Errorf("samples after disconnect = %d, want 1", got)
	}

	// Disconnecting again is harmless.
	if st := e.Disconnect(); st.State != StateDisconnected {
		t.Errorf("second disconnect state = %s", st.State)
	}
}

func TestDisconnectDuringConnect(t *testing.T) {
	f := port.NewFakePort()
	opening := make(chan struct{})
	release := make(chan struct{})

	e, err := New(Options{
		Logger:      log.New(io.Discard, "", 0),
		ReadTimeout: 5 * time.Millisecond,
		Open: func(string) (port.Port, error) {
			close(opening)
			<-release
			return f, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	result := make(chan Status, 1)
	go func() {
		st, _ := e.Connect("/dev/fake")
		result <- st
	}()

	// Tear down while the open is still in flight. The disconnect must win:
	// when the open completes, the port is closed and discarded.
	<-opening
	if st := e.Disconnect(); st.State != StateDisconnected {
		t.Fatalf("disconnect state = %s", st.State)
	}
	close(release)

	if st := <-result; st.State != StateDisconnected {
		t.Errorf("connect returned %s, want DISCONNECTED after teardown", st.State)
	}
	if st := e.Status(); st.State != StateDisconnected {
		t.Errorf("final state = %s, want DISCONNECTED", st.State)
	}
	if !f.Closed() {
		t.Error("port left open after disconnect won the race")
	}
}

func TestConcurrentConnectOpensOnce(t *testing.T) {
	f := port.NewFakePort()
	var mu sync.Mutex
	opens := 0

	e, err := New(Options{
		Logger:      log.New(io.Discard, "", 0),
		ReadTimeout: 5 * time.Millisecond,
		Open: func(string) (port.Port, error) {
			mu.Lock()
			opens++
			mu.Unlock()
			return f, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Disconnect()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Connect("/dev/fake")
		}()
	}
	wg.Wait()

	mu.Lock()
	if opens != 1 {
		t.Errorf("port opened %d times, want 1", opens)
	}
	mu.Unlock()

	if st := e.Status(); st.State != StateConnected {
		t.Errorf("state = %s, want CONNECTED", st.State)
	}
}

func TestReadFailure(t *testing.T) {
	e, f := newTestEngine(t, Options{})

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}
	f.FailReads(errors.New("device unplugged"))

	waitFor(t, "error state", func() bool { return e.Status().State == StateError })

	st := e.Status()
	if !strings.Contains(st.Reason, "device unplugged") {
		t.Errorf("reason = %q", st.Reason)
	}
	if !f.Closed() {
		t.Error("port left open after read failure")
	}
}

func TestStallTimeout(t *testing.T) {
	e, f := newTestEngine(t, Options{
		StallTimeout: 40 * time.Millisecond,
	})

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}

	// Bytes keep arriving but never form a valid sample.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				f.FeedLine("????????")
			}
		}
	}()

	waitFor(t, "stall error", func() bool { return e.Status().State == StateError })

	if st := e.Status(); !strings.Contains(st.Reason, "timeout") {
		t.Errorf("reason = %q, want a timeout reason", st.Reason)
	}
}

func TestGarbageThenSilenceIsNotAStall(t *testing.T) {
	e, f := newTestEngine(t, Options{
		StallTimeout: 30 * time.Millisecond,
	})

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}

	// One burst of garbage, then nothing. The stall check only applies
	// while bytes keep arriving, so the link stays up as idle.
	f.FeedLine("not a sample")
	waitFor(t, "decode failure", func() bool { return e.Latest().DecodeFailures == 1 })

	time.Sleep(100 * time.Millisecond)
	if st := e.Status(); st.State != StateConnected {
		t.Errorf("state = %s, want CONNECTED for an idle link", st.State)
	}
}

func TestLatestIsCachedBetweenChanges(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	a := e.Latest()
	b := e.Latest()
	if a.Seq != b.Seq {
		t.Fatalf("seq moved with no activity: %d then %d", a.Seq, b.Seq)
	}
	if a.Samples != b.Samples || a.Status != b.Status {
		t.Error("back-to-back snapshots differ")
	}

	if err := e.SetThresholds([wire.NumChannels]int{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if c := e.Latest(); c.Seq == b.Seq {
		t.Error("seq did not advance after a threshold change")
	}
}

func TestClear(t *testing.T) {
	e, f := newTestEngine(t, Options{})

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}
	f.FeedLine("F,1,F,2,F,3,F,4")
	f.FeedLine("junk")
	waitFor(t, "ingest", func() bool {
		s := e.Latest()
		return s.Samples == 1 && s.DecodeFailures == 1
	})

	e.Clear()

	snap := e.Latest()
	if snap.Samples != 0 || snap.DecodeFailures != 0 {
		t.Errorf("counters after clear = %d/%d", snap.Samples, snap.DecodeFailures)
	}
	for i, ch := range snap.Channels {
		if len(ch.Entries) != 0 {
			t.Errorf("channel %d not empty after clear", i)
		}
	}
	if snap.Status.State != StateConnected {
		t.Errorf("clear changed connection state to %s", snap.Status.State)
	}
}

func TestSetCapacity(t *testing.T) {
	e, f := newTestEngine(t, Options{Capacity: 5})

	for _, n := range []int{0, -1, MaxCapacity + 1} {
		if err := e.SetCapacity(n); err == nil {
			t.Errorf("SetCapacity(%d) succeeded, want error", n)
		}
	}

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}
	f.FeedLine("F,1,F,1,F,1,F,1")
	f.FeedLine("F,2,F,2,F,2,F,2")
	f.FeedLine("F,3,F,3,F,3,F,3")
	waitFor(t, "3 samples", func() bool { return e.Latest().Samples == 3 })

	if err := e.SetCapacity(2); err != nil {
		t.Fatal(err)
	}

	snap := e.Latest()
	if snap.Capacity != 2 {
		t.Errorf("capacity = %d, want 2", snap.Capacity)
	}
	got := snap.Channels[0].Entries
	if len(got) != 2 || got[0].Raw != 2 || got[1].Raw != 3 {
		t.Errorf("entries after shrink = %v, want newest two", got)
	}
}

func TestSetThresholds(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	if err := e.SetThresholds([wire.NumChannels]int{0, 0, 0, 9999}); err == nil {
		t.Error("out-of-range threshold accepted")
	}

	want := [wire.NumChannels]int{100, 200, 300, 400}
	if err := e.SetThresholds(want); err != nil {
		t.Fatal(err)
	}
	snap := e.Latest()
	for i, ch := range snap.Channels {
		if ch.Threshold != want[i] {
			t.Errorf("channel %d threshold = %d, want %d", i, ch.Threshold, want[i])
		}
	}
}

func TestHitCallbackFiresOnRisingEdgeOnly(t *testing.T) {
	var mu sync.Mutex
	var hits []int

	e, f := newTestEngine(t, Options{
		OnHit: func(ch wire.Channel, r wire.Reading) {
			mu.Lock()
			hits = append(hits, r.Raw)
			mu.Unlock()
			if ch.Label != wire.Channels[1].Label {
				t.Errorf("hit on %q, want channel 1", ch.Label)
			}
		},
	})

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}

	// Rise, hold, release, rise again: two hits.
	f.FeedLine("F,0,F,0,F,0,F,0")
	f.FeedLine("F,0,T,600,F,0,F,0")
	f.FeedLine("F,0,T,650,F,0,F,0")
	f.FeedLine("F,0,F,0,F,0,F,0")
	f.FeedLine("F,0,T,700,F,0,F,0")

	waitFor(t, "5 samples", func() bool { return e.Latest().Samples == 5 })

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 2 || hits[0] != 600 || hits[1] != 700 {
		t.Errorf("hits = %v, want [600 700]", hits)
	}
}

func TestStateCallbackSequence(t *testing.T) {
	var mu sync.Mutex
	var states []State

	f := port.NewFakePort()
	e, err := New(Options{
		Logger:      log.New(io.Discard, "", 0),
		ReadTimeout: 5 * time.Millisecond,
		Open:        func(string) (port.Port, error) { return f, nil },
		OnState: func(st Status) {
			mu.Lock()
			states = append(states, st.State)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}
	e.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnecting, StateConnected, StateDisconnected}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestRecordingLifecycle(t *testing.T) {
	e, f := newTestEngine(t, Options{})
	dir := t.TempDir()

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}

	session, err := e.StartRecording(dir)
	if err != nil {
		t.Fatal(err)
	}
	if session.ID == "" || session.Path == "" {
		t.Fatalf("session = %+v", session)
	}
	if _, err := e.StartRecording(dir); !errors.Is(err, ErrRecording) {
		t.Fatalf("second start err = %v, want ErrRecording", err)
	}

	// The rejected start never touched the disk: no header-only stray file,
	// and no collision with the live stream's second-resolution filename.
	files, err := filepath.Glob(filepath.Join(dir, "drum_log_*.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("files on disk = %v, want only the active stream", files)
	}

	f.FeedLine("T,500,F,0,F,0,F,0")
	f.FeedLine("F,0,F,0,F,0,F,0")
	waitFor(t, "recorded rows", func() bool { return e.Latest().Recorder.Rows == 2 })

	st := e.StopRecording()
	if st.Active {
		t.Error("recorder still active after stop")
	}
	if st.Rows != 2 {
		t.Errorf("rows = %d, want 2", st.Rows)
	}

	// With the recorder stopped, further samples are not recorded.
	f.FeedLine("F,1,F,1,F,1,F,1")
	waitFor(t, "3 samples", func() bool { return e.Latest().Samples == 3 })
	if got := e.Latest().Recorder.Rows; got != 2 {
		t.Errorf("rows after stop = %d, want 2", got)
	}

	// Stopping with nothing active is a quiet no-op.
	_ = e.StopRecording()
}

func TestDeviceSettingsThroughEngine(t *testing.T) {
	e, f := newTestEngine(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := e.ReadDeviceSettings(ctx); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}

	if _, err := e.Connect("/dev/fake"); err != nil {
		t.Fatal(err)
	}

	go func() {
		for !strings.HasSuffix(f.Writes(), "1000\n") {
			time.Sleep(time.Millisecond)
		}
		f.FeedLine("0:800")
		f.FeedLine("9:1")
	}()

	settings, err := e.ReadDeviceSettings(ctx)
	if err != nil {
		t.Fatalf("ReadDeviceSettings: %v", err)
	}
	if settings[0] != 800 || settings[9] != 1 {
		t.Errorf("settings = %v", settings)
	}

	// The exchange pauses and then restarts the sample stream.
	w := f.Writes()
	if !strings.Contains(w, "2001\n1000\n") || !strings.HasSuffix(w, "2000\n") {
		t.Errorf("command sequence = %q", w)
	}

	// Bad settings are rejected before touching the device.
	if err := e.WriteDeviceSettings(ctx, map[int]int{99: 1}); err == nil {
		t.Error("unknown setting key accepted")
	}
}
