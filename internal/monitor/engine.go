// Package monitor owns the serial connection to the drum controller and the
// streaming ingestion path: it reads the line protocol, keeps the bounded
// per-channel history, tracks connection health, and publishes consistent
// snapshots to the presentation side.
//
// Two timing domains meet here. The read loop runs in its own goroutine at
// whatever rate the device produces data; everything the presentation side
// does goes through Latest, Clear, and the other exported methods, each a
// short critical section. The read loop never blocks on a consumer.
package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/strikeline/padmon/internal/device"
	"github.com/strikeline/padmon/internal/history"
	"github.com/strikeline/padmon/internal/port"
	"github.com/strikeline/padmon/internal/record"
	"github.com/strikeline/padmon/internal/wire"
)

// State is the connection state machine. Transitions are driven only by
// Connect, Disconnect, and I/O failure in the read loop — never by the
// decoder.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateError        State = "ERROR"
)

// Status is the connection state plus its context.
type Status struct {
	State  State  `json:"state"`
	Port   string `json:"port,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Defaults for Options left zero.
const (
	DefaultCapacity     = 1000
	DefaultStallTimeout = 3 * time.Second
	defaultReadTimeout  = 50 * time.Millisecond
)

// MaxCapacity bounds SetCapacity so a typo can't allocate gigabytes.
const MaxCapacity = 100000

// DefaultThresholds are the display reference values the desktop tool ships
// with, in wire channel order.
var DefaultThresholds = [wire.NumChannels]int{450, 350, 350, 450}

var (
	ErrNotConnected = errors.New("monitor: not connected")
	ErrEmptyPort    = errors.New("monitor: empty port identifier")
	ErrCapacity     = errors.New("monitor: capacity out of range")
	ErrThreshold    = errors.New("monitor: threshold out of range")
	ErrRecording    = errors.New("monitor: recording already active")
)

// Options configures an Engine.
type Options struct {
	Logger *log.Logger
	Open   port.Opener // nil means the real serial opener

	Capacity     int
	Thresholds   [wire.NumChannels]int
	StallTimeout time.Duration // <= 0 disables the sustained-failure check
	ReadTimeout  time.Duration

	// OnState is called after every connection state change.
	OnState func(Status)
	// OnHit is called when a channel's trigger flag rises.
	OnHit func(wire.Channel, wire.Reading)
}

// Engine is the ingestion core. Exactly one serial connection is owned at a
// time.
type Engine struct {
	log          *log.Logger
	open         port.Opener
	readTimeout  time.Duration
	stallTimeout time.Duration
	onState      func(Status)
	onHit        func(wire.Channel, wire.Reading)
	commands     chan command

	mu             sync.Mutex
	status         Status
	rings          [wire.NumChannels]*history.Ring
	thresholds     [wire.NumChannels]int
	lastTriggered  [wire.NumChannels]bool
	samples        uint64
	decodeFailures uint64
	version        uint64 // bumped on any observable mutation
	gen            uint64 // bumped by Disconnect to invalidate in-flight Connects
	recorder       *record.Recorder
	recStarting    bool
	port           port.Port
	dev            *device.Client
	cancel         context.CancelFunc
	done           chan struct{}

	cached        *Snapshot
	cachedVersion uint64
}

// New creates a disconnected engine with empty history buffers.
func New(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "monitor ", log.LstdFlags)
	}
	if opts.Open == nil {
		opts.Open = port.Open
	}
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Capacity < 0 || opts.Capacity > MaxCapacity {
		return nil, ErrCapacity
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.Thresholds == ([wire.NumChannels]int{}) {
		opts.Thresholds = DefaultThresholds
	}

	e := &Engine{
		log:          opts.Logger,
		open:         opts.Open,
		readTimeout:  opts.ReadTimeout,
		stallTimeout: opts.StallTimeout,
		onState:      opts.OnState,
		onHit:        opts.OnHit,
		commands:     make(chan command, 4),
		status:       Status{State: StateDisconnected},
		thresholds:   opts.Thresholds,
	}
	for i := range e.rings {
		r, err := history.NewRing(opts.Capacity)
		if err != nil {
			return nil, err
		}
		e.rings[i] = r
	}
	return e, nil
}

// Connect opens the named port and starts the read loop. Calling it while
// already Connected (or mid-Connecting) is a no-op returning the current
// status. A failed open transitions to Error and returns the cause.
func (e *Engine) Connect(name string) (Status, error) {
	if name == "" {
		return e.Status(), ErrEmptyPort
	}

	e.mu.Lock()
	if e.status.State == StateConnected || e.status.State == StateConnecting {
		st := e.status
		e.mu.Unlock()
		return st, nil
	}
	// Claim the connection slot before dropping the lock: a concurrent
	// Connect sees Connecting and backs off, and a Disconnect issued while
	// the open is in flight bumps gen so the result is discarded below.
	gen := e.gen
	st := Status{State: StateConnecting, Port: name}
	e.status = st
	e.version++
	cb := e.onState
	e.mu.Unlock()
	if cb != nil {
		cb(st)
	}

	p, err := e.open(name)
	if err != nil {
		return e.connectFailed(gen, name, err)
	}
	_ = p.SetReadTimeout(e.readTimeout)
	dev := device.NewClient(p)

	if err := dev.StartStreaming(); err != nil {
		_ = p.Close()
		return e.connectFailed(gen, name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.mu.Lock()
	if e.gen != gen {
		// A Disconnect arrived while the port was opening; its word stands.
		st := e.status
		e.mu.Unlock()
		cancel()
		_ = dev.StopStreaming()
		_ = p.Close()
		return st, nil
	}
	// New connection, new session: history and counters start clean.
	for _, r := range e.rings {
		r.Clear()
	}
	e.samples = 0
	e.decodeFailures = 0
	e.lastTriggered = [wire.NumChannels]bool{}
	e.port, e.dev, e.cancel, e.done = p, dev, cancel, done
	st = Status{State: StateConnected, Port: name}
	e.status = st
	e.version++
	cb = e.onState
	e.mu.Unlock()
	if cb != nil {
		cb(st)
	}
	e.log.Printf("connected to %s at %d baud", name, port.Baud)

	go e.readLoop(ctx, p, dev, done)
	return st, nil
}

// connectFailed records a failed connection attempt, unless a Disconnect
// arrived while the attempt was in flight, in which case its Disconnected
// status is left untouched.
func (e *Engine) connectFailed(gen uint64, name string, err error) (Status, error) {
	e.mu.Lock()
	if e.gen != gen {
		st := e.status
		e.mu.Unlock()
		return st, err
	}
	st := Status{State: StateError, Port: name, Reason: err.Error()}
	e.status = st
	e.version++
	cb := e.onState
	e.mu.Unlock()
	if cb != nil {
		cb(st)
	}
	return st, err
}

// Disconnect closes the connection from any state. It is safe to call at
// any time, returns once the read loop has stopped (bounded by the read
// timeout), and always ends in Disconnected. An active recording session
// is left running; its lifecycle is independent.
func (e *Engine) Disconnect() Status {
	e.mu.Lock()
	e.gen++ // invalidate any Connect still opening its port
	p, dev, cancel, done := e.port, e.dev, e.cancel, e.done
	e.port, e.dev, e.cancel, e.done = nil, nil, nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if p != nil {
		if dev != nil {
			_ = dev.StopStreaming() // best effort; device may be gone
		}
		_ = p.Close() // aborts an in-flight read
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			e.log.Printf("disconnect: read loop did not stop in time")
		}
	}

	st := Status{State: StateDisconnected}
	e.setStatus(st)
	return st
}

// Status returns the current connection status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Clear empties all channel histories and resets the sample and decode
// failure counters. Connection state is untouched.
func (e *Engine) Clear() {
	e.mu.Lock()
	for _, r := range e.rings {
		r.Clear()
	}
	e.samples = 0
	e.decodeFailures = 0
	e.lastTriggered = [wire.NumChannels]bool{}
	e.version++
	e.mu.Unlock()
}

// SetCapacity resizes every channel history. Shrinking keeps the newest
// samples. Invalid capacities are rejected with no state change.
func (e *Engine) SetCapacity(n int) error {
	if n <= 0 || n > MaxCapacity {
		return ErrCapacity
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rings {
		if err := r.Resize(n); err != nil {
			return err
		}
	}
	e.version++
	return nil
}

// SetThresholds replaces the display reference values. They have no effect
// on ingestion; the firmware does its own trigger detection.
func (e *Engine) SetThresholds(t [wire.NumChannels]int) error {
	for _, v := range t {
		if v < 0 || v > wire.MaxRaw {
			return fmt.Errorf("%w: %d", ErrThreshold, v)
		}
	}
	e.mu.Lock()
	e.thresholds = t
	e.version++
	e.mu.Unlock()
	return nil
}

// StartRecording opens a new record stream in dir and attaches it to the
// ingestion path. Only one active recording is allowed; the slot is claimed
// before the file is created, so a duplicate start never touches the disk
// (or collides with the live stream's second-resolution filename).
func (e *Engine) StartRecording(dir string) (record.Session, error) {
	e.mu.Lock()
	if e.recStarting || (e.recorder != nil && e.recorder.Status().Active) {
		e.mu.Unlock()
		return record.Session{}, ErrRecording
	}
	e.recStarting = true
	e.mu.Unlock()

	rec, err := record.Start(dir, e.log)

	e.mu.Lock()
	e.recStarting = false
	if err != nil {
		e.mu.Unlock()
		return record.Session{}, err
	}
	e.recorder = rec
	e.version++
	e.mu.Unlock()

	session := rec.Status().Session
	e.log.Printf("recording to %s", session.Path)
	return session, nil
}

// StopRecording flushes and closes the active record stream, if any.
func (e *Engine) StopRecording() record.Status {
	e.mu.Lock()
	rec := e.recorder
	e.mu.Unlock()

	if rec == nil {
		return record.Status{}
	}
	if err := rec.Stop(); err != nil {
		e.log.Printf("stop recording: %v", err)
	}

	e.mu.Lock()
	e.version++
	e.mu.Unlock()
	return rec.Status()
}

// ReadDeviceSettings fetches the firmware settings table. The exchange runs
// inside the read loop (which owns the port), pausing the sample stream for
// its duration.
func (e *Engine) ReadDeviceSettings(ctx context.Context) (map[int]int, error) {
	res, err := e.sendCommand(ctx, command{kind: cmdReadSettings})
	if err != nil {
		return nil, err
	}
	return res.settings, res.err
}

// WriteDeviceSettings pushes settings to the firmware and saves them to its
// flash.
func (e *Engine) WriteDeviceSettings(ctx context.Context, settings map[int]int) error {
	if err := device.ValidateSettings(settings); err != nil {
		return err
	}
	res, err := e.sendCommand(ctx, command{kind: cmdWriteSettings, settings: settings})
	if err != nil {
		return err
	}
	return res.err
}

// ---------------------------------------------------------------------------
// Read loop
// ---------------------------------------------------------------------------

type commandKind int

const (
	cmdReadSettings commandKind = iota
	cmdWriteSettings
)

// command is a request executed by the read loop between reads, because the
// loop goroutine is the only reader of the port.
type command struct {
	kind     commandKind
	settings map[int]int
	reply    chan commandResult
}

type commandResult struct {
	settings map[int]int
	err      error
}

func (e *Engine) sendCommand(ctx context.Context, cmd command) (commandResult, error) {
	e.mu.Lock()
	connected := e.status.State == StateConnected
	done := e.done
	e.mu.Unlock()
	if !connected || done == nil {
		return commandResult{}, ErrNotConnected
	}

	cmd.reply = make(chan commandResult, 1)
	select {
	case e.commands <- cmd:
	case <-done:
		return commandResult{}, ErrNotConnected
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res, nil
	case <-done:
		return commandResult{}, ErrNotConnected
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}
}

func (e *Engine) readLoop(ctx context.Context, p port.Port, dev *device.Client, done chan struct{}) {
	defer close(done)

	buf := make([]byte, 4096)
	var pending []byte
	lastValid := time.Now()
	lastByte := lastValid

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.commands:
			e.runDeviceCommand(dev, cmd)
			pending = pending[:0]
			lastValid = time.Now() // the stream was paused, not stalled
			lastByte = lastValid
			continue
		default:
		}

		n, err := p.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return // Disconnect closed the port under us
			}
			e.fail(p, fmt.Sprintf("read: %v", err))
			return
		}
		if n > 0 {
			lastByte = time.Now()
			pending = e.drainLines(append(pending, buf[:n]...), &lastValid)
		}

		// A device that keeps sending bytes but no decodable sample for a
		// full window is stuck (mid-reset, wrong mode, garbled link). A link
		// that went quiet is merely idle, however much garbage preceded the
		// silence.
		if e.stallTimeout > 0 && lastByte.Sub(lastValid) > e.stallTimeout {
			e.fail(p, fmt.Sprintf("timeout: no valid sample for %v", e.stallTimeout))
			return
		}
	}
}

// drainLines splits off and processes every complete line in pending,
// returning the unterminated remainder.
func (e *Engine) drainLines(pending []byte, lastValid *time.Time) []byte {
	for {
		idx := bytes.IndexByte(pending, '\n')
		if idx < 0 {
			return pending
		}
		line := strings.TrimSpace(string(pending[:idx]))
		pending = pending[idx+1:]

		if line == "" {
			continue
		}
		if line[0] == '[' {
			continue // firmware diagnostic chatter, not a sample
		}

		s, err := wire.Decode(line)
		if err != nil {
			// Garbled lines are routine on serial links; count and move on.
			e.mu.Lock()
			e.decodeFailures++
			e.version++
			e.mu.Unlock()
			continue
		}

		*lastValid = time.Now()
		e.apply(s)
	}
}

// apply pushes one decoded sample into all four histories atomically, then
// hands it to the recorder and hit callback outside the lock.
func (e *Engine) apply(s wire.Sample) {
	var hits []int

	e.mu.Lock()
	for i := range e.rings {
		e.rings[i].Push(s[i])
	}
	for i, r := range s {
		if r.Triggered && !e.lastTriggered[i] {
			hits = append(hits, i)
		}
		e.lastTriggered[i] = r.Triggered
	}
	e.samples++
	e.version++
	rec := e.recorder
	onHit := e.onHit
	e.mu.Unlock()

	if rec != nil {
		rec.Record(time.Now(), s)
	}
	if onHit != nil {
		for _, i := range hits {
			onHit(wire.Channels[i], s[i])
		}
	}
}

func (e *Engine) runDeviceCommand(dev *device.Client, cmd command) {
	var res commandResult

	if err := dev.StopStreaming(); err != nil {
		res.err = err
		cmd.reply <- res
		return
	}

	switch cmd.kind {
	case cmdReadSettings:
		res.settings, res.err = dev.ReadSettings()
	case cmdWriteSettings:
		res.err = dev.WriteSettings(cmd.settings)
	}

	if err := dev.StartStreaming(); err != nil && res.err == nil {
		res.err = err
	}
	cmd.reply <- res
}

// fail closes the port and degrades to Error. Runs on the read loop
// goroutine only.
func (e *Engine) fail(p port.Port, reason string) {
	_ = p.Close()

	e.mu.Lock()
	if e.port == p {
		e.port, e.dev, e.cancel = nil, nil, nil
	}
	st := Status{State: StateError, Port: e.status.Port, Reason: reason}
	e.status = st
	e.version++
	cb := e.onState
	e.mu.Unlock()

	e.log.Printf("connection failed: %s", reason)
	if cb != nil {
		cb(st)
	}
}

func (e *Engine) setStatus(st Status) {
	e.mu.Lock()
	e.status = st
	e.version++
	cb := e.onState
	e.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}
