// Package app wires together the HTTP server, WebSocket hub, and the serial
// ingestion engine. It owns the daemon's lifecycle: auto-connect at startup,
// periodic snapshot broadcasts, heartbeats, and orderly shutdown.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/strikeline/padmon/internal/config"
	"github.com/strikeline/padmon/internal/monitor"
	"github.com/strikeline/padmon/internal/mqtt"
	"github.com/strikeline/padmon/internal/port"
	"github.com/strikeline/padmon/internal/telemetry"
	"github.com/strikeline/padmon/internal/wire"
	"github.com/strikeline/padmon/internal/ws"
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string

	// Open overrides the serial opener, used by tests. Nil means real ports.
	Open port.Opener
	// Publisher receives hit events. Nil disables external publishing.
	Publisher mqtt.Publisher
}

// App is the top-level daemon process. It manages the HTTP server, the
// WebSocket event hub, and the ingestion engine.
type App struct {
	log       *log.Logger
	bind      string
	server    *http.Server
	startedAt time.Time
	engine    *monitor.Engine
	hub       *ws.Hub
	publisher mqtt.Publisher

	cfgMu      sync.Mutex
	cfg        config.Config
	configPath string

	logBufMu sync.Mutex
	logBuf   []logEntry
}

// logEntry is one line of the in-memory log ring served at /api/logs.
type logEntry struct {
	TS      string `json:"ts"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

const logBufSize = 500

// New creates an App. Call Run to start serving.
func New(opts Options) (*App, error) {
	a := &App{
		log:        opts.Logger,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		hub:        ws.NewHub(),
		publisher:  opts.Publisher,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
	}

	var thresholds [wire.NumChannels]int
	copy(thresholds[:], opts.Cfg.Display.Thresholds)

	engine, err := monitor.New(monitor.Options{
		Logger:       opts.Logger,
		Open:         opts.Open,
		Capacity:     opts.Cfg.History.Capacity,
		Thresholds:   thresholds,
		StallTimeout: time.Duration(opts.Cfg.Serial.StallTimeoutMS) * time.Millisecond,
		OnState:      a.onState,
		OnHit:        a.onHit,
	})
	if err != nil {
		return nil, err
	}
	a.engine = engine

	a.hub.OnRegister = func() any {
		return telemetry.StateChange{
			Event:  telemetry.Event{Type: telemetry.EventState, TS: telemetry.NowTS()},
			Status: engine.Status(),
		}
	}
	return a, nil
}

// Run starts the HTTP server, WebSocket hub, heartbeat and snapshot tickers,
// and connects to the configured port if one is set. It blocks until the
// context is cancelled or the server returns an error.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" {
		bind = a.getConfig().Server.Bind
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.log.Printf("listening on http://%s", bind)

	go a.hub.Run(ctx)
	go a.heartbeatLoop(ctx)
	go a.snapshotLoop(ctx)

	if p := a.getConfig().Serial.Port; p != "" {
		// Startup auto-connect is best effort; the device may not be
		// plugged in yet, and a client can connect it later.
		if _, err := a.engine.Connect(p); err != nil {
			a.logf("warn", "auto-connect %s: %v", p, err)
		}
	}

	go func() {
		<-ctx.Done()
		a.log.Printf("shutdown requested")
		if st := a.engine.StopRecording(); st.Session.ID != "" && st.Rows > 0 {
			a.log.Printf("closed recording %s (%d rows)", st.Session.Path, st.Rows)
		}
		a.engine.Disconnect()
		if a.publisher != nil {
			a.publisher.Close()
		}
		_ = a.server.Shutdown(context.Background())
	}()

	return a.server.Serve(ln)
}

func (a *App) getConfig() config.Config {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	return a.cfg
}

// onState broadcasts every connection state change and records it in the
// log ring.
func (a *App) onState(st monitor.Status) {
	a.hub.BroadcastJSON(telemetry.StateChange{
		Event:  telemetry.Event{Type: telemetry.EventState, TS: telemetry.NowTS()},
		Status: st,
	})
	if st.Reason != "" {
		a.logf("error", "connection %s: %s", st.State, st.Reason)
	} else {
		a.logf("info", "connection %s", st.State)
	}
}

// onHit forwards trigger rising edges to the WebSocket clients and, when
// configured, to the external broker.
func (a *App) onHit(ch wire.Channel, r wire.Reading) {
	a.hub.BroadcastJSON(telemetry.Hit{
		Event:   telemetry.Event{Type: telemetry.EventHit, TS: telemetry.NowTS()},
		Channel: ch.Label,
		Raw:     r.Raw,
	})
	if a.publisher != nil {
		if err := a.publisher.PublishHit(mqtt.Hit{
			Timestamp: time.Now().UTC(),
			Channel:   ch.Label,
			Raw:       r.Raw,
		}); err != nil {
			a.logf("warn", "publish hit: %v", err)
		}
	}
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.hub.BroadcastJSON(telemetry.Heartbeat{
				Event:         telemetry.Event{Type: telemetry.EventHeartbeat, TS: telemetry.NowTS()},
				State:         a.engine.Status().State,
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
			})
		}
	}
}

// snapshotLoop decimates the sample stream for WebSocket clients: at most
// one snapshot event per interval, and none at all while nothing changes.
func (a *App) snapshotLoop(ctx context.Context) {
	interval := time.Duration(a.getConfig().Server.SnapshotIntervalMS) * time.Millisecond
	t := time.NewTicker(interval)
	defer t.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			snap := a.engine.Latest()
			if snap.Seq == lastSeq {
				continue
			}
			lastSeq = snap.Seq
			a.hub.BroadcastJSON(snapshotEvent(snap))
		}
	}
}

// snapshotEvent reduces a full engine snapshot to the newest reading per
// channel plus the counters.
func snapshotEvent(snap monitor.Snapshot) telemetry.SampleSnapshot {
	ev := telemetry.SampleSnapshot{
		Event:          telemetry.Event{Type: telemetry.EventSnapshot, TS: telemetry.NowTS()},
		Seq:            snap.Seq,
		Samples:        snap.Samples,
		DecodeFailures: snap.DecodeFailures,
	}
	for i, ch := range snap.Channels {
		s := telemetry.ChannelSample{
			Label:     ch.Channel.Label,
			Threshold: ch.Threshold,
		}
		if n := len(ch.Entries); n > 0 {
			s.Triggered = ch.Entries[n-1].Triggered
			s.Raw = ch.Entries[n-1].Raw
		}
		ev.Channels[i] = s
	}
	return ev
}

// logf writes to the daemon log, appends to the in-memory ring, and
// broadcasts a log event.
func (a *App) logf(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.log.Printf("%s", msg)

	a.logBufMu.Lock()
	a.logBuf = append(a.logBuf, logEntry{TS: telemetry.NowTS(), Level: level, Message: msg})
	if len(a.logBuf) > logBufSize {
		a.logBuf = a.logBuf[len(a.logBuf)-logBufSize:]
	}
	a.logBufMu.Unlock()

	a.hub.BroadcastJSON(telemetry.LogLine{
		Event:   telemetry.Event{Type: telemetry.EventLog, TS: telemetry.NowTS()},
		Level:   level,
		Message: msg,
	})
}
