// Package record writes decoded samples to durable CSV record streams, one
// file per recording session. A recorder that hits a write failure latches
// into a failed state and reports it once; ingestion is never affected.
package record

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strikeline/padmon/internal/wire"
)

// Header is the record stream schema: a leading timestamp, then trigger
// flag and raw value per channel in wire order. Column order is the single
// source of truth for readers of these files.
var Header = []string{
	"timestamp",
	"ka_left_triggered", "ka_left_raw",
	"don_left_triggered", "don_left_raw",
	"don_right_triggered", "don_right_raw",
	"ka_right_triggered", "ka_right_raw",
}

// flushEvery bounds how many rows can sit in the write buffer before a
// flush, so a crash loses at most a fraction of a second of data at full
// sample rate.
const flushEvery = 64

// Session identifies one recording.
type Session struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"started_at"`
}

// Status is a point-in-time view of a recorder, safe to serve over the API.
type Status struct {
	Active  bool    `json:"active"`
	Failed  bool    `json:"failed"`
	Error   string  `json:"error,omitempty"`
	Rows    uint64  `json:"rows"`
	Session Session `json:"session"`
}

// Recorder appends samples to one CSV record stream. Safe for concurrent
// use; Record is called from the ingestion loop while Stop and Status come
// from API handlers.
type Recorder struct {
	log *log.Logger

	mu      sync.Mutex
	wc      io.WriteCloser
	buf     *bufio.Writer
	w       *csv.Writer
	session Session
	rows    uint64
	failed  bool
	err     error
	closed  bool
}

// Start opens a new record stream in dir, named by the session start time
// the way the controller's desktop tool names its logs.
func Start(dir string, logger *log.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}

	now := time.Now()
	name := fmt.Sprintf("drum_log_%s.csv", now.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create record stream: %w", err)
	}

	r, err := newRecorder(f, Session{
		ID:        uuid.NewString(),
		Path:      path,
		StartedAt: now,
	}, logger)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return r, nil
}

// newRecorder wires a recorder onto an arbitrary sink and writes the header
// row. Split from Start so tests can inject failing writers.
func newRecorder(wc io.WriteCloser, session Session, logger *log.Logger) (*Recorder, error) {
	buf := bufio.NewWriter(wc)
	w := csv.NewWriter(buf)

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := buf.Flush(); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &Recorder{
		log:     logger,
		wc:      wc,
		buf:     buf,
		w:       w,
		session: session,
	}, nil
}

// Record appends one sample row stamped with ts. After a write failure the
// recorder drops rows silently; the failure was already reported.
func (r *Recorder) Record(ts time.Time, s wire.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failed || r.closed {
		return
	}

	row := make([]string, 0, len(Header))
	row = append(row, ts.Format(time.RFC3339Nano))
	for _, reading := range s {
		row = append(row, wire.TriggerToken(reading.Triggered), strconv.Itoa(reading.Raw))
	}

	if err := r.w.Write(row); err != nil {
		r.fail(err)
		return
	}
	r.rows++

	if r.rows%flushEvery == 0 {
		r.w.Flush()
		if err := r.buf.Flush(); err != nil {
			r.fail(err)
		}
	}
}

// Stop flushes buffered rows and closes the stream. Stopping an already
// failed or stopped recorder is a no-op returning the latched error.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return r.err
	}
	r.closed = true

	if !r.failed {
		r.w.Flush()
		if err := r.w.Error(); err != nil {
			r.fail(err)
		} else if err := r.buf.Flush(); err != nil {
			r.fail(err)
		}
	}

	if err := r.wc.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

// Status returns the recorder's current state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		Active:  !r.closed && !r.failed,
		Failed:  r.failed,
		Rows:    r.rows,
		Session: r.session,
	}
	if r.err != nil {
		st.Error = r.err.Error()
	}
	return st
}

// fail latches the failed state and reports it once. Callers hold r.mu.
func (r *Recorder) fail(err error) {
	if r.failed {
		return
	}
	r.failed = true
	r.err = err
	r.log.Printf("record: stream %s failed after %d rows: %v", r.session.Path, r.rows, err)
}
