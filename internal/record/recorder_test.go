package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/strikeline/padmon/internal/wire"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func sample(base int) wire.Sample {
	var s wire.Sample
	for i := range s {
		s[i] = wire.Reading{Triggered: i == 0, Raw: base + i}
	}
	return s
}

func TestStartWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	r, err := Start(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		r.Record(ts.Add(time.Duration(i)*time.Millisecond), sample(100*i))
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	st := r.Status()
	if st.Rows != 3 {
		t.Errorf("rows = %d, want 3", st.Rows)
	}
	if st.Session.ID == "" {
		t.Error("session id is empty")
	}
	if !strings.HasPrefix(st.Session.Path, dir) {
		t.Errorf("session path %q not under %q", st.Session.Path, dir)
	}

	f, err := os.Open(st.Session.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 { // header + 3 samples
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Header, ",") {
		t.Errorf("header = %v", rows[0])
	}

	// Rows appear in order with no gaps or duplicates.
	for i := 1; i < len(rows); i++ {
		base := 100 * (i - 1)
		if rows[i][1] != "T" || rows[i][2] != fmt.Sprint(base) {
			t.Errorf("row %d = %v", i, rows[i])
		}
		if rows[i][8] != fmt.Sprint(base+3) {
			t.Errorf("row %d last raw = %s, want %d", i, rows[i][8], base+3)
		}
	}
}

func TestFilenameEmbedsStartTime(t *testing.T) {
	dir := t.TempDir()
	r, err := Start(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	name := filepath.Base(r.Status().Session.Path)
	if !strings.HasPrefix(name, "drum_log_") || !strings.HasSuffix(name, ".csv") {
		t.Errorf("filename = %q", name)
	}
}

type failAfterWriter struct {
	n      int
	writes int
}

func (w *failAfterWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.n {
		return 0, errors.New("disk full")
	}
	return len(p), nil
}

func (w *failAfterWriter) Close() error { return nil }

func TestRecorderFailureLatches(t *testing.T) {
	// The header flush is the sink's first write; every later flush fails.
	r, err := newRecorder(&failAfterWriter{n: 1}, Session{ID: "t", Path: "t.csv"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Now()
	for i := 0; i < 10*flushEvery; i++ {
		r.Record(ts, sample(i)) // must never panic or block
	}
	_ = r.Stop()

	st := r.Status()
	if !st.Failed {
		t.Fatal("recorder did not latch failed state")
	}
	if st.Active {
		t.Error("failed recorder still reports active")
	}
	if st.Error == "" {
		t.Error("failed recorder has no error message")
	}

	// Rows after the latch are dropped silently, not counted forever.
	before := r.Status().Rows
	r.Record(ts, sample(0))
	if r.Status().Rows != before {
		t.Error("failed recorder kept counting rows")
	}
}

func TestRecordAfterStopIsNoop(t *testing.T) {
	dir := t.TempDir()
	r, err := Start(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}

	r.Record(time.Now(), sample(1))
	if r.Status().Rows != 0 {
		t.Error("record after stop was not dropped")
	}
	if err := r.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()

	files, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Fatalf("empty dir listed %d files", len(files))
	}

	r, err := Start(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	r.Record(time.Now(), sample(0))
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	// Unrelated files are not listed.
	if err := os.WriteFile(dir+"/notes.txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err = List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("listed %d files, want 1", len(files))
	}
	if files[0].SizeBytes == 0 {
		t.Error("listed file has zero size")
	}
}
