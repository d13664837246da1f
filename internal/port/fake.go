package port

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by FakePort reads and writes after Close.
var ErrClosed = errors.New("port: closed")

// FakePort is an in-memory Port for tests. Test code feeds bytes with Feed
// or FeedLine; the code under test reads them back with real timeout
// semantics (a Read past the timeout returns 0, nil like go.bug.st does).
// Writes are captured for assertions.
type FakePort struct {
	mu      sync.Mutex
	rbuf    bytes.Buffer
	wbuf    bytes.Buffer
	closed  bool
	readErr error
	timeout time.Duration
	notify  chan struct{}
}

// NewFakePort returns an empty fake with no read timeout set.
func NewFakePort() *FakePort {
	return &FakePort{notify: make(chan struct{}, 1)}
}

// FeedLine queues one protocol line (terminator appended) for reading.
func (f *FakePort) FeedLine(line string) {
	f.Feed([]byte(line + "\n"))
}

// Feed queues raw bytes for reading.
func (f *FakePort) Feed(b []byte) {
	f.mu.Lock()
	f.rbuf.Write(b)
	f.mu.Unlock()
	f.wake()
}

// FailReads makes every subsequent Read return err, simulating a device
// unplug or driver failure.
func (f *FakePort) FailReads(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
	f.wake()
}

// Writes returns everything written to the port so far.
func (f *FakePort) Writes() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wbuf.String()
}

// Closed reports whether Close has been called.
func (f *FakePort) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakePort) Read(p []byte) (int, error) {
	deadline := time.Now().Add(f.currentTimeout())
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return 0, ErrClosed
		}
		if f.readErr != nil {
			err := f.readErr
			f.mu.Unlock()
			return 0, err
		}
		if f.rbuf.Len() > 0 {
			n, _ := f.rbuf.Read(p)
			f.mu.Unlock()
			return n, nil
		}
		f.mu.Unlock()

		wait := time.Until(deadline)
		if wait <= 0 {
			return 0, nil // timeout tick, matching serial semantics
		}
		select {
		case <-f.notify:
		case <-time.After(wait):
			return 0, nil
		}
	}
}

func (f *FakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}
	return f.wbuf.Write(p)
}

func (f *FakePort) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wake()
	return nil
}

func (f *FakePort) SetReadTimeout(t time.Duration) error {
	f.mu.Lock()
	f.timeout = t
	f.mu.Unlock()
	return nil
}

func (f *FakePort) ResetInputBuffer() error {
	f.mu.Lock()
	f.rbuf.Reset()
	f.mu.Unlock()
	return nil
}

func (f *FakePort) currentTimeout() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timeout <= 0 {
		return 20 * time.Millisecond
	}
	return f.timeout
}

func (f *FakePort) wake() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}
