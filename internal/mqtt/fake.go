package mqtt

import "sync"

// Fake is an in-memory Publisher for tests.
type Fake struct {
	mu     sync.Mutex
	hits   []Hit
	closed bool
	err    error
}

// NewFake returns an empty fake publisher.
func NewFake() *Fake {
	return &Fake{}
}

// FailWith makes every subsequent PublishHit return err.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Hits returns a copy of everything published so far.
func (f *Fake) Hits() []Hit {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Hit, len(f.hits))
	copy(out, f.hits)
	return out
}

// Closed reports whether Close has been called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) PublishHit(h Hit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.hits = append(f.hits, h)
	return nil
}

func (f *Fake) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
