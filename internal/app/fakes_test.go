package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/tracemux/internal/domain"
	"github.com/bft-labs/tracemux/pkg/frame"
)

// fakeSink records submitted buffers. With auto set, completion fires
// synchronously inside Submit; otherwise completeAll releases them.
type fakeSink struct {
	mu        sync.Mutex
	cb        func([]byte)
	auto      bool
	failNext  int
	submitted [][]byte
	inflight  [][]byte
	closed    bool
}

func (s *fakeSink) Submit(b []byte) error {
	s.mu.Lock()
	if s.failNext > 0 {
		s.failNext--
		s.mu.Unlock()
		return domain.ErrSinkBusy
	}
	s.submitted = append(s.submitted, append([]byte(nil), b...))
	if !s.auto {
		s.inflight = append(s.inflight, b)
		s.mu.Unlock()
		return nil
	}
	cb := s.cb
	s.mu.Unlock()
	cb(b)
	return nil
}

func (s *fakeSink) OnComplete(cb func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
}

func (s *fakeSink) WaitAllDone(time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inflight) > 0 {
		return domain.ErrDrainTimeout
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) completeAll() {
	s.mu.Lock()
	pending := s.inflight
	s.inflight = nil
	cb := s.cb
	s.mu.Unlock()
	for _, b := range pending {
		cb(b)
	}
}

func (s *fakeSink) submissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submitted)
}

// frames decodes every successfully submitted buffer.
func (s *fakeSink) frames(t *testing.T) []frame.Frame {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []frame.Frame
	for _, b := range s.submitted {
		for len(b) > 0 {
			f, n, err := frame.Unmarshal(b)
			require.NoError(t, err)
			out = append(out, f)
			b = b[n:]
		}
	}
	return out
}

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	kept := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.stopped = true
			due = append(due, t)
		default:
			kept = append(kept, t)
		}
	}
	c.timers = kept
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// armed returns the number of timers still waiting.
func (c *fakeClock) armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}
