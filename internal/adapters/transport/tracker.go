package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/tracemux/internal/domain"
)

// tracker counts outstanding submissions and delivers completions.
type tracker struct {
	mu      sync.Mutex
	cb      func([]byte)
	n       int
	drained chan struct{}
	closed  bool
}

func (t *tracker) setCallback(cb func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cb = cb
}

// begin runs enqueue under the lock and, if it accepts the buffer, counts
// one more outstanding submission.
func (t *tracker) begin(enqueue func() bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return domain.ErrSinkClosed
	}
	if !enqueue() {
		return domain.ErrSinkBusy
	}
	if t.n == 0 {
		t.drained = make(chan struct{})
	}
	t.n++
	return nil
}

// done hands b back to the owner and retires the submission.
func (t *tracker) done(b []byte) {
	t.mu.Lock()
	cb := t.cb
	t.mu.Unlock()

	if cb != nil {
		cb(b)
	}

	t.mu.Lock()
	t.n--
	if t.n == 0 {
		close(t.drained)
	}
	t.mu.Unlock()
}

func (t *tracker) outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// wait blocks until nothing is outstanding. A negative timeout waits forever.
func (t *tracker) wait(timeout time.Duration) error {
	t.mu.Lock()
	if t.n == 0 {
		t.mu.Unlock()
		return nil
	}
	drained := t.drained
	t.mu.Unlock()

	if timeout < 0 {
		<-drained
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-drained:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %d submissions outstanding after %s", domain.ErrDrainTimeout, t.outstanding(), timeout)
	}
}

// close rejects further submissions. It reports false if already closed.
func (t *tracker) close(after func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.closed = true
	if after != nil {
		after()
	}
	return true
}
