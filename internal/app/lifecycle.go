package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/tracemux/internal/domain"
	"github.com/bft-labs/tracemux/pkg/log"
)

// WorkerTimeout bounds how long teardown waits for internal goroutines.
const WorkerTimeout = 5 * time.Second

var errWorkerTimeout = errors.New("tracemux: worker shutdown timeout")

// State represents the lifecycle state of a multiplexer.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateClosed
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Lifecycle manages the state machine of a multiplexer. A multiplexer is
// started once and closed once; Closed and Failed are terminal.
type Lifecycle struct {
	mu     sync.Mutex
	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger log.Logger
}

// NewLifecycle creates a new lifecycle manager in StateStopped.
func NewLifecycle(logger log.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// State returns the current lifecycle state. It is lock-free so producers
// can check it on every write.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// Running reports whether producers may write.
func (l *Lifecycle) Running() bool {
	return l.State() == StateRunning
}

// TransitionTo attempts to transition to a new state.
// Returns an error if the transition is not valid.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.State()

	var err error
	switch oldState {
	case StateStopped:
		if newState != StateStarting {
			err = domain.ErrNotRunning
		}
	case StateStarting:
		if newState != StateRunning && newState != StateFailed {
			err = domain.ErrAlreadyRunning
		}
	case StateRunning:
		if newState != StateStopping {
			err = domain.ErrAlreadyRunning
		}
	case StateStopping:
		if newState != StateClosed {
			err = domain.ErrNotRunning
		}
	default:
		err = domain.ErrNotRunning
	}
	if err != nil {
		l.mu.Unlock()
		return err
	}

	l.state.Store(int32(newState))
	l.mu.Unlock()

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

// SetCancel stores the cancel function of the internal workers' context.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel stops the internal workers.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// AddWorker increments the worker count.
func (l *Lifecycle) AddWorker() {
	l.wg.Add(1)
}

// WorkerDone decrements the worker count.
func (l *Lifecycle) WorkerDone() {
	l.wg.Done()
}

// WaitWithTimeout waits for all workers to finish with a timeout.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("worker shutdown timeout",
			log.Duration("timeout", timeout),
		)
		return errWorkerTimeout
	}
}
