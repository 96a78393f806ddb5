package app

import (
	"runtime"
	"sync/atomic"
)

// Task is the capability of code running outside interrupt context: it may
// block on a mutex and may hand buffers to the transport. Only task-context
// entry points (WriteUser, task/HCI controller writes, the flush tick,
// ProcessDeferred, teardown) create one, and Channel.appendPending demands it.
type Task struct{ _ struct{} }

// ISR is the capability of interrupt-context producers. Code holding only an
// ISR may write into an active buffer under the critical section and raise
// pending bits; it can never reach the transport.
type ISR struct{ _ struct{} }

// spinLock is the interrupt-safe critical section guarding the ISR channel.
// Holders keep it for a bounded number of instructions and never block while
// holding it.
type spinLock struct {
	held atomic.Bool
}

func (l *spinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	l.held.Store(false)
}
