package ports

import "time"

// WaitForever makes WaitAllDone block until every submission completes.
const WaitForever time.Duration = -1

// TransportSink transmits transaction buffers asynchronously.
type TransportSink interface {
	// Submit queues b for transmission and returns without waiting for it.
	// On success the sink owns b until it passes b to the completion
	// callback, exactly once. On error the caller keeps b and no callback
	// fires for it.
	Submit(b []byte) error

	// OnComplete registers the completion callback. It is set once, before
	// the first Submit. The callback may run on any goroutine and must not block.
	OnComplete(cb func(b []byte))

	// WaitAllDone blocks until no submission is outstanding or timeout
	// elapses. A negative timeout waits forever.
	WaitAllDone(timeout time.Duration) error

	// Close releases the underlying device. It is called after WaitAllDone.
	Close() error
}
