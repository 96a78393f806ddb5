package domain

import "errors"

// Domain errors represent error conditions in the tracemux domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Init is called on an initialised multiplexer.
	ErrAlreadyRunning = errors.New("tracemux: already running")

	// ErrNotRunning is returned when Deinit is called on a stopped multiplexer.
	ErrNotRunning = errors.New("tracemux: not running")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("tracemux: invalid configuration")

	// ErrNoTransport is returned when Init is called without a transport sink.
	ErrNoTransport = errors.New("tracemux: no transport")

	// ErrDrainTimeout is returned when outstanding submissions did not
	// complete within the drain timeout during teardown.
	ErrDrainTimeout = errors.New("tracemux: drain timeout")

	// ErrSinkBusy is returned by a transport that cannot queue another buffer.
	ErrSinkBusy = errors.New("tracemux: transport busy")

	// ErrSinkClosed is returned by a transport after Close.
	ErrSinkClosed = errors.New("tracemux: transport closed")

	// ErrIllegalTransition is returned when a buffer state change is not
	// permitted from the current state.
	ErrIllegalTransition = errors.New("tracemux: illegal buffer transition")
)
