package tracemux

import (
	"github.com/bft-labs/tracemux/internal/app"
	"github.com/bft-labs/tracemux/internal/domain"
	"github.com/bft-labs/tracemux/internal/ports"
	"github.com/bft-labs/tracemux/pkg/log"
)

// Re-export types so users only import this package.
type (
	// Config holds multiplexer configuration.
	Config = app.Config

	// FlushPolicy controls the periodic flush.
	FlushPolicy = app.FlushPolicy

	// ChannelStats is a snapshot of one channel's counters.
	ChannelStats = app.ChannelStats

	// SourceFlags select the controller channel of a frame.
	SourceFlags = app.SourceFlags

	// State is the lifecycle state of a multiplexer.
	State = app.State

	// TransportSink is the asynchronous transmitter that carries buffers.
	TransportSink = ports.TransportSink

	// Clock provides time and one-shot timers.
	Clock = app.Clock

	// Timer is a cancellable one-shot timer.
	Timer = app.Timer

	// BufferState is the flag of a transaction buffer.
	BufferState = domain.BufferState

	// TransactionBuffer is one half of a channel's ping-pong pair.
	TransactionBuffer = domain.TransactionBuffer

	// TransitionHook observes buffer state changes.
	TransitionHook = domain.TransitionHook

	// Logger is the structured logging interface.
	Logger = log.Logger
)

// Controller frame flags.
const (
	FlagISR = app.FlagISR
	FlagHCI = app.FlagHCI
)

// Lifecycle states.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateClosed   = app.StateClosed
	StateFailed   = app.StateFailed
)

// Buffer states.
const (
	BufferAvailable = domain.BufferAvailable
	BufferNeedQueue = domain.BufferNeedQueue
	BufferInQueue   = domain.BufferInQueue
)

// WaitForever makes a transport drain wait without a deadline.
const WaitForever = ports.WaitForever

// Errors returned by the multiplexer, checkable with errors.Is.
var (
	ErrAlreadyRunning    = domain.ErrAlreadyRunning
	ErrNotRunning        = domain.ErrNotRunning
	ErrInvalidConfig     = domain.ErrInvalidConfig
	ErrNoTransport       = domain.ErrNoTransport
	ErrDrainTimeout      = domain.ErrDrainTimeout
	ErrSinkBusy          = domain.ErrSinkBusy
	ErrSinkClosed        = domain.ErrSinkClosed
	ErrIllegalTransition = domain.ErrIllegalTransition
)

// DefaultConfig returns a configuration with every field defaulted.
func DefaultConfig() Config {
	return app.DefaultConfig()
}
