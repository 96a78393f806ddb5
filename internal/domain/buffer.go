package domain

import (
	"fmt"
	"sync/atomic"

	"github.com/bft-labs/tracemux/pkg/frame"
)

// BufferState is the tri-state flag of a TransactionBuffer.
type BufferState uint32

const (
	// BufferAvailable means the buffer is idle and accepts appends.
	BufferAvailable BufferState = iota
	// BufferNeedQueue means the buffer must be submitted before further writes.
	BufferNeedQueue
	// BufferInQueue means the buffer is lent to the transport and is read-only.
	BufferInQueue
)

// String returns a human-readable representation of the state.
func (s BufferState) String() string {
	switch s {
	case BufferAvailable:
		return "AVAILABLE"
	case BufferNeedQueue:
		return "NEED_QUEUE"
	case BufferInQueue:
		return "IN_QUEUE"
	default:
		return "UNKNOWN"
	}
}

// next reports whether to is the single legal successor of s.
func (s BufferState) next(to BufferState) bool {
	switch s {
	case BufferAvailable:
		return to == BufferNeedQueue
	case BufferNeedQueue:
		return to == BufferInQueue
	case BufferInQueue:
		return to == BufferAvailable
	}
	return false
}

// TransitionHook observes every successful buffer state change.
// It may be called from the transport completion path and must not block.
type TransitionHook func(b *TransactionBuffer, from, to BufferState)

// TransactionBuffer is a fixed-capacity byte buffer plus a tri-state flag.
//
// Content is written only while the buffer is Available, by the one producer
// that holds the owning channel's lock. While InQueue the transport reads the
// bytes and nothing writes them. Length and flag are atomics: a recycled
// buffer has its length cleared before the flag returns to Available, so a
// reader that observes Available never sees bytes from the prior submission.
type TransactionBuffer struct {
	id     int
	state  atomic.Uint32
	length atomic.Uint32
	data   []byte

	// frames and payload count the data frames the buffer currently holds;
	// carriedFrames and carriedBytes are the loss totals reported by loss
	// frames it holds. All four belong to whoever owns the buffer in its
	// current state.
	frames        int
	payload       int
	carriedFrames int
	carriedBytes  int

	hook TransitionHook
}

// NewTransactionBuffer allocates an Available buffer of the given capacity.
func NewTransactionBuffer(id, capacity int) *TransactionBuffer {
	return &TransactionBuffer{id: id, data: make([]byte, capacity)}
}

// SetTransitionHook installs an observer. It must be set before the buffer is shared.
func (b *TransactionBuffer) SetTransitionHook(h TransitionHook) { b.hook = h }

// ID returns the buffer identifier.
func (b *TransactionBuffer) ID() int { return b.id }

// Cap returns the buffer capacity in bytes.
func (b *TransactionBuffer) Cap() int { return len(b.data) }

// Len returns the number of bytes currently held.
func (b *TransactionBuffer) Len() int { return int(b.length.Load()) }

// Free returns the remaining capacity.
func (b *TransactionBuffer) Free() int { return len(b.data) - b.Len() }

// State returns the current flag.
func (b *TransactionBuffer) State() BufferState { return BufferState(b.state.Load()) }

// Bytes returns the held bytes. The slice aliases the buffer.
func (b *TransactionBuffer) Bytes() []byte { return b.data[:b.Len()] }

// Owns reports whether p is the start of this buffer's storage, which is how
// the transport identifies a buffer in its completion callback.
func (b *TransactionBuffer) Owns(p []byte) bool {
	return len(p) > 0 && len(b.data) > 0 && &p[0] == &b.data[0]
}

// Held returns the number of data frames and payload bytes currently held.
// Loss report frames are not counted.
func (b *TransactionBuffer) Held() (frames, payload int) { return b.frames, b.payload }

// Carried returns the loss totals announced by loss report frames held in the buffer.
func (b *TransactionBuffer) Carried() (frames, bytes int) { return b.carriedFrames, b.carriedBytes }

// Append encodes one frame at the end of the buffer and returns its size.
// The caller holds the channel lock, the buffer is Available, and Free()
// is at least frame.Size(len(primary)+len(appended)).
func (b *TransactionBuffer) Append(hdr frame.Header, primary, appended []byte) int {
	off := b.Len()
	n := frame.Encode(b.data[off:], hdr, primary, appended)
	if hdr.Source == frame.SourceLossReport {
		if r, err := frame.ParseLossReport(primary); err == nil {
			b.carriedFrames += int(r.Frames)
			b.carriedBytes += int(r.Bytes)
		}
	} else {
		b.frames++
		b.payload += len(primary) + len(appended)
	}
	b.length.Store(uint32(off + n))
	return n
}

// MarkNeedQueue moves an Available buffer to NeedQueue.
func (b *TransactionBuffer) MarkNeedQueue() error {
	return b.transition(BufferAvailable, BufferNeedQueue)
}

// BeginSubmit moves a NeedQueue buffer to InQueue. It fails for an empty
// buffer, which is left in NeedQueue.
func (b *TransactionBuffer) BeginSubmit() error {
	if b.Len() == 0 {
		return fmt.Errorf("buffer %d: submit empty: %w", b.id, ErrIllegalTransition)
	}
	return b.transition(BufferNeedQueue, BufferInQueue)
}

// Complete returns an InQueue buffer to Available after the transport is done
// with it. Length is cleared before the flag flips.
func (b *TransactionBuffer) Complete() error {
	return b.release()
}

// Recycle is the fail-open path: a buffer whose submission failed is forced
// back to Available and its content discarded.
func (b *TransactionBuffer) Recycle() error {
	return b.release()
}

func (b *TransactionBuffer) release() error {
	if b.State() != BufferInQueue {
		return fmt.Errorf("buffer %d: release from %s: %w", b.id, b.State(), ErrIllegalTransition)
	}
	b.frames, b.payload = 0, 0
	b.carriedFrames, b.carriedBytes = 0, 0
	b.length.Store(0)
	return b.transition(BufferInQueue, BufferAvailable)
}

// transition is the only place the flag changes.
func (b *TransactionBuffer) transition(from, to BufferState) error {
	if !from.next(to) || !b.state.CompareAndSwap(uint32(from), uint32(to)) {
		return fmt.Errorf("buffer %d: %s -> %s (state %s): %w", b.id, from, to, b.State(), ErrIllegalTransition)
	}
	if b.hook != nil {
		b.hook(b, from, to)
	}
	return nil
}
