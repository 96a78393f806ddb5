// Package domain contains the core entities of tracemux.
//
// This package is the innermost layer. It has no dependencies on the
// transport, logging or configuration and contains only the buffer state
// machine and the error taxonomy.
//
// # Entities
//
//   - [TransactionBuffer]: a fixed-capacity byte buffer handed to the
//     transport, guarded by a tri-state flag
//   - [BufferState]: AVAILABLE, NEED_QUEUE or IN_QUEUE
//
// # State machine
//
// Valid transitions:
//   - Available -> NeedQueue (buffer full, or flushed with data)
//   - NeedQueue -> InQueue (submitted to the transport)
//   - InQueue -> Available (completion, or fail-open recycle on submit error)
//
// Every transition goes through a single compare-and-swap on the state cell,
// so a producer and the completion callback can never both win a transition
// out of the same state.
package domain
