// Package ports defines the interfaces that connect the multiplexer core to
// its external collaborators.
//
// # Port Interfaces
//
//   - [TransportSink]: the DMA-capable serial transmitter that takes a
//     buffer, transmits it asynchronously and reports completion
//   - [DumpWriter]: the blocking low-level byte output used on crash paths
//   - [DeferredCallout]: asks the controller's event loop to call
//     ProcessDeferred from a non-interrupt context
//   - [WatchdogFeeder]: keeps a hardware watchdog alive during long dumps
//
// The application layer (internal/app) depends only on these interfaces.
// Concrete transports live in internal/adapters/transport.
package ports
