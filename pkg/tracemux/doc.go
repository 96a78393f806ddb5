// Package tracemux multiplexes console output and a protocol controller's
// task, interrupt and command-interface logs onto a single asynchronous
// serial transport without ever blocking a producer.
//
// Every channel owns two fixed-size transaction buffers. While one is being
// transmitted the other is filled; when both are busy, records are dropped
// and counted, and the count is reported in-band as a loss report frame.
//
// # Basic Usage
//
//	sink := myTransport() // implements tracemux.TransportSink
//
//	mux, err := tracemux.Init(tracemux.DefaultConfig(),
//	    tracemux.WithTransport(sink),
//	    tracemux.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mux.Deinit()
//
//	mux.WriteUser([]byte("boot ok\n"))
//	mux.WriteControllerFrame(hdr, body, tracemux.FlagISR)
//
// # Interrupt Context
//
// Writes flagged with [FlagISR] never submit to the transport themselves.
// They raise a pending bit and ask for [Tracemux.ProcessDeferred] to run.
// Without [WithDeferredCallout] a built-in goroutine does this; with it, the
// owner is notified and must call ProcessDeferred from its own event loop.
//
// # Crash Path
//
// [Tracemux.DumpAll] writes every buffer as hex to the dump writer
// synchronously. It never touches buffer state or the transport.
//
// # Plugins
//
// Plugins are initialized in registration order by [Init] and shut down in
// reverse order by [Tracemux.Deinit]:
//
//	import "github.com/bft-labs/tracemux/plugins/configwatcher"
//
//	mux, err := tracemux.Init(cfg,
//	    tracemux.WithTransport(sink),
//	    configwatcher.WithConfigWatcher(configwatcher.Config{Path: "tracemux.toml"}),
//	)
//
// # Wire Format
//
// See package github.com/bft-labs/tracemux/pkg/frame.
package tracemux
