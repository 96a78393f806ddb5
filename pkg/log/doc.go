// Package log provides the logging abstraction used by tracemux.
//
// The multiplexer core logs lifecycle changes, transport submission failures
// and drain timeouts. It never logs from interrupt-context write paths or
// from transport completion callbacks.
//
// # Usage
//
// Use the zerolog adapter:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or the no-op logger for tests:
//
//	logger := log.NewNoopLogger()
//
// Child loggers carry fields for every message they emit:
//
//	chLog := logger.With(log.String("channel", "controller-isr"))
package log
