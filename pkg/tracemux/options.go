package tracemux

import (
	"io"

	"github.com/bft-labs/tracemux/pkg/log"
)

// Option configures optional behavior of Tracemux.
type Option func(*options)

// options holds the collaborators of a Tracemux instance.
type options struct {
	transport TransportSink
	logger    log.Logger
	callout   func()
	dump      io.Writer
	watchdog  func()
	clock     Clock
	hook      TransitionHook
	plugins   []Plugin
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithTransport sets the transport sink. It is required.
func WithTransport(sink TransportSink) Option {
	return func(o *options) {
		o.transport = sink
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDeferredCallout replaces the built-in deferred worker. fn is called,
// possibly from interrupt context, whenever work is pending; the owner must
// then call ProcessDeferred from a non-interrupt context. fn must not block.
func WithDeferredCallout(fn func()) Option {
	return func(o *options) {
		o.callout = fn
	}
}

// WithDumpWriter sets the blocking output used by DumpAll.
// Defaults to os.Stderr.
func WithDumpWriter(w io.Writer) Option {
	return func(o *options) {
		o.dump = w
	}
}

// WithWatchdog sets a hook fed every Config.WatchdogEvery dumped bytes.
func WithWatchdog(feed func()) Option {
	return func(o *options) {
		o.watchdog = feed
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithTransitionHook installs an observer of every buffer state change.
// The hook may run on the transport's completion goroutine and must not block.
func WithTransitionHook(h TransitionHook) Option {
	return func(o *options) {
		o.hook = h
	}
}

// WithPlugin registers a plugin to be initialized by Init.
// Plugins are initialized in registration order and shutdown in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
