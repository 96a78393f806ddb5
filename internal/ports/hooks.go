package ports

import "io"

// DumpWriter is the blocking byte output used by the crash dump.
// It is written to synchronously and never through the TransportSink.
type DumpWriter = io.Writer

// DeferredCallout is invoked, possibly from interrupt context, when work is
// pending for ProcessDeferred. It must not block; it only wakes the loop
// that will call ProcessDeferred.
type DeferredCallout func()

// WatchdogFeeder is called periodically while dumping.
type WatchdogFeeder func()
