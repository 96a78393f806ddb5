package tracemux

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/tracemux/internal/app"
	"github.com/bft-labs/tracemux/pkg/log"
)

// Tracemux is a running multiplexer. Use Init to create one and Deinit to
// tear it down. All methods are safe for concurrent use.
type Tracemux struct {
	mux     *app.Mux
	logger  log.Logger
	plugins []Plugin

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Init builds the channels, starts the flush tick and deferred worker, and
// initializes plugins. On any failure everything already started is torn
// down again and the error is returned.
func Init(cfg Config, opts ...Option) (*Tracemux, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m, err := app.NewMux(cfg, app.Options{
		Sink:     o.transport,
		Logger:   o.logger,
		Callout:  o.callout,
		Dump:     o.dump,
		Watchdog: o.watchdog,
		Clock:    o.clock,
		Hook:     o.hook,
	})
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := m.Start(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	t := &Tracemux{
		mux:     m,
		logger:  o.logger,
		plugins: o.plugins,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	cfg.SetDefaults()
	pluginCfg := PluginConfig{
		Config:     cfg,
		Logger:     o.logger,
		Controller: t,
	}
	for i, p := range t.plugins {
		if err := p.Initialize(ctx, pluginCfg); err != nil {
			t.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			t.shutdownPlugins(t.plugins[:i])
			cancel()
			_ = m.Stop()
			return nil, fmt.Errorf("init: plugin %s: %w", p.Name(), err)
		}
		t.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	return t, nil
}

// Deinit shuts plugins down, drains every channel and waits for the
// transport. Teardown always completes; ErrDrainTimeout reports that some
// submissions were still outstanding when the drain timeout elapsed.
func (t *Tracemux) Deinit() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel == nil {
		return ErrNotRunning
	}

	t.shutdownPlugins(t.plugins)
	cancel()
	return t.mux.Stop()
}

func (t *Tracemux) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			t.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			continue
		}
		t.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
	}
}

// WriteUser frames console output. It never blocks on the transport and
// never fails: records that cannot be buffered are counted as lost.
func (t *Tracemux) WriteUser(p []byte) {
	t.mux.WriteUser(p)
}

// Write implements io.Writer on the console channel so that a Tracemux can
// stand in for os.Stdout. It always reports success.
func (t *Tracemux) Write(p []byte) (int, error) {
	t.mux.WriteUser(p)
	return len(p), nil
}

// WriteControllerFrame frames a controller record made of a primary span
// and an optional appended span. flags select the channel; with FlagISR the
// caller is treated as interrupt context.
func (t *Tracemux) WriteControllerFrame(primary, appended []byte, flags SourceFlags) {
	t.mux.WriteController(primary, appended, flags)
}

// ProcessDeferred performs work requested from interrupt context and by the
// flush tick. Call it from the loop notified by WithDeferredCallout; without
// that option a built-in goroutine calls it.
func (t *Tracemux) ProcessDeferred() {
	t.mux.ProcessDeferred()
}

// DumpAll writes every buffer to the dump writer. Use it only on fatal-error
// paths; it bypasses the transport and never changes buffer state.
func (t *Tracemux) DumpAll() {
	t.mux.DumpAll()
}

// Stats returns per-channel counters: user, task, isr, hci.
func (t *Tracemux) Stats() []ChannelStats {
	return t.mux.Stats()
}

// Policy returns the flush policy in effect.
func (t *Tracemux) Policy() FlushPolicy {
	return t.mux.Policy()
}

// Reconfigure replaces the flush policy at runtime.
func (t *Tracemux) Reconfigure(p FlushPolicy) error {
	return t.mux.Reconfigure(p)
}

// Status returns the current lifecycle state.
func (t *Tracemux) Status() State {
	return t.mux.State()
}
