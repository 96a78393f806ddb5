package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/tracemux/internal/domain"
	"github.com/bft-labs/tracemux/internal/ports"
	"github.com/bft-labs/tracemux/pkg/frame"
	"github.com/bft-labs/tracemux/pkg/log"
)

// ChannelID identifies one of the multiplexer's channels.
type ChannelID int

const (
	// ChannelUser carries console output.
	ChannelUser ChannelID = iota
	// ChannelTask carries controller task-level logs.
	ChannelTask
	// ChannelISR carries controller interrupt-level logs.
	ChannelISR
	// ChannelHCI carries controller command-interface logs.
	ChannelHCI

	numChannels
)

// SourceFlags select the controller channel of a frame.
type SourceFlags uint8

const (
	// FlagISR marks a frame written from interrupt context. It takes
	// precedence over FlagHCI.
	FlagISR SourceFlags = 1 << iota
	// FlagHCI marks a command-interface frame.
	FlagHCI
)

// Options are the collaborators of a Mux.
type Options struct {
	Sink     ports.TransportSink
	Logger   log.Logger
	Callout  ports.DeferredCallout
	Dump     ports.DumpWriter
	Watchdog ports.WatchdogFeeder
	Clock    Clock
	Hook     domain.TransitionHook
}

// Mux multiplexes the console and controller producers onto one transport.
//
// Console, controller task and command-interface writes take their channel's
// mutex and submit directly. Interrupt-context writes take only the spin lock,
// and leave submission to ProcessDeferred.
type Mux struct {
	cfg     Config
	sink    ports.TransportSink
	logger  log.Logger
	callout ports.DeferredCallout
	clock   Clock

	life     *Lifecycle
	sched    *Scheduler
	channels [numChannels]*Channel

	userMu  sync.Mutex
	taskMu  sync.Mutex
	hciMu   sync.Mutex
	isrLock spinLock

	dumper   *dumper
	userLast atomic.Int64
	wake     chan struct{}
}

// NewMux builds the channels and registers the completion callback. The
// multiplexer does not accept writes until Start.
func NewMux(cfg Config, opts Options) (*Mux, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Sink == nil {
		return nil, domain.ErrNoTransport
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Dump == nil {
		opts.Dump = os.Stderr
	}

	m := &Mux{
		cfg:     cfg,
		sink:    opts.Sink,
		logger:  opts.Logger,
		callout: opts.Callout,
		clock:   opts.Clock,
		life:    NewLifecycle(opts.Logger),
		dumper:  newDumper(opts.Dump, opts.Watchdog, cfg.WatchdogEvery),
		wake:    make(chan struct{}, 1),
	}

	specs := [numChannels]struct {
		spec ChannelSpec
		lock sync.Locker
	}{
		ChannelUser: {ChannelSpec{"user", frame.SourceUserAlt, frame.TypeUser, cfg.UserBufferSize}, &m.userMu},
		ChannelTask: {ChannelSpec{"task", frame.SourceUser, frame.TypeControllerTask, cfg.TaskBufferSize}, &m.taskMu},
		ChannelISR:  {ChannelSpec{"isr", frame.SourceControllerISR, frame.TypeControllerISR, cfg.ISRBufferSize}, &m.isrLock},
		ChannelHCI:  {ChannelSpec{"hci", frame.SourceControllerHCI, frame.TypeControllerHCI, cfg.HCIBufferSize}, &m.hciMu},
	}
	for id, s := range specs {
		m.channels[id] = NewChannel(s.spec, s.lock, opts.Sink, opts.Logger, opts.Hook)
	}

	m.sched = NewScheduler(opts.Clock, FlushPolicy{Interval: cfg.FlushInterval, IdleTimeout: cfg.IdleTimeout}, m.onFlushTick)
	opts.Sink.OnComplete(m.onComplete)
	return m, nil
}

// State returns the lifecycle state.
func (m *Mux) State() State {
	return m.life.State()
}

// Channel returns the channel with the given id.
func (m *Mux) Channel(id ChannelID) *Channel {
	return m.channels[id]
}

// Start opens the multiplexer for writes and starts the flush tick and, when
// no deferred callout was supplied, the deferred worker.
func (m *Mux) Start() error {
	if err := m.life.TransitionTo(StateStarting, "init"); err != nil {
		return err
	}

	m.userLast.Store(m.clock.Now().UnixNano())
	if m.callout == nil {
		ctx, cancel := context.WithCancel(context.Background())
		m.life.SetCancel(cancel)
		m.life.AddWorker()
		go m.runDeferred(ctx)
	}
	m.sched.Start()

	if err := m.life.TransitionTo(StateRunning, "init complete"); err != nil {
		m.sched.Stop()
		m.life.Cancel()
		_ = m.life.TransitionTo(StateFailed, err.Error())
		return err
	}
	return nil
}

// Stop closes the multiplexer: it stops the tick and the deferred worker,
// drains every channel, waits for the transport and closes it. Teardown
// always completes; ErrDrainTimeout is returned if outstanding submissions
// did not finish in time.
func (m *Mux) Stop() error {
	if err := m.life.TransitionTo(StateStopping, "deinit"); err != nil {
		return err
	}

	m.sched.Stop()
	m.life.Cancel()
	if err := m.life.WaitWithTimeout(WorkerTimeout); err != nil {
		m.logger.Warn("deferred worker did not stop", log.Err(err))
	}

	t := Task{}
	m.processDeferred(t, m.sched.take()|pendingFlush)
	m.flushChannel(t, m.channels[ChannelUser])
	// An ISR write that passed the Running check before Stop raises its bit
	// after leaving the ISR lock, possibly after the take above. The ISR
	// flush ran under that lock once the state left Running, so the buffer
	// it marked is already submitted; only the stale bit remains.
	m.sched.take()

	var drainErr error
	if err := m.sink.WaitAllDone(m.cfg.DrainTimeout); err != nil {
		m.logger.Warn("transport drain incomplete",
			log.Err(err),
			log.Duration("timeout", m.cfg.DrainTimeout),
		)
		drainErr = err
		if !errors.Is(err, domain.ErrDrainTimeout) {
			drainErr = fmt.Errorf("%w: %v", domain.ErrDrainTimeout, err)
		}
	}
	if err := m.sink.Close(); err != nil {
		m.logger.Warn("transport close failed", log.Err(err))
	}

	_ = m.life.TransitionTo(StateClosed, "deinit complete")
	return drainErr
}

// WriteUser frames console output. It never blocks on the transport and
// never fails; records that cannot be buffered are counted as lost.
func (m *Mux) WriteUser(p []byte) {
	m.writeTask(Task{}, m.channels[ChannelUser], frame.SourceUserAlt, p, nil)
	m.userLast.Store(m.clock.Now().UnixNano())
}

// WriteController frames a controller record made of up to two spans.
// With FlagISR the caller is treated as interrupt context.
func (m *Mux) WriteController(primary, appended []byte, flags SourceFlags) {
	switch {
	case flags&FlagISR != 0:
		m.writeISR(ISR{}, primary, appended)
	case flags&FlagHCI != 0:
		m.writeTask(Task{}, m.channels[ChannelHCI], frame.SourceControllerHCI, primary, appended)
	default:
		m.writeTask(Task{}, m.channels[ChannelTask], frame.SourceUser, primary, appended)
	}
}

func (m *Mux) writeTask(t Task, c *Channel, src frame.Source, primary, appended []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !m.life.Running() {
		return
	}
	if c.write(src, primary, appended) {
		_ = c.appendPending(t)
	}
}

func (m *Mux) writeISR(_ ISR, primary, appended []byte) {
	c := m.channels[ChannelISR]
	needAppend := false

	c.lock.Lock()
	if m.life.Running() {
		needAppend = c.write(frame.SourceControllerISR, primary, appended)
	}
	c.lock.Unlock()

	if needAppend && m.sched.raise(pendingISRAppend) {
		m.notify()
	}
}

// ProcessDeferred performs work requested from interrupt context and by the
// flush tick. It must be called from a non-interrupt context.
func (m *Mux) ProcessDeferred() {
	if !m.life.Running() {
		return
	}
	m.processDeferred(Task{}, m.sched.take())
}

func (m *Mux) processDeferred(t Task, bits uint32) {
	isr := m.channels[ChannelISR]
	if bits&pendingISRAppend != 0 {
		isr.lock.Lock()
		_ = isr.appendPending(t)
		isr.lock.Unlock()
	}
	if bits&pendingFlush != 0 {
		m.flushChannel(t, m.channels[ChannelTask])
		m.flushChannel(t, m.channels[ChannelHCI])
		m.flushChannel(t, isr)
	}
}

// flushChannel reports pending loss and forces out any buffered bytes.
func (m *Mux) flushChannel(t Task, c *Channel) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.writeLoss()
	c.flush()
	_ = c.appendPending(t)
}

func (m *Mux) onFlushTick() {
	if !m.life.Running() {
		return
	}
	idle := m.clock.Now().Sub(time.Unix(0, m.userLast.Load()))
	if idle >= m.sched.Policy().IdleTimeout {
		m.flushChannel(Task{}, m.channels[ChannelUser])
	}
	if m.sched.raise(pendingFlush) {
		m.notify()
	}
}

func (m *Mux) notify() {
	if m.callout != nil {
		m.callout()
		return
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mux) runDeferred(ctx context.Context) {
	defer m.life.WorkerDone()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
			m.processDeferred(Task{}, m.sched.take())
		}
	}
}

// onComplete is the transport completion callback.
func (m *Mux) onComplete(p []byte) {
	for _, c := range m.channels {
		if c.complete(p) {
			return
		}
	}
}

// DumpAll writes every buffer, older first, to the dump writer. It holds the
// interrupt-safe critical section, never changes a buffer state and never
// submits. It is meant for fatal-error paths only.
func (m *Mux) DumpAll() {
	m.isrLock.Lock()
	defer m.isrLock.Unlock()
	for _, c := range m.channels {
		c.dump(m.dumper)
	}
}

// Stats returns per-channel counters in channel order.
func (m *Mux) Stats() []ChannelStats {
	out := make([]ChannelStats, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, c.Stats())
	}
	return out
}

// Policy returns the flush policy in effect.
func (m *Mux) Policy() FlushPolicy {
	return m.sched.Policy()
}

// Reconfigure replaces the flush policy at runtime.
func (m *Mux) Reconfigure(p FlushPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.sched.SetPolicy(p)
	m.logger.Info("flush policy updated",
		log.Duration("interval", p.Interval),
		log.Duration("idle_timeout", p.IdleTimeout),
	)
	return nil
}
