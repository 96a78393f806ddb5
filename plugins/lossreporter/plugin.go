// Package lossreporter periodically logs frame loss and submit failures of
// a running multiplexer, so that dropped trace data shows up in the host log
// as well as in the loss frames on the wire.
package lossreporter

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/tracemux/pkg/log"
	"github.com/bft-labs/tracemux/pkg/tracemux"
)

// Plugin compares channel statistics between checks and logs what grew.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	checkInterval time.Duration
	summary       bool

	// Runtime state
	logger log.Logger
	ctrl   tracemux.Controller
	last   map[string]tracemux.ChannelStats
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds configuration options for the loss reporter plugin.
type Config struct {
	// CheckInterval is how often channel statistics are sampled.
	// Default: 10 seconds
	CheckInterval time.Duration

	// Summary if true, logs every channel's totals at debug level on each check.
	Summary bool
}

// DefaultCheckInterval is used when Config.CheckInterval is not positive.
const DefaultCheckInterval = 10 * time.Second

// New creates a new loss reporter plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	return &Plugin{
		checkInterval: cfg.CheckInterval,
		summary:       cfg.Summary,
		logger:        log.NewNoopLogger(),
		last:          make(map[string]tracemux.ChannelStats),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "lossreporter"
}

// Initialize takes a baseline sample and starts the check loop.
func (p *Plugin) Initialize(ctx context.Context, cfg tracemux.PluginConfig) error {
	p.mu.Lock()
	if cfg.Logger != nil {
		p.logger = cfg.Logger.With(log.String("plugin", p.Name()))
	}
	p.ctrl = cfg.Controller
	p.mu.Unlock()

	if p.ctrl == nil {
		p.logger.Warn("loss reporter disabled: no controller")
		return nil
	}

	p.Check()

	checkCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.checkLoop(checkCtx)

	return nil
}

// Shutdown stops the check loop after a final check.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	if p.ctrl != nil {
		p.Check()
	}
	return nil
}

func (p *Plugin) checkLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check()
		}
	}
}

// Check samples every channel once and logs any growth in loss or submit
// failures since the previous sample. It returns the number of channels
// that reported new loss.
func (p *Plugin) Check() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	lossy := 0
	for _, s := range p.ctrl.Stats() {
		prev, seen := p.last[s.Name]
		p.last[s.Name] = s

		if p.summary {
			p.logger.Debug("channel stats",
				log.String("channel", s.Name),
				log.Uint64("submitted", s.Submitted),
				log.Uint64("bytes", s.BytesSubmitted),
				log.Uint64("lost_frames", s.LostFrames),
				log.Uint64("lost_bytes", s.LostBytes),
			)
		}
		if !seen {
			continue
		}

		frames := s.LostFrames - prev.LostFrames
		failures := s.SubmitFailures - prev.SubmitFailures
		if frames == 0 && failures == 0 {
			continue
		}
		lossy++
		p.logger.Warn("trace data lost",
			log.String("channel", s.Name),
			log.Uint64("frames", frames),
			log.Uint64("bytes", s.LostBytes-prev.LostBytes),
			log.Uint64("submit_failures", failures),
			log.Uint32("unreported_frames", s.PendingLostFrames),
		)
	}
	return lossy
}

// Ensure Plugin implements tracemux.Plugin.
var _ tracemux.Plugin = (*Plugin)(nil)
