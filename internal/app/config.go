package app

import (
	"fmt"
	"time"

	"github.com/bft-labs/tracemux/internal/domain"
	"github.com/bft-labs/tracemux/pkg/frame"
)

// Default configuration values.
const (
	DefaultUserBufferSize = 512
	DefaultTaskBufferSize = 1024
	DefaultISRBufferSize  = 512
	DefaultHCIBufferSize  = 512
	DefaultFlushInterval  = time.Second
	DefaultIdleTimeout    = time.Second
	DefaultDrainTimeout   = time.Second
	DefaultWatchdogEvery  = 1024

	// MaxBufferSize is the largest buffer a single Submit can describe.
	MaxBufferSize = 0xFFFF
)

// Config holds multiplexer configuration.
type Config struct {
	// Per-channel capacity of each of the two transaction buffers, in bytes.
	UserBufferSize int
	TaskBufferSize int
	ISRBufferSize  int
	HCIBufferSize  int

	// FlushInterval is the period of the flush tick.
	FlushInterval time.Duration

	// IdleTimeout is how long the console channel must be idle before its
	// partially filled buffer is forced out.
	IdleTimeout time.Duration

	// DrainTimeout bounds the wait for outstanding submissions at teardown.
	// A negative value waits forever.
	DrainTimeout time.Duration

	// WatchdogEvery is the number of dumped bytes between watchdog feeds.
	WatchdogEvery int
}

// DefaultConfig returns a configuration with every field defaulted.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.UserBufferSize == 0 {
		c.UserBufferSize = DefaultUserBufferSize
	}
	if c.TaskBufferSize == 0 {
		c.TaskBufferSize = DefaultTaskBufferSize
	}
	if c.ISRBufferSize == 0 {
		c.ISRBufferSize = DefaultISRBufferSize
	}
	if c.HCIBufferSize == 0 {
		c.HCIBufferSize = DefaultHCIBufferSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.WatchdogEvery == 0 {
		c.WatchdogEvery = DefaultWatchdogEvery
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	sizes := []struct {
		name string
		size int
	}{
		{"user_buffer_size", c.UserBufferSize},
		{"task_buffer_size", c.TaskBufferSize},
		{"isr_buffer_size", c.ISRBufferSize},
		{"hci_buffer_size", c.HCIBufferSize},
	}
	for _, s := range sizes {
		if s.size <= frame.Overhead || s.size > MaxBufferSize {
			return fmt.Errorf("%w: %s %d not in (%d, %d]", domain.ErrInvalidConfig, s.name, s.size, frame.Overhead, MaxBufferSize)
		}
	}
	if err := (FlushPolicy{Interval: c.FlushInterval, IdleTimeout: c.IdleTimeout}).Validate(); err != nil {
		return err
	}
	if c.WatchdogEvery <= 0 {
		return fmt.Errorf("%w: watchdog_every must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// Validate checks that both durations are positive.
func (p FlushPolicy) Validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("%w: flush_interval must be positive", domain.ErrInvalidConfig)
	}
	if p.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle_timeout must be positive", domain.ErrInvalidConfig)
	}
	return nil
}
