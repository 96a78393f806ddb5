package cliconfig

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/bft-labs/tracemux/pkg/tracemux"
)

// Transport kinds selectable from the command line.
const (
	TransportStdout = "stdout"
	TransportFile   = "file"
	TransportSerial = "serial"
	TransportMQTT   = "mqtt"
)

// Config holds CLI configuration for tracemux.
type Config struct {
	Transport  string
	Output     string
	Device     string
	Baud       int
	BrokerURL  string
	Topic      string
	QoS        int
	QueueDepth int

	UserBufferSize int
	TaskBufferSize int
	ISRBufferSize  int
	HCIBufferSize  int

	FlushInterval time.Duration
	IdleTimeout   time.Duration
	DrainTimeout  time.Duration

	LogLevel     string
	Demo         bool
	DemoInterval time.Duration
	DumpOnExit   bool
	Watch        bool

	// Pace throttles the stdout and file transports to Baud.
	Pace bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	mc := tracemux.DefaultConfig()
	return Config{
		Transport:      TransportStdout,
		Baud:           115200,
		QueueDepth:     8,
		UserBufferSize: mc.UserBufferSize,
		TaskBufferSize: mc.TaskBufferSize,
		ISRBufferSize:  mc.ISRBufferSize,
		HCIBufferSize:  mc.HCIBufferSize,
		FlushInterval:  mc.FlushInterval,
		IdleTimeout:    mc.IdleTimeout,
		DrainTimeout:   mc.DrainTimeout,
		LogLevel:       "info",
		DemoInterval:   20 * time.Millisecond,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdout:
	case TransportFile:
		if c.Output == "" {
			return fmt.Errorf("output is required for the file transport")
		}
	case TransportSerial:
		if c.Device == "" {
			return fmt.Errorf("device is required for the serial transport")
		}
	case TransportMQTT:
		if c.BrokerURL == "" {
			return fmt.Errorf("broker is required for the mqtt transport")
		}
		if c.QoS < 0 || c.QoS > 2 {
			return fmt.Errorf("qos must be 0, 1 or 2")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	if c.Demo && c.DemoInterval <= 0 {
		return fmt.Errorf("demo interval must be positive")
	}

	mc := c.MuxConfig()
	return mc.Validate()
}

// Redacted returns a copy of c that is safe to log: a password in BrokerURL
// is masked.
func (c Config) Redacted() Config {
	if c.BrokerURL == "" {
		return c
	}
	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		c.BrokerURL = "*****"
		return c
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "*****")
		c.BrokerURL = u.String()
	}
	return c
}

// MuxConfig returns the multiplexer part of the configuration.
func (c *Config) MuxConfig() tracemux.Config {
	mc := tracemux.Config{
		UserBufferSize: c.UserBufferSize,
		TaskBufferSize: c.TaskBufferSize,
		ISRBufferSize:  c.ISRBufferSize,
		HCIBufferSize:  c.HCIBufferSize,
		FlushInterval:  c.FlushInterval,
		IdleTimeout:    c.IdleTimeout,
		DrainTimeout:   c.DrainTimeout,
	}
	mc.SetDefaults()
	return mc
}

// FlushPolicy returns the flush part of the configuration.
func (c *Config) FlushPolicy() tracemux.FlushPolicy {
	return tracemux.FlushPolicy{Interval: c.FlushInterval, IdleTimeout: c.IdleTimeout}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
// Negative durations are accepted; drain-timeout uses them to mean forever.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
