package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/bft-labs/tracemux/pkg/tracemux"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// and YAML friendly.
type FileConfig struct {
	Transport  string `toml:"transport" yaml:"transport"`
	Output     string `toml:"output" yaml:"output"`
	Device     string `toml:"device" yaml:"device"`
	Baud       int    `toml:"baud" yaml:"baud"`
	BrokerURL  string `toml:"broker" yaml:"broker"`
	Topic      string `toml:"topic" yaml:"topic"`
	QoS        int    `toml:"qos" yaml:"qos"`
	QueueDepth int    `toml:"queue_depth" yaml:"queue_depth"`

	UserBufferSize int `toml:"user_buffer_size" yaml:"user_buffer_size"`
	TaskBufferSize int `toml:"task_buffer_size" yaml:"task_buffer_size"`
	ISRBufferSize  int `toml:"isr_buffer_size" yaml:"isr_buffer_size"`
	HCIBufferSize  int `toml:"hci_buffer_size" yaml:"hci_buffer_size"`

	FlushInterval string `toml:"flush_interval" yaml:"flush_interval"`
	IdleTimeout   string `toml:"idle_timeout" yaml:"idle_timeout"`
	DrainTimeout  string `toml:"drain_timeout" yaml:"drain_timeout"`

	LogLevel     string `toml:"log_level" yaml:"log_level"`
	Demo         *bool  `toml:"demo" yaml:"demo"`
	DemoInterval string `toml:"demo_interval" yaml:"demo_interval"`
	DumpOnExit   *bool  `toml:"dump_on_exit" yaml:"dump_on_exit"`
	Watch        *bool  `toml:"watch" yaml:"watch"`
	Pace         *bool  `toml:"pace" yaml:"pace"`
}

// LoadFileConfig reads and parses a config file from the given path.
// Files ending in .yaml or .yml are YAML; anything else is TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.tracemux/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".tracemux", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("output", fc.Output, &cfg.Output)
	s.setString("device", fc.Device, &cfg.Device)
	s.setString("broker", fc.BrokerURL, &cfg.BrokerURL)
	s.setString("topic", fc.Topic, &cfg.Topic)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setInt("baud", fc.Baud, &cfg.Baud)
	s.setInt("qos", fc.QoS, &cfg.QoS)
	s.setInt("queue-depth", fc.QueueDepth, &cfg.QueueDepth)
	s.setInt("user-buffer", fc.UserBufferSize, &cfg.UserBufferSize)
	s.setInt("task-buffer", fc.TaskBufferSize, &cfg.TaskBufferSize)
	s.setInt("isr-buffer", fc.ISRBufferSize, &cfg.ISRBufferSize)
	s.setInt("hci-buffer", fc.HCIBufferSize, &cfg.HCIBufferSize)

	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("idle-timeout", fc.IdleTimeout, &cfg.IdleTimeout); err != nil {
		return err
	}
	if err := s.setDuration("drain-timeout", fc.DrainTimeout, &cfg.DrainTimeout); err != nil {
		return err
	}
	if err := s.setDuration("demo-interval", fc.DemoInterval, &cfg.DemoInterval); err != nil {
		return err
	}

	s.setBool("demo", fc.Demo, &cfg.Demo)
	s.setBool("dump-on-exit", fc.DumpOnExit, &cfg.DumpOnExit)
	s.setBool("watch", fc.Watch, &cfg.Watch)
	s.setBool("pace", fc.Pace, &cfg.Pace)

	return nil
}

// LoadFlushPolicy reads the flush settings from a config file. Fields the
// file leaves empty keep their value from base.
func LoadFlushPolicy(path string, base tracemux.FlushPolicy) (tracemux.FlushPolicy, error) {
	fc, err := LoadFileConfig(path)
	if err != nil {
		return base, err
	}
	cfg := Config{FlushInterval: base.Interval, IdleTimeout: base.IdleTimeout}
	s := newConfigSetter(nil)
	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return base, err
	}
	if err := s.setDuration("idle-timeout", fc.IdleTimeout, &cfg.IdleTimeout); err != nil {
		return base, err
	}
	return cfg.FlushPolicy(), nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
