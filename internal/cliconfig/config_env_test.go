package cliconfig

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"TRACEMUX_TRANSPORT":       "file",
				"TRACEMUX_OUTPUT":          "/env/trace.bin",
				"TRACEMUX_HCI_BUFFER_SIZE": "300",
				"TRACEMUX_IDLE_TIMEOUT":    "10s",
				"TRACEMUX_DEMO":            "1",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Transport:     "file",
				Output:        "/env/trace.bin",
				HCIBufferSize: 300,
				IdleTimeout:   10 * time.Second,
				Demo:          true,
			},
			wantErr: false,
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"TRACEMUX_TRANSPORT": "serial",
				"TRACEMUX_DEVICE":    "/dev/ttyACM0",
			},
			changed: map[string]bool{"transport": true},
			initial: Config{
				Transport: "stdout",
			},
			expected: Config{
				Transport: "stdout",
				Device:    "/dev/ttyACM0",
			},
			wantErr: false,
		},
		{
			name: "non-positive ints are ignored",
			envVars: map[string]string{
				"TRACEMUX_QUEUE_DEPTH": "0",
			},
			changed:  map[string]bool{},
			initial:  Config{QueueDepth: 4},
			expected: Config{QueueDepth: 4},
			wantErr:  false,
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"TRACEMUX_FLUSH_INTERVAL": "not-a-duration",
			},
			changed: map[string]bool{},
			initial: Config{},
			wantErr: true,
		},
		{
			name: "returns error for invalid int",
			envVars: map[string]string{
				"TRACEMUX_BAUD": "fast",
			},
			changed: map[string]bool{},
			initial: Config{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if (err != nil) != tt.wantErr {
				t.Errorf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	trueVal := true

	// Setup file config
	fileConf := FileConfig{
		Transport:  "mqtt",
		BrokerURL:  "tcp://file:1883",
		Topic:      "file/topic",
		DumpOnExit: &trueVal,
	}

	// Setup env vars
	t.Setenv("TRACEMUX_TRANSPORT", "serial")
	t.Setenv("TRACEMUX_BROKER_URL", "tcp://env:1883")
	t.Setenv("TRACEMUX_DEVICE", "/dev/env")

	// Simulate CLI flags
	changed := map[string]bool{
		"transport": true,
	}

	cfg := Config{
		Transport: "file", // This should remain (CLI wins)
	}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Transport != "file" {
		t.Errorf("Transport = %v, want file (CLI should win)", cfg.Transport)
	}
	if cfg.BrokerURL != "tcp://env:1883" {
		t.Errorf("BrokerURL = %v, want tcp://env:1883 (env should override file)", cfg.BrokerURL)
	}
	if cfg.Device != "/dev/env" {
		t.Errorf("Device = %v, want /dev/env (env should set)", cfg.Device)
	}
	if cfg.Topic != "file/topic" {
		t.Errorf("Topic = %v, want file/topic (file should set)", cfg.Topic)
	}
	if cfg.DumpOnExit != true {
		t.Errorf("DumpOnExit = %v, want true (file should set)", cfg.DumpOnExit)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Logger(&buf, "warn")
	if err != nil {
		t.Fatalf("Logger() error = %v", err)
	}

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("info message written at warn level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn message missing: %q", buf.String())
	}

	if _, err := Logger(&buf, "loud"); err == nil {
		t.Error("Logger() expected error for unknown level")
	}
}
