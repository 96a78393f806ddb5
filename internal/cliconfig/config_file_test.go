package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/tracemux/pkg/tracemux"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Transport:      "serial",
				Device:         "/dev/ttyUSB0",
				Baud:           921600,
				TaskBufferSize: 2048,
				FlushInterval:  "250ms",
				IdleTimeout:    "2s",
				DumpOnExit:     &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Transport:      "serial",
				Device:         "/dev/ttyUSB0",
				Baud:           921600,
				TaskBufferSize: 2048,
				FlushInterval:  250 * time.Millisecond,
				IdleTimeout:    2 * time.Second,
				DumpOnExit:     true,
			},
			wantErr: false,
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Transport: "mqtt",
				BrokerURL: "tcp://broker:1883",
			},
			changed: map[string]bool{"transport": true},
			initial: Config{
				Transport: "file",
			},
			expected: Config{
				Transport: "file", // unchanged because flag was set
				BrokerURL: "tcp://broker:1883",
			},
			wantErr: false,
		},
		{
			name: "explicit false overrides true",
			fileConfig: FileConfig{
				Watch: &falseVal,
			},
			changed: map[string]bool{},
			initial: Config{
				Watch: true,
			},
			expected: Config{
				Watch: false,
			},
			wantErr: false,
		},
		{
			name: "zero values keep initial",
			fileConfig: FileConfig{
				QueueDepth: 0,
			},
			changed: map[string]bool{},
			initial: Config{
				QueueDepth: 16,
			},
			expected: Config{
				QueueDepth: 16,
			},
			wantErr: false,
		},
		{
			name: "negative drain timeout is kept",
			fileConfig: FileConfig{
				DrainTimeout: "-1s",
			},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{DrainTimeout: -time.Second},
			wantErr:  false,
		},
		{
			name: "returns error for invalid duration",
			fileConfig: FileConfig{
				IdleTimeout: "soon",
			},
			changed: map[string]bool{},
			initial: Config{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if (err != nil) != tt.wantErr {
				t.Errorf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	// Create a temporary TOML file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
transport = "mqtt"
broker = "tcp://localhost:1883"
topic = "bench/frames"
qos = 1
isr_buffer_size = 768
flush_interval = "500ms"
demo = true
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.Transport != "mqtt" {
		t.Errorf("Transport = %v, want mqtt", fc.Transport)
	}
	if fc.BrokerURL != "tcp://localhost:1883" {
		t.Errorf("BrokerURL = %v, want tcp://localhost:1883", fc.BrokerURL)
	}
	if fc.Topic != "bench/frames" {
		t.Errorf("Topic = %v, want bench/frames", fc.Topic)
	}
	if fc.QoS != 1 {
		t.Errorf("QoS = %v, want 1", fc.QoS)
	}
	if fc.ISRBufferSize != 768 {
		t.Errorf("ISRBufferSize = %v, want 768", fc.ISRBufferSize)
	}
	if fc.FlushInterval != "500ms" {
		t.Errorf("FlushInterval = %v, want 500ms", fc.FlushInterval)
	}
	if fc.Demo == nil || *fc.Demo != true {
		t.Errorf("Demo = %v, want true", fc.Demo)
	}
}

func TestLoadFileConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "tracemux.yaml")

	yamlContent := `
transport: file
output: /var/log/trace.bin
user_buffer_size: 256
idle_timeout: 3s
dump_on_exit: true
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.Transport != "file" {
		t.Errorf("Transport = %v, want file", fc.Transport)
	}
	if fc.Output != "/var/log/trace.bin" {
		t.Errorf("Output = %v, want /var/log/trace.bin", fc.Output)
	}
	if fc.UserBufferSize != 256 {
		t.Errorf("UserBufferSize = %v, want 256", fc.UserBufferSize)
	}
	if fc.IdleTimeout != "3s" {
		t.Errorf("IdleTimeout = %v, want 3s", fc.IdleTimeout)
	}
	if fc.DumpOnExit == nil || *fc.DumpOnExit != true {
		t.Errorf("DumpOnExit = %v, want true", fc.DumpOnExit)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
transport = "stdout"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestLoadFlushPolicy(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	base := tracemux.FlushPolicy{Interval: time.Second, IdleTimeout: time.Second}

	if err := os.WriteFile(configPath, []byte(`idle_timeout = "200ms"`), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	p, err := LoadFlushPolicy(configPath, base)
	if err != nil {
		t.Fatalf("LoadFlushPolicy() error = %v", err)
	}
	if p.Interval != time.Second {
		t.Errorf("Interval = %v, want 1s", p.Interval)
	}
	if p.IdleTimeout != 200*time.Millisecond {
		t.Errorf("IdleTimeout = %v, want 200ms", p.IdleTimeout)
	}

	if err := os.WriteFile(configPath, []byte(`flush_interval = "often"`), 0644); err != nil {
		t.Fatalf("Failed to rewrite test config file: %v", err)
	}
	p, err = LoadFlushPolicy(configPath, base)
	if err == nil {
		t.Error("LoadFlushPolicy() expected error for invalid duration")
	}
	if p != base {
		t.Errorf("LoadFlushPolicy() = %+v, want base %+v on error", p, base)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	// Should return a path containing .tracemux
	if path != "" && !strings.Contains(path, ".tracemux") {
		t.Errorf("DefaultConfigPath() = %v, should contain .tracemux", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
