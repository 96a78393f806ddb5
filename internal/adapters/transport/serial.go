package transport

import (
	"fmt"

	"github.com/tarm/serial"
)

// DefaultBaud is the serial rate used when none is configured.
const DefaultBaud = 115200

// SerialConfig holds serial port configuration.
type SerialConfig struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string
	Baud   int
}

// OpenSerial opens a serial port and returns a StreamSink writing to it.
// Close on the sink closes the port.
func OpenSerial(cfg SerialConfig, opts ...StreamOption) (*StreamSink, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial device not set")
	}
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}

	port, err := serial.OpenPort(&serial.Config{
		Name: cfg.Device,
		Baud: cfg.Baud,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}

	opts = append(opts, WithCloser(port))
	return NewStreamSink(port, opts...), nil
}
