// Package serial provides the RS-232 transport: an RS-232 link to the
// device, opened at a fixed baud and read with a short timeout so the
// engine's frame reader can poll without blocking forever.
package serial

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// AcceptedBauds is the fixed set of baud rates Open and SetBaud accept.
// The device firmware only configures its UART for these.
var AcceptedBauds = [...]int{9600, 19200, 38400, 57600, 115200, 230400, 576000, 1152000}

// BaudAccepted reports whether baud is in AcceptedBauds.
func BaudAccepted(baud int) bool {
	for _, b := range AcceptedBauds {
		if b == baud {
			return true
		}
	}
	return false
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g. "/dev/ttyUSB0", "COM3").
	Device string

	// Baud rate; must be one of AcceptedBauds.
	Baud int

	// ReadTimeout bounds how long a single Read call blocks waiting for
	// a byte. The frame reader relies on short timeouts to poll.
	ReadTimeout time.Duration
}

// DefaultConfig returns a Config with a default baud of 9600 and a 100ms
// read poll.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        9600,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Port is an open RS-232 link implementing protocol.Transport plus the
// flow-control toggle the file-transfer sub-protocol needs (see
// flowcontrol_linux.go / flowcontrol_other.go).
type Port struct {
	port *serial.Port
	cfg  *Config
}

// Open opens the serial port named by cfg.Device at cfg.Baud.
func Open(cfg *Config) (*Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("serial: config cannot be nil")
	}
	if !BaudAccepted(cfg.Baud) {
		return nil, fmt.Errorf("serial: baud %d not in accepted set %v", cfg.Baud, AcceptedBauds)
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}

	return &Port{port: port, cfg: cfg}, nil
}

func (p *Port) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *Port) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *Port) Close() error                { return p.port.Close() }
func (p *Port) Sleep(d time.Duration)       { time.Sleep(d) }

// Device returns the path the port was opened with. (Engine.SetBaud keeps
// its own copy of the path to reopen the link at the new rate.)
func (p *Port) Device() string { return p.cfg.Device }
