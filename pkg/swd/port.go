package swd

import (
	"fmt"
	"io"
	"time"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
)

// PortConfig selects and configures the serial device carrying the hex
// micro-protocol.
type PortConfig struct {
	// Name is the device path, e.g. /dev/ttyACM0.
	Name string
	// BaudRate defaults to 115200.
	BaudRate uint
	// InterCharTimeout is the OS-level gap allowed between response
	// bytes. Defaults to 500ms.
	InterCharTimeout time.Duration
}

// OpenPort opens the bridge's serial device in raw 8N1 mode. The returned
// stream is held for the life of the session.
func OpenPort(cfg PortConfig) (io.ReadWriteCloser, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("swd: no serial port given")
	}
	baud := cfg.BaudRate
	if baud == 0 {
		baud = 115200
	}
	timeout := cfg.InterCharTimeout
	if timeout == 0 {
		timeout = 500 * time.Millisecond
	}

	glog.Infof("Opening %s at %d baud...", cfg.Name, baud)
	port, err := serial.Open(serial.OpenOptions{
		PortName:              cfg.Name,
		BaudRate:              baud,
		DataBits:              8,
		ParityMode:            serial.PARITY_NONE,
		StopBits:              1,
		InterCharacterTimeout: uint(timeout / time.Millisecond),
		MinimumReadSize:       0,
	})
	if err != nil {
		return nil, fmt.Errorf("swd: opening %s: %w", cfg.Name, err)
	}
	return port, nil
}
