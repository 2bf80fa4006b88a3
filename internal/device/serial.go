package device

import (
	"io"
	"time"

	"github.com/pkg/errors"
	serial "go.bug.st/serial"
)

// Port is the subset of serial.Port the frame reader needs.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Opener opens a port for a device path and baudrate.
type Opener func(dev string, baud int) (Port, error)

// SerialMode returns the 8N1 mode used by the sensor and radio UARTs.
func SerialMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenSerialPort opens dev at baud, 8N1.
func OpenSerialPort(dev string, baud int) (Port, error) {
	p, err := serial.Open(dev, SerialMode(baud))
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s", dev)
	}
	return p, nil
}
