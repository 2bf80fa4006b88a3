// Package lora provides a light wrapper over a serial port used for LoRa E32 modules.
// It reads/writes newline-delimited text lines.
package lora

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	serial "go.bug.st/serial"

	"AirNode/internal/device"
)

// MaxLineLen bounds the bytes kept for an unfinished line.
const MaxLineLen = 4096

var (
	// ErrReadTimeout is returned by ReadLine when no complete line arrived in time.
	ErrReadTimeout = errors.New("read timeout")
	// ErrLineTooLong is returned when MaxLineLen bytes arrived without a newline;
	// the buffered bytes are discarded.
	ErrLineTooLong = errors.New("line too long")
)

var _ device.Device = (*LoRa)(nil)

// LoRa wraps a serial port and keeps the bytes of an unfinished line between reads.
type LoRa struct {
	dev  string
	baud int
	open device.Opener
	log  *log.Entry

	mu      sync.Mutex
	port    device.Port
	pending []byte
}

// New opens a serial device (e.g. /dev/serial0) with given baudrate, 8N1.
func New(dev string, baud int) (*LoRa, error) {
	return NewWithOpener(dev, baud, nil)
}

// NewWithOpener is New with an injectable port opener.
func NewWithOpener(dev string, baud int, open device.Opener) (*LoRa, error) {
	l := NewClosed(dev, baud, open)
	p, err := l.open(dev, baud)
	if err != nil {
		return nil, err
	}
	l.port = p
	return l, nil
}

// NewClosed returns a LoRa without an open port. Reads and writes fail until Reopen
// succeeds; used when the radio is missing at startup.
func NewClosed(dev string, baud int, open device.Opener) *LoRa {
	if open == nil {
		open = device.OpenSerialPort
	}
	return &LoRa{
		dev:  dev,
		baud: baud,
		open: open,
		log:  log.WithFields(log.Fields{"component": "lora", "device": dev}),
	}
}

// ReadLine reads a single line terminated by '\n' and returns it without the line
// ending. If timeout > 0, it returns ErrReadTimeout once timeout elapses.
func (l *LoRa) ReadLine(timeout time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	buf := make([]byte, 256)
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			line := string(l.pending[:i])
			l.pending = append(l.pending[:0], l.pending[i+1:]...)
			return strings.TrimRight(line, "\r"), nil
		}
		if l.port == nil {
			return "", errors.Errorf("%s is closed", l.dev)
		}
		rt := serial.NoTimeout
		if timeout > 0 {
			rt = time.Until(deadline)
			if rt <= 0 {
				return "", ErrReadTimeout
			}
		}
		if err := l.port.SetReadTimeout(rt); err != nil {
			return "", errors.Wrap(err, "set read timeout")
		}
		n, err := l.port.Read(buf)
		if err != nil {
			return "", errors.Wrapf(err, "read %s", l.dev)
		}
		l.pending = append(l.pending, buf[:n]...)
		if len(l.pending) > MaxLineLen && bytes.IndexByte(l.pending, '\n') < 0 {
			dropped := len(l.pending)
			l.pending = l.pending[:0]
			return "", errors.Wrapf(ErrLineTooLong, "dropped %d bytes", dropped)
		}
	}
}

// WriteLine writes s + '\n' to serial.
func (l *LoRa) WriteLine(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return errors.Errorf("%s is closed", l.dev)
	}
	if _, err := l.port.Write(append([]byte(s), '\n')); err != nil {
		return errors.Wrapf(err, "write %s", l.dev)
	}
	return nil
}

// Reopen closes the port and opens it again, dropping any partial line.
func (l *LoRa) Reopen() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port != nil {
		_ = l.port.Close()
		l.port = nil
	}
	l.pending = l.pending[:0]
	p, err := l.open(l.dev, l.baud)
	if err != nil {
		return err
	}
	l.port = p
	l.log.Info("serial port reopened")
	return nil
}

// Close closes the underlying port and returns error if any.
func (l *LoRa) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	return err
}
