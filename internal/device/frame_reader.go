package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"AirNode/internal/model"
	"AirNode/internal/parser"
)

// ConnState is the lifecycle state of the reader's serial connection.
type ConnState int

const (
	StateClosed ConnState = iota
	StateOpen
	StateFaulted
)

func (s ConnState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateFaulted:
		return "faulted"
	}
	return fmt.Sprintf("conn_state(%d)", int(s))
}

// ReadStatus tags a FrameReadOutcome.
type ReadStatus int

const (
	ReadFrame ReadStatus = iota
	ReadTimeout
	ReadPartial
	ReadLinkFault
)

func (s ReadStatus) String() string {
	switch s {
	case ReadFrame:
		return "frame"
	case ReadTimeout:
		return "timeout"
	case ReadPartial:
		return "partial_frame"
	case ReadLinkFault:
		return "link_fault"
	}
	return fmt.Sprintf("read_status(%d)", int(s))
}

// FrameReadOutcome is the result of one ReadFrame call. Frame is set for ReadFrame,
// Received for ReadPartial and Err for ReadLinkFault.
type FrameReadOutcome struct {
	Status   ReadStatus
	Frame    parser.RawFrame
	Received []byte
	Err      error
}

// FrameReader owns the serial connection to the air-quality module. The module pushes
// frames without delimiters, so every read flushes stale input and takes the next
// FrameLen bytes; misaligned reads are left for the decoder to reject.
type FrameReader struct {
	dev  string
	baud int
	open Opener
	log  *log.Entry

	mu    sync.Mutex
	port  Port
	state ConnState
}

// NewFrameReader creates a closed reader. A nil opener uses OpenSerialPort.
func NewFrameReader(dev string, baud int, open Opener) *FrameReader {
	if open == nil {
		open = OpenSerialPort
	}
	return &FrameReader{
		dev:  dev,
		baud: baud,
		open: open,
		log:  log.WithFields(log.Fields{"component": "frame-reader", "device": dev}),
	}
}

// State returns the current connection state.
func (r *FrameReader) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Open acquires the port. On failure the reader is left Faulted.
func (r *FrameReader) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.port != nil {
		return nil
	}
	return r.openLocked()
}

func (r *FrameReader) openLocked() error {
	p, err := r.open(r.dev, r.baud)
	if err != nil {
		r.state = StateFaulted
		return errors.Wrapf(model.ErrLinkFault, "open %s: %v", r.dev, err)
	}
	r.port = p
	r.state = StateOpen
	r.log.Infof("serial port opened at %d baud", r.baud)
	return nil
}

// Reconnect closes any held port and opens the device again.
func (r *FrameReader) Reconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
	return r.openLocked()
}

// Close releases the port. It is safe to call more than once.
func (r *FrameReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.closeLocked()
	r.state = StateClosed
	return err
}

func (r *FrameReader) closeLocked() error {
	if r.port == nil {
		return nil
	}
	err := r.port.Close()
	r.port = nil
	return err
}

// ReadFrame flushes buffered input and reads one frame, waiting at most timeout.
func (r *FrameReader) ReadFrame(timeout time.Duration) FrameReadOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port == nil || r.state != StateOpen {
		return FrameReadOutcome{
			Status: ReadLinkFault,
			Err:    errors.Wrapf(model.ErrLinkFault, "%s not open (%s)", r.dev, r.state),
		}
	}
	if err := r.port.ResetInputBuffer(); err != nil {
		return r.faultLocked("flush", err)
	}

	buf := make([]byte, parser.FrameLen)
	got := 0
	deadline := time.Now().Add(timeout)
	for got < parser.FrameLen {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := r.port.SetReadTimeout(remaining); err != nil {
			return r.faultLocked("set read timeout", err)
		}
		n, err := r.port.Read(buf[got:])
		if err != nil {
			return r.faultLocked("read", err)
		}
		if n == 0 {
			// go.bug.st/serial returns 0, nil when the read timeout elapses
			break
		}
		got += n
	}

	switch {
	case got == 0:
		return FrameReadOutcome{Status: ReadTimeout}
	case got < parser.FrameLen:
		return FrameReadOutcome{Status: ReadPartial, Received: append([]byte(nil), buf[:got]...)}
	}
	out := FrameReadOutcome{Status: ReadFrame}
	copy(out.Frame[:], buf)
	return out
}

func (r *FrameReader) faultLocked(op string, err error) FrameReadOutcome {
	r.state = StateFaulted
	r.log.WithError(err).Warnf("%s failed, link faulted", op)
	return FrameReadOutcome{
		Status: ReadLinkFault,
		Err:    errors.Wrapf(model.ErrLinkFault, "%s %s: %v", op, r.dev, err),
	}
}
