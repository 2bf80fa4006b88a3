package device

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"AirNode/internal/model"
	"AirNode/internal/parser"
)

// readStep is one scripted Read result: data (may be empty = timeout) or err.
type readStep struct {
	data []byte
	err  error
}

type fakePort struct {
	mu       sync.Mutex
	steps    []readStep
	resets   int
	closed   bool
	resetErr error
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.steps) == 0 {
		return 0, nil
	}
	s := p.steps[0]
	if s.err != nil {
		p.steps = p.steps[1:]
		return 0, s.err
	}
	n := copy(b, s.data)
	if n < len(s.data) {
		p.steps[0].data = s.data[n:]
	} else {
		p.steps = p.steps[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) { return len(b), nil }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	return p.resetErr
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

// opener hands out ports in order and fails once they run out.
type opener struct {
	ports []*fakePort
	calls int
}

func (o *opener) open(string, int) (Port, error) {
	o.calls++
	if len(o.ports) == 0 {
		return nil, errors.New("no such device")
	}
	p := o.ports[0]
	o.ports = o.ports[1:]
	return p, nil
}

func newTestReader(t *testing.T, ports ...*fakePort) (*FrameReader, *opener) {
	t.Helper()
	o := &opener{ports: ports}
	r := NewFrameReader("/dev/test", 9600, o.open)
	if err := r.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	return r, o
}

func TestReadFrame_FullFrame(t *testing.T) {
	f := parser.EncodeFrame(100, 50, 1000)
	port := &fakePort{steps: []readStep{{data: f[:4]}, {data: f[4:]}}}
	r, _ := newTestReader(t, port)

	out := r.ReadFrame(time.Second)
	if out.Status != ReadFrame {
		t.Fatalf("status = %s, want frame", out.Status)
	}
	if out.Frame != f {
		t.Fatalf("frame = % X, want % X", out.Frame, f)
	}
	if port.resets != 1 {
		t.Fatalf("input buffer flushed %d times, want 1", port.resets)
	}
	if !parser.Decode(out.Frame[:]).OK() {
		t.Fatal("frame read from port does not decode")
	}
}

func TestReadFrame_Timeout(t *testing.T) {
	r, _ := newTestReader(t, &fakePort{})
	out := r.ReadFrame(50 * time.Millisecond)
	if out.Status != ReadTimeout {
		t.Fatalf("status = %s, want timeout", out.Status)
	}
	if r.State() != StateOpen {
		t.Fatalf("state = %s after timeout, want open", r.State())
	}
}

func TestReadFrame_Partial(t *testing.T) {
	part := []byte{0x2C, 0xE4, 0x00, 0x64}
	r, _ := newTestReader(t, &fakePort{steps: []readStep{{data: part}}})
	out := r.ReadFrame(50 * time.Millisecond)
	if out.Status != ReadPartial {
		t.Fatalf("status = %s, want partial_frame", out.Status)
	}
	if !bytes.Equal(out.Received, part) {
		t.Fatalf("received = % X, want % X", out.Received, part)
	}
	if got := parser.Decode(out.Received); got.Status != parser.RejectedShortFrame || got.Received != len(part) {
		t.Fatalf("decode partial = %+v", got)
	}
}

func TestReadFrame_IOErrorFaultsLink(t *testing.T) {
	r, _ := newTestReader(t, &fakePort{steps: []readStep{{err: errors.New("input/output error")}}})
	out := r.ReadFrame(time.Second)
	if out.Status != ReadLinkFault {
		t.Fatalf("status = %s, want link_fault", out.Status)
	}
	if !errors.Is(out.Err, model.ErrLinkFault) {
		t.Fatalf("err = %v, want ErrLinkFault", out.Err)
	}
	if r.State() != StateFaulted {
		t.Fatalf("state = %s, want faulted", r.State())
	}
	// faulted reader refuses to read until reconnected
	if again := r.ReadFrame(time.Second); again.Status != ReadLinkFault {
		t.Fatalf("read on faulted link = %s", again.Status)
	}
}

func TestReadFrame_FlushErrorFaultsLink(t *testing.T) {
	r, _ := newTestReader(t, &fakePort{resetErr: errors.New("bad file descriptor")})
	if out := r.ReadFrame(time.Second); out.Status != ReadLinkFault {
		t.Fatalf("status = %s, want link_fault", out.Status)
	}
}

func TestReconnect(t *testing.T) {
	first := &fakePort{steps: []readStep{{err: errors.New("device removed")}}}
	f := parser.EncodeFrame(1, 2, 3)
	second := &fakePort{steps: []readStep{{data: f[:]}}}
	r, o := newTestReader(t, first, second)

	if out := r.ReadFrame(time.Second); out.Status != ReadLinkFault {
		t.Fatalf("status = %s", out.Status)
	}
	if err := r.Reconnect(); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if !first.closed {
		t.Fatal("old port not closed on reconnect")
	}
	if r.State() != StateOpen {
		t.Fatalf("state = %s, want open", r.State())
	}
	if out := r.ReadFrame(time.Second); out.Status != ReadFrame || out.Frame != f {
		t.Fatalf("after reconnect: %+v", out)
	}

	// no more ports: reconnect fails and the reader stays faulted
	if err := r.Reconnect(); !errors.Is(err, model.ErrLinkFault) {
		t.Fatalf("reconnect err = %v, want ErrLinkFault", err)
	}
	if r.State() != StateFaulted {
		t.Fatalf("state = %s, want faulted", r.State())
	}
	if o.calls != 3 {
		t.Fatalf("opener called %d times, want 3", o.calls)
	}
}

func TestOpenFailureLeavesReaderFaulted(t *testing.T) {
	r := NewFrameReader("/dev/missing", 9600, (&opener{}).open)
	if err := r.Open(); err == nil {
		t.Fatal("expected open error")
	}
	if r.State() != StateFaulted {
		t.Fatalf("state = %s, want faulted", r.State())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if r.State() != StateClosed {
		t.Fatalf("state = %s, want closed", r.State())
	}
}
