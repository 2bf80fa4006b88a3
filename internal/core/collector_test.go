package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"AirNode/internal/lora"
	"AirNode/internal/model"
	"AirNode/internal/parser"
	"AirNode/internal/sink"
)

// lineSource replays lines, then times out until ctx ends.
type lineSource struct {
	lines   []string
	errs    []error
	reopens int
}

func (l *lineSource) ReadLine(time.Duration) (string, error) {
	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		return "", err
	}
	if len(l.lines) == 0 {
		time.Sleep(time.Millisecond)
		return "", lora.ErrReadTimeout
	}
	line := l.lines[0]
	l.lines = l.lines[1:]
	return line, nil
}

func (l *lineSource) WriteLine(string) error { return nil }
func (l *lineSource) Close() error           { return nil }
func (l *lineSource) Reopen() error          { l.reopens++; return nil }

func TestCollectorHandle(t *testing.T) {
	rec := &recordSink{name: "rec"}
	c := NewCollector(&lineSource{}, parser.NewJSONParser(), nil, []sink.Sink{rec}, time.Second)
	ctx := context.Background()

	r, ok := c.Handle(ctx, `{"id":12,"ts":"2024-03-01 12:30:00","temp":"N/A","ch2o":"0.050","tvoc":"0.100","co2":"1.000"}`+"\r\n")
	if !ok {
		t.Fatal("valid record rejected")
	}
	if r.Seq != 12 || r.Temperature != nil || *r.CO2 != 1 {
		t.Fatalf("reading = %+v", r)
	}
	if _, ok := c.Handle(ctx, "garbage{"); ok {
		t.Fatal("garbage accepted")
	}
	if _, ok := c.Handle(ctx, "   "); ok {
		t.Fatal("blank line accepted")
	}
	if got := rec.readings(); len(got) != 1 || got[0].Seq != 12 {
		t.Fatalf("dispatched = %+v", got)
	}
	if recv, rej := c.Stats(); recv != 1 || rej != 1 {
		t.Fatalf("stats = %d/%d", recv, rej)
	}
}

func TestCollectorUplink(t *testing.T) {
	sess, err := lora.ParseSession(model.LoRaWANConfig{
		DevAddr: "01000001",
		NwkSKey: "202122232425262728292a2b2c2d2e2f",
		AppSKey: "101112131415161718191a1b1c1d1e1f",
		FPort:   10,
	})
	if err != nil {
		t.Fatal(err)
	}
	reading := model.Reading{Seq: 5, Time: time.Date(2024, 3, 1, 12, 30, 0, 0, time.Local)}
	record, err := parser.NewCSVParser().EncodeReading(reading)
	if err != nil {
		t.Fatal(err)
	}
	line, err := lora.NewUplinkEncoder(sess).Encode([]byte(record))
	if err != nil {
		t.Fatal(err)
	}

	rec := &recordSink{name: "rec"}
	c := NewCollector(&lineSource{}, parser.NewCSVParser(), &sess, []sink.Sink{rec}, time.Second)
	r, ok := c.Handle(context.Background(), line)
	if !ok || r.Seq != 5 || !r.Empty() {
		t.Fatalf("uplink reading = %+v ok=%v", r, ok)
	}
	if _, ok := c.Handle(context.Background(), record); ok {
		t.Fatal("plain record accepted while uplink framing is on")
	}
}

func TestCollectorRunSkipsOverlongNoise(t *testing.T) {
	src := &lineSource{
		errs:  []error{lora.ErrLineTooLong},
		lines: []string{"2,2024-03-01 12:31:00,N/A,0.050,0.100,1.000"},
	}
	rec := &recordSink{name: "rec"}
	c := NewCollector(src, parser.NewCSVParser(), nil, []sink.Sink{rec}, time.Second)
	c.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool {
		received, _ := c.Stats()
		return received == 1
	})
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v", err)
	}
	if src.reopens != 0 {
		t.Fatalf("reopens = %d, noise is not a link error", src.reopens)
	}
	if received, rejected := c.Stats(); received != 1 || rejected != 1 {
		t.Fatalf("stats = %d/%d, want 1/1", received, rejected)
	}
}

func TestCollectorRunReopensAfterError(t *testing.T) {
	src := &lineSource{
		errs:  []error{errors.New("read /dev/ttyUSB0: input/output error")},
		lines: []string{"1,2024-03-01 12:30:00,21.00,N/A,N/A,N/A"},
	}
	rec := &recordSink{name: "rec"}
	c := NewCollector(src, parser.NewCSVParser(), nil, []sink.Sink{rec}, time.Second)
	c.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool { return len(rec.readings()) == 1 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v", err)
	}
	if src.reopens != 1 {
		t.Fatalf("reopens = %d", src.reopens)
	}
	if got := rec.readings()[0]; *got.Temperature != 21 || got.CH2O != nil {
		t.Fatalf("reading = %+v", got)
	}
}
