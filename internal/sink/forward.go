package sink

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"AirNode/internal/model"
	"AirNode/internal/parser"
)

// LineWriter is the radio link as seen by the forwarder (lora.LoRa).
type LineWriter interface {
	WriteLine(s string) error
	Reopen() error
}

// Framer wraps an encoded record before it goes on air (lora.UplinkEncoder).
type Framer interface {
	Encode(payload []byte) (string, error)
}

// ForwardSink writes one encoded record per line to the radio link.
type ForwardSink struct {
	w      LineWriter
	codec  parser.Parser
	framer Framer
	log    *log.Entry
}

// NewForward builds a forwarder. framer may be nil for plain text records.
func NewForward(w LineWriter, codec parser.Parser, framer Framer) *ForwardSink {
	return &ForwardSink{
		w:      w,
		codec:  codec,
		framer: framer,
		log:    log.WithField("component", "forward"),
	}
}

func (s *ForwardSink) Name() string { return "forward" }

// Dispatch encodes and writes r. After a failed write the link is reopened so the
// next reading has a fresh port.
func (s *ForwardSink) Dispatch(_ context.Context, r model.Reading) error {
	line, err := s.codec.EncodeReading(r)
	if err != nil {
		return errors.Wrap(err, "encode reading")
	}
	if s.framer != nil {
		if line, err = s.framer.Encode([]byte(line)); err != nil {
			return errors.Wrap(err, "frame uplink")
		}
	}
	if err := s.w.WriteLine(line); err != nil {
		if rerr := s.w.Reopen(); rerr != nil {
			s.log.WithError(rerr).Warn("reopen radio link failed")
		}
		return errors.Wrap(err, "write radio link")
	}
	s.log.Debugf("sent %s", line)
	return nil
}
