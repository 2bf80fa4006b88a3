package sink

import (
	"context"
	"fmt"
	"io"
	"os"

	"AirNode/internal/model"
	"AirNode/internal/parser"
)

// ConsoleSink prints one human-readable line per reading. Write errors are ignored.
type ConsoleSink struct {
	W io.Writer
}

// NewConsole prints to stdout when w is nil.
func NewConsole(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{W: w}
}

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Dispatch(_ context.Context, r model.Reading) error {
	_, _ = fmt.Fprintf(s.W, "%s %s\n", r.Time.Format(parser.TimeLayout), r.Summary())
	return nil
}
