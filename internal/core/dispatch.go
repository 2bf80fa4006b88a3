package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"AirNode/internal/model"
	"AirNode/internal/sink"
)

// dispatchAll hands r to every sink in order and returns the names of the sinks that
// failed. A failing or panicking sink never stops the others.
func dispatchAll(ctx context.Context, l *log.Entry, sinks []sink.Sink, r model.Reading) []string {
	var failed []string
	for _, s := range sinks {
		if err := dispatchOne(ctx, s, r); err != nil {
			failed = append(failed, s.Name())
			l.WithError(errors.Wrapf(model.ErrSinkUnavailable, "%s: %v", s.Name(), err)).
				WithField("seq", r.Seq).Warn("sink dispatch failed")
		}
	}
	return failed
}

func dispatchOne(ctx context.Context, s sink.Sink, r model.Reading) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrapf(model.ErrUnexpectedFailure, "panic: %v", p)
		}
	}()
	return s.Dispatch(ctx, r)
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// recovered converts a recovered panic value into an error.
func recovered(p any) error {
	return errors.Wrapf(model.ErrUnexpectedFailure, "panic: %v", p)
}
