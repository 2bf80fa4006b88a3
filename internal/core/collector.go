package core

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"AirNode/internal/device"
	"AirNode/internal/lora"
	"AirNode/internal/model"
	"AirNode/internal/parser"
	"AirNode/internal/sink"
)

// reopener is implemented by links that can recover from an I/O error (lora.LoRa).
type reopener interface {
	Reopen() error
}

// Collector is the receiving end of the radio link: it reads forwarded records,
// decodes them and hands them to its sinks. Records keep the node's id and timestamp.
type Collector struct {
	src         device.Device
	codec       parser.Parser
	session     *lora.Session
	sinks       []sink.Sink
	readTimeout time.Duration
	retryDelay  time.Duration
	log         *log.Entry

	received atomic.Uint64
	rejected atomic.Uint64
}

// NewCollector creates a collector. session is non-nil when records arrive as
// LoRaWAN uplinks.
func NewCollector(src device.Device, codec parser.Parser, session *lora.Session, sinks []sink.Sink, readTimeout time.Duration) *Collector {
	return &Collector{
		src:         src,
		codec:       codec,
		session:     session,
		sinks:       sinks,
		readTimeout: readTimeout,
		retryDelay:  5 * time.Second,
		log:         log.WithField("component", "collector"),
	}
}

// Run reads until ctx is cancelled and returns ctx.Err().
func (c *Collector) Run(ctx context.Context) error {
	c.log.Info("listening for records")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := c.src.ReadLine(c.readTimeout)
		if errors.Is(err, lora.ErrReadTimeout) {
			continue
		}
		if errors.Is(err, lora.ErrLineTooLong) {
			c.rejected.Add(1)
			c.log.WithError(err).Warn("discarding noise on the link")
			continue
		}
		if err != nil {
			c.log.WithError(err).Warnf("read failed, reopening in %s", c.retryDelay)
			if err := sleepCtx(ctx, c.retryDelay); err != nil {
				return err
			}
			if r, ok := c.src.(reopener); ok {
				if err := r.Reopen(); err != nil {
					c.log.WithError(err).Warn("reopen failed")
				}
			}
			continue
		}
		c.Handle(ctx, line)
	}
}

// Handle decodes one line and dispatches it. It reports whether the line produced
// a reading; undecodable lines are logged with their raw text and dropped.
func (c *Collector) Handle(ctx context.Context, line string) (model.Reading, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.Reading{}, false
	}
	record := line
	if c.session != nil {
		fCnt, payload, err := lora.DecodeUplink(line, *c.session)
		if err != nil {
			c.rejected.Add(1)
			c.log.WithError(err).Warnf("dropping uplink %q", line)
			return model.Reading{}, false
		}
		c.log.Debugf("uplink fcnt=%d", fCnt)
		record = string(payload)
	}
	r, err := c.codec.DecodeReading(record)
	if err != nil {
		c.rejected.Add(1)
		c.log.WithError(err).Warnf("dropping undecodable record %q", record)
		return model.Reading{}, false
	}
	c.received.Add(1)

	failed := dispatchAll(ctx, c.log, c.sinks, r)
	entry := c.log.WithFields(log.Fields{"event": "record", "seq": r.Seq})
	if len(failed) > 0 {
		entry = entry.WithField("failed_sinks", strings.Join(failed, ","))
	}
	entry.Info(r.Summary())
	return r, true
}

// Stats returns the number of accepted and rejected records. It is safe to call
// while Run is active.
func (c *Collector) Stats() (received, rejected uint64) {
	return c.received.Load(), c.rejected.Load()
}
