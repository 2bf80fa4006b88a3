// Package core contains the runtime of AirNode: the sampling loop on the sensor node,
// the collector on the receiving side and the System that wires them to hardware,
// sinks and the HTTP app.
package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"AirNode/internal/device"
	"AirNode/internal/model"
	"AirNode/internal/parser"
	"AirNode/internal/sink"
)

// TemperatureSource is the one-wire probe.
type TemperatureSource interface {
	ReadTemperature() (float64, error)
}

// FrameSource is the serial link to the air-quality module.
type FrameSource interface {
	ReadFrame(timeout time.Duration) device.FrameReadOutcome
	Reconnect() error
	State() device.ConnState
}

// LoopState is the phase the sampling loop is in.
type LoopState int

const (
	LoopIdle LoopState = iota
	LoopSampling
	LoopDispatching
	LoopSleeping
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopSampling:
		return "sampling"
	case LoopDispatching:
		return "dispatching"
	case LoopSleeping:
		return "sleeping"
	}
	return fmt.Sprintf("loop_state(%d)", int(s))
}

// Sampler periodically merges one temperature and one air-quality sample into a
// Reading and dispatches it to every sink. Either source may be nil (disabled).
type Sampler struct {
	cfg     model.SamplerConfig
	temp    TemperatureSource
	air     FrameSource
	decoder parser.FrameDecoder
	sinks   []sink.Sink
	now     func() time.Time
	log     *log.Entry

	mu    sync.Mutex
	state LoopState
	seq   uint64
}

// NewSampler creates an idle sampler.
func NewSampler(cfg model.SamplerConfig, temp TemperatureSource, air FrameSource, decoder parser.FrameDecoder, sinks []sink.Sink) *Sampler {
	return &Sampler{
		cfg:     cfg,
		temp:    temp,
		air:     air,
		decoder: decoder,
		sinks:   sinks,
		now:     time.Now,
		log:     log.WithField("component", "sampler"),
	}
}

// Resume continues numbering after seq, e.g. the last id found in the store.
func (s *Sampler) Resume(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.seq {
		s.seq = seq
	}
}

// State returns the current loop phase.
func (s *Sampler) State() LoopState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Seq returns the last issued sequence id (0 before the first reading).
func (s *Sampler) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *Sampler) setState(st LoopState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Sampler) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Run samples until ctx is cancelled and returns ctx.Err(). Hardware and sink
// failures are logged and never end the loop.
func (s *Sampler) Run(ctx context.Context) error {
	defer s.setState(LoopIdle)
	s.log.Infof("sampling every %s", s.cfg.Interval)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delay := s.cfg.Interval
		if _, err := s.safeCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.WithError(err).Errorf("cycle failed, recovering in %s", s.cfg.RecoveryDelay)
			delay = s.cfg.RecoveryDelay
		}
		s.setState(LoopSleeping)
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
}

func (s *Sampler) safeCycle(ctx context.Context) (r model.Reading, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = recovered(p)
		}
	}()
	return s.Cycle(ctx)
}

// Cycle runs one Sampling and Dispatching pass and returns the dispatched reading.
// The only error it returns is ctx's.
func (s *Sampler) Cycle(ctx context.Context) (model.Reading, error) {
	s.setState(LoopSampling)

	var (
		wg      sync.WaitGroup
		temp    *float64
		tempErr error
		frame   device.FrameReadOutcome
	)
	if s.temp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			temp, tempErr = s.readTemperature(ctx)
		}()
	}
	if s.air != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame = s.readFrame()
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		s.log.WithField("event", "cycle").Debug("cycle aborted by shutdown")
		return model.Reading{}, err
	}

	s.setState(LoopDispatching)
	r := model.Reading{Seq: s.nextSeq(), Time: s.now(), Temperature: temp}
	airStatus := s.applyFrame(&r, frame)
	failed := dispatchAll(ctx, s.log, s.sinks, r)

	fields := log.Fields{
		"event": "cycle",
		"seq":   r.Seq,
		"temp":  tempStatus(s.temp != nil, tempErr),
		"air":   airStatus,
	}
	if len(failed) > 0 {
		fields["failed_sinks"] = strings.Join(failed, ",")
	}
	entry := s.log.WithFields(fields)
	if tempErr != nil {
		entry = entry.WithError(tempErr)
	}
	if s.air != nil {
		entry = entry.WithField("link", s.air.State().String())
	}
	if frame.Err != nil {
		entry = entry.WithField("link_error", frame.Err.Error())
	}
	entry.Info(r.Summary())

	if s.air != nil && frame.Status == device.ReadLinkFault {
		s.reconnect(ctx)
	}
	return r, nil
}

func (s *Sampler) readTemperature(ctx context.Context) (*float64, error) {
	type result struct {
		v   float64
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: recovered(p)}
			}
		}()
		v, err := s.temp.ReadTemperature()
		ch <- result{v, err}
	}()

	timeout := s.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return model.Float(res.v), nil
	case <-t.C:
		return nil, errors.Errorf("probe timed out after %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Sampler) readFrame() (out device.FrameReadOutcome) {
	defer func() {
		if p := recover(); p != nil {
			out = device.FrameReadOutcome{Status: device.ReadLinkFault, Err: recovered(p)}
		}
	}()
	return s.air.ReadFrame(s.cfg.FrameTimeout)
}

// applyFrame decodes the read outcome into r and returns a short status for the
// cycle summary. Partial reads go through the decoder and come back as short frames.
func (s *Sampler) applyFrame(r *model.Reading, frame device.FrameReadOutcome) string {
	if s.air == nil {
		return "disabled"
	}
	var out parser.DecodeOutcome
	switch frame.Status {
	case device.ReadFrame:
		out = s.decoder.Decode(frame.Frame[:])
	case device.ReadPartial:
		out = s.decoder.Decode(frame.Received)
	default:
		return frame.Status.String()
	}
	if !out.OK() {
		s.log.WithError(out.Err()).Debug("frame rejected")
		return out.Status.String()
	}
	r.SetAir(out.Air)
	return "ok"
}

func (s *Sampler) reconnect(ctx context.Context) {
	s.setState(LoopSleeping)
	s.log.Warnf("serial link faulted, reconnecting in %s", s.cfg.ReconnectDelay)
	if err := sleepCtx(ctx, s.cfg.ReconnectDelay); err != nil {
		return
	}
	if err := s.air.Reconnect(); err != nil {
		s.log.WithError(err).Warn("reconnect failed, retrying next cycle")
		return
	}
	s.log.Info("serial link reconnected")
}

func tempStatus(enabled bool, err error) string {
	switch {
	case !enabled:
		return "disabled"
	case err != nil:
		return "absent"
	}
	return "ok"
}
