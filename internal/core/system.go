package core

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"AirNode/internal/app"
	"AirNode/internal/device"
	"AirNode/internal/lora"
	"AirNode/internal/model"
	"AirNode/internal/parser"
	"AirNode/internal/sink"
)

// Role selects what a System runs.
type Role int

const (
	RoleNode      Role = iota // sample sensors and forward
	RoleCollector             // receive forwarded records
)

// runner is the main loop of a System (Sampler or Collector).
type runner interface {
	Run(ctx context.Context) error
}

type closer struct {
	name  string
	close func() error
}

// System manages lifecycle of the components built from one configuration: the
// hardware handles, the sinks, the HTTP app and the main loop. Resources are
// released in reverse order of acquisition.
type System struct {
	cfg  *model.Config
	role Role

	Sampler   *Sampler
	Collector *Collector
	Reader    *device.FrameReader
	Pins      *device.RadioModePins
	Radio     *lora.LoRa
	Bolt      *sink.BoltSink
	Hub       *sink.Hub
	App       *app.App
	Registry  *prometheus.Registry
	Sinks     []sink.Sink

	loop    runner
	closers []closer
	log     *log.Entry

	started   bool
	startLock sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSystem builds every component cfg enables for role. On error everything
// acquired so far is released.
func NewSystem(cfg *model.Config, role Role) (*System, error) {
	s := &System{
		cfg:      cfg,
		role:     role,
		Registry: prometheus.NewRegistry(),
		log:      log.WithField("component", "system"),
	}
	s.Registry.MustRegister(collectors.NewBuildInfoCollector())

	err := s.buildStorage()
	if err == nil {
		switch role {
		case RoleNode:
			err = s.buildNode()
		case RoleCollector:
			err = s.buildCollector()
		default:
			err = errors.Errorf("unknown role %d", role)
		}
	}
	if err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *System) own(name string, fn func() error) {
	s.closers = append(s.closers, closer{name: name, close: fn})
}

// buildStorage opens the stores and the outputs shared by both roles, in dispatch
// order: databases, MQTT, metrics, websocket, console.
func (s *System) buildStorage() error {
	cfg := s.cfg
	if cfg.Storage.BoltPath != "" {
		b, err := sink.OpenBolt(cfg.Storage.BoltPath)
		if err != nil {
			return err
		}
		s.Bolt = b
		s.own("bolt", b.Close)
		s.Sinks = append(s.Sinks, b)
	}
	if cfg.Storage.SQLitePath != "" {
		db, err := sink.OpenSQLite(cfg.Storage.SQLitePath, cfg.Storage.Table)
		if err != nil {
			return err
		}
		s.own("sqlite", db.Close)
		s.Sinks = append(s.Sinks, db)
	}
	if cfg.MQTT.Broker != "" {
		m, err := sink.DialMQTT(cfg.MQTT)
		if err != nil {
			return err
		}
		s.own("mqtt", m.Close)
		s.Sinks = append(s.Sinks, m)
	}
	s.Sinks = append(s.Sinks, sink.NewMetrics(s.Registry))
	if cfg.HTTP.Addr != "" {
		s.Hub = sink.NewHub()
		s.own("ws", s.Hub.Close)
		s.Sinks = append(s.Sinks, s.Hub)
	}
	if cfg.Console {
		s.Sinks = append(s.Sinks, sink.NewConsole(nil))
	}
	return nil
}

func (s *System) buildNode() error {
	cfg := s.cfg
	if cfg.Radio.Enabled {
		fwd, err := s.buildRadio()
		if err != nil {
			return err
		}
		s.Sinks = append(s.Sinks, fwd)
	}

	var temp TemperatureSource
	if cfg.Temperature.Enabled {
		temp = device.NewTemperatureProbe(cfg.Temperature.BaseDir, cfg.Temperature.SensorID)
	}

	var air FrameSource
	if cfg.Air.Enabled {
		s.Reader = device.NewFrameReader(cfg.Air.Device, cfg.Air.Baud, nil)
		if err := s.Reader.Open(); err != nil {
			// a missing module is retried by the loop
			s.log.WithError(err).Warn("air-quality module not available at startup")
		}
		s.own("air-serial", s.Reader.Close)
		air = s.Reader
	}

	decoder := parser.FrameDecoder{AddrHigh: cfg.Air.AddrHigh, AddrLow: cfg.Air.AddrLow}
	s.Sampler = NewSampler(cfg.Sampler, temp, air, decoder, s.Sinks)
	if s.Bolt != nil {
		if last, err := s.Bolt.Latest(); err == nil && last != nil {
			s.Sampler.Resume(last.ID)
			s.log.Infof("resuming after sequence %d", last.ID)
		}
	}
	s.loop = s.Sampler
	return nil
}

// buildRadio sets the module mode pins and opens the LoRa link.
func (s *System) buildRadio() (*sink.ForwardSink, error) {
	cfg := s.cfg.Radio
	if cfg.M0Pin != "" {
		pins, err := device.OpenRadioModePins(cfg.M0Pin, cfg.M1Pin)
		if err != nil {
			return nil, err
		}
		s.Pins = pins
		s.own("radio-pins", pins.Release)
		if err := pins.Set(device.ModeNormal); err != nil {
			return nil, err
		}
	}

	radio, err := lora.New(cfg.Device, cfg.Baud)
	if err != nil {
		s.log.WithError(err).Warn("radio not available at startup, will reopen on send")
		radio = lora.NewClosed(cfg.Device, cfg.Baud, nil)
	}
	s.Radio = radio
	s.own("radio-serial", radio.Close)

	codec, err := parser.New(cfg.Format)
	if err != nil {
		return nil, err
	}
	var framer sink.Framer
	if cfg.LoRaWAN.Enabled {
		sess, err := lora.ParseSession(cfg.LoRaWAN)
		if err != nil {
			return nil, err
		}
		framer = lora.NewUplinkEncoder(sess)
	}
	return sink.NewForward(radio, codec, framer), nil
}

func (s *System) buildCollector() error {
	cfg := s.cfg
	radio, err := lora.New(cfg.Collector.Device, cfg.Collector.Baud)
	if err != nil {
		s.log.WithError(err).Warn("collector radio not available at startup")
		radio = lora.NewClosed(cfg.Collector.Device, cfg.Collector.Baud, nil)
	}
	s.Radio = radio
	s.own("radio-serial", radio.Close)

	codec, err := parser.New(cfg.Collector.Format)
	if err != nil {
		return err
	}
	var sess *lora.Session
	if cfg.Radio.LoRaWAN.Enabled {
		v, err := lora.ParseSession(cfg.Radio.LoRaWAN)
		if err != nil {
			return err
		}
		sess = &v
	}
	s.Collector = NewCollector(radio, codec, sess, s.Sinks, cfg.Collector.ReadTimeout)
	s.loop = s.Collector
	return nil
}

// StartAll starts the HTTP app and the main loop in the background.
func (s *System) StartAll(ctx context.Context) error {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)

	if s.cfg.HTTP.Addr != "" {
		var store app.Store
		if s.Bolt != nil {
			store = s.Bolt
		}
		s.App = app.NewApp(store, s.Hub, s.Registry)
		if err := s.App.Listen(s.cfg.HTTP.Addr); err != nil {
			s.cancel()
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.App.Serve(); err != nil {
				s.log.WithError(err).Error("web server stopped")
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithError(err).Error("main loop stopped")
		}
	}()
	s.started = true
	return nil
}

// StopAll cancels the loop, stops the web server, waits for both and releases
// every resource. It is safe to call whether or not StartAll ran.
func (s *System) StopAll() {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		s.cancel()
		s.App.Stop()
		s.wg.Wait()
		s.started = false
	}
	s.release()
}

func (s *System) release() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.close(); err != nil {
			s.log.WithError(err).Warnf("close %s", c.name)
		} else {
			s.log.Debugf("closed %s", c.name)
		}
	}
	s.closers = nil
}
