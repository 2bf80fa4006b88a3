package device

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// RadioMode is the operating mode of an E32/E22 style LoRa module, selected by M0/M1.
type RadioMode int

const (
	ModeNormal    RadioMode = iota // M0=0 M1=0, transparent UART
	ModeWakeUp                     // M0=1 M1=0
	ModePowerSave                  // M0=0 M1=1
	ModeConfig                     // M0=1 M1=1, sleep/parameter setting
)

func (m RadioMode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeWakeUp:
		return "wakeup"
	case ModePowerSave:
		return "powersave"
	case ModeConfig:
		return "config"
	}
	return fmt.Sprintf("radio_mode(%d)", int(m))
}

func (m RadioMode) levels() (m0, m1 gpio.Level) {
	return gpio.Level(m&1 != 0), gpio.Level(m&2 != 0)
}

// ModeSettle is how long the module needs after a mode change.
const ModeSettle = 100 * time.Millisecond

// RadioModePins drives the M0/M1 mode pins of the radio module.
type RadioModePins struct {
	m0, m1 gpio.PinIO
	mode   RadioMode
	settle time.Duration
	log    *log.Entry
}

// NewRadioModePins wraps two already resolved pins.
func NewRadioModePins(m0, m1 gpio.PinIO) *RadioModePins {
	return &RadioModePins{
		m0:     m0,
		m1:     m1,
		settle: ModeSettle,
		log:    log.WithField("component", "radio-pins"),
	}
}

// OpenRadioModePins initializes the periph host and resolves the pins by name (e.g. "GPIO23").
func OpenRadioModePins(m0Name, m1Name string) (*RadioModePins, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	m0 := gpioreg.ByName(m0Name)
	if m0 == nil {
		return nil, errors.Errorf("M0 pin %q not found", m0Name)
	}
	m1 := gpioreg.ByName(m1Name)
	if m1 == nil {
		return nil, errors.Errorf("M1 pin %q not found", m1Name)
	}
	return NewRadioModePins(m0, m1), nil
}

// Set drives both pins for mode and waits for the module to settle.
func (p *RadioModePins) Set(mode RadioMode) error {
	l0, l1 := mode.levels()
	if err := p.m0.Out(l0); err != nil {
		return errors.Wrapf(err, "drive M0 %s", p.m0.Name())
	}
	if err := p.m1.Out(l1); err != nil {
		return errors.Wrapf(err, "drive M1 %s", p.m1.Name())
	}
	p.mode = mode
	if p.settle > 0 {
		time.Sleep(p.settle)
	}
	p.log.Debugf("radio mode %s", mode)
	return nil
}

// Mode returns the last mode set.
func (p *RadioModePins) Mode() RadioMode { return p.mode }

// Release returns both pins to high-impedance inputs.
func (p *RadioModePins) Release() error {
	err0 := p.m0.In(gpio.PullNoChange, gpio.NoEdge)
	err1 := p.m1.In(gpio.PullNoChange, gpio.NoEdge)
	if err0 != nil {
		return errors.Wrap(err0, "release M0")
	}
	if err1 != nil {
		return errors.Wrap(err1, "release M1")
	}
	return nil
}
