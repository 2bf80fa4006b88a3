package device

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultW1Dir is where the w1-gpio/w1-therm kernel modules expose slaves.
const DefaultW1Dir = "/sys/bus/w1/devices"

// ErrNoSensor is returned when no thermometer is present on the bus.
var ErrNoSensor = errors.New("no one-wire temperature sensor found")

// Family codes of w1-therm thermometers (DS18S20, DS1822, DS18B20, DS1825, DS28EA00).
var w1Families = []string{"10", "22", "28", "3b", "42"}

// resetValue is the power-on register content reported before the first conversion.
const resetValue = 85000

// W1Sensor is one thermometer slave on the one-wire bus.
type W1Sensor struct {
	ID   string
	path string
}

// ListW1Sensors returns the thermometers under baseDir, sorted by id.
func ListW1Sensors(baseDir string) ([]*W1Sensor, error) {
	if baseDir == "" {
		baseDir = DefaultW1Dir
	}
	var out []*W1Sensor
	for _, fam := range w1Families {
		matches, err := filepath.Glob(filepath.Join(baseDir, fam+"-*"))
		if err != nil {
			return nil, errors.Wrap(err, "glob w1 devices")
		}
		for _, m := range matches {
			out = append(out, &W1Sensor{ID: filepath.Base(m), path: filepath.Join(m, "w1_slave")})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Read returns the temperature in °C.
func (s *W1Sensor) Read() (float64, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return 0, errors.Wrapf(err, "read %s", s.ID)
	}
	v, err := parseW1Slave(string(b))
	if err != nil {
		return 0, errors.Wrapf(err, "sensor %s", s.ID)
	}
	return v, nil
}

// parseW1Slave reads the w1_slave text:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(data string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) < 2 {
		return 0, errors.New("truncated w1_slave output")
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, errors.New("crc check failed")
	}
	i := strings.Index(lines[1], "t=")
	if i < 0 {
		return 0, errors.New("missing t= field")
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][i+2:]))
	if err != nil {
		return 0, errors.Wrap(err, "bad temperature value")
	}
	if milli == resetValue {
		return 0, errors.New("sensor reports power-on reset value")
	}
	return float64(milli) / 1000, nil
}

// TemperatureProbe reads one thermometer, picking it up again on every call so a
// sensor that is plugged in later starts reporting without a restart.
type TemperatureProbe struct {
	BaseDir  string
	SensorID string // empty = first sensor found
}

// NewTemperatureProbe returns a probe over baseDir.
func NewTemperatureProbe(baseDir, sensorID string) *TemperatureProbe {
	return &TemperatureProbe{BaseDir: baseDir, SensorID: sensorID}
}

// ReadTemperature returns the current temperature or ErrNoSensor.
func (p *TemperatureProbe) ReadTemperature() (float64, error) {
	sensors, err := ListW1Sensors(p.BaseDir)
	if err != nil {
		return 0, err
	}
	for _, s := range sensors {
		if p.SensorID == "" || s.ID == p.SensorID {
			return s.Read()
		}
	}
	if p.SensorID != "" {
		return 0, errors.Wrapf(ErrNoSensor, "id %s", p.SensorID)
	}
	return 0, ErrNoSensor
}
