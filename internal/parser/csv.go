package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"AirNode/internal/model"
)

// CSVParser implements Parser using comma-separated values.
// Example: 12,2025-01-02 15:04:05,23.50,0.050,0.100,1.000
type CSVParser struct{}

// NewCSVParser creates a new CSV parser instance.
func NewCSVParser() *CSVParser { return &CSVParser{} }

// EncodeReading converts a Reading into a CSV line.
func (p *CSVParser) EncodeReading(r model.Reading) (string, error) {
	line := fmt.Sprintf("%d,%s,%s,%s,%s,%s",
		r.Seq, r.Time.Format(TimeLayout),
		formatField(r.Temperature, 2), formatField(r.CH2O, 3),
		formatField(r.TVOC, 3), formatField(r.CO2, 3))
	return line, nil
}

// DecodeReading parses a CSV line into a Reading.
func (p *CSVParser) DecodeReading(line string) (model.Reading, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 6 {
		return model.Reading{}, fmt.Errorf("expected 6 fields, got %d", len(fields))
	}

	seq, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return model.Reading{}, errors.New("invalid id")
	}
	r := model.Reading{Seq: seq}
	if r.Time, err = parseTime(fields[1]); err != nil {
		return model.Reading{}, err
	}
	if r.Temperature, err = parseField("temp", fields[2]); err != nil {
		return model.Reading{}, err
	}
	if r.CH2O, err = parseField("ch2o", fields[3]); err != nil {
		return model.Reading{}, err
	}
	if r.TVOC, err = parseField("tvoc", fields[4]); err != nil {
		return model.Reading{}, err
	}
	if r.CO2, err = parseField("co2", fields[5]); err != nil {
		return model.Reading{}, err
	}
	return r, nil
}
