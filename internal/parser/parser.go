// Package parser converts the forwarded text records to structured readings and back.
//
// JSON record (node -> collector, one per line):
//
//	{"id":1,"ts":"2025-01-02 15:04:05","temp":"23.50","ch2o":"0.050","tvoc":"0.100","co2":"1.000"}
//
// CSV record:
//
//	ID,TS,TEMP,CH2O,TVOC,CO2
//
// Absent values travel as "N/A" in both formats and decode back to nil.
package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"AirNode/internal/model"
)

// TimeLayout is the wall-clock layout of the record timestamp.
const TimeLayout = "2006-01-02 15:04:05"

// Parser encodes readings into single-line records and decodes them back.
type Parser interface {
	EncodeReading(r model.Reading) (string, error)
	DecodeReading(line string) (model.Reading, error)
}

// New returns the parser registered for format ("json" or "csv").
func New(format string) (Parser, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return NewJSONParser(), nil
	case "csv":
		return NewCSVParser(), nil
	}
	return nil, errors.Errorf("unknown record format %q", format)
}

// formatField renders one measurement with prec decimals or the unavailable sentinel.
func formatField(v *float64, prec int) string {
	return model.FormatValue(v, prec)
}

// parseField is the inverse of formatField. Empty and "N/A" both mean absent.
func parseField(name, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, model.Unavailable) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Errorf("invalid %s %q", name, s)
	}
	return &v, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid ts %q", s)
	}
	return t, nil
}
