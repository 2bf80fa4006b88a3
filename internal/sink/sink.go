// Package sink contains the consumers of sampled readings: databases, the radio
// forwarder, the console and the live/metrics outputs.
package sink

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"AirNode/internal/model"
	"AirNode/internal/parser"
)

// Sink consumes readings. Dispatch must not keep r after it returns.
type Sink interface {
	Name() string
	Dispatch(ctx context.Context, r model.Reading) error
}

// Row is the persisted and published layout of a reading. Absent values are null.
type Row struct {
	ID        uint64   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Temp      *float64 `json:"temp"`
	CH2O      *float64 `json:"ch2o"`
	TVOC      *float64 `json:"tvoc"`
	CO2       *float64 `json:"co2"`
}

// NewRow converts a reading to its stored layout.
func NewRow(r model.Reading) Row {
	return Row{
		ID:        r.Seq,
		Timestamp: r.Time.Format(parser.TimeLayout),
		Temp:      r.Temperature,
		CH2O:      r.CH2O,
		TVOC:      r.TVOC,
		CO2:       r.CO2,
	}
}

// Reading converts a row back, interpreting the timestamp in local time.
func (row Row) Reading() (model.Reading, error) {
	ts, err := time.ParseInLocation(parser.TimeLayout, row.Timestamp, time.Local)
	if err != nil {
		return model.Reading{}, errors.Wrapf(err, "row %d timestamp", row.ID)
	}
	return model.Reading{
		Seq:         row.ID,
		Time:        ts,
		Temperature: row.Temp,
		CH2O:        row.CH2O,
		TVOC:        row.TVOC,
		CO2:         row.CO2,
	}, nil
}
