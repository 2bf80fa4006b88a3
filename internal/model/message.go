// Package model defines shared message structures for AirNode.
package model

import (
	"fmt"
	"time"
)

// Reading is one merged sample covering temperature and air-quality values for one
// sampling cycle. A nil field means the value was unavailable in that cycle.
type Reading struct {
	Seq         uint64    `json:"id"`
	Time        time.Time `json:"timestamp"`
	Temperature *float64  `json:"temp"` // °C
	TVOC        *float64  `json:"tvoc"` // mg/m³
	CH2O        *float64  `json:"ch2o"` // mg/m³
	CO2         *float64  `json:"co2"`  // ppm
}

// AirQuality is a decoded air-quality frame.
type AirQuality struct {
	TVOC float64 `json:"tvoc"`
	CH2O float64 `json:"ch2o"`
	CO2  float64 `json:"co2"`
}

// Empty reports whether every measurement is absent (a failed cycle).
func (r Reading) Empty() bool {
	return r.Temperature == nil && r.TVOC == nil && r.CH2O == nil && r.CO2 == nil
}

// HasAir reports whether the air-quality part of the reading is present.
func (r Reading) HasAir() bool {
	return r.TVOC != nil && r.CH2O != nil && r.CO2 != nil
}

// SetAir copies the decoded frame values into the reading.
func (r *Reading) SetAir(a AirQuality) {
	r.TVOC = Float(a.TVOC)
	r.CH2O = Float(a.CH2O)
	r.CO2 = Float(a.CO2)
}

// Summary formats the reading for a single log or console line.
func (r Reading) Summary() string {
	return fmt.Sprintf("#%d T=%s°C | CH2O=%s | TVOC=%s | CO2=%s",
		r.Seq, FormatValue(r.Temperature, 2), FormatValue(r.CH2O, 3),
		FormatValue(r.TVOC, 3), FormatValue(r.CO2, 3))
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Unavailable is the text rendering of an absent value on the wire and in logs.
const Unavailable = "N/A"

// FormatValue renders v with prec decimals, or Unavailable when v is nil.
func FormatValue(v *float64, prec int) string {
	if v == nil {
		return Unavailable
	}
	return fmt.Sprintf("%.*f", prec, *v)
}
