package parser

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"AirNode/internal/model"
)

// JSONParser implements Parser using the JSON record the node sends over LoRa.
type JSONParser struct{}

// NewJSONParser creates a new JSON parser.
func NewJSONParser() *JSONParser { return &JSONParser{} }

// jsonRecord mirrors the wire layout; measurements are text so "N/A" fits.
type jsonRecord struct {
	ID   uint64 `json:"id"`
	TS   string `json:"ts"`
	Temp string `json:"temp"`
	CH2O string `json:"ch2o"`
	TVOC string `json:"tvoc"`
	CO2  string `json:"co2"`
}

// EncodeReading encodes a Reading into a JSON record.
func (p *JSONParser) EncodeReading(r model.Reading) (string, error) {
	b, err := json.Marshal(jsonRecord{
		ID:   r.Seq,
		TS:   r.Time.Format(TimeLayout),
		Temp: formatField(r.Temperature, 2),
		CH2O: formatField(r.CH2O, 3),
		TVOC: formatField(r.TVOC, 3),
		CO2:  formatField(r.CO2, 3),
	})
	return string(b), err
}

// DecodeReading decodes a JSON record into a Reading.
func (p *JSONParser) DecodeReading(line string) (model.Reading, error) {
	var rec jsonRecord
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &rec); err != nil {
		return model.Reading{}, errors.Wrap(err, "decode json record")
	}
	r := model.Reading{Seq: rec.ID}
	var err error
	if r.Time, err = parseTime(rec.TS); err != nil {
		return model.Reading{}, err
	}
	if r.Temperature, err = parseField("temp", rec.Temp); err != nil {
		return model.Reading{}, err
	}
	if r.CH2O, err = parseField("ch2o", rec.CH2O); err != nil {
		return model.Reading{}, err
	}
	if r.TVOC, err = parseField("tvoc", rec.TVOC); err != nil {
		return model.Reading{}, err
	}
	if r.CO2, err = parseField("co2", rec.CO2); err != nil {
		return model.Reading{}, err
	}
	return r, nil
}
