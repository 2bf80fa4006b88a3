// Package parser converts the air-quality module's binary frame and the forwarded
// text records to structured types and vice-versa.
//
// Air-quality frame (module -> UART, 9 bytes, pushed periodically):
//
//	ADDR_H ADDR_L TVOC_H TVOC_L CH2O_H CH2O_L CO2_H CO2_L SUM
//
// SUM is the low byte of the sum of the first eight bytes. Each value is a big-endian
// uint16 scaled by 0.001.
package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"AirNode/internal/model"
)

// FrameLen is the fixed length of an air-quality frame.
const FrameLen = 9

// Module address bytes from the datasheet.
const (
	DefaultAddrHigh byte = 0x2C
	DefaultAddrLow  byte = 0xE4
)

// Scale converts a raw frame value to its concentration.
const Scale = 0.001

// RawFrame is one frame as read from the wire.
type RawFrame [FrameLen]byte

// DecodeStatus tags a DecodeOutcome.
type DecodeStatus int

const (
	DecodeOK DecodeStatus = iota
	RejectedShortFrame
	RejectedAddressMismatch
	RejectedChecksumMismatch
)

func (s DecodeStatus) String() string {
	switch s {
	case DecodeOK:
		return "ok"
	case RejectedShortFrame:
		return "short_frame"
	case RejectedAddressMismatch:
		return "address_mismatch"
	case RejectedChecksumMismatch:
		return "checksum_mismatch"
	}
	return fmt.Sprintf("decode_status(%d)", int(s))
}

// DecodeOutcome is the result of decoding one frame. Air is only meaningful when
// Status is DecodeOK; Received is the input length.
type DecodeOutcome struct {
	Status   DecodeStatus
	Air      model.AirQuality
	Received int
}

// OK reports whether the frame decoded.
func (o DecodeOutcome) OK() bool { return o.Status == DecodeOK }

// Err maps a rejection to the shared error taxonomy; nil for DecodeOK.
func (o DecodeOutcome) Err() error {
	switch o.Status {
	case DecodeOK:
		return nil
	case RejectedShortFrame:
		return errors.Wrapf(model.ErrFrameTooShort, "received %d of %d bytes", o.Received, FrameLen)
	case RejectedAddressMismatch:
		return model.ErrAddressMismatch
	case RejectedChecksumMismatch:
		return model.ErrChecksumMismatch
	}
	return model.ErrUnexpectedFailure
}

// FrameDecoder validates and decodes frames for one module address.
type FrameDecoder struct {
	AddrHigh byte
	AddrLow  byte
}

// NewFrameDecoder returns a decoder for the datasheet address.
func NewFrameDecoder() FrameDecoder {
	return FrameDecoder{AddrHigh: DefaultAddrHigh, AddrLow: DefaultAddrLow}
}

// Decode checks length, address and checksum in that order and scales the three values.
func (d FrameDecoder) Decode(b []byte) DecodeOutcome {
	if len(b) != FrameLen {
		return DecodeOutcome{Status: RejectedShortFrame, Received: len(b)}
	}
	if b[0] != d.AddrHigh || b[1] != d.AddrLow {
		return DecodeOutcome{Status: RejectedAddressMismatch, Received: FrameLen}
	}
	if Checksum(b) != b[8] {
		return DecodeOutcome{Status: RejectedChecksumMismatch, Received: FrameLen}
	}
	return DecodeOutcome{
		Status: DecodeOK,
		Air: model.AirQuality{
			TVOC: float64(binary.BigEndian.Uint16(b[2:4])) * Scale,
			CH2O: float64(binary.BigEndian.Uint16(b[4:6])) * Scale,
			CO2:  float64(binary.BigEndian.Uint16(b[6:8])) * Scale,
		},
		Received: FrameLen,
	}
}

// Decode is a shortcut for NewFrameDecoder().Decode(b).
func Decode(b []byte) DecodeOutcome { return NewFrameDecoder().Decode(b) }

// Checksum returns the low byte of the sum of the first eight bytes of b.
func Checksum(b []byte) byte {
	var sum byte
	for i := 0; i < len(b) && i < FrameLen-1; i++ {
		sum += b[i]
	}
	return sum
}

// Encode builds a valid frame for this decoder's address from raw values.
func (d FrameDecoder) Encode(tvoc, ch2o, co2 uint16) RawFrame {
	var f RawFrame
	f[0], f[1] = d.AddrHigh, d.AddrLow
	binary.BigEndian.PutUint16(f[2:4], tvoc)
	binary.BigEndian.PutUint16(f[4:6], ch2o)
	binary.BigEndian.PutUint16(f[6:8], co2)
	f[8] = Checksum(f[:])
	return f
}

// EncodeFrame builds a valid frame with the datasheet address.
func EncodeFrame(tvoc, ch2o, co2 uint16) RawFrame {
	return NewFrameDecoder().Encode(tvoc, ch2o, co2)
}
