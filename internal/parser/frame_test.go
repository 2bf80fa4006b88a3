package parser

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"AirNode/internal/model"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDecode_DatasheetExample(t *testing.T) {
	b := []byte{0x2C, 0xE4, 0x00, 0x64, 0x00, 0x32, 0x03, 0xE8, 0x91}
	out := Decode(b)
	if !out.OK() {
		t.Fatalf("status=%v, want ok", out.Status)
	}
	if !near(out.Air.TVOC, 0.100) || !near(out.Air.CH2O, 0.050) || !near(out.Air.CO2, 1.000) {
		t.Fatalf("got %+v", out.Air)
	}
	if out.Err() != nil {
		t.Fatalf("Err()=%v, want nil", out.Err())
	}
}

func TestChecksum_MatchesExample(t *testing.T) {
	b := []byte{0x2C, 0xE4, 0x00, 0x64, 0x00, 0x32, 0x03, 0xE8, 0x00}
	if got := Checksum(b); got != 0x91 {
		t.Fatalf("checksum=%#x, want 0x91", got)
	}
}

func TestDecode_ValidFramesRecoverRawValues(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := [][3]uint16{{0, 0, 0}, {0xFFFF, 0xFFFF, 0xFFFF}, {1, 256, 65535}}
	for i := 0; i < 2000; i++ {
		cases = append(cases, [3]uint16{uint16(rng.Intn(65536)), uint16(rng.Intn(65536)), uint16(rng.Intn(65536))})
	}
	for _, c := range cases {
		f := EncodeFrame(c[0], c[1], c[2])
		out := Decode(f[:])
		if !out.OK() {
			t.Fatalf("%v: status=%v", c, out.Status)
		}
		want := model.AirQuality{
			TVOC: float64(int(f[2])*256+int(f[3])) * 0.001,
			CH2O: float64(int(f[4])*256+int(f[5])) * 0.001,
			CO2:  float64(int(f[6])*256+int(f[7])) * 0.001,
		}
		if out.Air != want {
			t.Fatalf("%v: got %+v want %+v", c, out.Air, want)
		}
		if !near(out.Air.TVOC, float64(c[0])/1000) {
			t.Fatalf("%v: tvoc %v not within rounding of %v", c, out.Air.TVOC, float64(c[0])/1000)
		}
	}
}

func TestDecode_BadChecksumAlwaysRejected(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 2000; i++ {
		f := EncodeFrame(uint16(rng.Intn(65536)), uint16(rng.Intn(65536)), uint16(rng.Intn(65536)))
		f[8] += byte(1 + rng.Intn(255))
		out := Decode(f[:])
		if out.Status != RejectedChecksumMismatch {
			t.Fatalf("frame % X: status=%v, want checksum mismatch", f[:], out.Status)
		}
		if !errors.Is(out.Err(), model.ErrChecksumMismatch) {
			t.Fatalf("Err()=%v", out.Err())
		}
	}
}

func TestDecode_WrongLengthRejectedFirst(t *testing.T) {
	for n := 0; n <= 32; n++ {
		if n == FrameLen {
			continue
		}
		b := make([]byte, n)
		// Content that would otherwise fail address and checksum checks.
		for i := range b {
			b[i] = 0xAA
		}
		out := Decode(b)
		if out.Status != RejectedShortFrame || out.Received != n {
			t.Fatalf("len %d: got %+v", n, out)
		}
		if !errors.Is(out.Err(), model.ErrFrameTooShort) {
			t.Fatalf("len %d: Err()=%v", n, out.Err())
		}
	}
}

func TestDecode_WrongAddressRejected(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 2000; i++ {
		hi, lo := byte(rng.Intn(256)), byte(rng.Intn(256))
		if hi == DefaultAddrHigh && lo == DefaultAddrLow {
			continue
		}
		f := FrameDecoder{AddrHigh: hi, AddrLow: lo}.Encode(uint16(rng.Intn(65536)), 7, 9)
		out := Decode(f[:])
		if out.Status != RejectedAddressMismatch {
			t.Fatalf("addr %02X%02X: status=%v", hi, lo, out.Status)
		}
	}
}

func TestFrameDecoder_CustomAddress(t *testing.T) {
	d := FrameDecoder{AddrHigh: 0x2C, AddrLow: 0xE5}
	f := d.Encode(1000, 2000, 3000)
	if out := d.Decode(f[:]); !out.OK() || !near(out.Air.CO2, 3.0) {
		t.Fatalf("custom decoder: %+v", out)
	}
	if out := Decode(f[:]); out.Status != RejectedAddressMismatch {
		t.Fatalf("default decoder accepted foreign address: %+v", out)
	}
}

func TestDecodeStatus_String(t *testing.T) {
	if RejectedChecksumMismatch.String() != "checksum_mismatch" {
		t.Fatalf("got %q", RejectedChecksumMismatch.String())
	}
}
