package lora

import (
	"bytes"
	"testing"

	"AirNode/internal/model"
)

func testSession(t *testing.T) Session {
	t.Helper()
	s, err := ParseSession(model.LoRaWANConfig{
		Enabled: true,
		DevAddr: "01000001",
		NwkSKey: "202122232425262728292a2b2c2d2e2f",
		AppSKey: "101112131415161718191a1b1c1d1e1f",
		FPort:   10,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestUplinkRoundTrip(t *testing.T) {
	sess := testSession(t)
	enc := NewUplinkEncoder(sess)
	payload := []byte(`{"id":7,"ts":"2024-01-01 00:00:00","temp":"N/A","ch2o":"0.050","tvoc":"0.100","co2":"1.000"}`)

	for i := uint32(0); i < 3; i++ {
		line, err := enc.Encode(payload)
		if err != nil {
			t.Fatal(err)
		}
		fCnt, got, err := DecodeUplink(line, sess)
		if err != nil {
			t.Fatal(err)
		}
		if fCnt != i {
			t.Fatalf("fcnt = %d, want %d", fCnt, i)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("payload = %q", got)
		}
	}
	if enc.FCnt() != 3 {
		t.Fatalf("next fcnt = %d", enc.FCnt())
	}
}

func TestDecodeUplinkRejectsWrongKey(t *testing.T) {
	sess := testSession(t)
	line, err := NewUplinkEncoder(sess).Encode([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	other := sess
	other.NwkSKey[0] ^= 0xFF
	if _, _, err := DecodeUplink(line, other); err == nil {
		t.Fatal("accepted frame with wrong network key")
	}
	if _, _, err := DecodeUplink("zz", sess); err == nil {
		t.Fatal("accepted non-hex line")
	}
}

func TestParseSessionErrors(t *testing.T) {
	bad := []model.LoRaWANConfig{
		{DevAddr: "0100", NwkSKey: "202122232425262728292a2b2c2d2e2f", AppSKey: "101112131415161718191a1b1c1d1e1f", FPort: 10},
		{DevAddr: "01000001", NwkSKey: "nothex", AppSKey: "101112131415161718191a1b1c1d1e1f", FPort: 10},
		{DevAddr: "01000001", NwkSKey: "202122232425262728292a2b2c2d2e2f", AppSKey: "101112131415161718191a1b1c1d1e1f", FPort: 0},
	}
	for i, c := range bad {
		if _, err := ParseSession(c); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
