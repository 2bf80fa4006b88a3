package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSlave(t *testing.T, dir, id, content string) {
	t.Helper()
	d := filepath.Join(dir, id)
	if err := os.MkdirAll(d, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(d, "w1_slave"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const goodSlave = "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n"

func TestParseW1Slave(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    float64
		wantErr bool
	}{
		{"ok", goodSlave, 23.125, false},
		{"negative", "ff ff : crc=aa YES\nff ff t=-1250\n", -1.25, false},
		{"crc", "72 01 : crc=57 NO\n72 01 t=23125\n", 0, true},
		{"truncated", "72 01 : crc=57 YES\n", 0, true},
		{"no value", "72 01 : crc=57 YES\n72 01\n", 0, true},
		{"garbage", "72 01 : crc=57 YES\n72 01 t=abc\n", 0, true},
		{"reset", "50 05 : crc=1c YES\n50 05 t=85000\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseW1Slave(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListW1Sensors(t *testing.T) {
	dir := t.TempDir()
	writeSlave(t, dir, "28-0000000000bb", goodSlave)
	writeSlave(t, dir, "28-0000000000aa", goodSlave)
	writeSlave(t, dir, "10-000801234567", goodSlave)
	if err := os.MkdirAll(filepath.Join(dir, "w1_bus_master1"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListW1Sensors(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"10-000801234567", "28-0000000000aa", "28-0000000000bb"}
	if len(got) != len(want) {
		t.Fatalf("found %d sensors, want %d", len(got), len(want))
	}
	for i, s := range got {
		if s.ID != want[i] {
			t.Fatalf("sensor %d = %s, want %s", i, s.ID, want[i])
		}
	}
	v, err := got[0].Read()
	if err != nil || v != 23.125 {
		t.Fatalf("read = %v, %v", v, err)
	}
}

func TestTemperatureProbe(t *testing.T) {
	dir := t.TempDir()
	p := NewTemperatureProbe(dir, "")
	if _, err := p.ReadTemperature(); !errors.Is(err, ErrNoSensor) {
		t.Fatalf("empty bus err = %v, want ErrNoSensor", err)
	}

	// hot-plugged sensor is picked up on the next read
	writeSlave(t, dir, "28-0000000000aa", goodSlave)
	v, err := p.ReadTemperature()
	if err != nil || v != 23.125 {
		t.Fatalf("read = %v, %v", v, err)
	}

	p.SensorID = "28-ffffffffffff"
	if _, err := p.ReadTemperature(); !errors.Is(err, ErrNoSensor) {
		t.Fatalf("unknown id err = %v, want ErrNoSensor", err)
	}
}
