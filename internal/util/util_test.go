package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"AirNode/internal/model"
)

func TestSetupLoggerTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "airnode.log")
	c, err := SetupLogger(model.LogConfig{Level: "debug", File: path})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	}()

	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("level = %s", log.GetLevel())
	}
	log.WithField("component", "test").Debug("hello file")
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "hello file") || !strings.Contains(string(b), "component=test") {
		t.Fatalf("log file = %q", b)
	}
}

func TestSetupLoggerRejectsBadLevel(t *testing.T) {
	if _, err := SetupLogger(model.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("accepted unknown level")
	}
	log.SetOutput(os.Stderr)
}

func TestPairArgs(t *testing.T) {
	got := strings.Join(PairArgs("/tmp/ttyA", "/tmp/ttyB"), " ")
	want := "-d -d pty,raw,echo=0,link=/tmp/ttyA pty,raw,echo=0,link=/tmp/ttyB"
	if got != want {
		t.Fatalf("args = %q", got)
	}
}
