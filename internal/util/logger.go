// Package util provides process-level helpers: logger setup and virtual serial pairs.
package util

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"AirNode/internal/model"
)

// SetupLogger configures the standard logrus logger from cfg. When cfg.File is set,
// output goes to both stdout and the file; the returned closer closes the file.
func SetupLogger(cfg model.LogConfig) (io.Closer, error) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	level := log.InfoLevel
	if cfg.Level != "" {
		l, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "log level %q", cfg.Level)
		}
		level = l
	}
	log.SetLevel(level)

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create log dir for %s", cfg.File)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log file %s", cfg.File)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}
