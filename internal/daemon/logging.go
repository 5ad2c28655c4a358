package daemon

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// SetupLogging configures the global logger. The returned closer releases the
// log file, if one was opened.
func SetupLogging(cfg LoggingConfig) (io.Closer, error) {
	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
	}
	log.SetLevel(level)

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
