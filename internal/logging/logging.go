package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dunamismax/curveflow/internal/config"
)

// New builds the process logger. Every binary gets its own prefix.
func New(prefix string, cfg config.LogConfig) *log.Logger {
	return NewWithWriter(os.Stdout, prefix, cfg)
}

func NewWithWriter(w io.Writer, prefix string, cfg config.LogConfig) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           ParseLevel(cfg.Level),
	})
	if cfg.JSON {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger
}

func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
