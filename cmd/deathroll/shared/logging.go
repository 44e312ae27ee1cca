package shared

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// SetupLogger returns a logger writing to w at the named level. Unknown
// levels fall back to info.
func SetupLogger(w io.Writer, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
