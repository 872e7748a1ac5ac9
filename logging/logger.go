package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultLogger writes timestamped lines to stderr at info level.
var DefaultLogger = New(os.Stderr)

// New returns a timestamped logger writing to w.
func New(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Prefix:          "knockraven",
		Level:           log.InfoLevel,
	})
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	l := log.New(io.Discard)
	l.SetLevel(log.FatalLevel)
	return l
}

// SetLevel applies a log mode (dev|prod|none) and the -v count to l.
// prod logs info and above, dev logs debug, none only fatal errors.
// Any -v lowers prod to debug.
func SetLevel(l *log.Logger, mode string, verbosity int) {
	switch strings.ToLower(mode) {
	case "", "prod":
		l.SetLevel(log.InfoLevel)
		if verbosity > 0 {
			l.SetLevel(log.DebugLevel)
		}
	case "dev":
		l.SetLevel(log.DebugLevel)
	case "none":
		l.SetLevel(log.FatalLevel)
	default:
		l.Warnf("Unknown log mode %q, using info level", mode)
		l.SetLevel(log.InfoLevel)
	}
	if verbosity > 1 {
		l.SetReportCaller(true)
	}
}
