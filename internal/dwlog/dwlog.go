// Package dwlog is a structured-logging replacement for direwolf's
// textcolor.c / textcolor.go color-coded console output.
//
// The original assigns a color to each message category (INFO black, ERROR
// red, REC green, DECODED blue, XMIT magenta, DEBUG dark green) and prints
// through a single dw_printf. Here the category becomes a log level (or a
// field, for the three categories charmbracelet/log has no level for) on a
// single shared *log.Logger.
package dwlog

import (
	"os"

	"github.com/charmbracelet/log"
)

// Category mirrors direwolf's dw_color_e enum (textcolor.go).
type Category int

const (
	Info Category = iota
	Error
	Received
	Decoded
	Transmitted
	Debug
)

var std = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: false,
})

// SetLevel maps a direwolf-style "quiet/verbose" debug level onto the
// underlying logger's level, the way fx25_init's debug_level gates
// dw_printf calls at increasing verbosity.
func SetLevel(level int) {
	switch {
	case level <= 0:
		std.SetLevel(log.InfoLevel)
	case level == 1:
		std.SetLevel(log.DebugLevel)
	default:
		std.SetLevel(log.DebugLevel)
	}
}

// Printf logs msg under the given category, formatting the way dw_printf
// does. Categories with no natural charmbracelet/log level are tagged with
// a "cat" field instead of being dropped.
func Printf(cat Category, format string, args ...any) {
	switch cat {
	case Error:
		std.Errorf(format, args...)
	case Debug:
		std.Debugf(format, args...)
	case Received:
		std.With("cat", "rec").Infof(format, args...)
	case Decoded:
		std.With("cat", "decoded").Infof(format, args...)
	case Transmitted:
		std.With("cat", "xmit").Infof(format, args...)
	default:
		std.Infof(format, args...)
	}
}

func Infof(format string, args ...any)  { Printf(Info, format, args...) }
func Errf(format string, args ...any)   { Printf(Error, format, args...) }
func Debugf(format string, args ...any) { Printf(Debug, format, args...) }
func Rec(format string, args ...any)    { Printf(Received, format, args...) }
func Xmit(format string, args ...any)   { Printf(Transmitted, format, args...) }
