// Package cli holds the command-line-facing utilities shared by the gx binaries: logging
// setup and verbosity flags. Grounded on Please's src/cli/logging.go, trimmed to the parts
// that don't depend on an interactive terminal redraw loop (this tool has no live build
// progress display to preserve underneath its log lines, unlike Please's sandbox/remote
// execution status bar) — see DESIGN.md.
package cli

import (
	"os"

	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("cli")

// Verbosity is the logging level selectable from the command line, lowest to highest.
type Verbosity int

const (
	VerbosityError Verbosity = iota
	VerbosityWarning
	VerbosityNotice
	VerbosityInfo
	VerbosityDebug
)

func (v Verbosity) level() logging.Level {
	switch v {
	case VerbosityError:
		return logging.ERROR
	case VerbosityWarning:
		return logging.WARNING
	case VerbosityNotice:
		return logging.NOTICE
	case VerbosityInfo:
		return logging.INFO
	default:
		return logging.DEBUG
	}
}

func logFormatter() logging.Formatter {
	return logging.MustStringFormatter("%{time:15:04:05.000} %{level:7s}: %{message}")
}

// InitLogging installs a single stderr backend at the given verbosity. Call once, as early
// as possible in main.
func InitLogging(verbosity Verbosity) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, logFormatter())
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(verbosity.level(), "")
	logging.SetBackend(leveled)
}
