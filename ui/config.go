package ui

import (
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// Config contains TUI-specific configuration.
type Config struct {
	// Title is shown in the header, usually the file name.
	Title string

	// Engine is the provider name, shown in the header.
	Engine string

	// Load reads and segments the source. It is called at startup and
	// again whenever the watched file changes.
	Load func() ([]ttypes.Segment, error)

	// Start begins a new session over segments.
	Start func(segments []ttypes.Segment, reporter tts.ProgressReporter) (*tts.Session, error)

	// AutoStart begins reading as soon as the source is loaded.
	AutoStart bool

	// WatchPath restarts reading when the file changes.
	WatchPath string
}
