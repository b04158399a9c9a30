package tts

import (
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// ProgressReporter observes a session. Calls come from the sequencer
// goroutine, one at a time, and must return quickly.
type ProgressReporter interface {
	// Playing is called when a segment starts playing.
	Playing(seg ttypes.Segment)

	// Progress reports cumulative words finished out of total. Values
	// never decrease within a session.
	Progress(current, total int)

	// Finished is called once with the terminal state.
	Finished(state SessionState)
}

// NopReporter discards all progress.
type NopReporter struct{}

func (NopReporter) Playing(ttypes.Segment) {}
func (NopReporter) Progress(int, int)     {}
func (NopReporter) Finished(SessionState) {}

// LogReporter writes progress to the default logger.
type LogReporter struct{}

func (LogReporter) Playing(seg ttypes.Segment) {
	log.Info("Session: playing", "index", seg.Index, "text", seg.Text)
}

func (LogReporter) Progress(current, total int) {
	log.Debug("Session: progress", "current", current, "total", total)
}

func (LogReporter) Finished(state SessionState) {
	log.Info("Session: finished", "state", state)
}

// MultiReporter fans out to several reporters in order.
type MultiReporter []ProgressReporter

func (m MultiReporter) Playing(seg ttypes.Segment) {
	for _, r := range m {
		r.Playing(seg)
	}
}

func (m MultiReporter) Progress(current, total int) {
	for _, r := range m {
		r.Progress(current, total)
	}
}

func (m MultiReporter) Finished(state SessionState) {
	for _, r := range m {
		r.Finished(state)
	}
}
