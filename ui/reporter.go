package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// Messages sent by a running session. gen identifies the session that sent
// them so events from a stopped session are ignored after a restart.
type (
	segmentPlayingMsg struct {
		gen int
		seg ttypes.Segment
	}

	progressMsg struct {
		gen     int
		current int
		total   int
	}

	sessionFinishedMsg struct {
		gen   int
		state tts.SessionState
	}
)

// teaReporter forwards session progress into the program's event loop.
type teaReporter struct {
	gen  int
	sub  chan<- tea.Msg
	stop <-chan struct{}
}

// send blocks until the event loop takes msg or the program stops.
func (r teaReporter) send(msg tea.Msg) {
	select {
	case r.sub <- msg:
	case <-r.stop:
	}
}

// offer drops msg when the event loop is behind. The sequencer must never
// wait on the interface; the final message carries the true position.
func (r teaReporter) offer(msg tea.Msg) {
	select {
	case r.sub <- msg:
	default:
	}
}

func (r teaReporter) Playing(seg ttypes.Segment) {
	r.offer(segmentPlayingMsg{gen: r.gen, seg: seg})
}

func (r teaReporter) Progress(current, total int) {
	r.offer(progressMsg{gen: r.gen, current: current, total: total})
}

func (r teaReporter) Finished(state tts.SessionState) {
	r.send(sessionFinishedMsg{gen: r.gen, state: state})
}

// waitForActivity reads the next session event.
func waitForActivity(sub <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}
