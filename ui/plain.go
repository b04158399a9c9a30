package ui

import (
	"fmt"
	"io"
	"sync"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// PlainReporter prints one line per segment as it starts playing. Colors
// are used only when w is a terminal.
type PlainReporter struct {
	mu    sync.Mutex
	out   *termenv.Output
	width int

	current int
	total   int
}

// NewPlainReporter writes to w, truncating lines to width columns. A width
// of zero disables truncation.
func NewPlainReporter(w io.Writer, width int) *PlainReporter {
	return &PlainReporter{
		out:   termenv.NewOutput(w),
		width: width,
	}
}

// Playing prints the segment text.
func (p *PlainReporter) Playing(seg ttypes.Segment) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefix := fmt.Sprintf("[%d] ", seg.Index+1)
	text := seg.Text
	if p.width > 0 {
		text = runewidth.Truncate(text, max(1, p.width-runewidth.StringWidth(prefix)), ellipsis)
	}
	fmt.Fprintln(p.out, p.out.String(prefix).Faint().String()+text)
}

// Progress records the position for the final line.
func (p *PlainReporter) Progress(current, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	p.total = total
}

// Finished prints the terminal state and word count.
func (p *PlainReporter) Finished(state tts.SessionState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	label := p.out.String(state.String()).Bold()
	if state == tts.StateCancelled {
		label = label.Foreground(p.out.Color("1"))
	} else {
		label = label.Foreground(p.out.Color("2"))
	}
	fmt.Fprintf(p.out, "%s %d/%d words\n", label, p.current, p.total)
}
