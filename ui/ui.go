// Package ui provides the interactive reading interface and a plain line
// reporter for non-interactive output.
package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

const (
	ellipsis         = "…"
	maxProgressWidth = 60
	maxTextWidth     = 80
	eventBuffer      = 16
)

// readerState is the top-level application state.
type readerState int

const (
	stateLoading readerState = iota
	stateReady
	stateReading
	stateStopping
	stateFinished
	stateError
)

func (s readerState) String() string {
	return map[readerState]string{
		stateLoading:  "Loading",
		stateReady:    "Ready",
		stateReading:  "Reading",
		stateStopping: "Stopping",
		stateFinished: "Finished",
		stateError:    "Error",
	}[s]
}

type keyMap struct {
	Toggle key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "start/stop"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type (
	segmentsLoadedMsg struct {
		segments []ttypes.Segment
		err      error
	}
	fileChangedMsg struct{}
)

// shared holds the parts of the model that must not be copied per update.
type shared struct {
	sub      chan tea.Msg
	stop     chan struct{}
	stopOnce sync.Once
	watcher  *Watcher
}

// Model is the bubbletea model of the reader.
type Model struct {
	cfg    Config
	shared *shared
	keys   keyMap

	spinner  spinner.Model
	progress progress.Model

	state    readerState
	final    tts.SessionState
	segments []ttypes.Segment
	session  *tts.Session
	gen      int

	current string
	words   int
	total   int
	summary string
	err     error

	width int
}

// New returns a reader model. It fails only if the watch path cannot be
// watched.
func New(cfg Config) (Model, error) {
	sh := &shared{
		sub:  make(chan tea.Msg, eventBuffer),
		stop: make(chan struct{}),
	}
	if cfg.WatchPath != "" {
		w, err := NewWatcher(cfg.WatchPath)
		if err != nil {
			return Model{}, err
		}
		sh.watcher = w
	}

	return Model{
		cfg:      cfg,
		shared:   sh,
		keys:     newKeyMap(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxProgressWidth)),
		state:    stateLoading,
	}, nil
}

// Run shows the reader until the user quits, then stops any running
// session.
func Run(cfg Config) error {
	m, err := New(cfg)
	if err != nil {
		return err
	}

	final, err := tea.NewProgram(m).Run()
	if fm, ok := final.(Model); ok {
		fm.Shutdown()
	} else {
		m.Shutdown()
	}
	return err
}

// Shutdown cancels the running session and releases the watcher. Reporter
// sends are released first so the session can finish without the event
// loop.
func (m Model) Shutdown() {
	m.shared.stopOnce.Do(func() {
		close(m.shared.stop)
	})
	if m.session != nil {
		state := m.session.Cancel()
		log.Info("UI: session ended", "state", state, "stats", m.session.Stats().String())
	}
	if m.shared.watcher != nil {
		_ = m.shared.watcher.Close()
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		waitForActivity(m.shared.sub),
		loadSegments(m.cfg.Load),
	}
	if m.shared.watcher != nil {
		cmds = append(cmds, watchFile(m.shared.watcher))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, min(maxProgressWidth, msg.Width-4))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			return m.toggle()
		}
		return m, nil

	case segmentsLoadedMsg:
		if msg.err != nil {
			m.state = stateError
			m.err = msg.err
			return m, nil
		}
		m.segments = msg.segments
		m.state = stateReady
		if m.cfg.AutoStart {
			return m.startSession()
		}
		return m, nil

	case fileChangedMsg:
		log.Debug("UI: source changed, restarting")
		old := m.session
		m.session = nil
		m.gen++
		m.state = stateLoading
		m.cfg.AutoStart = true
		return m, tea.Batch(reload(old, m.cfg.Load), watchFile(m.shared.watcher))

	case segmentPlayingMsg:
		if msg.gen == m.gen {
			m.current = msg.seg.Text
		}
		return m, waitForActivity(m.shared.sub)

	case progressMsg:
		if msg.gen == m.gen {
			m.words = msg.current
			m.total = msg.total
		}
		return m, waitForActivity(m.shared.sub)

	case sessionFinishedMsg:
		if msg.gen == m.gen && m.session != nil {
			stats := m.session.Stats()
			m.state = stateFinished
			m.final = msg.state
			m.words = int(stats.Sequencer.Position)
			m.summary = stats.String()
		}
		return m, waitForActivity(m.shared.sub)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// toggle stops a running session or starts a fresh one.
func (m Model) toggle() (tea.Model, tea.Cmd) {
	switch m.state {
	case stateReading:
		m.state = stateStopping
		return m, cancelSession(m.session)
	case stateReady, stateFinished:
		if len(m.segments) > 0 {
			return m.startSession()
		}
	}
	return m, nil
}

func (m Model) startSession() (Model, tea.Cmd) {
	m.gen++
	reporter := teaReporter{gen: m.gen, sub: m.shared.sub, stop: m.shared.stop}

	s, err := m.cfg.Start(m.segments, reporter)
	if err != nil {
		m.state = stateError
		m.err = err
		return m, nil
	}

	log.Debug("UI: session started", "id", s.ID(), "segments", len(m.segments))
	m.session = s
	m.state = stateReading
	m.current = ""
	m.words = 0
	m.total = 0
	for _, seg := range m.segments {
		m.total += seg.Words()
	}
	m.summary = ""
	m.err = nil
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString("\n  " + m.headerView() + "\n\n")
	b.WriteString("  " + m.statusView() + "\n\n")

	if m.current != "" {
		width := maxTextWidth
		if m.width > 0 {
			width = min(width, m.width-4)
		}
		b.WriteString(currentTextStyle.Render(wordwrap.String(m.current, width)) + "\n\n")
	}

	if m.total > 0 {
		pct := float64(m.words) / float64(m.total)
		fmt.Fprintf(&b, "  %s  %s\n\n", m.progress.ViewAs(pct), noteStyle(fmt.Sprintf("%d/%d words", m.words, m.total)))
	}

	if m.summary != "" {
		b.WriteString("  " + noteStyle(m.summary) + "\n\n")
	}

	b.WriteString(m.helpView() + "\n")
	return b.String()
}

func (m Model) headerView() string {
	logo := logoStyle.Render("Readaloud")

	title := m.cfg.Title
	if m.cfg.Engine != "" {
		title += " · " + m.cfg.Engine
	}
	if m.width > 0 {
		avail := max(0, m.width-runewidth.StringWidth("Readaloud")-8)
		title = runewidth.Truncate(title, avail, ellipsis)
	}
	if title == "" {
		return logo
	}
	return logo + titleStyle.Render(title)
}

func (m Model) statusView() string {
	switch m.state {
	case stateLoading, stateReading, stateStopping:
		return m.spinner.View() + " " + m.state.String() + ellipsis
	case stateFinished:
		if m.final == tts.StateCancelled {
			return "■ Stopped"
		}
		return "✔ Finished"
	case stateError:
		return errorStyle("✘ " + m.err.Error())
	}
	return fmt.Sprintf("%s (%d segments)", m.state, len(m.segments))
}

func (m Model) helpView() string {
	var parts []string
	for _, b := range []key.Binding{m.keys.Toggle, m.keys.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return helpStyle(strings.Join(parts, " • "))
}

// COMMANDS

func loadSegments(load func() ([]ttypes.Segment, error)) tea.Cmd {
	return func() tea.Msg {
		segments, err := load()
		return segmentsLoadedMsg{segments: segments, err: err}
	}
}

func reload(old *tts.Session, load func() ([]ttypes.Segment, error)) tea.Cmd {
	return func() tea.Msg {
		if old != nil {
			old.Cancel()
		}
		segments, err := load()
		return segmentsLoadedMsg{segments: segments, err: err}
	}
}

// cancelSession runs outside the event loop: Cancel waits for the
// session's final report, which the loop must still be free to receive.
func cancelSession(s *tts.Session) tea.Cmd {
	return func() tea.Msg {
		s.Cancel()
		return nil
	}
}

func watchFile(w *Watcher) tea.Cmd {
	return func() tea.Msg {
		if err := w.Next(context.Background()); err != nil {
			return nil
		}
		return fileChangedMsg{}
	}
}
