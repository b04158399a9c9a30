package tts

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// Sequencer plays synthesis results strictly in segment order. It owns the
// playback device for the lifetime of a session.
type Sequencer struct {
	device   ttypes.Device
	token    *ttypes.CancellationToken
	reporter ProgressReporter
	config   SessionConfig

	// notice is played in place of a failed segment when set.
	notice *queue.Future

	played      atomic.Int64
	skipped     atomic.Int64
	interrupted atomic.Int64
	position    atomic.Int64
}

// NewSequencer creates a sequencer. A nil reporter discards progress.
func NewSequencer(device ttypes.Device, token *ttypes.CancellationToken, reporter ProgressReporter, config SessionConfig) *Sequencer {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Sequencer{
		device:   device,
		token:    token,
		reporter: reporter,
		config:   config.withDefaults(),
	}
}

// SetFailureNotice sets the future of the phrase played for failed segments.
func (s *Sequencer) SetFailureNotice(f *queue.Future) {
	s.notice = f
}

// Run drains futures in index order and returns the terminal state.
// futures[i] must belong to segments[i].
func (s *Sequencer) Run(segments []ttypes.Segment, futures []*queue.Future) SessionState {
	total := 0
	for _, seg := range segments {
		total += seg.Words()
	}

	current := 0
	s.reporter.Progress(current, total)

	for i, f := range futures {
		seg := segments[i]

		if i > 0 && !s.token.Sleep(s.config.Pause) {
			return s.cancelled(current, total)
		}

		a, err := f.Wait(s.token, s.config.PollInterval)
		switch {
		case errors.Is(err, queue.ErrWaitCancelled):
			return s.cancelled(current, total)

		case err != nil:
			s.skipped.Add(1)
			log.Warn("Sequencer: skipping segment", "index", seg.Index, "code", ttypes.CodeOf(err), "error", err)
			if s.config.AnnounceFailures && !s.announce(seg) {
				return s.cancelled(current, total)
			}

		case a == nil:
			if s.token.IsCancelled() {
				return s.cancelled(current, total)
			}
			s.skipped.Add(1)
			log.Warn("Sequencer: skipping segment without audio", "index", seg.Index)

		default:
			if !s.play(seg, a) {
				return s.cancelled(current, total)
			}
		}

		current += seg.Words()
		s.position.Store(int64(current))
		s.reporter.Progress(current, total)
	}

	log.Debug("Sequencer: done", "played", s.played.Load(), "skipped", s.skipped.Load())
	return StateDone
}

// play loads and plays one artifact, returning false when cancelled.
// Playback errors skip the segment.
func (s *Sequencer) play(seg ttypes.Segment, a *ttypes.Artifact) bool {
	if s.token.IsCancelled() {
		return false
	}

	h, err := s.device.Load(a)
	if err != nil {
		s.skipped.Add(1)
		log.Warn("Sequencer: playback failed", "index", seg.Index, "code", ttypes.CodeOf(err), "error", err)
		return true
	}
	defer h.Stop()

	if err := h.Play(); err != nil {
		s.skipped.Add(1)
		log.Warn("Sequencer: playback failed", "index", seg.Index, "error", err)
		return true
	}

	s.reporter.Playing(seg)
	log.Debug("Sequencer: playing", "index", seg.Index, "duration", a.Duration())

	ticker := time.NewTicker(playbackPollInterval)
	defer ticker.Stop()

	for h.IsPlaying() {
		select {
		case <-s.token.Done():
			h.Stop()
			s.interrupted.Add(1)
			log.Debug("Sequencer: playback interrupted", "index", seg.Index)
			return false
		case <-ticker.C:
		}
	}

	s.played.Add(1)
	return true
}

// announce plays the failure notice in place of seg.
func (s *Sequencer) announce(seg ttypes.Segment) bool {
	if s.notice == nil {
		return true
	}

	a, err := s.notice.Wait(s.token, s.config.PollInterval)
	if errors.Is(err, queue.ErrWaitCancelled) {
		return false
	}
	if err != nil || a == nil {
		log.Warn("Sequencer: failure notice unavailable", "index", seg.Index, "error", err)
		return !s.token.IsCancelled()
	}

	return s.play(ttypes.Segment{Index: seg.Index, Text: s.config.FailureNotice}, a)
}

func (s *Sequencer) cancelled(current, total int) SessionState {
	if s.config.CompleteOnCancel {
		current = total
	}
	s.position.Store(int64(current))
	s.reporter.Progress(current, total)
	log.Debug("Sequencer: cancelled", "position", current, "total", total)
	return StateCancelled
}

// SequencerStats is a snapshot of sequencer counters.
type SequencerStats struct {
	Played      int64
	Skipped     int64
	Interrupted int64
	Position    int64
}

// Stats returns a snapshot of sequencer counters.
func (s *Sequencer) Stats() SequencerStats {
	return SequencerStats{
		Played:      s.played.Load(),
		Skipped:     s.skipped.Load(),
		Interrupted: s.interrupted.Load(),
		Position:    s.position.Load(),
	}
}
