// Package tts runs reading sessions: segments are synthesized concurrently
// by a worker pool and played back strictly in order by a sequencer.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

var (
	// ErrNoSegments is returned by Start when there is nothing to read.
	ErrNoSegments = errors.New("no segments to read")

	// ErrSegmentOrder is returned by Start when indices are not 0..N-1.
	ErrSegmentOrder = errors.New("segment indices must be contiguous from 0")
)

// Session is one reading of a sequence of segments. It owns its token,
// cache, worker pool and sequencer; nothing is shared between sessions.
type Session struct {
	id       string
	config   SessionConfig
	segments []ttypes.Segment

	token     *ttypes.CancellationToken
	cache     *cache.SynthesisCache
	pool      *queue.WorkerPool
	sequencer *Sequencer
	reporter  ProgressReporter

	state atomic.Int32
	done  chan struct{}

	mu      sync.Mutex
	started time.Time
	ended   time.Time
}

// Start validates config, submits every segment for synthesis and begins
// playback in the background. Configuration errors are returned before any
// worker starts. Cancelling ctx cancels the session.
func Start(ctx context.Context, segments []ttypes.Segment, config SessionConfig, provider ttypes.Provider, device ttypes.Device, reporter ProgressReporter) (*Session, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if device == nil {
		return nil, errors.New("device is required")
	}
	if err := config.Validate(provider); err != nil {
		return nil, err
	}
	if err := checkSegments(segments); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	config = config.withDefaults()

	c, err := cache.New(config.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	token := ttypes.NewCancellationToken()

	var pin cache.PinPolicy
	if config.AnnounceFailures {
		pin = cache.PinPhrases(config.FailureNotice)
	}

	pool, err := queue.NewWorkerPool(queue.Config{
		Workers:  config.Workers,
		Provider: provider,
		Cache:    c,
		Token:    token,
		Speaker:  config.Speaker,
		Speed:    config.Speed,
		Pin:      pin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	s := &Session{
		id:        uuid.NewString(),
		config:    config,
		segments:  segments,
		token:     token,
		cache:     c,
		pool:      pool,
		sequencer: NewSequencer(device, token, reporter, config),
		reporter:  reporter,
		done:      make(chan struct{}),
		started:   time.Now(),
	}
	s.state.Store(int32(StateIdle))

	// The notice goes first so a failed segment never waits behind the
	// rest of the document.
	if config.AnnounceFailures {
		notice, err := pool.Submit(ttypes.Segment{Index: -1, Text: config.FailureNotice})
		if err != nil {
			token.Cancel()
			pool.Close()
			return nil, fmt.Errorf("failed to submit failure notice: %w", err)
		}
		s.sequencer.SetFailureNotice(notice)
	}

	futures, err := pool.SubmitAll(segments)
	if err != nil {
		token.Cancel()
		pool.Close()
		return nil, fmt.Errorf("failed to submit segments: %w", err)
	}

	s.transition(StateActive)
	log.Debug("Session: started", "id", s.id, "segments", len(segments), "provider", provider.Name(), "workers", config.Workers)

	go s.run(ctx, futures)
	return s, nil
}

func checkSegments(segments []ttypes.Segment) error {
	if len(segments) == 0 {
		return ErrNoSegments
	}
	for i, seg := range segments {
		if seg.Index != i {
			return fmt.Errorf("%w: position %d has index %d", ErrSegmentOrder, i, seg.Index)
		}
	}
	return nil
}

// run drives the sequencer and tears everything down on every exit path.
func (s *Session) run(ctx context.Context, futures []*queue.Future) {
	defer close(s.done)

	final := StateCancelled

	var g errgroup.Group
	g.Go(func() error {
		// Setting the token once playback ends releases the watcher below
		// and resolves jobs that are still queued without synthesizing them.
		defer s.token.Cancel()
		final = s.sequencer.Run(s.segments, futures)
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			log.Debug("Session: context done", "id", s.id, "error", ctx.Err())
			s.token.Cancel()
		case <-s.token.Done():
		}
		return nil
	})
	_ = g.Wait()

	s.pool.Close()

	s.mu.Lock()
	s.ended = time.Now()
	s.mu.Unlock()

	s.transition(final)
	s.reporter.Finished(final)
	log.Debug("Session: finished", "id", s.id, "state", final, "summary", s.Stats().String())
}

func (s *Session) transition(next SessionState) {
	for {
		cur := SessionState(s.state.Load())
		if !cur.CanTransition(next) {
			log.Warn("Session: invalid transition", "id", s.id, "from", cur, "to", next)
			return
		}
		if s.state.CompareAndSwap(int32(cur), int32(next)) {
			return
		}
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Done returns a channel closed after the session has fully torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the session and blocks until the sequencer and every worker
// have exited. It is safe to call more than once and after completion.
func (s *Session) Cancel() SessionState {
	s.token.Cancel()
	<-s.done
	return s.State()
}

// Wait blocks until the session ends and returns its terminal state.
func (s *Session) Wait() SessionState {
	<-s.done
	return s.State()
}

// SessionStats summarizes a session.
type SessionStats struct {
	ID        string
	State     SessionState
	Segments  int
	Elapsed   time.Duration
	Sequencer SequencerStats
	Pool      queue.PoolStats
	Cache     cache.Stats
}

// Stats returns a snapshot of session statistics.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	end := s.ended
	s.mu.Unlock()
	if end.IsZero() {
		end = time.Now()
	}

	return SessionStats{
		ID:        s.id,
		State:     s.State(),
		Segments:  len(s.segments),
		Elapsed:   end.Sub(s.started),
		Sequencer: s.sequencer.Stats(),
		Pool:      s.pool.Stats(),
		Cache:     s.cache.Stats(),
	}
}

// String returns a one-line human readable summary.
func (st SessionStats) String() string {
	return fmt.Sprintf("%s: played %s of %s segments (%s skipped) in %s, synthesis %s, %s",
		st.State,
		humanize.Comma(st.Sequencer.Played),
		humanize.Comma(int64(st.Segments)),
		humanize.Comma(st.Sequencer.Skipped),
		st.Elapsed.Round(time.Millisecond),
		st.Pool.SynthesisTime.Round(time.Millisecond),
		st.Cache,
	)
}
