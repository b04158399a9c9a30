package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// ErrWaitCancelled is returned by Future.Wait when the token fires first.
var ErrWaitCancelled = errors.New("wait cancelled")

// Future holds the outcome of one job. It is resolved exactly once.
// A nil artifact with a nil error means the job was cancelled.
type Future struct {
	index int

	once     sync.Once
	done     chan struct{}
	artifact *ttypes.Artifact
	err      error
}

func newFuture(index int) *Future {
	return &Future{index: index, done: make(chan struct{})}
}

// resolve records the outcome. Later calls are ignored and reported false.
func (f *Future) resolve(a *ttypes.Artifact, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.artifact = a
		f.err = err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Index returns the segment index the future belongs to.
func (f *Future) Index() int {
	return f.index
}

// Done returns a channel closed once the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the future is resolved.
func (f *Future) Result() (*ttypes.Artifact, error) {
	<-f.done
	return f.artifact, f.err
}

// Wait blocks until the future resolves or token is cancelled, checking the
// token at least every poll interval. It returns ErrWaitCancelled when the
// token wins.
func (f *Future) Wait(token *ttypes.CancellationToken, poll time.Duration) (*ttypes.Artifact, error) {
	if poll <= 0 {
		poll = ttypes.DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-f.done:
			return f.artifact, f.err
		case <-token.Done():
			return nil, ErrWaitCancelled
		case <-ticker.C:
			if token.IsCancelled() {
				return nil, ErrWaitCancelled
			}
			log.Debug("Queue: waiting for segment", "index", f.index, "elapsed", time.Since(start).Round(time.Millisecond))
		}
	}
}
