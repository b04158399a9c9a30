package ttypes

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval bounds how long any blocking point waits between
// cancellation checks.
const DefaultPollInterval = 100 * time.Millisecond

// CancellationToken is a one-shot, cooperative stop signal for a single
// reading session. Once cancelled it stays cancelled; a new session must
// create a new token.
type CancellationToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancellationToken creates a token in the not-cancelled state.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

// Cancel sets the token. Subsequent calls have no effect.
func (t *CancellationToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// IsCancelled reports whether Cancel has been called.
func (t *CancellationToken) IsCancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is cancelled.
func (t *CancellationToken) Done() <-chan struct{} {
	return t.done
}

// Sleep waits for d. It returns false if the token was cancelled first.
func (t *CancellationToken) Sleep(d time.Duration) bool {
	if d <= 0 {
		return !t.IsCancelled()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return !t.IsCancelled()
	case <-t.done:
		return false
	}
}

// Context returns a context cancelled together with the token, for handing
// to providers. The returned cancel func releases the watcher goroutine.
func (t *CancellationToken) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
