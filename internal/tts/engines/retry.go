package engines

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// RetryProvider retries a synthesis call once when it times out. Any other
// failure, or a second timeout, is returned as is.
type RetryProvider struct {
	ttypes.Provider
	attempts int
}

// WithTimeoutRetry wraps p so TIMEOUT failures get one more attempt.
func WithTimeoutRetry(p ttypes.Provider) *RetryProvider {
	return &RetryProvider{Provider: p, attempts: 2}
}

// Synthesize calls the wrapped provider, retrying on TIMEOUT while ctx is
// still live.
func (r *RetryProvider) Synthesize(ctx context.Context, text, speaker string, speed float64) (*ttypes.Artifact, error) {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		var a *ttypes.Artifact
		a, err = r.Provider.Synthesize(ctx, text, speaker, speed)
		if err == nil {
			return a, nil
		}
		if !ttypes.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		log.Debug("Engine: retrying after timeout", "provider", r.Provider.Name(), "attempt", attempt)
	}
	return nil, err
}
