package tts

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// Session defaults.
const (
	DefaultSpeed         = 1.0
	DefaultPause         = 300 * time.Millisecond
	DefaultFailureNotice = "synthesis failed"

	MinSpeed = 0.25
	MaxSpeed = 4.0

	// playbackPollInterval is how often a playing handle is checked.
	playbackPollInterval = 20 * time.Millisecond
)

// SessionConfig holds the settings for one reading session.
type SessionConfig struct {
	// Speaker is passed to the provider unchanged. Empty selects the
	// provider's default voice.
	Speaker string

	// Speed is the synthesis speed factor, 1.0 is normal.
	Speed float64

	// Pause is the silence between two segments.
	Pause time.Duration

	// CacheCapacity bounds the ephemeral cache store.
	CacheCapacity int

	// Workers is the number of concurrent synthesis jobs.
	Workers int

	// PollInterval bounds how long any wait goes without checking the
	// cancellation token. Values above ttypes.DefaultPollInterval are clamped.
	PollInterval time.Duration

	// AnnounceFailures plays FailureNotice in place of a segment whose
	// synthesis failed.
	AnnounceFailures bool
	FailureNotice    string

	// CompleteOnCancel reports full progress when a session is cancelled.
	CompleteOnCancel bool
}

// DefaultSessionConfig returns a config with all defaults applied.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Speed:         DefaultSpeed,
		Pause:         DefaultPause,
		CacheCapacity: cache.DefaultCapacity,
		Workers:       queue.DefaultWorkers,
		PollInterval:  ttypes.DefaultPollInterval,
		FailureNotice: DefaultFailureNotice,
	}
}

// withDefaults fills in optional fields that were left zero.
func (c SessionConfig) withDefaults() SessionConfig {
	if c.PollInterval <= 0 || c.PollInterval > ttypes.DefaultPollInterval {
		c.PollInterval = ttypes.DefaultPollInterval
	}
	if c.FailureNotice == "" {
		c.FailureNotice = DefaultFailureNotice
	}
	return c
}

// Validate checks the config against the provider that will serve it.
// Every returned error is a configuration-class *ttypes.TTSError.
func (c SessionConfig) Validate(provider ttypes.Provider) error {
	if math.IsNaN(c.Speed) || c.Speed < MinSpeed || c.Speed > MaxSpeed {
		return ttypes.NewTTSError(ttypes.ErrorCodeInvalidSpeed,
			fmt.Sprintf("speed must be between %.2f and %.2f, got %v", MinSpeed, MaxSpeed, c.Speed), nil).
			WithContext("speed", c.Speed)
	}

	if c.Pause < 0 {
		return ttypes.NewTTSError(ttypes.ErrorCodeInvalidPause,
			fmt.Sprintf("pause must not be negative, got %v", c.Pause), nil).
			WithContext("pause", c.Pause)
	}

	if c.CacheCapacity < 1 {
		return ttypes.NewTTSError(ttypes.ErrorCodeInvalidCapacity,
			fmt.Sprintf("cache capacity must be at least 1, got %d", c.CacheCapacity), nil).
			WithContext("capacity", c.CacheCapacity)
	}

	if c.Workers < 1 || c.Workers > queue.MaxWorkers {
		return ttypes.NewTTSError(ttypes.ErrorCodeInvalidWorkers,
			fmt.Sprintf("workers must be between 1 and %d, got %d", queue.MaxWorkers, c.Workers), nil).
			WithContext("workers", c.Workers)
	}

	if provider != nil {
		if err := validateSpeaker(c.Speaker, provider.Voices()); err != nil {
			return err.WithContext("provider", provider.Name())
		}
	}

	return nil
}

// validateSpeaker accepts any speaker when the provider does not publish a
// voice list.
func validateSpeaker(speaker string, voices []string) *ttypes.TTSError {
	if speaker == "" || len(voices) == 0 || slices.Contains(voices, speaker) {
		return nil
	}

	msg := fmt.Sprintf("unknown speaker %q", speaker)
	if s := SuggestSpeaker(speaker, voices); s != "" {
		msg += fmt.Sprintf(", did you mean %q?", s)
	}
	return ttypes.NewTTSError(ttypes.ErrorCodeInvalidSpeaker, msg, nil).
		WithContext("speaker", speaker)
}

// SuggestSpeaker returns the closest fuzzy match for speaker, or "".
func SuggestSpeaker(speaker string, voices []string) string {
	matches := fuzzy.Find(speaker, voices)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
