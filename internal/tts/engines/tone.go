package engines

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// Tone defaults.
const (
	DefaultToneVoice = "mid"

	toneWord      = 180 * time.Millisecond
	toneGap       = 60 * time.Millisecond
	toneAmplitude = 0.3
	toneMaxText   = 5000
)

var toneVoices = map[string]float64{
	"low":  220,
	"mid":  440,
	"high": 660,
}

// ToneConfig holds configuration for the tone provider.
type ToneConfig struct {
	// Latency simulates synthesis time per call.
	Latency time.Duration

	// FailOn makes Synthesize fail with UNAVAILABLE for texts containing
	// any of these substrings.
	FailOn []string
}

// ToneProvider renders one short beep per word. It needs no network, no
// binaries and no model, which makes it the default for dry runs.
type ToneProvider struct {
	latency time.Duration
	failOn  []string

	mu    sync.Mutex
	calls int
}

// NewToneProvider creates a tone provider.
func NewToneProvider(config ToneConfig) *ToneProvider {
	return &ToneProvider{
		latency: config.Latency,
		failOn:  config.FailOn,
	}
}

// Synthesize renders text as tones. Speed shortens the beeps.
func (t *ToneProvider) Synthesize(ctx context.Context, text, speaker string, speed float64) (*ttypes.Artifact, error) {
	if err := checkInput(text, toneMaxText); err != nil {
		return nil, err
	}
	if speaker == "" {
		speaker = DefaultToneVoice
	}
	freq, ok := toneVoices[speaker]
	if !ok {
		return nil, ttypes.NewTTSError(ttypes.ErrorCodeInvalidInput, "unknown tone voice "+speaker, nil)
	}
	if speed <= 0 {
		speed = 1
	}

	t.mu.Lock()
	t.calls++
	t.mu.Unlock()

	if t.latency > 0 {
		timer := time.NewTimer(t.latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ttypes.NewTTSError(ttypes.ErrorCodeTimeout, "tone synthesis timed out", ctx.Err())
			}
			return nil, ctx.Err()
		}
	}

	for _, s := range t.failOn {
		if s != "" && strings.Contains(text, s) {
			return nil, ttypes.NewTTSError(ttypes.ErrorCodeUnavailable, "tone provider failure injected", nil).
				WithContext("match", s)
		}
	}

	word := time.Duration(float64(toneWord) / speed)
	gap := time.Duration(float64(toneGap) / speed)

	var pcm []byte
	for i := range strings.Fields(text) {
		if i > 0 {
			pcm = append(pcm, audio.Silence(gap, ttypes.SampleRate)...)
		}
		pcm = append(pcm, audio.Tone(freq, word, ttypes.SampleRate, toneAmplitude)...)
	}

	return &ttypes.Artifact{
		PCM:        pcm,
		SampleRate: ttypes.SampleRate,
		Channels:   ttypes.Channels,
		Text:       text,
	}, nil
}

// Calls returns how many synthesis calls were made.
func (t *ToneProvider) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Voices returns the pitch names.
func (t *ToneProvider) Voices() []string {
	return []string{"high", "low", "mid"}
}

// Name returns "tone".
func (t *ToneProvider) Name() string {
	return "tone"
}
