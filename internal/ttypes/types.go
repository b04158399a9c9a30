// Package ttypes contains shared types and interfaces for the read-aloud pipeline.
// This package is used to break import cycles between tts, engines, audio, cache and queue packages.
package ttypes

import (
	"context"
	"strings"
	"time"
)

// Audio format produced by every provider after decoding.
const (
	// SampleRate is the device sample rate in Hz.
	SampleRate = 24000

	// Channels is the channel count (mono).
	Channels = 1

	// BytesPerSample for signed 16-bit little endian PCM.
	BytesPerSample = 2
)

// Segment is one ordered unit of text scheduled for synthesis and playback.
type Segment struct {
	Index int
	Text  string
}

// Words returns the number of playback units in the segment.
func (s Segment) Words() int {
	return len(strings.Fields(s.Text))
}

// Artifact is a decoded, playable audio buffer.
// Artifacts are shared by reference once inserted into a cache and must not be mutated.
type Artifact struct {
	// PCM holds signed 16-bit little endian samples.
	PCM        []byte
	SampleRate int
	Channels   int

	// Text is the source text, kept for logging and display.
	Text string
}

// Duration returns the playback length of the artifact.
func (a *Artifact) Duration() time.Duration {
	if a == nil || a.SampleRate <= 0 || a.Channels <= 0 {
		return 0
	}
	frames := len(a.PCM) / (BytesPerSample * a.Channels)
	return time.Duration(frames) * time.Second / time.Duration(a.SampleRate)
}

// Provider is a synthesis backend. Implementations must be safe for concurrent use.
type Provider interface {
	// Synthesize converts text to audio. Errors carry one of the synthesis
	// error codes (UNAVAILABLE, RATE_LIMITED, INVALID_INPUT, TIMEOUT).
	Synthesize(ctx context.Context, text, speaker string, speed float64) (*Artifact, error)

	// Voices returns the speaker identifiers accepted by Synthesize.
	// An empty list means any speaker is accepted.
	Voices() []string

	// Name returns the human-readable name of the provider.
	Name() string
}

// Device loads artifacts for playback. A device is owned by exactly one sequencer.
type Device interface {
	// Load prepares an artifact. It fails with DEVICE_BUSY while another
	// handle is still playing, or DECODE_FAILURE if the audio is unusable.
	Load(a *Artifact) (Handle, error)
}

// Handle controls playback of one loaded artifact.
type Handle interface {
	// Play starts playback and returns immediately.
	Play() error

	// IsPlaying reports whether audio is still being output.
	IsPlaying() bool

	// Stop halts playback. It is idempotent and safe after natural completion.
	Stop()
}
