package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// PlayerState represents the lifecycle of one playback handle.
type PlayerState int32

const (
	StateLoaded PlayerState = iota
	StatePlaying
	StateStopped
)

// String returns the string representation of the state.
func (s PlayerState) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DeviceConfig contains configuration for the speaker device.
type DeviceConfig struct {
	SampleRate int           // Output rate; artifacts are resampled to it
	BufferSize time.Duration // Driver buffer length
}

// DefaultDeviceConfig returns the default device configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		SampleRate: ttypes.SampleRate,
		BufferSize: 100 * time.Millisecond,
	}
}

// OtoDevice plays artifacts on the system speaker. Only one handle may be
// playing at a time.
type OtoDevice struct {
	context    *oto.Context
	sampleRate int

	mu      sync.Mutex
	current *otoHandle
}

// otoHandle is one loaded artifact.
type otoHandle struct {
	player *oto.Player

	// PCM must stay referenced while the player reads from it.
	data []byte

	state    atomic.Int32
	stopOnce sync.Once
}

var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoErr     error
)

// NewOtoDevice opens the audio output. oto allows a single context per
// process, so the first configuration wins.
func NewOtoDevice(config DeviceConfig) (*OtoDevice, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   config.SampleRate,
			ChannelCount: ttypes.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   config.BufferSize,
		}

		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoContext = ctx
		log.Debug("Audio: output ready", "sample_rate", config.SampleRate)
	})
	if otoErr != nil {
		return nil, otoErr
	}

	return &OtoDevice{context: otoContext, sampleRate: config.SampleRate}, nil
}

func validateConfig(config DeviceConfig) error {
	if config.SampleRate < 8000 || config.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000 Hz, got %d", config.SampleRate)
	}
	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	return nil
}

// Load decodes an artifact and prepares a paused player for it.
func (d *OtoDevice) Load(a *ttypes.Artifact) (ttypes.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != nil && d.current.IsPlaying() {
		return nil, ttypes.NewTTSError(ttypes.ErrorCodeDeviceBusy, "previous artifact still playing", nil)
	}

	pcm, err := Decode(a, d.sampleRate)
	if err != nil {
		return nil, err
	}

	if err := d.context.Err(); err != nil {
		return nil, ttypes.NewTTSError(ttypes.ErrorCodeDeviceBusy, "audio output failed", err)
	}

	h := &otoHandle{
		player: d.context.NewPlayer(bytes.NewReader(pcm)),
		data:   pcm,
	}
	h.state.Store(int32(StateLoaded))
	d.current = h
	return h, nil
}

// Close stops whatever is playing.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != nil {
		d.current.Stop()
		d.current = nil
	}
	return nil
}

// Play starts playback without waiting for it to finish.
func (h *otoHandle) Play() error {
	if !h.state.CompareAndSwap(int32(StateLoaded), int32(StatePlaying)) {
		return fmt.Errorf("cannot play: handle is %s", PlayerState(h.state.Load()))
	}
	h.player.Play()
	return nil
}

// IsPlaying reports whether the player is still producing audio.
func (h *otoHandle) IsPlaying() bool {
	if PlayerState(h.state.Load()) != StatePlaying {
		return false
	}
	if h.player.Err() != nil || !h.player.IsPlaying() {
		h.Stop()
		return false
	}
	return true
}

// Stop halts playback and releases the player. Safe to call repeatedly.
func (h *otoHandle) Stop() {
	h.stopOnce.Do(func() {
		h.state.Store(int32(StateStopped))
		h.player.Pause()
		if err := h.player.Close(); err != nil {
			log.Debug("Audio: player close failed", "error", err)
		}
		h.data = nil
	})
}
