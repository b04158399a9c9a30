package audio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// PlaybackEvent records one playback on a SimulatedDevice.
type PlaybackEvent struct {
	Text    string
	Started time.Time
	Ended   time.Time
	// Interrupted is true when Stop was called before the audio finished.
	Interrupted bool
}

// SimulatedDevice implements ttypes.Device without producing sound. Each
// handle "plays" for the artifact's duration scaled by TimeScale.
type SimulatedDevice struct {
	// TimeScale multiplies artifact durations. Zero means 1.
	TimeScale float64

	// LoadHook, when set, can veto a load by returning an error.
	LoadHook func(a *ttypes.Artifact) error

	// OnPlay is called when a handle starts playing.
	OnPlay func(text string)

	mu      sync.Mutex
	current *simHandle
	events  []PlaybackEvent

	loads atomic.Int64
}

// NewSimulatedDevice creates a device playing in real time.
func NewSimulatedDevice() *SimulatedDevice {
	return &SimulatedDevice{TimeScale: 1}
}

type simHandle struct {
	device   *SimulatedDevice
	text     string
	duration time.Duration

	mu      sync.Mutex
	state   PlayerState
	started time.Time
	timer   *time.Timer
	event   int // index into device events once playing
}

// Load prepares an artifact. It enforces the same exclusivity and decode
// checks as the speaker device.
func (d *SimulatedDevice) Load(a *ttypes.Artifact) (ttypes.Handle, error) {
	d.loads.Add(1)

	if d.LoadHook != nil {
		if err := d.LoadHook(a); err != nil {
			return nil, err
		}
	}

	// Lock order is handle before device, so the current handle is checked
	// outside d.mu.
	d.mu.Lock()
	current := d.current
	d.mu.Unlock()

	if current != nil && current.IsPlaying() {
		return nil, ttypes.NewTTSError(ttypes.ErrorCodeDeviceBusy, "previous artifact still playing", nil)
	}

	if _, err := Decode(a, a.SampleRate); err != nil {
		return nil, err
	}

	scale := d.TimeScale
	if scale <= 0 {
		scale = 1
	}

	h := &simHandle{
		device:   d,
		text:     a.Text,
		duration: time.Duration(float64(a.Duration()) * scale),
		state:    StateLoaded,
		event:    -1,
	}

	d.mu.Lock()
	d.current = h
	d.mu.Unlock()
	return h, nil
}

// Events returns a copy of the recorded playbacks in start order.
func (d *SimulatedDevice) Events() []PlaybackEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	events := make([]PlaybackEvent, len(d.events))
	copy(events, d.events)
	return events
}

// Played returns the texts that started playing, in order.
func (d *SimulatedDevice) Played() []string {
	events := d.Events()
	texts := make([]string, len(events))
	for i, e := range events {
		texts[i] = e.Text
	}
	return texts
}

// Loads returns how many times Load was called.
func (d *SimulatedDevice) Loads() int64 {
	return d.loads.Load()
}

func (d *SimulatedDevice) record(e PlaybackEvent) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return len(d.events) - 1
}

func (d *SimulatedDevice) finish(idx int, ended time.Time, interrupted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[idx].Ended = ended
	d.events[idx].Interrupted = interrupted
}

// Play starts the playback timer.
func (h *simHandle) Play() error {
	h.mu.Lock()
	if h.state != StateLoaded {
		h.mu.Unlock()
		return nil
	}

	h.state = StatePlaying
	h.started = time.Now()
	h.event = h.device.record(PlaybackEvent{Text: h.text, Started: h.started})

	h.timer = time.AfterFunc(h.duration, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.state == StatePlaying {
			h.state = StateStopped
			h.device.finish(h.event, time.Now(), false)
		}
	})
	h.mu.Unlock()

	if h.device.OnPlay != nil {
		h.device.OnPlay(h.text)
	}
	return nil
}

// IsPlaying reports whether the simulated audio is still running.
func (h *simHandle) IsPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == StatePlaying
}

// Stop interrupts playback. Safe after natural completion.
func (h *simHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StatePlaying {
		h.state = StateStopped
		return
	}

	h.state = StateStopped
	if h.timer != nil {
		h.timer.Stop()
	}

	h.device.finish(h.event, time.Now(), true)
}
