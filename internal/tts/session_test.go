package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// fakeProvider returns silence of a fixed length after a per-text latency.
type fakeProvider struct {
	latency  time.Duration
	delays   map[string]time.Duration
	failures map[string]error
	audio    time.Duration
	voices   []string

	mu    sync.Mutex
	calls map[string]int
}

func newFakeProvider(latency, audioLen time.Duration) *fakeProvider {
	return &fakeProvider{
		latency:  latency,
		delays:   make(map[string]time.Duration),
		failures: make(map[string]error),
		audio:    audioLen,
		calls:    make(map[string]int),
	}
}

func (p *fakeProvider) Synthesize(ctx context.Context, text, speaker string, speed float64) (*ttypes.Artifact, error) {
	p.mu.Lock()
	p.calls[text]++
	delay, ok := p.delays[text]
	if !ok {
		delay = p.latency
	}
	failure := p.failures[text]
	p.mu.Unlock()

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if failure != nil {
		return nil, failure
	}
	return &ttypes.Artifact{
		PCM:        audio.Silence(p.audio, ttypes.SampleRate),
		SampleRate: ttypes.SampleRate,
		Channels:   ttypes.Channels,
		Text:       text,
	}, nil
}

func (p *fakeProvider) Voices() []string { return p.voices }
func (p *fakeProvider) Name() string     { return "fake" }

func (p *fakeProvider) callCount(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[text]
}

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

// recordingReporter captures everything a session reports.
type recordingReporter struct {
	mu       sync.Mutex
	playing  []string
	progress [][2]int
	finished []SessionState
}

func (r *recordingReporter) Playing(seg ttypes.Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = append(r.playing, seg.Text)
}

func (r *recordingReporter) Progress(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, [2]int{current, total})
}

func (r *recordingReporter) Finished(state SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, state)
}

func (r *recordingReporter) last() [2]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.progress) == 0 {
		return [2]int{}
	}
	return r.progress[len(r.progress)-1]
}

func (r *recordingReporter) monotonic() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i < len(r.progress); i++ {
		if r.progress[i][0] < r.progress[i-1][0] {
			return false
		}
	}
	return true
}

func makeSegments(texts ...string) []ttypes.Segment {
	segments := make([]ttypes.Segment, len(texts))
	for i, text := range texts {
		segments[i] = ttypes.Segment{Index: i, Text: text}
	}
	return segments
}

var scenarioTexts = []string{"Hello world.", "This is a test.", "Goodbye."}

func testConfig(pause time.Duration) SessionConfig {
	config := DefaultSessionConfig()
	config.Pause = pause
	config.PollInterval = 10 * time.Millisecond
	return config
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSession_PlaysInOrderWithPauses(t *testing.T) {
	provider := newFakeProvider(50*time.Millisecond, 80*time.Millisecond)
	device := audio.NewSimulatedDevice()
	reporter := &recordingReporter{}

	s, err := Start(context.Background(), makeSegments(scenarioTexts...), testConfig(300*time.Millisecond), provider, device, reporter)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if state := s.Wait(); state != StateDone {
		t.Fatalf("state = %v, want done", state)
	}

	if played := device.Played(); !equalStrings(played, scenarioTexts) {
		t.Fatalf("played %q, want %q", played, scenarioTexts)
	}

	events := device.Events()
	for i := 1; i < len(events); i++ {
		gap := events[i].Started.Sub(events[i-1].Ended)
		if gap < 290*time.Millisecond {
			t.Errorf("gap before segment %d = %v, want >= 300ms", i, gap)
		}
		if events[i-1].Interrupted {
			t.Errorf("segment %d was interrupted", i-1)
		}
	}

	if got := reporter.last(); got != [2]int{7, 7} {
		t.Errorf("final progress = %v, want [7 7]", got)
	}
	if !reporter.monotonic() {
		t.Errorf("progress not monotonic: %v", reporter.progress)
	}
	if len(reporter.finished) != 1 || reporter.finished[0] != StateDone {
		t.Errorf("finished = %v, want [done]", reporter.finished)
	}
	if !equalStrings(reporter.playing, scenarioTexts) {
		t.Errorf("reported playing %q", reporter.playing)
	}
}

func TestSession_CancelDuringPlayback(t *testing.T) {
	provider := newFakeProvider(50*time.Millisecond, 500*time.Millisecond)
	device := audio.NewSimulatedDevice()

	secondStarted := make(chan struct{})
	var once sync.Once
	device.OnPlay = func(text string) {
		if text == scenarioTexts[1] {
			once.Do(func() { close(secondStarted) })
		}
	}

	config := testConfig(50 * time.Millisecond)
	s, err := Start(context.Background(), makeSegments(scenarioTexts...), config, provider, device, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-secondStarted:
	case <-time.After(3 * time.Second):
		t.Fatal("segment 1 never started")
	}
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	state := s.Cancel()
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("Cancel took %v", elapsed)
	}
	if state != StateCancelled {
		t.Fatalf("state = %v, want cancelled", state)
	}

	events := device.Events()
	if len(events) != 2 {
		t.Fatalf("played %d segments, want 2: %+v", len(events), events)
	}
	if events[0].Interrupted {
		t.Error("segment 0 should have played fully")
	}
	if !events[1].Interrupted {
		t.Error("segment 1 should have been stopped early")
	}
	if d := events[1].Ended.Sub(events[1].Started); d > 250*time.Millisecond {
		t.Errorf("segment 1 played for %v after cancel", d)
	}

	// Cancel after teardown is a no-op.
	if again := s.Cancel(); again != StateCancelled {
		t.Errorf("second Cancel returned %v", again)
	}
}

func TestSession_FailureIsSegmentLocal(t *testing.T) {
	provider := newFakeProvider(20*time.Millisecond, 30*time.Millisecond)
	provider.failures[scenarioTexts[1]] = ttypes.NewTTSError(ttypes.ErrorCodeRateLimited, "slow down", nil)
	device := audio.NewSimulatedDevice()
	reporter := &recordingReporter{}

	s, err := Start(context.Background(), makeSegments(scenarioTexts...), testConfig(10*time.Millisecond), provider, device, reporter)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if state := s.Wait(); state != StateDone {
		t.Fatalf("state = %v, want done", state)
	}

	want := []string{scenarioTexts[0], scenarioTexts[2]}
	if played := device.Played(); !equalStrings(played, want) {
		t.Errorf("played %q, want %q", played, want)
	}
	if got := reporter.last(); got != [2]int{7, 7} {
		t.Errorf("final progress = %v, want [7 7]", got)
	}

	stats := s.Stats()
	if stats.Sequencer.Skipped != 1 || stats.Sequencer.Played != 2 {
		t.Errorf("stats = %+v", stats.Sequencer)
	}
	if stats.Pool.Failed != 1 {
		t.Errorf("pool failed = %d, want 1", stats.Pool.Failed)
	}
}

func TestSession_OrderIndependentOfCompletion(t *testing.T) {
	texts := []string{"one", "two", "three", "four", "five"}
	provider := newFakeProvider(0, 10*time.Millisecond)
	for i, text := range texts {
		provider.delays[text] = time.Duration(len(texts)-i) * 30 * time.Millisecond
	}
	device := audio.NewSimulatedDevice()

	config := testConfig(0)
	config.Workers = 4
	s, err := Start(context.Background(), makeSegments(texts...), config, provider, device, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if state := s.Wait(); state != StateDone {
		t.Fatalf("state = %v, want done", state)
	}
	if played := device.Played(); !equalStrings(played, texts) {
		t.Errorf("played %q, want %q", played, texts)
	}
}

func TestSession_CancelWhileWaitingForSynthesis(t *testing.T) {
	provider := newFakeProvider(5*time.Second, 10*time.Millisecond)
	device := audio.NewSimulatedDevice()

	s, err := Start(context.Background(), makeSegments(scenarioTexts...), testConfig(0), provider, device, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	if state := s.Cancel(); state != StateCancelled {
		t.Fatalf("state = %v, want cancelled", state)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Cancel took %v with a slow provider", elapsed)
	}
	if n := len(device.Played()); n != 0 {
		t.Errorf("played %d segments, want 0", n)
	}
}

func TestSession_ContextCancel(t *testing.T) {
	provider := newFakeProvider(10*time.Millisecond, time.Second)
	device := audio.NewSimulatedDevice()

	ctx, cancel := context.WithCancel(context.Background())
	s, err := Start(ctx, makeSegments(scenarioTexts...), testConfig(0), provider, device, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not stop after context cancel")
	}
	if s.State() != StateCancelled {
		t.Errorf("state = %v, want cancelled", s.State())
	}
}

func TestSession_ProgressOnCancel(t *testing.T) {
	tests := []struct {
		name             string
		completeOnCancel bool
		wantComplete     bool
	}{
		{"true position", false, false},
		{"complete on cancel", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeProvider(10*time.Millisecond, time.Second)
			device := audio.NewSimulatedDevice()
			reporter := &recordingReporter{}

			config := testConfig(0)
			config.CompleteOnCancel = tt.completeOnCancel
			s, err := Start(context.Background(), makeSegments(scenarioTexts...), config, provider, device, reporter)
			if err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			time.Sleep(100 * time.Millisecond)
			s.Cancel()

			last := reporter.last()
			if complete := last[0] == last[1]; complete != tt.wantComplete {
				t.Errorf("final progress = %v, complete = %v, want %v", last, complete, tt.wantComplete)
			}
			if !reporter.monotonic() {
				t.Errorf("progress not monotonic: %v", reporter.progress)
			}
			if len(reporter.finished) != 1 || reporter.finished[0] != StateCancelled {
				t.Errorf("finished = %v, want [cancelled]", reporter.finished)
			}
		})
	}
}

func TestSession_AnnounceFailures(t *testing.T) {
	texts := []string{"first", "broken one", "broken two", "last"}
	provider := newFakeProvider(10*time.Millisecond, 20*time.Millisecond)
	provider.failures["broken one"] = ttypes.NewTTSError(ttypes.ErrorCodeInvalidInput, "rejected", nil)
	provider.failures["broken two"] = ttypes.NewTTSError(ttypes.ErrorCodeUnavailable, "down", nil)
	device := audio.NewSimulatedDevice()

	config := testConfig(0)
	config.AnnounceFailures = true
	s, err := Start(context.Background(), makeSegments(texts...), config, provider, device, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if state := s.Wait(); state != StateDone {
		t.Fatalf("state = %v, want done", state)
	}

	want := []string{"first", DefaultFailureNotice, DefaultFailureNotice, "last"}
	if played := device.Played(); !equalStrings(played, want) {
		t.Errorf("played %q, want %q", played, want)
	}
	if n := provider.callCount(DefaultFailureNotice); n != 1 {
		t.Errorf("notice synthesized %d times, want 1", n)
	}
	if s.Stats().Cache.Pinned != 1 {
		t.Errorf("notice not pinned: %+v", s.Stats().Cache)
	}
}

func TestSession_FailureNoticeDoesNotWaitForLaterSegments(t *testing.T) {
	texts := make([]string, 22)
	for i := range texts {
		texts[i] = fmt.Sprintf("sentence %d", i)
	}
	provider := newFakeProvider(50*time.Millisecond, 20*time.Millisecond)
	provider.failures[texts[1]] = ttypes.NewTTSError(ttypes.ErrorCodeUnavailable, "down", nil)
	device := audio.NewSimulatedDevice()

	config := testConfig(0)
	config.Workers = 1
	config.AnnounceFailures = true
	s, err := Start(context.Background(), makeSegments(texts...), config, provider, device, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Cancel()

	deadline := time.After(3 * time.Second)
	for len(device.Events()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("notice never played: %q", device.Played())
		case <-time.After(5 * time.Millisecond):
		}
	}

	events := device.Events()
	if events[1].Text != DefaultFailureNotice {
		t.Fatalf("second playback = %q, want the failure notice", events[1].Text)
	}
	// One worker needs over a second for the whole document; the notice
	// must not wait for it.
	if gap := events[1].Started.Sub(events[0].Ended); gap > 300*time.Millisecond {
		t.Errorf("notice played %v after segment 0 ended", gap)
	}
}

func TestSession_CancelDuringPause(t *testing.T) {
	provider := newFakeProvider(10*time.Millisecond, 20*time.Millisecond)
	device := audio.NewSimulatedDevice()
	reporter := &recordingReporter{}

	s, err := Start(context.Background(), makeSegments(scenarioTexts...), testConfig(2*time.Second), provider, device, reporter)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Segment 0 has ended once progress moves past zero.
	deadline := time.After(3 * time.Second)
	for reporter.last()[0] == 0 {
		select {
		case <-deadline:
			t.Fatal("segment 0 never finished")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	state := s.Cancel()
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("Cancel took %v during the pause", elapsed)
	}
	if state != StateCancelled {
		t.Fatalf("state = %v, want cancelled", state)
	}
	if played := device.Played(); !equalStrings(played, scenarioTexts[:1]) {
		t.Errorf("played %q, want only %q", played, scenarioTexts[0])
	}
}

func TestSession_FreshTokenPerSession(t *testing.T) {
	provider := newFakeProvider(10*time.Millisecond, 20*time.Millisecond)
	segments := makeSegments(scenarioTexts...)

	first, err := Start(context.Background(), segments, testConfig(0), provider, audio.NewSimulatedDevice(), nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	first.Cancel()

	device := audio.NewSimulatedDevice()
	second, err := Start(context.Background(), segments, testConfig(0), provider, device, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if state := second.Wait(); state != StateDone {
		t.Fatalf("second session state = %v, want done", state)
	}
	if len(device.Played()) != len(segments) {
		t.Errorf("second session played %d segments", len(device.Played()))
	}
	if first.ID() == second.ID() {
		t.Error("sessions share an id")
	}
}

func TestSession_RejectsConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SessionConfig)
		code   ttypes.ErrorCode
	}{
		{"zero speed", func(c *SessionConfig) { c.Speed = 0 }, ttypes.ErrorCodeInvalidSpeed},
		{"negative speed", func(c *SessionConfig) { c.Speed = -1 }, ttypes.ErrorCodeInvalidSpeed},
		{"speed too high", func(c *SessionConfig) { c.Speed = 10 }, ttypes.ErrorCodeInvalidSpeed},
		{"negative pause", func(c *SessionConfig) { c.Pause = -time.Millisecond }, ttypes.ErrorCodeInvalidPause},
		{"zero capacity", func(c *SessionConfig) { c.CacheCapacity = 0 }, ttypes.ErrorCodeInvalidCapacity},
		{"zero workers", func(c *SessionConfig) { c.Workers = 0 }, ttypes.ErrorCodeInvalidWorkers},
		{"too many workers", func(c *SessionConfig) { c.Workers = 16 }, ttypes.ErrorCodeInvalidWorkers},
		{"unknown speaker", func(c *SessionConfig) { c.Speaker = "nobody" }, ttypes.ErrorCodeInvalidSpeaker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeProvider(0, time.Millisecond)
			provider.voices = []string{"alloy", "echo"}

			config := DefaultSessionConfig()
			tt.modify(&config)

			_, err := Start(context.Background(), makeSegments(scenarioTexts...), config, provider, audio.NewSimulatedDevice(), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ttypes.ErrInvalidConfig) {
				t.Errorf("error %v is not a configuration error", err)
			}
			if code := ttypes.CodeOf(err); code != tt.code {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
			if n := provider.totalCalls(); n != 0 {
				t.Errorf("provider called %d times", n)
			}
		})
	}
}

func TestSession_RejectsSegments(t *testing.T) {
	provider := newFakeProvider(0, time.Millisecond)

	if _, err := Start(context.Background(), nil, DefaultSessionConfig(), provider, audio.NewSimulatedDevice(), nil); !errors.Is(err, ErrNoSegments) {
		t.Errorf("empty segments error = %v", err)
	}

	gapped := []ttypes.Segment{{Index: 0, Text: "a"}, {Index: 2, Text: "b"}}
	if _, err := Start(context.Background(), gapped, DefaultSessionConfig(), provider, audio.NewSimulatedDevice(), nil); !errors.Is(err, ErrSegmentOrder) {
		t.Errorf("gapped segments error = %v", err)
	}
}

func TestValidate_SpeakerSuggestion(t *testing.T) {
	provider := newFakeProvider(0, time.Millisecond)
	provider.voices = []string{"alloy", "echo", "fable"}

	config := DefaultSessionConfig()
	config.Speaker = "aloy"
	err := config.Validate(provider)
	if err == nil || !strings.Contains(err.Error(), `did you mean "alloy"`) {
		t.Errorf("error = %v, want suggestion for alloy", err)
	}

	config.Speaker = "echo"
	if err := config.Validate(provider); err != nil {
		t.Errorf("known speaker rejected: %v", err)
	}

	provider.voices = nil
	config.Speaker = "anything"
	if err := config.Validate(provider); err != nil {
		t.Errorf("speaker rejected without a voice list: %v", err)
	}
}

func TestSessionState_Transitions(t *testing.T) {
	tests := []struct {
		from, to SessionState
		want     bool
	}{
		{StateIdle, StateActive, true},
		{StateIdle, StateDone, false},
		{StateActive, StateDone, true},
		{StateActive, StateCancelled, true},
		{StateDone, StateCancelled, false},
		{StateCancelled, StateActive, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%v -> %v = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
