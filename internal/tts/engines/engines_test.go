package engines

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

func TestToneProvider_Synthesize(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		speed float64
		want  time.Duration
	}{
		{"three words", "one two three", 1.0, 660 * time.Millisecond},
		{"double speed", "one two three", 2.0, 330 * time.Millisecond},
		{"single word", "hello", 1.0, 180 * time.Millisecond},
	}

	p := NewToneProvider(ToneConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := p.Synthesize(context.Background(), tt.text, "", tt.speed)
			if err != nil {
				t.Fatalf("Synthesize failed: %v", err)
			}
			if d := a.Duration() - tt.want; d < -time.Millisecond || d > time.Millisecond {
				t.Errorf("Duration() = %v, want %v", a.Duration(), tt.want)
			}
			if a.Text != tt.text {
				t.Errorf("Text = %q", a.Text)
			}
		})
	}
	if p.Calls() != len(tests) {
		t.Errorf("Calls() = %d, want %d", p.Calls(), len(tests))
	}
}

func TestToneProvider_Errors(t *testing.T) {
	p := NewToneProvider(ToneConfig{FailOn: []string{"broken"}})

	if _, err := p.Synthesize(context.Background(), "a broken line", "", 1); !errors.Is(err, ttypes.ErrUnavailable) {
		t.Errorf("injected failure = %v, want UNAVAILABLE", err)
	}
	if _, err := p.Synthesize(context.Background(), "hi", "falsetto", 1); !errors.Is(err, ttypes.ErrInvalidInput) {
		t.Errorf("unknown voice = %v, want INVALID_INPUT", err)
	}
	if _, err := p.Synthesize(context.Background(), "", "", 1); !errors.Is(err, ttypes.ErrInvalidInput) {
		t.Errorf("empty text = %v, want INVALID_INPUT", err)
	}
}

func TestToneProvider_LatencyRespectsContext(t *testing.T) {
	p := NewToneProvider(ToneConfig{Latency: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Synthesize(ctx, "hi", "", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled = %v, want context.Canceled", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Synthesize(ctx, "hi", "", 1); !errors.Is(err, ttypes.ErrTimeout) {
		t.Errorf("deadline = %v, want TIMEOUT", err)
	}
}

// sequenceProvider returns scripted errors in order, then succeeds.
type sequenceProvider struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (p *sequenceProvider) Synthesize(_ context.Context, text, _ string, _ float64) (*ttypes.Artifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	return &ttypes.Artifact{PCM: []byte{0, 0}, SampleRate: ttypes.SampleRate, Channels: 1, Text: text}, nil
}

func (p *sequenceProvider) Voices() []string { return nil }

func (p *sequenceProvider) Name() string { return "sequence" }

func TestRetryProvider(t *testing.T) {
	timeout := func() error { return ttypes.NewTTSError(ttypes.ErrorCodeTimeout, "slow", nil) }
	unavailable := ttypes.NewTTSError(ttypes.ErrorCodeUnavailable, "down", nil)

	tests := []struct {
		name      string
		errs      []error
		wantErr   error
		wantCalls int
	}{
		{"success", nil, nil, 1},
		{"one timeout", []error{timeout()}, nil, 2},
		{"two timeouts", []error{timeout(), timeout()}, ttypes.ErrTimeout, 2},
		{"not retryable", []error{unavailable}, ttypes.ErrUnavailable, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &sequenceProvider{errs: tt.errs}
			p := WithTimeoutRetry(inner)

			a, err := p.Synthesize(context.Background(), "hi", "", 1)
			if tt.wantErr == nil {
				if err != nil || a == nil {
					t.Fatalf("Synthesize() = %v, %v", a, err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if inner.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", inner.calls, tt.wantCalls)
			}
			if p.Name() != "sequence" {
				t.Errorf("Name() = %q", p.Name())
			}
		})
	}
}

func TestRetryProvider_NoRetryAfterCancel(t *testing.T) {
	inner := &sequenceProvider{errs: []error{ttypes.NewTTSError(ttypes.ErrorCodeTimeout, "slow", nil)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := WithTimeoutRetry(inner).Synthesize(ctx, "hi", "", 1); !errors.Is(err, ttypes.ErrTimeout) {
		t.Fatalf("error = %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		engine   string
		opts     Options
		wantName string
		wantErr  error
		wantMsg  string
	}{
		{name: "tone", engine: "tone", wantName: "tone"},
		{name: "alias", engine: " Google ", wantName: "gtts"},
		{name: "retry wrapper", engine: "beep", opts: Options{Retry: true}, wantName: "tone"},
		{name: "empty", engine: "", wantErr: ErrNoEngine},
		{name: "unknown", engine: "pipr", wantErr: ErrInvalidEngine, wantMsg: `did you mean "piper"?`},
		{name: "openai without key", engine: "openai", wantErr: ErrMissingAPIKey},
		{name: "piper without model", engine: "piper", wantMsg: "failed to create piper engine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.engine, tt.opts)
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && (err == nil || !strings.Contains(err.Error(), tt.wantMsg)) {
				t.Fatalf("error = %v, want message containing %q", err, tt.wantMsg)
			}
			if tt.wantName == "" {
				return
			}
			if err != nil {
				t.Fatalf("New(%q) failed: %v", tt.engine, err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
			if _, ok := p.(*RetryProvider); ok != tt.opts.Retry {
				t.Errorf("retry wrapper = %v, want %v", ok, tt.opts.Retry)
			}
		})
	}
}

func TestRequirements(t *testing.T) {
	if got := Requirements("gtts", Options{}); strings.Join(got, " ") != "gtts-cli ffmpeg" {
		t.Errorf("gtts requirements = %q", got)
	}
	if got := Requirements("piper", Options{Piper: PiperConfig{Binary: "/opt/piper"}}); len(got) != 1 || got[0] != "/opt/piper" {
		t.Errorf("piper requirements = %q", got)
	}
	if got := Requirements("tone", Options{}); got != nil {
		t.Errorf("tone requirements = %q", got)
	}
	if err := CheckRequirements("piper", Options{Piper: PiperConfig{Binary: "/definitely/missing/piper"}}); !errors.Is(err, ttypes.ErrUnavailable) {
		t.Errorf("CheckRequirements() = %v, want UNAVAILABLE", err)
	}
}
