package ttypes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCancellationToken_Monotonic(t *testing.T) {
	tok := NewCancellationToken()
	if tok.IsCancelled() {
		t.Fatal("new token reports cancelled")
	}

	tok.Cancel()
	tok.Cancel() // second call must not panic

	for i := 0; i < 3; i++ {
		if !tok.IsCancelled() {
			t.Fatalf("token cleared after cancel (check %d)", i)
		}
	}

	select {
	case <-tok.Done():
	default:
		t.Error("Done channel not closed")
	}
}

func TestCancellationToken_SleepInterrupted(t *testing.T) {
	tok := NewCancellationToken()

	go func() {
		time.Sleep(20 * time.Millisecond)
		tok.Cancel()
	}()

	start := time.Now()
	if tok.Sleep(5 * time.Second) {
		t.Fatal("Sleep returned true after cancel")
	}
	if elapsed := time.Since(start); elapsed > DefaultPollInterval+50*time.Millisecond {
		t.Errorf("Sleep took %v to observe cancel", elapsed)
	}
}

func TestCancellationToken_SleepCompletes(t *testing.T) {
	tok := NewCancellationToken()
	if !tok.Sleep(10 * time.Millisecond) {
		t.Error("Sleep returned false without cancel")
	}
	if !tok.Sleep(0) {
		t.Error("zero Sleep returned false without cancel")
	}
}

func TestCancellationToken_Context(t *testing.T) {
	tok := NewCancellationToken()
	ctx, cancel := tok.Context(context.Background())
	defer cancel()

	tok.Cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled with token")
	}
}

func TestTTSError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same code", NewTTSError(ErrorCodeTimeout, "slow", nil), ErrTimeout, true},
		{"wrapped", fmt.Errorf("job 3: %w", NewTTSError(ErrorCodeRateLimited, "429", nil)), ErrRateLimited, true},
		{"different code", NewTTSError(ErrorCodeTimeout, "slow", nil), ErrUnavailable, false},
		{"config class", NewTTSError(ErrorCodeInvalidSpeed, "bad", nil), ErrInvalidConfig, true},
		{"synthesis not config", NewTTSError(ErrorCodeUnavailable, "down", nil), ErrInvalidConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTTSError_Classification(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		class     ErrorClass
		fatal     bool
		retryable bool
	}{
		{ErrorCodeTimeout, ClassSynthesis, false, true},
		{ErrorCodeUnavailable, ClassSynthesis, false, false},
		{ErrorCodeDeviceBusy, ClassPlayback, false, false},
		{ErrorCodeDecodeFailure, ClassPlayback, false, false},
		{ErrorCodeInvalidSpeaker, ClassConfiguration, true, false},
		{ErrorCodeInvalidWorkers, ClassConfiguration, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := NewTTSError(tt.code, "x", nil)
			if err.Class() != tt.class {
				t.Errorf("Class() = %s, want %s", err.Class(), tt.class)
			}
			if err.IsFatal() != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", err.IsFatal(), tt.fatal)
			}
			if err.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", err.IsRetryable(), tt.retryable)
			}
		})
	}

	if CodeOf(fmt.Errorf("wrap: %w", ErrDeviceBusy)) != ErrorCodeDeviceBusy {
		t.Error("CodeOf did not unwrap")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf returned a code for a plain error")
	}
}

func TestArtifact_Duration(t *testing.T) {
	a := &Artifact{PCM: make([]byte, SampleRate*BytesPerSample), SampleRate: SampleRate, Channels: 1}
	if a.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", a.Duration())
	}

	var nilArtifact *Artifact
	if nilArtifact.Duration() != 0 {
		t.Error("nil artifact has non-zero duration")
	}
}
