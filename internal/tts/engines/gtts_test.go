package engines

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

func TestGTTSProvider_Pipeline(t *testing.T) {
	dir := t.TempDir()
	gttsArgs := filepath.Join(dir, "gtts-args")
	ffmpegArgs := filepath.Join(dir, "ffmpeg-args")

	g := NewGTTSProvider(GTTSConfig{
		Language:     "fr",
		Slow:         true,
		GTTSBinary:   writeScript(t, dir, "gtts-cli", `echo "$@" > `+gttsArgs+"\ncat"),
		FFmpegBinary: writeScript(t, dir, "ffmpeg", `echo "$@" > `+ffmpegArgs+"\ncat"),
	})

	a, err := g.Synthesize(context.Background(), "bonjour", "co.uk", 1.5)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(a.PCM) != "bonjour" {
		t.Errorf("PCM = %q", a.PCM)
	}
	if a.SampleRate != ttypes.SampleRate {
		t.Errorf("SampleRate = %d, want %d", a.SampleRate, ttypes.SampleRate)
	}

	checkArgs := func(path string, want ...string) {
		t.Helper()
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		for _, w := range want {
			if !strings.Contains(string(data), w) {
				t.Errorf("%s args %q missing %q", filepath.Base(path), data, w)
			}
		}
	}
	checkArgs(gttsArgs, "-l fr", "--tld co.uk", "--slow", "-o - -")
	checkArgs(ffmpegArgs, "-f s16le", "-ar 24000", "-ac 1", "-filter:a atempo=1.500", "pipe:1")
}

func TestGTTSProvider_RateLimited(t *testing.T) {
	g := NewGTTSProvider(GTTSConfig{
		RequestsPerMinute: 1,
		MaxWait:           -1,
		GTTSBinary:        filepath.Join(t.TempDir(), "missing-gtts"),
	})

	// The first call takes the only token and fails on the missing binary.
	_, err := g.Synthesize(context.Background(), "one", "", 1.0)
	if !errors.Is(err, ttypes.ErrUnavailable) {
		t.Fatalf("first call error = %v, want UNAVAILABLE", err)
	}

	_, err = g.Synthesize(context.Background(), "two", "", 1.0)
	if !errors.Is(err, ttypes.ErrRateLimited) {
		t.Fatalf("second call error = %v, want RATE_LIMITED", err)
	}
}

func TestGTTSProvider_RejectsEmptyText(t *testing.T) {
	g := NewGTTSProvider(GTTSConfig{RequestsPerMinute: 1, MaxWait: -1})

	for i := 0; i < 3; i++ {
		_, err := g.Synthesize(context.Background(), "", "", 1.0)
		if !errors.Is(err, ttypes.ErrInvalidInput) {
			t.Fatalf("call %d error = %v, want INVALID_INPUT", i, err)
		}
	}
}

func TestAtempo(t *testing.T) {
	tests := []struct {
		speed float64
		want  string
	}{
		{1.5, "atempo=1.500"},
		{0.75, "atempo=0.750"},
		{3.0, "atempo=2.0,atempo=1.500"},
		{4.0, "atempo=2.0,atempo=2.000"},
		{0.25, "atempo=0.5,atempo=0.500"},
	}

	for _, tt := range tests {
		if got := atempo(tt.speed); got != tt.want {
			t.Errorf("atempo(%v) = %q, want %q", tt.speed, got, tt.want)
		}
	}
}
