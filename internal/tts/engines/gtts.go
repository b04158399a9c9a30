package engines

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// gTTS defaults.
const (
	DefaultGTTSLanguage          = "en"
	DefaultGTTSRequestsPerMinute = 50
	DefaultGTTSMaxWait           = 5 * time.Second

	gttsTimeout    = 30 * time.Second
	ffmpegTimeout  = 15 * time.Second
	gttsMaxText    = 5000
	gttsMaxMP3     = 50 * 1024 * 1024
	gttsMaxPCM     = 20 * 1024 * 1024
	gttsSampleRate = ttypes.SampleRate
)

// gttsAccents are the top level domains gtts-cli accepts with --tld. They
// select the regional accent and serve as speaker names.
var gttsAccents = []string{"com", "com.au", "co.uk", "ca", "co.in", "ie", "co.za", "us"}

// GTTSConfig holds configuration for the gTTS provider.
type GTTSConfig struct {
	// Language code (e.g., "en", "es", "fr").
	Language string

	// Slow speech (--slow).
	Slow bool

	// RequestsPerMinute limits calls to Google to avoid being blocked.
	RequestsPerMinute int

	// MaxWait is the longest a call waits for the rate limiter before
	// failing with RATE_LIMITED. Negative never waits.
	MaxWait time.Duration

	// GTTSBinary and FFmpegBinary override the executables.
	GTTSBinary   string
	FFmpegBinary string
}

// GTTSProvider synthesizes with gtts-cli (Google Translate TTS) and converts
// the MP3 to PCM with ffmpeg. No API key is needed.
type GTTSProvider struct {
	language string
	slow     bool
	maxWait  time.Duration
	gtts     string
	ffmpeg   string

	limiter *rate.Limiter
}

// NewGTTSProvider creates a gTTS provider.
func NewGTTSProvider(config GTTSConfig) *GTTSProvider {
	if config.Language == "" {
		config.Language = DefaultGTTSLanguage
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultGTTSRequestsPerMinute
	}
	if config.MaxWait < 0 {
		config.MaxWait = 0
	} else if config.MaxWait == 0 {
		config.MaxWait = DefaultGTTSMaxWait
	}
	if config.GTTSBinary == "" {
		config.GTTSBinary = "gtts-cli"
	}
	if config.FFmpegBinary == "" {
		config.FFmpegBinary = "ffmpeg"
	}

	return &GTTSProvider{
		language: config.Language,
		slow:     config.Slow,
		maxWait:  config.MaxWait,
		gtts:     config.GTTSBinary,
		ffmpeg:   config.FFmpegBinary,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
	}
}

// Synthesize converts text to PCM: text → gtts-cli → MP3 → ffmpeg → PCM.
func (g *GTTSProvider) Synthesize(ctx context.Context, text, speaker string, speed float64) (*ttypes.Artifact, error) {
	if err := checkInput(text, gttsMaxText); err != nil {
		return nil, err
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	mp3, err := g.synthesizeMP3(ctx, text, speaker)
	if err != nil {
		return nil, err
	}

	pcm, err := g.convert(ctx, mp3, speed)
	if err != nil {
		return nil, err
	}

	return &ttypes.Artifact{
		PCM:        pcm,
		SampleRate: gttsSampleRate,
		Channels:   1,
		Text:       text,
	}, nil
}

// wait takes a limiter slot, failing fast when the slot is further away
// than maxWait.
func (g *GTTSProvider) wait(ctx context.Context) error {
	r := g.limiter.Reserve()
	delay := r.Delay()
	if delay > g.maxWait {
		r.Cancel()
		return ttypes.NewTTSError(ttypes.ErrorCodeRateLimited,
			fmt.Sprintf("next request allowed in %s", delay.Round(time.Millisecond)), nil).
			WithContext("delay", delay)
	}
	if delay == 0 {
		return nil
	}

	log.Debug("Engine: gtts rate limited", "delay", delay)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

func (g *GTTSProvider) synthesizeMP3(ctx context.Context, text, speaker string) ([]byte, error) {
	args := []string{"-l", g.language}
	if speaker != "" {
		args = append(args, "--tld", speaker)
	}
	if g.slow {
		args = append(args, "--slow")
	}
	// Text comes from stdin.
	args = append(args, "-o", "-", "-")

	ctx, cancel := context.WithTimeout(ctx, gttsTimeout)
	defer cancel()

	mp3, err := runCommand(ctx, bytes.NewReader([]byte(text)), g.gtts, args...)
	if err != nil {
		return nil, err
	}
	if err := checkOutput("gtts-cli", mp3, gttsMaxMP3); err != nil {
		return nil, err
	}
	return mp3, nil
}

func (g *GTTSProvider) convert(ctx context.Context, mp3 []byte, speed float64) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(gttsSampleRate),
		"-ac", "1",
	}
	if speed > 0 && speed != 1.0 {
		args = append(args, "-filter:a", atempo(speed))
	}
	args = append(args, "pipe:1")

	ctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	pcm, err := runCommand(ctx, bytes.NewReader(mp3), g.ffmpeg, args...)
	if err != nil {
		return nil, err
	}
	if err := checkOutput("ffmpeg", pcm, gttsMaxPCM); err != nil {
		return nil, err
	}
	return pcm, nil
}

// atempo builds an ffmpeg filter chain for speed. A single atempo stage
// accepts 0.5 to 2.0, so larger factors are chained.
func atempo(speed float64) string {
	var stages []string
	for speed > 2.0 {
		stages = append(stages, "atempo=2.0")
		speed /= 2.0
	}
	for speed < 0.5 {
		stages = append(stages, "atempo=0.5")
		speed /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%.3f", speed))

	return strings.Join(stages, ",")
}

// Voices returns the accents selectable as speakers.
func (g *GTTSProvider) Voices() []string {
	return append([]string(nil), gttsAccents...)
}

// Name returns "gtts".
func (g *GTTSProvider) Name() string {
	return "gtts"
}
