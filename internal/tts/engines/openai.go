package engines

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// OpenAI defaults. The PCM response format is 24 kHz 16-bit mono.
const (
	DefaultOpenAIModel   = string(openai.TTSModel1)
	DefaultOpenAIVoice   = string(openai.VoiceAlloy)
	DefaultOpenAITimeout = 30 * time.Second

	openaiSampleRate = 24000
	openaiMaxText    = 4096
	openaiMinSpeed   = 0.25
	openaiMaxSpeed   = 4.0
)

var openaiVoices = []string{
	string(openai.VoiceAlloy),
	string(openai.VoiceAsh),
	string(openai.VoiceBallad),
	string(openai.VoiceCoral),
	string(openai.VoiceEcho),
	string(openai.VoiceFable),
	string(openai.VoiceOnyx),
	string(openai.VoiceNova),
	string(openai.VoiceShimmer),
	string(openai.VoiceVerse),
}

// ErrMissingAPIKey is returned when no OpenAI key is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIProvider synthesizes with the OpenAI speech endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.SpeechModel
}

// NewOpenAIProvider creates a provider with its own HTTP client.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.Model == "" {
		config.Model = DefaultOpenAIModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultOpenAITimeout
	}

	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.SpeechModel(config.Model),
	}, nil
}

// Synthesize requests PCM audio for text.
func (o *OpenAIProvider) Synthesize(ctx context.Context, text, speaker string, speed float64) (*ttypes.Artifact, error) {
	if err := checkInput(text, openaiMaxText); err != nil {
		return nil, err
	}
	if speaker == "" {
		speaker = DefaultOpenAIVoice
	}

	req := openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          openai.SpeechVoice(speaker),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          clamp(speed, openaiMinSpeed, openaiMaxSpeed),
	}

	resp, err := o.client.CreateSpeech(ctx, req)
	if err != nil {
		return nil, mapOpenAIError(ctx, err)
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return nil, mapOpenAIError(ctx, fmt.Errorf("failed to read speech response: %w", err))
	}
	if len(pcm) == 0 {
		return nil, ttypes.NewTTSError(ttypes.ErrorCodeUnavailable, "openai returned no audio", nil)
	}
	// An odd trailing byte is not a sample.
	pcm = pcm[:len(pcm)&^1]

	log.Debug("Engine: openai speech", "bytes", len(pcm), "voice", speaker)
	return &ttypes.Artifact{
		PCM:        pcm,
		SampleRate: openaiSampleRate,
		Channels:   1,
		Text:       text,
	}, nil
}

// mapOpenAIError converts client errors to synthesis codes.
func mapOpenAIError(ctx context.Context, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return ttypes.NewTTSError(ttypes.ErrorCodeRateLimited, "openai rate limit", err)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ttypes.NewTTSError(ttypes.ErrorCodeInvalidInput, "openai rejected the request", err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ttypes.NewTTSError(ttypes.ErrorCodeTimeout, "openai timed out", err)
	case status != 0:
		return ttypes.NewTTSError(ttypes.ErrorCodeUnavailable, fmt.Sprintf("openai returned %d", status), err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ttypes.NewTTSError(ttypes.ErrorCodeTimeout, "openai timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ttypes.NewTTSError(ttypes.ErrorCodeTimeout, "openai timed out", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ttypes.NewTTSError(ttypes.ErrorCodeUnavailable, "openai request failed", err)
}

// Voices returns the built-in OpenAI voices.
func (o *OpenAIProvider) Voices() []string {
	return append([]string(nil), openaiVoices...)
}

// Name returns "openai".
func (o *OpenAIProvider) Name() string {
	return "openai"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
