package engines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// Piper defaults.
const (
	DefaultPiperBinary     = "piper"
	DefaultPiperSampleRate = 22050
	DefaultPiperTimeout    = 10 * time.Second

	piperMaxText  = 5000
	piperMaxAudio = 10 * 1024 * 1024
)

// PiperConfig holds configuration for the Piper provider.
type PiperConfig struct {
	// Binary is the piper executable, looked up in PATH when not absolute.
	Binary string

	// ModelPath is the .onnx voice model (required).
	ModelPath string

	// ConfigPath defaults to the model path with a .onnx.json or .json
	// extension.
	ConfigPath string

	// Timeout bounds one synthesis call.
	Timeout time.Duration
}

// PiperProvider synthesizes speech with a local piper process. A fresh
// process is started per call with stdin pre-filled.
type PiperProvider struct {
	binary     string
	modelPath  string
	configPath string
	timeout    time.Duration

	sampleRate int
	speakers   map[string]int
}

// piperModelConfig is the subset of the voice config we read.
type piperModelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
	SpeakerIDMap map[string]int `json:"speaker_id_map"`
}

// NewPiperProvider validates the model and reads its voice config.
func NewPiperProvider(config PiperConfig) (*PiperProvider, error) {
	if config.ModelPath == "" {
		return nil, errors.New("piper model path is required")
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if config.Binary == "" {
		config.Binary = DefaultPiperBinary
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultPiperTimeout
	}
	if config.ConfigPath == "" {
		config.ConfigPath = findModelConfig(config.ModelPath)
	}

	p := &PiperProvider{
		binary:     config.Binary,
		modelPath:  config.ModelPath,
		configPath: config.ConfigPath,
		timeout:    config.Timeout,
		sampleRate: DefaultPiperSampleRate,
	}

	if config.ConfigPath != "" {
		mc, err := readModelConfig(config.ConfigPath)
		if err != nil {
			return nil, err
		}
		if mc.Audio.SampleRate > 0 {
			p.sampleRate = mc.Audio.SampleRate
		}
		p.speakers = mc.SpeakerIDMap
	}

	log.Debug("Engine: piper ready", "model", config.ModelPath, "sample_rate", p.sampleRate, "speakers", len(p.speakers))
	return p, nil
}

func findModelConfig(modelPath string) string {
	candidates := []string{
		modelPath + ".json",
		strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func readModelConfig(path string) (*piperModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}
	var mc piperModelConfig
	if err := json.Unmarshal(data, &mc); err != nil {
		return nil, fmt.Errorf("invalid model config %s: %w", path, err)
	}
	return &mc, nil
}

// Synthesize runs piper once. Speed maps to piper's length scale.
func (p *PiperProvider) Synthesize(ctx context.Context, text, speaker string, speed float64) (*ttypes.Artifact, error) {
	if err := checkInput(text, piperMaxText); err != nil {
		return nil, err
	}
	if speed <= 0 {
		speed = 1
	}

	args := []string{
		"--model", p.modelPath,
		"--output-raw",
		"--length_scale", strconv.FormatFloat(1/speed, 'f', 2, 64),
	}
	if p.configPath != "" {
		args = append(args, "--config", p.configPath)
	}
	if speaker != "" {
		id, err := p.speakerID(speaker)
		if err != nil {
			return nil, err
		}
		args = append(args, "--speaker", strconv.Itoa(id))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pcm, err := runCommand(ctx, strings.NewReader(text), p.binary, args...)
	if err != nil {
		return nil, err
	}
	if err := checkOutput("piper", pcm, piperMaxAudio); err != nil {
		return nil, err
	}

	return &ttypes.Artifact{
		PCM:        pcm,
		SampleRate: p.sampleRate,
		Channels:   1,
		Text:       text,
	}, nil
}

// speakerID resolves a speaker name or numeric id.
func (p *PiperProvider) speakerID(speaker string) (int, error) {
	if id, ok := p.speakers[speaker]; ok {
		return id, nil
	}
	if id, err := strconv.Atoi(speaker); err == nil && id >= 0 {
		return id, nil
	}
	return 0, ttypes.NewTTSError(ttypes.ErrorCodeInvalidInput,
		fmt.Sprintf("model has no speaker %q", speaker), nil)
}

// Voices returns the speaker names of a multi-speaker model.
func (p *PiperProvider) Voices() []string {
	voices := make([]string, 0, len(p.speakers))
	for name := range p.speakers {
		voices = append(voices, name)
	}
	slices.Sort(voices)
	return voices
}

// Name returns "piper".
func (p *PiperProvider) Name() string {
	return "piper"
}

// SampleRate returns the model's output rate.
func (p *PiperProvider) SampleRate() int {
	return p.sampleRate
}
