package engines

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// Engine names accepted by New.
const (
	EngineTone   = "tone"
	EnginePiper  = "piper"
	EngineGTTS   = "gtts"
	EngineOpenAI = "openai"
)

var (
	// ErrNoEngine is returned when no engine name was given.
	ErrNoEngine = errors.New("no synthesis engine configured")

	// ErrInvalidEngine is returned for unknown engine names.
	ErrInvalidEngine = errors.New("invalid synthesis engine")
)

var aliases = map[string]string{
	"google": EngineGTTS,
	"beep":   EngineTone,
}

// Options carries the settings of every engine. Only the section matching
// the selected engine is used.
type Options struct {
	Tone   ToneConfig
	Piper  PiperConfig
	GTTS   GTTSConfig
	OpenAI OpenAIConfig

	// Retry enables one retry after a timeout.
	Retry bool
}

// Names returns the supported engine names.
func Names() []string {
	return []string{EngineTone, EnginePiper, EngineGTTS, EngineOpenAI}
}

// Normalize resolves aliases and case.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if n, ok := aliases[name]; ok {
		return n
	}
	return name
}

// New constructs the named provider.
func New(name string, opts Options) (ttypes.Provider, error) {
	name = Normalize(name)

	var (
		p   ttypes.Provider
		err error
	)
	switch name {
	case "":
		return nil, fmt.Errorf("%w\n\nPlease specify an engine:\n  readaloud --engine tone notes.md\n  readaloud --engine piper notes.md", ErrNoEngine)
	case EngineTone:
		p = NewToneProvider(opts.Tone)
	case EnginePiper:
		p, err = NewPiperProvider(opts.Piper)
	case EngineGTTS:
		p = NewGTTSProvider(opts.GTTS)
	case EngineOpenAI:
		p, err = NewOpenAIProvider(opts.OpenAI)
	default:
		msg := fmt.Sprintf("%s\n\nSupported engines: %s", name, strings.Join(Names(), ", "))
		if m := fuzzy.Find(name, Names()); len(m) > 0 {
			msg = fmt.Sprintf("%s (did you mean %q?)\n\nSupported engines: %s", name, m[0].Str, strings.Join(Names(), ", "))
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidEngine, msg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s engine: %w", name, err)
	}

	if opts.Retry {
		return WithTimeoutRetry(p), nil
	}
	return p, nil
}

// Requirements lists the executables an engine needs in PATH.
func Requirements(name string, opts Options) []string {
	switch Normalize(name) {
	case EnginePiper:
		return []string{orDefault(opts.Piper.Binary, DefaultPiperBinary)}
	case EngineGTTS:
		return []string{orDefault(opts.GTTS.GTTSBinary, "gtts-cli"), orDefault(opts.GTTS.FFmpegBinary, "ffmpeg")}
	}
	return nil
}

// CheckRequirements returns an error naming the first missing executable.
func CheckRequirements(name string, opts Options) error {
	for _, bin := range Requirements(name, opts) {
		if _, err := exec.LookPath(bin); err != nil {
			return ttypes.NewTTSError(ttypes.ErrorCodeUnavailable,
				fmt.Sprintf("%s not found in PATH", bin), err)
		}
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
