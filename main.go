// Package main provides the entry point for the readaloud CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/text"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/tts/engines"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
	"github.com/dgnsrekt/readaloud/ui"
	"github.com/dgnsrekt/readaloud/utils"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile    string
	plain         bool
	dryRun        bool
	fromClipboard bool
	watch         bool
	debug         bool

	opts     options
	closeLog = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "readaloud [SOURCE]",
		Short: "Read text and markdown aloud",
		Long: paragraph(
			fmt.Sprintf("\nRead text and markdown %s, one sentence at a time.", keyword("aloud")),
		),
		Example:          paragraph("readaloud --engine piper notes.md\ncat story.txt | readaloud -e gtts\nreadaloud --dry-run --plain README.md"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		Args:             cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// envConfig holds settings that only come from the environment.
type envConfig struct {
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	Debug         bool   `env:"READALOUD_DEBUG"`
}

// options is the resolved configuration of one run.
type options struct {
	engine  string
	engines engines.Options
	session tts.SessionConfig
	rules   []text.Rule
}

// source provides a readable document.
type source struct {
	reader io.ReadCloser
	URL    string
}

// sourceFromArg parses an argument and creates a readable source for it.
func sourceFromArg(arg string) (*source, error) {
	// from stdin
	if arg == "-" {
		return &source{reader: os.Stdin}, nil
	}

	// HTTP(S) URLs:
	if u, err := url.ParseRequestURI(arg); err == nil && strings.Contains(arg, "://") {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%s is not a supported protocol", u.Scheme)
		}
		// consumer of the source is responsible for closing the ReadCloser.
		resp, err := http.Get(u.String()) //nolint: noctx,bodyclose
		if err != nil {
			return nil, fmt.Errorf("unable to get url: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
		}
		return &source{resp.Body, u.String()}, nil
	}

	r, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	u, err := filepath.Abs(arg)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}
	return &source{r, u}, nil
}

// clipboardSource reads the system clipboard.
func clipboardSource() (*source, error) {
	s, err := clipboard.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read clipboard: %w", err)
	}
	return &source{reader: io.NopCloser(strings.NewReader(s))}, nil
}

// readSegments reads src to the end and splits it into segments.
func readSegments(src *source) ([]ttypes.Segment, error) {
	defer src.reader.Close() //nolint:errcheck

	b, err := io.ReadAll(src.reader)
	if err != nil {
		return nil, fmt.Errorf("unable to read from reader: %w", err)
	}

	md := isMarkdown(src.URL)
	if md {
		b = utils.RemoveFrontmatter(b)
	}

	segments := text.NewSegmenter(
		text.WithMarkdown(md),
		text.WithRules(opts.rules...),
	).Segment(string(b))
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: the document has no readable text", tts.ErrNoSegments)
	}
	return segments, nil
}

// isMarkdown honors an explicit setting, then falls back to the extension.
func isMarkdown(name string) bool {
	if viper.IsSet("markdown") {
		return viper.GetBool("markdown")
	}
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		name = u.Path
	}
	return utils.IsMarkdownFile(name)
}

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	ec, err := env.ParseAs[envConfig]()
	if err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}

	closeLog, err = setupLog(debug || viper.GetBool("debug") || ec.Debug)
	if err != nil {
		return fmt.Errorf("unable to set up logging: %w", err)
	}

	opts.engine = viper.GetString("engine")
	if opts.engine == "" && dryRun {
		opts.engine = engines.EngineTone
	}

	opts.engines = engines.Options{
		Tone: engines.ToneConfig{
			Latency: viper.GetDuration("tone.latency"),
		},
		Piper: engines.PiperConfig{
			Binary:    utils.ExpandPath(viper.GetString("piper.binary")),
			ModelPath: utils.ExpandPath(viper.GetString("piper.model")),
		},
		GTTS: engines.GTTSConfig{
			Language:          viper.GetString("gtts.language"),
			RequestsPerMinute: viper.GetInt("gtts.requests_per_minute"),
		},
		OpenAI: engines.OpenAIConfig{
			APIKey:  ec.OpenAIKey,
			BaseURL: ec.OpenAIBaseURL,
			Model:   viper.GetString("openai.model"),
		},
		Retry: viper.GetBool("retry"),
	}

	session := tts.DefaultSessionConfig()
	session.Speaker = viper.GetString("speaker")
	session.Speed = viper.GetFloat64("speed")
	session.Pause = viper.GetDuration("pause")
	session.Workers = viper.GetInt("workers")
	session.CacheCapacity = viper.GetInt("cache.capacity")
	session.AnnounceFailures = viper.GetBool("announce_failures")
	session.CompleteOnCancel = viper.GetBool("complete_on_cancel")
	opts.session = session

	opts.rules = nil
	if path := viper.GetString("replacements"); path != "" {
		rules, err := text.LoadRules(utils.ExpandPath(path))
		if err != nil {
			return err
		}
		opts.rules = rules
	}

	if fromClipboard && watch {
		return errors.New("cannot watch the clipboard")
	}
	if watch && len(cmd.Flags().Args()) == 0 {
		return errors.New("--watch needs a file argument")
	}

	log.Debug("Options resolved", "engine", opts.engine, "speed", session.Speed, "workers", session.Workers, "rules", len(opts.rules))
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// openSource picks the document: clipboard, an argument, or piped stdin.
func openSource(args []string) (*source, error) {
	if fromClipboard {
		return clipboardSource()
	}
	if len(args) == 1 {
		return sourceFromArg(args[0])
	}
	if yes, err := stdinIsPipe(); err != nil {
		return nil, err
	} else if yes {
		return &source{reader: os.Stdin}, nil
	}
	return nil, errors.New("missing source: pass a file, a URL, - for stdin, or --clipboard")
}

// openDevice returns the speaker, or a silent device for dry runs.
func openDevice() (ttypes.Device, func(), error) {
	if dryRun {
		return audio.NewSimulatedDevice(), func() {}, nil
	}
	d, err := audio.NewOtoDevice(audio.DefaultDeviceConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open audio output (try --dry-run): %w", err)
	}
	return d, func() { _ = d.Close() }, nil
}

func execute(cmd *cobra.Command, args []string) error {
	src, err := openSource(args)
	if err != nil {
		return err
	}
	if watch && (src.URL == "" || strings.Contains(src.URL, "://")) {
		_ = src.reader.Close()
		return errors.New("--watch only works with local files")
	}
	segments, err := readSegments(src)
	if err != nil {
		return err
	}

	if err := engines.CheckRequirements(opts.engine, opts.engines); err != nil {
		return err
	}
	provider, err := engines.New(opts.engine, opts.engines)
	if err != nil {
		return err
	}
	if err := opts.session.Validate(provider); err != nil {
		return err
	}

	device, closeDevice, err := openDevice()
	if err != nil {
		return err
	}
	defer closeDevice()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	load := func() ([]ttypes.Segment, error) {
		return segments, nil
	}
	var watchPath string
	if watch {
		watchPath = src.URL
		load = func() ([]ttypes.Segment, error) {
			s, err := sourceFromArg(watchPath)
			if err != nil {
				return nil, err
			}
			return readSegments(s)
		}
	}

	start := func(segs []ttypes.Segment, reporter tts.ProgressReporter) (*tts.Session, error) {
		return tts.Start(ctx, segs, opts.session, provider, device, tts.MultiReporter{reporter, tts.LogReporter{}})
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
	if interactive && !plain {
		return runTUI(src, provider.Name(), load, start, watchPath)
	}

	width := 0
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width = w
	}
	reporter := ui.NewPlainReporter(os.Stdout, width)

	if watch {
		return watchPlain(ctx, watchPath, load, func(segs []ttypes.Segment) (*tts.Session, error) {
			return start(segs, reporter)
		})
	}

	s, err := start(segments, reporter)
	if err != nil {
		return err
	}
	s.Wait()
	log.Info("Session summary", "stats", s.Stats().String())
	return nil
}

func runTUI(src *source, engine string, load func() ([]ttypes.Segment, error), start func([]ttypes.Segment, tts.ProgressReporter) (*tts.Session, error), watchPath string) error {
	// Log lines would tear the interface apart.
	if !debug && !viper.GetBool("debug") {
		log.SetOutput(io.Discard)
	}

	title := "clipboard"
	switch {
	case src.URL != "":
		title = filepath.Base(src.URL)
	case !fromClipboard:
		title = "stdin"
	}

	if err := ui.Run(ui.Config{
		Title:     title,
		Engine:    engine,
		Load:      load,
		Start:     start,
		AutoStart: true,
		WatchPath: watchPath,
	}); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Could not parse .env file", "error", err)
	}

	err := rootCmd.Execute()
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	pf.StringP("engine", "e", "", fmt.Sprintf("synthesis engine (%s)", strings.Join(engines.Names(), ", ")))
	pf.BoolVar(&debug, "debug", false, "write a debug log")

	f := rootCmd.Flags()
	f.StringP("speaker", "s", "", "speaker or voice name (see readaloud voices)")
	f.Float64("speed", tts.DefaultSpeed, "speech speed factor")
	f.Duration("pause", tts.DefaultPause, "silence between sentences")
	f.IntP("workers", "j", 2, "concurrent synthesis jobs")
	f.Int("cache", 20, "number of synthesized sentences kept in memory")
	f.Bool("announce-failures", false, "say a short notice in place of sentences that fail")
	f.Bool("complete-on-cancel", false, "report full progress when stopped")
	f.BoolP("markdown", "m", false, "strip markdown syntax (default: by file extension)")
	f.BoolVarP(&plain, "plain", "p", false, "print sentences instead of showing the interface")
	f.BoolVarP(&dryRun, "dry-run", "n", false, "synthesize without playing sound")
	f.BoolVarP(&fromClipboard, "clipboard", "c", false, "read the clipboard")
	f.BoolVarP(&watch, "watch", "w", false, "start over whenever the file changes")

	// Config bindings
	_ = viper.BindPFlag("engine", pf.Lookup("engine"))
	_ = viper.BindPFlag("debug", pf.Lookup("debug"))
	_ = viper.BindPFlag("speaker", f.Lookup("speaker"))
	_ = viper.BindPFlag("speed", f.Lookup("speed"))
	_ = viper.BindPFlag("pause", f.Lookup("pause"))
	_ = viper.BindPFlag("workers", f.Lookup("workers"))
	_ = viper.BindPFlag("cache.capacity", f.Lookup("cache"))
	_ = viper.BindPFlag("announce_failures", f.Lookup("announce-failures"))
	_ = viper.BindPFlag("complete_on_cancel", f.Lookup("complete-on-cancel"))
	_ = viper.BindPFlag("markdown", f.Lookup("markdown"))

	viper.SetDefault("retry", true)
	viper.SetDefault("piper.binary", engines.DefaultPiperBinary)
	viper.SetDefault("gtts.language", engines.DefaultGTTSLanguage)
	viper.SetDefault("gtts.requests_per_minute", engines.DefaultGTTSRequestsPerMinute)
	viper.SetDefault("openai.model", engines.DefaultOpenAIModel)

	rootCmd.AddCommand(configCmd, manCmd, voicesCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readaloud")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "readaloud")}, dirs...)
	}

	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readaloud")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readaloud")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "readaloud.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
