package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "readaloud").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to get cache dir: %w", err)
	}
	return filepath.Join(dir, "readaloud.log"), nil
}

// setupLog sends debug output to the log file, or warnings to stderr when
// debugging is off. The returned func closes the log file.
func setupLog(debug bool) (func() error, error) {
	log.SetReportTimestamp(false)
	if !debug {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.WarnLevel)
		return func() error { return nil }, nil
	}

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log dir: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetReportTimestamp(true)
	log.SetOutput(f)
	log.SetLevel(log.DebugLevel)
	log.Debug("Logging to file", "path", logFile)
	return f.Close, nil
}
