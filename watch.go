package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
	"github.com/dgnsrekt/readaloud/ui"
)

// watchPlain reads the document and starts over each time the file is
// written, until ctx ends. A read error keeps the watch alive.
func watchPlain(ctx context.Context, path string, load func() ([]ttypes.Segment, error), start func([]ttypes.Segment) (*tts.Session, error)) error {
	w, err := ui.NewWatcher(path)
	if err != nil {
		return fmt.Errorf("unable to watch %s: %w", path, err)
	}
	defer w.Close() //nolint:errcheck

	for {
		var s *tts.Session
		segments, err := load()
		if err != nil {
			log.Warn("Watch: unable to read document", "path", path, "error", err)
		} else if s, err = start(segments); err != nil {
			return err
		}

		err = w.Next(ctx)
		if s != nil {
			state := s.Cancel()
			log.Debug("Watch: session ended", "state", state, "stats", s.Stats().String())
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		fmt.Fprintln(os.Stderr, keyword("changed"), path)
	}
}
