package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// killGrace is how long a subprocess gets to exit after an interrupt.
const killGrace = 100 * time.Millisecond

// runCommand runs name with stdin pre-filled and returns its stdout. The
// process is interrupted when ctx ends and killed after killGrace. Errors
// carry a synthesis error code: a missing binary is UNAVAILABLE, an expired
// deadline is TIMEOUT.
func runCommand(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = killGrace

	// stdin is set before start so the process never races an empty pipe.
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	log.Debug("Engine: command finished", "command", name, "elapsed", time.Since(start).Round(time.Millisecond), "bytes", stdout.Len())

	if err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
			return nil, ttypes.NewTTSError(ttypes.ErrorCodeUnavailable,
				fmt.Sprintf("%s not found in PATH", name), err)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, ttypes.NewTTSError(ttypes.ErrorCodeTimeout,
				fmt.Sprintf("%s timed out", name), ctx.Err())
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		return nil, ttypes.NewTTSError(ttypes.ErrorCodeUnavailable,
			fmt.Sprintf("%s failed: %s", name, firstLine(stderr.String())), err)
	}

	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "no output"
	}
	return s
}

// checkOutput rejects empty or oversized PCM.
func checkOutput(name string, pcm []byte, limit int) error {
	if len(pcm) == 0 {
		return ttypes.NewTTSError(ttypes.ErrorCodeUnavailable, name+" produced no audio", nil)
	}
	if len(pcm) > limit {
		return ttypes.NewTTSError(ttypes.ErrorCodeUnavailable,
			fmt.Sprintf("%s output too large: %d bytes (max %d)", name, len(pcm), limit), nil)
	}
	return nil
}

// checkInput enforces the per-request text limit.
func checkInput(text string, limit int) error {
	if strings.TrimSpace(text) == "" {
		return ttypes.NewTTSError(ttypes.ErrorCodeInvalidInput, "text cannot be empty", nil)
	}
	if len(text) > limit {
		return ttypes.NewTTSError(ttypes.ErrorCodeInvalidInput,
			fmt.Sprintf("text too long: %d characters (max %d)", len(text), limit), nil)
	}
	return nil
}
