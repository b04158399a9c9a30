package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidCapacity is returned when a cache is created with capacity < 1.
var ErrInvalidCapacity = errors.New("cache capacity must be at least 1")

// Level identifies which store an entry lives in.
type Level int

const (
	// LevelEphemeral is the bounded FIFO store.
	LevelEphemeral Level = iota

	// LevelPinned is the unbounded store exempt from eviction.
	LevelPinned
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelEphemeral:
		return "ephemeral"
	case LevelPinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// Key identifies a synthesis request. Keys are comparable and used directly
// as map keys.
type Key struct {
	Text  string
	Speed float64
}

// NewKey builds a key from raw text and speed. Text is NFC-normalized with
// whitespace runs collapsed; speed is rounded to two decimals.
func NewKey(text string, speed float64) Key {
	return Key{
		Text:  NormalizeText(text),
		Speed: math.Round(speed*100) / 100,
	}
}

// NormalizeText applies the normalization used for cache keys.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

// String returns the key in "text|speed" form.
func (k Key) String() string {
	return fmt.Sprintf("%s|%.2f", k.Text, k.Speed)
}

// Digest returns a short stable identifier for logging.
func (k Key) Digest() string {
	hash := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(hash[:6])
}

// PinPolicy decides whether text should be stored in the pinned store.
type PinPolicy func(text string) bool

// PinPhrases returns a policy pinning exactly the given phrases.
func PinPhrases(phrases ...string) PinPolicy {
	set := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		set[NormalizeText(p)] = struct{}{}
	}
	return func(text string) bool {
		_, ok := set[NormalizeText(text)]
		return ok
	}
}

// Stats holds cache performance metrics.
type Stats struct {
	Capacity  int   // Maximum ephemeral entries
	Ephemeral int   // Current ephemeral entries
	Pinned    int   // Current pinned entries
	Bytes     int64 // PCM bytes held across both stores

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)
}

// String renders stats for log lines.
func (s Stats) String() string {
	return fmt.Sprintf("%d/%d entries, %d pinned, %s, %s hits, %.0f%% hit rate, %s evictions",
		s.Ephemeral, s.Capacity, s.Pinned,
		humanize.Bytes(uint64(s.Bytes)), //nolint:gosec
		humanize.Comma(s.Hits), s.HitRate*100,
		humanize.Comma(s.Evictions))
}
