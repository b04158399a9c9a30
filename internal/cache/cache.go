package cache

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// DefaultCapacity is the number of ephemeral entries kept when none is configured.
const DefaultCapacity = 20

// SynthesisCache maps (text, speed) keys to synthesized artifacts.
// It is safe for concurrent use. It does not deduplicate in-flight requests:
// two concurrent misses for the same key both reach the provider unless the
// caller serializes them.
type SynthesisCache struct {
	ephemeral *fifoStore
	pinned    *pinnedStore

	mu    sync.Mutex
	stats Stats
}

// New creates a cache holding at most capacity ephemeral entries.
func New(capacity int) (*SynthesisCache, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &SynthesisCache{
		ephemeral: newFIFOStore(capacity),
		pinned:    newPinnedStore(),
		stats:     Stats{Capacity: capacity},
	}, nil
}

// Get returns the artifact stored under key. The ephemeral store is checked
// first, then the pinned store.
func (c *SynthesisCache) Get(key Key) (*ttypes.Artifact, bool) {
	a, _, ok := c.GetWithLevel(key)
	return a, ok
}

// GetWithLevel is Get that also reports which store answered.
func (c *SynthesisCache) GetWithLevel(key Key) (*ttypes.Artifact, Level, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.ephemeral.get(key); ok {
		c.stats.Hits++
		return a, LevelEphemeral, true
	}
	if a, ok := c.pinned.get(key); ok {
		c.stats.Hits++
		return a, LevelPinned, true
	}

	c.stats.Misses++
	return nil, LevelEphemeral, false
}

// Put stores an artifact. Pinned entries are never evicted. When the
// ephemeral store exceeds capacity the oldest ephemeral entry is dropped.
// An ephemeral put for a key that is already pinned is ignored.
func (c *SynthesisCache) Put(key Key, artifact *ttypes.Artifact, pinned bool) {
	if artifact == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if pinned {
		c.ephemeral.remove(key)
		c.pinned.put(key, artifact)
		log.Debug("Cache: pinned entry", "key", key.Digest())
		return
	}

	if _, ok := c.pinned.get(key); ok {
		return
	}

	if evicted := c.ephemeral.put(key, artifact); evicted > 0 {
		c.stats.Evictions += int64(evicted)
		log.Debug("Cache: evicted oldest entries", "count", evicted, "size", c.ephemeral.len())
	}
}

// Peek is Get without touching hit statistics.
func (c *SynthesisCache) Peek(key Key) (*ttypes.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.ephemeral.get(key); ok {
		return a, true
	}
	return c.pinned.get(key)
}

// Contains reports whether key is present in either store without
// touching hit statistics.
func (c *SynthesisCache) Contains(key Key) bool {
	_, ok := c.Peek(key)
	return ok
}

// Len returns the number of ephemeral entries.
func (c *SynthesisCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ephemeral.len()
}

// PinnedLen returns the number of pinned entries.
func (c *SynthesisCache) PinnedLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinned.len()
}

// Keys returns the ephemeral keys, oldest first.
func (c *SynthesisCache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ephemeral.keys()
}

// Stats returns cache statistics.
func (c *SynthesisCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Ephemeral = c.ephemeral.len()
	stats.Pinned = c.pinned.len()
	stats.Bytes = c.ephemeral.bytes + c.pinned.bytes

	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}

	return stats
}
