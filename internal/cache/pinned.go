package cache

import "github.com/dgnsrekt/readaloud/internal/ttypes"

// pinnedStore holds entries that are never evicted.
type pinnedStore struct {
	items map[Key]*ttypes.Artifact
	bytes int64
}

func newPinnedStore() *pinnedStore {
	return &pinnedStore{items: make(map[Key]*ttypes.Artifact)}
}

func (s *pinnedStore) get(key Key) (*ttypes.Artifact, bool) {
	a, ok := s.items[key]
	return a, ok
}

func (s *pinnedStore) put(key Key, artifact *ttypes.Artifact) {
	if old, ok := s.items[key]; ok {
		s.bytes -= int64(len(old.PCM))
	}
	s.items[key] = artifact
	s.bytes += int64(len(artifact.PCM))
}

func (s *pinnedStore) len() int {
	return len(s.items)
}
