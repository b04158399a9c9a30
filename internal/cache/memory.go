package cache

import (
	"container/list"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// fifoStore is the bounded ephemeral store. Eviction removes the entry that
// was inserted first, regardless of how recently it was read.
// Not safe for concurrent use; SynthesisCache holds the lock.
type fifoStore struct {
	capacity int

	items map[Key]*list.Element
	order *list.List // front = oldest

	bytes int64
}

type fifoEntry struct {
	key      Key
	artifact *ttypes.Artifact
}

func newFIFOStore(capacity int) *fifoStore {
	return &fifoStore{
		capacity: capacity,
		items:    make(map[Key]*list.Element),
		order:    list.New(),
	}
}

func (s *fifoStore) get(key Key) (*ttypes.Artifact, bool) {
	elem, ok := s.items[key]
	if !ok {
		return nil, false
	}
	return elem.Value.(*fifoEntry).artifact, true
}

// put inserts or replaces an entry and returns the number of evictions.
// Replacing keeps the entry's original queue position.
func (s *fifoStore) put(key Key, artifact *ttypes.Artifact) int {
	if elem, ok := s.items[key]; ok {
		entry := elem.Value.(*fifoEntry)
		s.bytes += int64(len(artifact.PCM)) - int64(len(entry.artifact.PCM))
		entry.artifact = artifact
		return 0
	}

	s.items[key] = s.order.PushBack(&fifoEntry{key: key, artifact: artifact})
	s.bytes += int64(len(artifact.PCM))

	evicted := 0
	for s.order.Len() > s.capacity {
		s.evictOldest()
		evicted++
	}
	return evicted
}

func (s *fifoStore) remove(key Key) {
	elem, ok := s.items[key]
	if !ok {
		return
	}
	s.removeElement(elem)
}

func (s *fifoStore) evictOldest() {
	if elem := s.order.Front(); elem != nil {
		s.removeElement(elem)
	}
}

func (s *fifoStore) removeElement(elem *list.Element) {
	entry := s.order.Remove(elem).(*fifoEntry)
	delete(s.items, entry.key)
	s.bytes -= int64(len(entry.artifact.PCM))
}

func (s *fifoStore) len() int {
	return s.order.Len()
}

// keys returns keys oldest first.
func (s *fifoStore) keys() []Key {
	keys := make([]Key, 0, s.order.Len())
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*fifoEntry).key)
	}
	return keys
}
