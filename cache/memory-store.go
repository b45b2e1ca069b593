package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryEntries = 1024

// MemoryStore keeps the most recently used bodies in process memory.
type MemoryStore struct {
	entries *lru.Cache[string, []byte]
}

// NewMemoryStore holds at most size bodies. A size below one uses the
// default of 1024.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size < 1 {
		size = defaultMemoryEntries
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{entries: entries}, nil
}

func (s *MemoryStore) Load(_ context.Context, requestPath string) ([]byte, bool, error) {
	b, ok := s.entries.Get(Key(requestPath))
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (s *MemoryStore) Save(_ context.Context, requestPath string, body []byte) error {
	s.entries.Add(Key(requestPath), append([]byte(nil), body...))
	return nil
}

func (s *MemoryStore) Len() int {
	return s.entries.Len()
}
