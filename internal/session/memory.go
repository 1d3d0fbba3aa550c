package session

import (
	"context"
	"sync"
	"time"

	"github.com/rise-and-shine/filevault/pkg/token"
)

// MemoryStore is an in-memory session Store used in tests and local runs
// without a Redis instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	userID    int64
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, userID int64, ttl time.Duration) (string, error) {
	t := token.NewOpaqueToken()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[t] = memoryEntry{userID: userID, expiresAt: s.now().Add(ttl)}
	return t, nil
}

func (s *MemoryStore) Resolve(_ context.Context, tok string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[tok]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.entries, tok)
		return 0, invalidTokenError()
	}
	return entry.userID, nil
}

func (s *MemoryStore) Destroy(_ context.Context, tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[tok]; !ok {
		return invalidTokenError()
	}
	delete(s.entries, tok)
	return nil
}
