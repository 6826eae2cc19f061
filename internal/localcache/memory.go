package localcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// MemoryStore keeps JSON payloads in process. Values are copied through JSON
// so callers never share memory with the store.
type MemoryStore struct {
	mu     *sync.RWMutex
	data   map[string][]byte
	owner  string
	logger *slog.Logger
}

// NewMemoryStore constructs an empty in-process store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{mu: &sync.RWMutex{}, data: make(map[string][]byte), logger: logger}
}

// Scope returns a view of the store restricted to the owner's namespace.
func (s *MemoryStore) Scope(owner string) Store {
	return &MemoryStore{mu: s.mu, data: s.data, owner: owner, logger: s.logger}
}

func (s *MemoryStore) Get(_ context.Context, key string, dest any) bool {
	s.mu.RLock()
	payload, ok := s.data[s.fullKey(key)]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		s.logger.Warn("localcache decode", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (s *MemoryStore) Set(_ context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("localcache encode", slog.String("key", key), slog.Any("error", err))
		return
	}
	s.mu.Lock()
	s.data[s.fullKey(key)] = payload
	s.mu.Unlock()
}

func (s *MemoryStore) Remove(_ context.Context, key string) {
	s.mu.Lock()
	delete(s.data, s.fullKey(key))
	s.mu.Unlock()
}

func (s *MemoryStore) Clear(_ context.Context) {
	prefix := s.owner + ":"
	s.mu.Lock()
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
		}
	}
	s.mu.Unlock()
}

// Len reports the number of keys held across all namespaces.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) fullKey(key string) string {
	return s.owner + ":" + key
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Scoper = (*MemoryStore)(nil)
)
