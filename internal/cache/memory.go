package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// minPurgeSize is the entry count at which Set first sweeps expired entries.
const minPurgeSize = 1024

// MemoryBackend is a process-local Backend. Expired entries are dropped lazily on read,
// and swept by Set whenever the map doubles past its last swept size.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	purgeAt int
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		purgeAt: minPurgeSize,
		now:     time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (m *MemoryBackend) WithClock(now func() time.Time) *MemoryBackend {
	m.now = now
	return m
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a fresh Set may have replaced it.
		if current, ok := m.entries[key]; ok && !m.now().Before(current.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(ttl),
	}
	if len(m.entries) >= m.purgeAt {
		m.purgeLocked()
		m.purgeAt = max(2*len(m.entries), minPurgeSize)
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// purgeLocked removes every expired entry. The caller must hold the write lock.
func (m *MemoryBackend) purgeLocked() {
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}
