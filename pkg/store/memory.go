package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements Store with an in-process map. Used in tests and
// single-process deployments where Redis is not configured.
type MemoryStore struct {
	entries  map[string]memoryEntry
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a memory store and starts its expiry janitor.
func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		entries:  make(map[string]memoryEntry),
		stopChan: make(chan struct{}),
	}
	go ms.janitor()
	return ms
}

func (ms *MemoryStore) janitor() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ms.stopChan:
			return
		case now := <-ticker.C:
			ms.mu.Lock()
			for key, entry := range ms.entries {
				if entry.expired(now) {
					delete(ms.entries, key)
				}
			}
			ms.mu.Unlock()
		}
	}
}

// Get retrieves a value, returning ErrNotFound for missing or expired keys.
func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	ms.mu.RLock()
	entry, exists := ms.entries[key]
	ms.mu.RUnlock()

	if !exists || entry.expired(time.Now()) {
		return nil, ErrNotFound
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores a value with the given TTL.
func (ms *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	ms.mu.Lock()
	ms.entries[key] = entry
	ms.mu.Unlock()
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	delete(ms.entries, key)
	ms.mu.Unlock()
	return nil
}

// Exists reports whether a key is present and unexpired.
func (ms *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	ms.mu.RLock()
	entry, exists := ms.entries[key]
	ms.mu.RUnlock()
	return exists && !entry.expired(time.Now()), nil
}

// Close stops the expiry janitor.
func (ms *MemoryStore) Close() error {
	ms.stopOnce.Do(func() { close(ms.stopChan) })
	return nil
}
