package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache used when no Redis URL is configured.
// Expired entries are removed lazily on access.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	hasExpiry bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Ping(ctx context.Context) error { return nil }

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// IncrWithExpiry mirrors the Redis pipeline: increment, then set the expiry
// only when the key has none. The window is fixed from the first increment.
func (c *MemoryCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	entry, ok := c.lookup(key)
	if ok {
		parsed, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++

	entry.value = []byte(strconv.FormatInt(n, 10))
	if !entry.hasExpiry && expiry > 0 {
		entry.hasExpiry = true
		entry.expiresAt = c.now().Add(expiry)
	}
	c.entries[key] = entry
	return n, nil
}

func (c *MemoryCache) Close() error { return nil }

// lookup returns a live entry. Callers hold c.mu.
func (c *MemoryCache) lookup(key string) (memoryEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.hasExpiry && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

var _ Cache = (*MemoryCache)(nil)
