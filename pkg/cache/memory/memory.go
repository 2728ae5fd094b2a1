package memory

import (
	"errors"
	"sync"
	"time"
	"unicode"
)

// Cache errors
var (
	ErrKeyNotFound = errors.New("cache: key not found")
	ErrInvalidKey  = errors.New("cache: invalid key")
	ErrClosed      = errors.New("cache: closed")
)

// MemoryCache is a thread-safe in-memory TTL cache. Expired entries are
// invisible to readers and are swept by a background goroutine.
type MemoryCache[V any] struct {
	// data stores the cache entries
	data map[string]*entry[V]

	// mu protects concurrent access to data
	mu sync.Mutex

	config MemoryCacheConfig

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	wg            sync.WaitGroup
	closed        bool
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// MemoryCacheConfig holds configuration for the memory cache
type MemoryCacheConfig struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	// When full, the entry closest to expiry is evicted.
	MaxSize int

	// DefaultTTL is used when Set is called with ttl <= 0
	DefaultTTL time.Duration

	// CleanupInterval is how often expired entries are swept
	CleanupInterval time.Duration
}

// NewMemoryCache creates a new in-memory cache and starts its sweeper.
// Close must be called to stop it.
func NewMemoryCache[V any](config MemoryCacheConfig) *MemoryCache[V] {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = time.Hour
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	c := &MemoryCache[V]{
		data:          make(map[string]*entry[V]),
		config:        config,
		stopCleanup:   make(chan struct{}),
		cleanupTicker: time.NewTicker(config.CleanupInterval),
	}

	c.wg.Add(1)
	go c.cleanup()

	return c
}

// Take returns the value stored under key and removes it in one step, so
// at most one caller ever receives a given entry.
func (c *MemoryCache[V]) Take(key string) (V, error) {
	var zero V
	if err := validateKey(key); err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.liveLocked(key)
	if !ok {
		return zero, ErrKeyNotFound
	}
	delete(c.data, key)
	return e.value, nil
}

// Set stores value under key for ttl (DefaultTTL when ttl <= 0).
func (c *MemoryCache[V]) Set(key string, value V, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if _, exists := c.data[key]; !exists && c.config.MaxSize > 0 && len(c.data) >= c.config.MaxSize {
		c.evictLocked()
	}

	c.data[key] = &entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	n := 0
	for _, e := range c.data {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the sweeper and drops all entries. It is safe to call twice.
func (c *MemoryCache[V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.data = make(map[string]*entry[V])
	c.mu.Unlock()

	c.cleanupTicker.Stop()
	close(c.stopCleanup)
	c.wg.Wait()

	return nil
}

// liveLocked returns the entry for key if present and unexpired, dropping it
// when expired. Callers must hold c.mu.
func (c *MemoryCache[V]) liveLocked(key string) (*entry[V], bool) {
	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if !time.Now().Before(e.expiresAt) {
		delete(c.data, key)
		return nil, false
	}
	return e, true
}

// evictLocked removes the entry with the earliest expiry. Callers must hold c.mu.
func (c *MemoryCache[V]) evictLocked() {
	var victim string
	var earliest time.Time
	for k, e := range c.data {
		if victim == "" || e.expiresAt.Before(earliest) {
			victim = k
			earliest = e.expiresAt
		}
	}
	if victim != "" {
		delete(c.data, victim)
	}
}

func (c *MemoryCache[V]) cleanup() {
	defer c.wg.Done()

	for {
		select {
		case <-c.cleanupTicker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, key)
		}
	}
}

// validateKey rejects empty, oversized, or whitespace-bearing keys.
func validateKey(key string) error {
	if key == "" || len(key) > 250 {
		return ErrInvalidKey
	}
	for _, r := range key {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return ErrInvalidKey
		}
	}
	return nil
}
