package cache

import (
	"sync"
	"time"

	"github.com/dealmungchi/dealextractor/logger"
)

const (
	// DefaultMaxEntries caps a MemoryCache; Set evicts once it is full
	DefaultMaxEntries = 10000

	sweepInterval = time.Minute
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is an in-process CacheService used when no memcached is configured.
// Expired entries are swept on Set at most once per sweepInterval.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	nextSweep  time.Time
	now        func() time.Time
	log        *logger.Logger
}

// NewMemoryCache creates an empty in-memory cache holding up to DefaultMaxEntries
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		log:        logger.ForCache(),
	}
}

// Len reports how many entries are held, expired or not
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Get returns the value for key or ErrCacheMiss
func (m *MemoryCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return nil, ErrCacheMiss
	}
	return e.value, nil
}

// Set stores value; a non-positive expiration never expires
func (m *MemoryCache) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(sweepInterval)
	}

	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.sweep(now)
		m.evictSoonest()
	}

	e := memoryEntry{value: append([]byte(nil), value...)}
	if expiration > 0 {
		e.expiresAt = now.Add(expiration)
	}
	m.entries[key] = e
	return nil
}

// Delete removes key
func (m *MemoryCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// sweep drops every expired entry. Callers hold mu.
func (m *MemoryCache) sweep(now time.Time) {
	removed := 0
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	if removed > 0 {
		m.log.Debug().
			Int("removed", removed).
			Int("remaining", len(m.entries)).
			Msg("Swept expired cache entries")
	}
}

// evictSoonest drops the entry closest to expiry, preferring expiring entries
// over permanent ones, until there is room for one more. Callers hold mu.
func (m *MemoryCache) evictSoonest() {
	for len(m.entries) >= m.maxEntries {
		var (
			victim       string
			victimExpiry time.Time
			found        bool
		)
		for key, e := range m.entries {
			switch {
			case !found:
			case e.expiresAt.IsZero():
				continue
			case !victimExpiry.IsZero() && !e.expiresAt.Before(victimExpiry):
				continue
			}
			victim, victimExpiry, found = key, e.expiresAt, true
		}
		delete(m.entries, victim)
	}
}
