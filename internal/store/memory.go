package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements Store using ttlcache. It backs tests and
// single-process deployments where no Redis is configured.
type MemoryStore struct {
	cache *ttlcache.Cache[string, string]
	mu    sync.Mutex
}

// NewMemoryStore creates a new in-memory store with automatic cleanup.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	// Start the expiry cleanup process
	go cache.Start()

	return &MemoryStore{cache: cache}
}

// Close stops the expiry cleanup goroutine. The store stays readable; only
// automatic eviction ends.
func (s *MemoryStore) Close() {
	s.cache.Stop()
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	item := s.cache.Get(key)
	if item == nil {
		return "", ErrNotFound
	}
	return item.Value(), nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.cache.Set(key, value, ttlcache.NoTTL)
	return nil
}

func (s *MemoryStore) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) GetDel(_ context.Context, key string) (string, error) {
	// The lock makes read-and-remove atomic, matching Redis GETDEL.
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(key)
	if item == nil {
		return "", ErrNotFound
	}
	val := item.Value()
	s.cache.Delete(key)
	return val, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Scan pages lexically through keys with the given prefix. The cursor is the
// last key of the previous page.
func (s *MemoryStore) Scan(_ context.Context, prefix, cursor string, count int64) ([]string, string, error) {
	all := s.cache.Keys()
	matched := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, prefix) && k > cursor {
			matched = append(matched, k)
		}
	}
	sort.Strings(matched)

	if count > 0 && int64(len(matched)) > count {
		return matched[:count], matched[count-1], nil
	}
	return matched, "", nil
}

// Counters are stored as decimal strings so Get sees them, same as Redis.
func (s *MemoryStore) addToCounter(key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if item := s.cache.Get(key); item != nil {
		parsed, err := strconv.ParseInt(item.Value(), 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n += delta
	s.cache.Set(key, strconv.FormatInt(n, 10), ttlcache.NoTTL)
	return n, nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	return s.addToCounter(key, 1)
}

func (s *MemoryStore) Decr(_ context.Context, key string) (int64, error) {
	return s.addToCounter(key, -1)
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
