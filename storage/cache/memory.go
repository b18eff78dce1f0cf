package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/elimu/core"
)

var nowFunc = time.Now // mockable

type memEntry struct {
	val       []byte
	expiresAt time.Time
}

type memoryCache struct {
	mutex   sync.Mutex
	entries map[string]memEntry
}

var _ core.Cache = (*memoryCache)(nil) // interface compliance check

// NewMemoryCache returns a process-local cache, used when redis is not configured.
func NewMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]memEntry)}
}

// Get drops the entry when expired.
func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, core.ErrCacheMiss
	}
	if !nowFunc().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, core.ErrCacheMiss
	}
	return append([]byte(nil), e.val...), nil
}

func (c *memoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[key] = memEntry{val: append([]byte(nil), val...), expiresAt: nowFunc().Add(ttl)}
	return nil
}

func (c *memoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

type memWindow struct {
	count   int
	resetAt time.Time
}

type memoryLimiter struct {
	mutex   sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*memWindow
}

var _ core.RateLimiter = (*memoryLimiter)(nil) // interface compliance check

func NewMemoryLimiter(limit int, window time.Duration) *memoryLimiter {
	return &memoryLimiter{limit: limit, window: window, windows: make(map[string]*memWindow)}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := nowFunc()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memWindow{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	if w.count <= l.limit {
		return true, 0, nil
	}
	return false, w.resetAt.Sub(now), nil
}
