package client

import (
	"encoding/json"
	"sync"
	"time"
)

var nowFunc = time.Now // mockable

type cacheEntry struct {
	data     []byte
	storedAt time.Time
}

// responseCache holds raw GET response bodies. It is not bounded: entries go away when read
// after expiry or when the session changes.
type responseCache struct {
	mutex   sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func cacheKey(method, endpoint string, body interface{}) string {
	key := method + " " + endpoint
	if body != nil {
		if b, err := json.Marshal(body); err == nil {
			key += " " + string(b)
		}
	}
	return key
}

func (rc *responseCache) get(key string) ([]byte, bool) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	e, ok := rc.entries[key]
	if !ok {
		return nil, false
	}
	if nowFunc().Sub(e.storedAt) >= rc.ttl {
		delete(rc.entries, key)
		return nil, false
	}
	return e.data, true
}

func (rc *responseCache) set(key string, data []byte) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	rc.entries[key] = cacheEntry{data: append([]byte(nil), data...), storedAt: nowFunc()}
}

func (rc *responseCache) clear() {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	rc.entries = make(map[string]cacheEntry)
}

func (rc *responseCache) len() int {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	return len(rc.entries)
}
