package core

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

type (
	// Cache stores serialized values for a limited time.
	Cache interface {
		// Get returns ErrCacheMiss when key is unknown or expired.
		Get(ctx context.Context, key string) ([]byte, error)
		Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
		// DeletePrefix drops every key starting with prefix.
		DeletePrefix(ctx context.Context, prefix string) error
	}

	// RateLimiter counts hits per key over a fixed window.
	RateLimiter interface {
		// Allow registers a hit for key. When the limit is reached, it returns false
		// and the time left before the window resets.
		Allow(ctx context.Context, key string) (bool, time.Duration, error)
	}
)
