// Package cache provides the key-value store used for run progress and message dedup.
package cache

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// Cache defines the key-value operations the judge relies on.
type Cache interface {
	// Get returns "" with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value; a zero ttl keeps the key forever.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX sets the value only if the key does not exist.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	Del(ctx context.Context, keys ...string) error

	Ping(ctx context.Context) error
	Close() error
}

// JitterTTL shortens ttl by up to 10% so keys written together expire apart.
func JitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	maxJitter := int64(ttl / 10)
	if maxJitter <= 0 {
		return ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(maxJitter+1))
	if err != nil {
		return ttl
	}
	return ttl - time.Duration(n.Int64())
}
