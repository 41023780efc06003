package repository

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by KeyedStore reads when the key is absent
// or has expired.
var ErrKeyNotFound = errors.New("key not found")

// KeyedStore is the atomic TTL'd key-value surface the correlation
// tracker, dedup keys and read caches are built on. Every mutation is a
// single atomic server-side operation; correctness under concurrent
// webhook deliveries rests on that, not on in-process locks.
type KeyedStore interface {
	// Get returns the value at key, or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set writes key=value with the given TTL (0 means no expiry)
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent writes key=value only when the key does not exist.
	// Returns true when this call created it.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// GetDel atomically reads and deletes the key. Exactly one concurrent
	// caller observes the value; the rest get ErrKeyNotFound.
	GetDel(ctx context.Context, key string) (string, error)

	// Increment atomically adds one to the counter at key and returns the
	// new value. The TTL is applied when this call creates the counter.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete removes the given keys
	Delete(ctx context.Context, keys ...string) error

	// AddDeadline records member in a deadline index with the given due time
	AddDeadline(ctx context.Context, index, member string, due time.Time) error

	// RemoveDeadline drops member from the deadline index. Returns true
	// when the member was present, so concurrent sweepers and completers
	// can race for a single claim.
	RemoveDeadline(ctx context.Context, index, member string) (bool, error)

	// DueMembers returns members of the index whose deadline is at or
	// before now, without removing them
	DueMembers(ctx context.Context, index string, now time.Time) ([]string, error)
}
