package ephemeral

import (
	"context"
	"time"
)

// Mutator receives the current value of a key and returns its replacement.
// Returning an error aborts the update and nothing is written.
type Mutator func(current []byte) ([]byte, error)

type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the keyed, TTL-capable cache holding the live view of every
// active session. Sub-collections (players of a room, bans of a game) are
// hashes so one member can change without rewriting the rest.
//
// AtomicUpdate and HUpdate are read-modify-write operations that never
// interleave with another writer of the same key. They report false and
// write nothing when the key (or hash field) does not exist. A Mutator
// must not call back into the Store.
type Store interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	AtomicUpdate(ctx context.Context, key string, mutate Mutator) ([]byte, bool, error)

	// ScanKeys returns every key matching a glob pattern.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	// ScanPrefix returns the plain records whose key starts with prefix.
	ScanPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
	Incr(ctx context.Context, key string) (int64, error)

	HSet(ctx context.Context, key, field string, value []byte, ttl time.Duration) error
	HSetNX(ctx context.Context, key, field string, value []byte, ttl time.Duration) (bool, error)
	HGet(ctx context.Context, key, field string) ([]byte, bool, error)
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HUpdate(ctx context.Context, key, field string, mutate Mutator) ([]byte, bool, error)

	ZAdd(ctx context.Context, key, member string, score float64) error
	ZTop(ctx context.Context, key string, n int) ([]ScoredMember, error)

	Ping(ctx context.Context) error
	Close() error
}
