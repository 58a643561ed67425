// Package kv defines the single-key primitives the social graph is built on.
//
// Each primitive is atomic on its own. Nothing in this package offers a
// transaction across keys; callers sequence primitives themselves.
package kv

import "context"

// ScoredMember is a sorted set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the primitive contract of the backing key-value store.
//
// Counters start at zero, so the first IncrementCounter call returns 1.
type Store interface {
	IncrementCounter(ctx context.Context, name string) (int64, error)
	GetCounter(ctx context.Context, name string) (int64, error)

	HashSet(ctx context.Context, key string, fields map[string]any) error
	// HashSetNX sets field only if it does not exist and reports whether it did.
	HashSetNX(ctx context.Context, key, field string, value any) (bool, error)
	HashGet(ctx context.Context, key, field string) (string, bool, error)
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	// HashGetAllBatch reads several hashes in one round trip. The result is
	// index-aligned with keys; a missing hash yields an empty map.
	HashGetAllBatch(ctx context.Context, keys []string) ([]map[string]string, error)
	HashDelete(ctx context.Context, key string, fields ...string) (int64, error)
	HashExists(ctx context.Context, key, field string) (bool, error)

	SortedSetAdd(ctx context.Context, key, member string, score float64) error
	SortedSetRemove(ctx context.Context, key, member string) (int64, error)
	SortedSetScore(ctx context.Context, key, member string) (float64, bool, error)
	// SortedSetRange returns members in ascending score order. Indexes are
	// inclusive and may be negative, counting from the end.
	SortedSetRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// ListPush inserts value at the head of the list.
	ListPush(ctx context.Context, key string, value any) (int64, error)
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ListTrim(ctx context.Context, key string, start, stop int64) error

	Close() error
}
