// Package kvtest provides an in-process Redis for tests.
package kvtest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/tweet-graph/internal/kv"
)

// New starts a miniredis server bound to t and returns a store on top of it.
func New(t testing.TB) (*kv.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return kv.NewRedisStoreFromClient(client), mr
}
