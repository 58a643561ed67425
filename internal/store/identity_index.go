package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/weiawesome/tweet-graph/internal/domain"
	"github.com/weiawesome/tweet-graph/internal/kv"
)

// IdentityIndex maps usernames to user ids.
type IdentityIndex interface {
	Register(ctx context.Context, username string, id int64) error
	Rename(ctx context.Context, oldUsername, newUsername string, id int64) error
	Lookup(ctx context.Context, username string) (int64, bool, error)
	Exists(ctx context.Context, username string) (bool, error)
}

// KVIdentityIndex implements IdentityIndex as a single hash.
type KVIdentityIndex struct {
	kv   kv.Store
	keys Keyspace
}

// NewIdentityIndex creates a hash-backed identity index.
func NewIdentityIndex(store kv.Store, keys Keyspace) *KVIdentityIndex {
	return &KVIdentityIndex{kv: store, keys: keys}
}

// Register inserts username → id. HSETNX makes the uniqueness check and the
// insert one primitive, so two racing registrations cannot both win.
func (x *KVIdentityIndex) Register(ctx context.Context, username string, id int64) error {
	ok, err := x.kv.HashSetNX(ctx, x.keys.UsernameIndex(), username, id)
	if err != nil {
		return fmt.Errorf("register username: %w", err)
	}
	if !ok {
		return domain.ErrDuplicateUsername
	}
	return nil
}

// Rename moves the entry for id from oldUsername to newUsername.
// The new mapping is inserted before the old one is removed, so a reader
// never observes the user without any mapping.
func (x *KVIdentityIndex) Rename(ctx context.Context, oldUsername, newUsername string, id int64) error {
	if err := x.Register(ctx, newUsername, id); err != nil {
		return err
	}

	if _, err := x.kv.HashDelete(ctx, x.keys.UsernameIndex(), oldUsername); err != nil {
		return fmt.Errorf("remove old username: %w", err)
	}
	return nil
}

func (x *KVIdentityIndex) Lookup(ctx context.Context, username string) (int64, bool, error) {
	val, ok, err := x.kv.HashGet(ctx, x.keys.UsernameIndex(), username)
	if err != nil {
		return 0, false, fmt.Errorf("lookup username: %w", err)
	}
	if !ok {
		return 0, false, nil
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse user id for %q: %w", username, err)
	}
	return id, true, nil
}

func (x *KVIdentityIndex) Exists(ctx context.Context, username string) (bool, error) {
	ok, err := x.kv.HashExists(ctx, x.keys.UsernameIndex(), username)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return ok, nil
}

// Ensure interface is satisfied at compile time.
var _ IdentityIndex = (*KVIdentityIndex)(nil)
