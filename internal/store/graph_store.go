package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/weiawesome/tweet-graph/internal/domain"
	"github.com/weiawesome/tweet-graph/internal/kv"
)

// SocialGraphStore keeps following(uid) and followers(uid) as one logical
// edge written twice. following is always written first and removed first.
type SocialGraphStore interface {
	Follow(ctx context.Context, followerID, followeeID int64, at time.Time) error
	Unfollow(ctx context.Context, followerID, followeeID int64) error
	IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error)
	ListFollowing(ctx context.Context, id int64) ([]int64, error)
	ListFollowers(ctx context.Context, id int64) ([]int64, error)

	FollowingEdges(ctx context.Context, id int64) ([]domain.FollowEdge, error)
	FollowerEdges(ctx context.Context, id int64) ([]domain.FollowEdge, error)
	HasFollowerEntry(ctx context.Context, followeeID, followerID int64) (bool, error)
	RepairMirror(ctx context.Context, edge domain.FollowEdge) error
	RemoveFollowerEntry(ctx context.Context, followeeID, followerID int64) error
}

// KVGraphStore implements SocialGraphStore with two sorted sets per user.
// Scores are follow times in unix milliseconds.
type KVGraphStore struct {
	kv   kv.Store
	keys Keyspace
}

// NewGraphStore creates a sorted-set backed graph store.
func NewGraphStore(store kv.Store, keys Keyspace) *KVGraphStore {
	return &KVGraphStore{kv: store, keys: keys}
}

// Follow records followerID → followeeID at the given time. Following an
// already-followed user only refreshes the score.
func (s *KVGraphStore) Follow(ctx context.Context, followerID, followeeID int64, at time.Time) error {
	if followerID == followeeID {
		return domain.ErrSelfFollow
	}

	score := float64(at.UnixMilli())
	if err := s.kv.SortedSetAdd(ctx, s.keys.Following(followerID), formatID(followeeID), score); err != nil {
		return fmt.Errorf("add following edge: %w", err)
	}
	if err := s.kv.SortedSetAdd(ctx, s.keys.Followers(followeeID), formatID(followerID), score); err != nil {
		return fmt.Errorf("add follower edge: %w", err)
	}
	return nil
}

// Unfollow removes both sides of the edge. The followers side is removed
// even when it is already missing, which also clears half-written edges.
func (s *KVGraphStore) Unfollow(ctx context.Context, followerID, followeeID int64) error {
	following, err := s.IsFollowing(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if !following {
		return domain.ErrNotFollowing
	}

	if _, err := s.kv.SortedSetRemove(ctx, s.keys.Following(followerID), formatID(followeeID)); err != nil {
		return fmt.Errorf("remove following edge: %w", err)
	}
	if _, err := s.kv.SortedSetRemove(ctx, s.keys.Followers(followeeID), formatID(followerID)); err != nil {
		return fmt.Errorf("remove follower edge: %w", err)
	}
	return nil
}

func (s *KVGraphStore) IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error) {
	_, ok, err := s.kv.SortedSetScore(ctx, s.keys.Following(followerID), formatID(followeeID))
	if err != nil {
		return false, fmt.Errorf("check following edge: %w", err)
	}
	return ok, nil
}

func (s *KVGraphStore) ListFollowing(ctx context.Context, id int64) ([]int64, error) {
	return s.listIDs(ctx, s.keys.Following(id))
}

func (s *KVGraphStore) ListFollowers(ctx context.Context, id int64) ([]int64, error) {
	return s.listIDs(ctx, s.keys.Followers(id))
}

// FollowingEdges returns the outgoing edges of id in follow-time order.
func (s *KVGraphStore) FollowingEdges(ctx context.Context, id int64) ([]domain.FollowEdge, error) {
	members, err := s.kv.SortedSetRange(ctx, s.keys.Following(id), 0, -1)
	if err != nil {
		return nil, err
	}

	edges := make([]domain.FollowEdge, 0, len(members))
	for _, m := range members {
		followee, err := strconv.ParseInt(m.Member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse followee of %d: %w", id, err)
		}
		edges = append(edges, domain.FollowEdge{
			FollowerID: id,
			FolloweeID: followee,
			FollowedAt: scoreTime(m.Score),
		})
	}
	return edges, nil
}

// FollowerEdges returns the incoming edges of id in follow-time order.
func (s *KVGraphStore) FollowerEdges(ctx context.Context, id int64) ([]domain.FollowEdge, error) {
	members, err := s.kv.SortedSetRange(ctx, s.keys.Followers(id), 0, -1)
	if err != nil {
		return nil, err
	}

	edges := make([]domain.FollowEdge, 0, len(members))
	for _, m := range members {
		follower, err := strconv.ParseInt(m.Member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse follower of %d: %w", id, err)
		}
		edges = append(edges, domain.FollowEdge{
			FollowerID: follower,
			FolloweeID: id,
			FollowedAt: scoreTime(m.Score),
		})
	}
	return edges, nil
}

func (s *KVGraphStore) HasFollowerEntry(ctx context.Context, followeeID, followerID int64) (bool, error) {
	_, ok, err := s.kv.SortedSetScore(ctx, s.keys.Followers(followeeID), formatID(followerID))
	if err != nil {
		return false, fmt.Errorf("check follower edge: %w", err)
	}
	return ok, nil
}

// RepairMirror writes the followers side of an existing following edge.
func (s *KVGraphStore) RepairMirror(ctx context.Context, edge domain.FollowEdge) error {
	score := float64(edge.FollowedAt.UnixMilli())
	if err := s.kv.SortedSetAdd(ctx, s.keys.Followers(edge.FolloweeID), formatID(edge.FollowerID), score); err != nil {
		return fmt.Errorf("repair follower edge: %w", err)
	}
	return nil
}

// RemoveFollowerEntry drops a followers entry that has no following side.
func (s *KVGraphStore) RemoveFollowerEntry(ctx context.Context, followeeID, followerID int64) error {
	if _, err := s.kv.SortedSetRemove(ctx, s.keys.Followers(followeeID), formatID(followerID)); err != nil {
		return fmt.Errorf("remove stale follower edge: %w", err)
	}
	return nil
}

func (s *KVGraphStore) listIDs(ctx context.Context, key string) ([]int64, error) {
	members, err := s.kv.SortedSetRange(ctx, key, 0, -1)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m.Member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse member of %s: %w", key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func scoreTime(score float64) time.Time {
	return time.UnixMilli(int64(score)).UTC()
}

// Ensure interface is satisfied at compile time.
var _ SocialGraphStore = (*KVGraphStore)(nil)
