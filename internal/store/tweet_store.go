package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/weiawesome/tweet-graph/internal/domain"
	"github.com/weiawesome/tweet-graph/internal/kv"
)

// Tweet hash fields.
const (
	FieldAuthorID     = "uid"
	FieldContent      = "content"
	FieldDatePosted   = "date_posted"
	FieldDateModified = "date_modified"
)

// TweetStore owns tweet records, per-author timelines and the global timeline.
type TweetStore interface {
	Post(ctx context.Context, authorID int64, content string, at time.Time) (int64, error)
	AuthorTimeline(ctx context.Context, authorID int64) ([]int64, error)
	GlobalTimeline(ctx context.Context, limit int) ([]int64, error)
	Get(ctx context.Context, tweetID int64) (*domain.Tweet, bool, error)
	GetMany(ctx context.Context, ids []int64) ([]domain.Tweet, error)
}

// KVTweetStore implements TweetStore with hashes and capped lists.
type KVTweetStore struct {
	kv   kv.Store
	keys Keyspace
}

// NewTweetStore creates a tweet store.
func NewTweetStore(store kv.Store, keys Keyspace) *KVTweetStore {
	return &KVTweetStore{kv: store, keys: keys}
}

// Post allocates an id, writes the record, prepends the id to the author and
// global timelines and trims the global timeline. The writes are sequential
// and a failure part way leaves the earlier writes in place.
func (s *KVTweetStore) Post(ctx context.Context, authorID int64, content string, at time.Time) (int64, error) {
	if domain.IsBlank(content) {
		return 0, domain.ErrEmptyContent
	}

	id, err := s.kv.IncrementCounter(ctx, s.keys.NextTweetID())
	if err != nil {
		return 0, fmt.Errorf("allocate tweet id: %w", err)
	}

	fields := map[string]any{
		FieldAuthorID:     authorID,
		FieldContent:      content,
		FieldDatePosted:   at.Unix(),
		FieldDateModified: at.Unix(),
	}
	if err := s.kv.HashSet(ctx, s.keys.Tweet(id), fields); err != nil {
		return id, fmt.Errorf("write tweet %d: %w", id, err)
	}
	if _, err := s.kv.ListPush(ctx, s.keys.UserTweets(authorID), id); err != nil {
		return id, fmt.Errorf("push tweet %d to author timeline: %w", id, err)
	}
	if _, err := s.kv.ListPush(ctx, s.keys.GlobalTimeline(), id); err != nil {
		return id, fmt.Errorf("push tweet %d to global timeline: %w", id, err)
	}
	if err := s.kv.ListTrim(ctx, s.keys.GlobalTimeline(), 0, domain.GlobalTimelineBound-1); err != nil {
		return id, fmt.Errorf("trim global timeline: %w", err)
	}
	return id, nil
}

// AuthorTimeline returns every tweet id of the author, most recent first.
func (s *KVTweetStore) AuthorTimeline(ctx context.Context, authorID int64) ([]int64, error) {
	vals, err := s.kv.ListRange(ctx, s.keys.UserTweets(authorID), 0, -1)
	if err != nil {
		return nil, err
	}
	ids, err := parseIDs(vals)
	if err != nil {
		return nil, fmt.Errorf("parse author timeline %d: %w", authorID, err)
	}
	return ids, nil
}

// GlobalTimeline returns at most limit ids, most recent first. A limit of
// zero or less, or above the bound, reads the whole bounded list.
func (s *KVTweetStore) GlobalTimeline(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 || limit > domain.GlobalTimelineBound {
		limit = domain.GlobalTimelineBound
	}

	vals, err := s.kv.ListRange(ctx, s.keys.GlobalTimeline(), 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	ids, err := parseIDs(vals)
	if err != nil {
		return nil, fmt.Errorf("parse global timeline: %w", err)
	}
	return ids, nil
}

func (s *KVTweetStore) Get(ctx context.Context, tweetID int64) (*domain.Tweet, bool, error) {
	vals, err := s.kv.HashGetAll(ctx, s.keys.Tweet(tweetID))
	if err != nil {
		return nil, false, fmt.Errorf("read tweet %d: %w", tweetID, err)
	}
	if len(vals) == 0 {
		return nil, false, nil
	}

	tweet, err := decodeTweet(tweetID, vals)
	if err != nil {
		return nil, false, err
	}
	return tweet, true, nil
}

// GetMany hydrates ids in order, skipping ids without a record.
func (s *KVTweetStore) GetMany(ctx context.Context, ids []int64) ([]domain.Tweet, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.Tweet(id)
	}

	rows, err := s.kv.HashGetAllBatch(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read tweets: %w", err)
	}

	tweets := make([]domain.Tweet, 0, len(rows))
	for i, vals := range rows {
		if len(vals) == 0 {
			continue
		}
		tweet, err := decodeTweet(ids[i], vals)
		if err != nil {
			return nil, err
		}
		tweets = append(tweets, *tweet)
	}
	return tweets, nil
}

func decodeTweet(id int64, vals map[string]string) (*domain.Tweet, error) {
	author, err := strconv.ParseInt(vals[FieldAuthorID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("tweet %d uid: %w", id, err)
	}
	posted, err := parseUnix(vals[FieldDatePosted])
	if err != nil {
		return nil, fmt.Errorf("tweet %d date_posted: %w", id, err)
	}
	modified, err := parseUnix(vals[FieldDateModified])
	if err != nil {
		return nil, fmt.Errorf("tweet %d date_modified: %w", id, err)
	}

	return &domain.Tweet{
		ID:           id,
		AuthorID:     author,
		Content:      vals[FieldContent],
		DatePosted:   posted,
		DateModified: modified,
	}, nil
}

// Ensure interface is satisfied at compile time.
var _ TweetStore = (*KVTweetStore)(nil)
