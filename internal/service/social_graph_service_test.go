package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/tweet-graph/internal/domain"
	"github.com/weiawesome/tweet-graph/internal/kv"
	"github.com/weiawesome/tweet-graph/internal/kv/kvtest"
	"github.com/weiawesome/tweet-graph/internal/service"
	"github.com/weiawesome/tweet-graph/internal/store"
	"github.com/weiawesome/tweet-graph/pkg/pubsub"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*pubsub.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc    service.SocialGraphService
	kv     *kv.RedisStore
	mr     *miniredis.Miniredis
	index  *store.KVIdentityIndex
	users  *store.KVUserStore
	graph  *store.KVGraphStore
	tweets *store.KVTweetStore
	pub    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	kvs, mr := kvtest.New(t)
	keys := store.NewKeyspace("")
	f := &fixture{
		kv:     kvs,
		mr:     mr,
		index:  store.NewIdentityIndex(kvs, keys),
		users:  store.NewUserStore(kvs, keys),
		graph:  store.NewGraphStore(kvs, keys),
		tweets: store.NewTweetStore(kvs, keys),
		pub:    &recordingPublisher{},
	}

	var (
		clockMu sync.Mutex
		clock   = t0
	)
	f.svc = service.NewSocialGraphService(
		f.index, f.users, f.graph, f.tweets,
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithPublisher(f.pub, "events"),
		service.WithClock(func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	return f
}

func (f *fixture) signUp(t *testing.T, username string) int64 {
	t.Helper()
	u, err := f.svc.SignUp(context.Background(), username, "secret")
	require.NoError(t, err)
	return u.ID
}

func TestSignUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.SignUp(ctx, "alice", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Empty(t, u.PasswordHash)

	stored, ok, err := f.users.Read(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, "p1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("p1")))

	id, ok, err := f.index.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	assert.Equal(t, []string{pubsub.EventUserSignedUp}, f.pub.types())
}

func TestSignUpDuplicateAllocatesOneID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignUp(ctx, "x", "p1")
	require.NoError(t, err)

	_, err = f.svc.SignUp(ctx, "x", "p2")
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)

	counter, err := f.mr.Get("next_user_id")
	require.NoError(t, err)
	assert.Equal(t, "1", counter)

	stored, _, err := f.users.Read(ctx, 1)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("p1")))
}

func TestSignUpBlankInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name, username, password string
	}{
		{"empty username", "", "p"},
		{"blank username", "  \t", "p"},
		{"empty password", "alice", ""},
		{"blank password", "alice", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SignUp(context.Background(), tt.username, tt.password)
			assert.ErrorIs(t, err, domain.ErrEmptyInput)
		})
	}
	assert.Empty(t, f.mr.Keys())
}

func TestSignUpRejectsOverlongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 30 characters, 90 bytes.
	_, err := f.svc.SignUp(ctx, "alice", strings.Repeat("日", 30))
	assert.ErrorIs(t, err, domain.ErrPasswordTooLong)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, f.mr.Keys())

	// Exactly at the limit is accepted.
	u, err := f.svc.SignUp(ctx, "alice", strings.Repeat("日", 24))
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
}

func TestConcurrentSignUpKeepsOneIndexEntry(t *testing.T) {
	f := newFixture(t)

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SignUp(context.Background(), "dup", "p")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	index, err := f.kv.HashGetAll(context.Background(), "users")
	require.NoError(t, err)
	assert.Len(t, index, 1)
	assert.Contains(t, index, "dup")
}

func TestUnauthenticatedCallerIsRejected(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "bob")
	before := f.mr.Keys()
	ctx := context.Background()

	_, err := f.svc.Rename(ctx, domain.Anonymous, "carol")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	_, err = f.svc.Follow(ctx, domain.Anonymous, "bob")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	err = f.svc.Unfollow(ctx, domain.Anonymous, "bob")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	_, err = f.svc.Post(ctx, domain.Anonymous, "hello")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	assert.Equal(t, before, f.mr.Keys())
}

func TestRenameOntoTakenName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		f.signUp(t, fmt.Sprintf("user%d", i))
	}
	alice := f.signUp(t, "alice")
	require.Equal(t, int64(5), alice)
	f.signUp(t, "bob")

	_, err := f.svc.Rename(ctx, domain.AsUser(alice), "bob")
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)

	id, ok, err := f.index.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), id)
}

func TestRenameToAvailableName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		f.signUp(t, fmt.Sprintf("user%d", i))
	}
	alice := f.signUp(t, "alice")

	renamed, err := f.svc.Rename(ctx, domain.AsUser(alice), "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", renamed.Username)
	assert.Empty(t, renamed.PasswordHash)
	assert.True(t, renamed.ModificationDate.After(renamed.RegistrationDate))

	_, ok, err := f.index.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	id, ok, err := f.index.Lookup(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), id)

	profile, err := f.svc.ViewProfile(ctx, 5, false)
	require.NoError(t, err)
	assert.Equal(t, "carol", profile.User.Username)

	assert.Contains(t, f.pub.types(), pubsub.EventUserRenamed)
}

func TestRenameValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Rename(ctx, domain.AsUser(1), " ")
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	_, err = f.svc.Rename(ctx, domain.AsUser(42), "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, ok, err := f.index.Lookup(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFollowIsSymmetric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.signUp(t, "a")
	b := f.signUp(t, "b")

	edge, err := f.svc.Follow(ctx, domain.AsUser(a), "b")
	require.NoError(t, err)
	assert.Equal(t, a, edge.FollowerID)
	assert.Equal(t, b, edge.FolloweeID)
	assert.False(t, edge.FollowedAt.IsZero())

	following, err := f.graph.ListFollowing(ctx, a)
	require.NoError(t, err)
	assert.Contains(t, following, b)

	followers, err := f.graph.ListFollowers(ctx, b)
	require.NoError(t, err)
	assert.Contains(t, followers, a)

	require.NoError(t, f.svc.Unfollow(ctx, domain.AsUser(a), "b"))

	following, err = f.graph.ListFollowing(ctx, a)
	require.NoError(t, err)
	assert.NotContains(t, following, b)

	followers, err = f.graph.ListFollowers(ctx, b)
	require.NoError(t, err)
	assert.NotContains(t, followers, a)

	assert.Equal(t, []string{
		pubsub.EventUserSignedUp,
		pubsub.EventUserSignedUp,
		pubsub.EventUserFollowed,
		pubsub.EventUserUnfollowed,
	}, f.pub.types())
}

func TestFollowErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.signUp(t, "a")
	f.signUp(t, "b")

	t.Run("self follow leaves state unchanged", func(t *testing.T) {
		before := f.mr.Keys()
		_, err := f.svc.Follow(ctx, domain.AsUser(a), "a")
		assert.ErrorIs(t, err, domain.ErrSelfFollow)
		assert.Equal(t, before, f.mr.Keys())
	})

	t.Run("unknown target", func(t *testing.T) {
		_, err := f.svc.Follow(ctx, domain.AsUser(a), "nobody")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		assert.ErrorIs(t, f.svc.Unfollow(ctx, domain.AsUser(a), "nobody"), domain.ErrUserNotFound)
	})

	t.Run("blank target", func(t *testing.T) {
		_, err := f.svc.Follow(ctx, domain.AsUser(a), "")
		assert.ErrorIs(t, err, domain.ErrEmptyInput)
	})

	t.Run("unfollow without edge", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.Unfollow(ctx, domain.AsUser(a), "b"), domain.ErrNotFollowing)
	})
}

func TestPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.signUp(t, "a")

	tweet, err := f.svc.Post(ctx, domain.AsUser(a), "hello world")
	require.NoError(t, err)
	assert.Equal(t, int64(1), tweet.ID)
	assert.Equal(t, a, tweet.AuthorID)
	assert.Equal(t, "hello world", tweet.Content)

	ids, err := f.svc.AuthorTimeline(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	ids, err = f.svc.GlobalTimeline(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestPostBlankContentLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.signUp(t, "a")
	before := f.mr.Keys()

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.Post(ctx, domain.AsUser(a), content)
		assert.ErrorIs(t, err, domain.ErrEmptyInput)
		assert.ErrorIs(t, err, domain.ErrEmptyContent)
	}
	assert.Equal(t, before, f.mr.Keys())
}

func TestGlobalTimelineKeepsMostRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.signUp(t, "a")

	const n = domain.GlobalTimelineBound + 20
	for i := 0; i < n; i++ {
		_, err := f.svc.Post(ctx, domain.AsUser(a), fmt.Sprintf("tweet %d", i))
		require.NoError(t, err)
	}

	ids, err := f.svc.GlobalTimeline(ctx, 2000)
	require.NoError(t, err)
	require.Len(t, ids, domain.GlobalTimelineBound)
	for i, id := range ids {
		assert.Equal(t, int64(n-i), id)
	}

	tweets, err := f.svc.ViewTimeline(ctx, 3)
	require.NoError(t, err)
	require.Len(t, tweets, 3)
	assert.Equal(t, int64(n), tweets[0].ID)
	assert.Equal(t, fmt.Sprintf("tweet %d", n-1), tweets[0].Content)

	// The author's own list is unbounded.
	own, err := f.svc.AuthorTimeline(ctx, a)
	require.NoError(t, err)
	assert.Len(t, own, n)
}

func TestViewProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.signUp(t, "a")
	b := f.signUp(t, "b")
	c := f.signUp(t, "c")

	_, err := f.svc.Follow(ctx, domain.AsUser(a), "b")
	require.NoError(t, err)
	_, err = f.svc.Follow(ctx, domain.AsUser(c), "a")
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, domain.AsUser(a), "first")
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, domain.AsUser(a), "second")
	require.NoError(t, err)

	public, err := f.svc.ViewProfile(ctx, a, false)
	require.NoError(t, err)
	assert.Equal(t, "a", public.User.Username)
	assert.Empty(t, public.User.PasswordHash)
	require.Len(t, public.Tweets, 2)
	assert.Equal(t, "second", public.Tweets[0].Content)
	require.Len(t, public.Following, 1)
	assert.Equal(t, b, public.Following[0].ID)
	assert.Empty(t, public.Following[0].PasswordHash)
	require.Len(t, public.Followers, 1)
	assert.Equal(t, c, public.Followers[0].ID)
	assert.Empty(t, public.Followers[0].PasswordHash)

	private, err := f.svc.ViewProfile(ctx, a, true)
	require.NoError(t, err)
	assert.NotEmpty(t, private.User.PasswordHash)

	byName, err := f.svc.ViewProfileByUsername(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, a, byName.User.ID)
	assert.Empty(t, byName.User.PasswordHash)

	_, err = f.svc.ViewProfile(ctx, 99, false)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = f.svc.ViewProfileByUsername(ctx, "zed")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestWriteResultsMatchStoredRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.signUp(t, "a")
	f.signUp(t, "b")

	renamed, err := f.svc.Rename(ctx, domain.AsUser(a), "carol")
	require.NoError(t, err)
	stored, _, err := f.users.Read(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, renamed.ModificationDate.Location())
	assert.Equal(t, stored.ModificationDate, renamed.ModificationDate)

	tweet, err := f.svc.Post(ctx, domain.AsUser(a), "hello")
	require.NoError(t, err)
	storedTweet, ok, err := f.tweets.Get(ctx, tweet.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.UTC, tweet.DatePosted.Location())
	assert.Equal(t, *storedTweet, *tweet)

	edge, err := f.svc.Follow(ctx, domain.AsUser(a), "b")
	require.NoError(t, err)
	edges, err := f.graph.FollowingEdges(ctx, a)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, time.UTC, edge.FollowedAt.Location())
	assert.Equal(t, edges[0], *edge)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("bus down")

	u, err := f.svc.SignUp(context.Background(), "alice", "p")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
}
