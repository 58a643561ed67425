package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/tweet-graph/internal/audit"
	"github.com/weiawesome/tweet-graph/internal/domain"
	"github.com/weiawesome/tweet-graph/internal/store"
	pkglog "github.com/weiawesome/tweet-graph/pkg/log"
	"github.com/weiawesome/tweet-graph/pkg/pubsub"
)

// Option configures a socialGraphService.
type Option func(*socialGraphService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *socialGraphService) { s.now = now }
}

// WithBcryptCost sets the cost used to hash passwords at sign-up.
func WithBcryptCost(cost int) Option {
	return func(s *socialGraphService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithPublisher publishes domain events to channel after each write.
func WithPublisher(pub pubsub.Publisher, channel string) Option {
	return func(s *socialGraphService) {
		s.publisher = pub
		s.channel = channel
	}
}

// socialGraphService implements SocialGraphService.
type socialGraphService struct {
	index  store.IdentityIndex
	users  store.UserRecordStore
	graph  store.SocialGraphStore
	tweets store.TweetStore

	publisher  pubsub.Publisher
	channel    string
	bcryptCost int
	now        func() time.Time
}

// NewSocialGraphService creates a new SocialGraphService instance.
func NewSocialGraphService(
	index store.IdentityIndex,
	users store.UserRecordStore,
	graph store.SocialGraphStore,
	tweets store.TweetStore,
	opts ...Option,
) SocialGraphService {
	s := &socialGraphService{
		index:      index,
		users:      users,
		graph:      graph,
		tweets:     tweets,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignUp allocates an id, writes the record and then indexes the username.
// A crash between the last two steps leaves an unreachable record, never an
// index entry without a record.
func (s *socialGraphService) SignUp(ctx context.Context, username, password string) (*domain.User, error) {
	l := pkglog.Ctx(ctx)

	if domain.IsBlank(username) || domain.IsBlank(password) {
		return nil, domain.ErrEmptyInput
	}
	if len(password) > domain.MaxPasswordBytes {
		return nil, domain.ErrPasswordTooLong
	}

	taken, err := s.index.Exists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrDuplicateUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.users.AllocateID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:               id,
		Username:         username,
		PasswordHash:     string(hash),
		RegistrationDate: now,
		ModificationDate: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		l.Error().Err(err).Int64(pkglog.FieldUserID, id).Msg("failed to write user record")
		return nil, err
	}

	if err := s.index.Register(ctx, username, id); err != nil {
		// Lost a race for the name; the record written above stays orphaned.
		if errors.Is(err, domain.ErrDuplicateUsername) {
			l.Warn().Int64(pkglog.FieldUserID, id).Str(pkglog.FieldUsername, username).
				Msg("username taken concurrently, user record left unindexed")
			return nil, err
		}
		l.Error().Err(err).Int64(pkglog.FieldUserID, id).Msg("failed to index username")
		return nil, err
	}

	audit.Log(ctx, audit.ActionSignUp, id, "user signed up")
	s.publish(ctx, pubsub.EventUserSignedUp, id, pubsub.UserPayload{UserID: id, Username: username})

	public := user.Public()
	return &public, nil
}

// Rename moves the caller to newUsername. The prior username is read from
// the record so the index step removes the right key.
func (s *socialGraphService) Rename(ctx context.Context, caller domain.Caller, newUsername string) (*domain.User, error) {
	l := pkglog.Ctx(ctx)

	if !caller.Authenticated() {
		return nil, domain.ErrNotAuthenticated
	}
	if domain.IsBlank(newUsername) {
		return nil, domain.ErrEmptyInput
	}

	user, ok, err := s.users.Read(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	oldUsername := user.Username
	if err := s.index.Rename(ctx, oldUsername, newUsername, user.ID); err != nil {
		if !errors.Is(err, domain.ErrDuplicateUsername) {
			l.Error().Err(err).Int64(pkglog.FieldUserID, user.ID).Msg("failed to rename in identity index")
		}
		return nil, err
	}

	now := s.now()
	if err := s.users.Update(ctx, user.ID, map[string]any{store.FieldUsername: newUsername}, now); err != nil {
		l.Error().Err(err).Int64(pkglog.FieldUserID, user.ID).
			Str(pkglog.FieldUsername, newUsername).
			Msg("index renamed but user record not updated")
		return nil, err
	}

	audit.LogWithDetail(ctx, audit.ActionRename, user.ID, oldUsername+" -> "+newUsername, "user renamed")
	s.publish(ctx, pubsub.EventUserRenamed, user.ID, pubsub.RenamePayload{
		UserID:      user.ID,
		OldUsername: oldUsername,
		NewUsername: newUsername,
	})

	user.Username = newUsername
	user.ModificationDate = time.Unix(now.Unix(), 0).UTC()
	public := user.Public()
	return &public, nil
}

// Follow makes the caller follow targetUsername.
func (s *socialGraphService) Follow(ctx context.Context, caller domain.Caller, targetUsername string) (*domain.FollowEdge, error) {
	l := pkglog.Ctx(ctx)

	if !caller.Authenticated() {
		return nil, domain.ErrNotAuthenticated
	}
	targetID, err := s.resolve(ctx, targetUsername)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if err := s.graph.Follow(ctx, caller.UserID, targetID, at); err != nil {
		if !errors.Is(err, domain.ErrSelfFollow) {
			l.Error().Err(err).
				Int64(pkglog.FieldFollowerID, caller.UserID).
				Int64(pkglog.FieldFolloweeID, targetID).
				Str(pkglog.FieldTargetUsername, targetUsername).
				Msg("failed to follow user")
		}
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionFollow, caller.UserID, targetID, "user followed")
	s.publish(ctx, pubsub.EventUserFollowed, caller.UserID, pubsub.FollowPayload{
		FollowerID: caller.UserID,
		FolloweeID: targetID,
	})

	return &domain.FollowEdge{
		FollowerID: caller.UserID,
		FolloweeID: targetID,
		FollowedAt: time.UnixMilli(at.UnixMilli()).UTC(),
	}, nil
}

// Unfollow removes the caller's edge to targetUsername.
func (s *socialGraphService) Unfollow(ctx context.Context, caller domain.Caller, targetUsername string) error {
	l := pkglog.Ctx(ctx)

	if !caller.Authenticated() {
		return domain.ErrNotAuthenticated
	}
	targetID, err := s.resolve(ctx, targetUsername)
	if err != nil {
		return err
	}

	if err := s.graph.Unfollow(ctx, caller.UserID, targetID); err != nil {
		if !errors.Is(err, domain.ErrNotFollowing) {
			l.Error().Err(err).
				Int64(pkglog.FieldFollowerID, caller.UserID).
				Int64(pkglog.FieldFolloweeID, targetID).
				Str(pkglog.FieldTargetUsername, targetUsername).
				Msg("failed to unfollow user")
		}
		return err
	}

	audit.LogWithTarget(ctx, audit.ActionUnfollow, caller.UserID, targetID, "user unfollowed")
	s.publish(ctx, pubsub.EventUserUnfollowed, caller.UserID, pubsub.FollowPayload{
		FollowerID: caller.UserID,
		FolloweeID: targetID,
	})
	return nil
}

// Post publishes a tweet authored by the caller.
func (s *socialGraphService) Post(ctx context.Context, caller domain.Caller, content string) (*domain.Tweet, error) {
	l := pkglog.Ctx(ctx)

	if !caller.Authenticated() {
		return nil, domain.ErrNotAuthenticated
	}

	at := s.now()
	id, err := s.tweets.Post(ctx, caller.UserID, content, at)
	if err != nil {
		if !errors.Is(err, domain.ErrEmptyInput) {
			l.Error().Err(err).
				Int64(pkglog.FieldUserID, caller.UserID).
				Int64(pkglog.FieldTweetID, id).
				Msg("failed to post tweet")
		}
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionPostTweet, caller.UserID, id, "tweet posted")
	s.publish(ctx, pubsub.EventTweetPosted, caller.UserID, pubsub.TweetPayload{
		TweetID:  id,
		AuthorID: caller.UserID,
		Content:  content,
	})

	posted := time.Unix(at.Unix(), 0).UTC()
	return &domain.Tweet{
		ID:           id,
		AuthorID:     caller.UserID,
		Content:      content,
		DatePosted:   posted,
		DateModified: posted,
	}, nil
}

// ViewProfile aggregates the user, their tweets and both sides of their
// follow graph. Hydrated followers and followees never carry private fields.
func (s *socialGraphService) ViewProfile(ctx context.Context, id int64, includePrivateFields bool) (*domain.Profile, error) {
	user, ok, err := s.users.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if !includePrivateFields {
		*user = user.Public()
	}

	tweetIDs, err := s.tweets.AuthorTimeline(ctx, id)
	if err != nil {
		return nil, err
	}
	tweets, err := s.tweets.GetMany(ctx, tweetIDs)
	if err != nil {
		return nil, err
	}

	following, err := s.hydrateUsers(ctx, s.graph.ListFollowing, id)
	if err != nil {
		return nil, err
	}
	followers, err := s.hydrateUsers(ctx, s.graph.ListFollowers, id)
	if err != nil {
		return nil, err
	}

	return &domain.Profile{
		User:      *user,
		Tweets:    tweets,
		Following: following,
		Followers: followers,
	}, nil
}

// ViewProfileByUsername returns the public profile of username.
func (s *socialGraphService) ViewProfileByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	id, err := s.resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.ViewProfile(ctx, id, false)
}

// ViewTimeline returns up to limit of the most recent tweets, newest first.
func (s *socialGraphService) ViewTimeline(ctx context.Context, limit int) ([]domain.Tweet, error) {
	ids, err := s.tweets.GlobalTimeline(ctx, limit)
	if err != nil {
		return nil, err
	}
	return s.tweets.GetMany(ctx, ids)
}

func (s *socialGraphService) AuthorTimeline(ctx context.Context, authorID int64) ([]int64, error) {
	return s.tweets.AuthorTimeline(ctx, authorID)
}

func (s *socialGraphService) GlobalTimeline(ctx context.Context, limit int) ([]int64, error) {
	return s.tweets.GlobalTimeline(ctx, limit)
}

// resolve maps a username to its id.
func (s *socialGraphService) resolve(ctx context.Context, username string) (int64, error) {
	if domain.IsBlank(username) {
		return 0, domain.ErrEmptyInput
	}
	id, ok, err := s.index.Lookup(ctx, username)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	return id, nil
}

func (s *socialGraphService) hydrateUsers(
	ctx context.Context,
	list func(context.Context, int64) ([]int64, error),
	id int64,
) ([]domain.User, error) {
	ids, err := list(ctx, id)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ReadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return users, nil
}

// publish is best effort: the write it describes has already happened.
func (s *socialGraphService) publish(ctx context.Context, eventType string, subject int64, payload interface{}) {
	if s.publisher == nil {
		return
	}
	l := pkglog.Ctx(ctx)

	event, err := pubsub.NewEvent(eventType, strconv.FormatInt(subject, 10), payload)
	if err != nil {
		l.Warn().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if err := s.publisher.Publish(ctx, s.channel, event); err != nil {
		l.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// Ensure interface is satisfied at compile time.
var _ SocialGraphService = (*socialGraphService)(nil)
