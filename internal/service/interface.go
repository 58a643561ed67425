package service

import (
	"context"

	"github.com/weiawesome/tweet-graph/internal/domain"
)

// SocialGraphService defines the business logic for users, follows and tweets.
// Operations acting as a user take a domain.Caller and fail with
// domain.ErrNotAuthenticated before any read or write when it is anonymous.
type SocialGraphService interface {
	SignUp(ctx context.Context, username, password string) (*domain.User, error)
	Rename(ctx context.Context, caller domain.Caller, newUsername string) (*domain.User, error)
	Follow(ctx context.Context, caller domain.Caller, targetUsername string) (*domain.FollowEdge, error)
	Unfollow(ctx context.Context, caller domain.Caller, targetUsername string) error
	Post(ctx context.Context, caller domain.Caller, content string) (*domain.Tweet, error)

	ViewProfile(ctx context.Context, id int64, includePrivateFields bool) (*domain.Profile, error)
	ViewProfileByUsername(ctx context.Context, username string) (*domain.Profile, error)
	ViewTimeline(ctx context.Context, limit int) ([]domain.Tweet, error)

	AuthorTimeline(ctx context.Context, authorID int64) ([]int64, error)
	GlobalTimeline(ctx context.Context, limit int) ([]int64, error)
}
