package pubsub

// Event types emitted by the social graph after a successful write.
const (
	EventUserSignedUp   = "user.signed_up"
	EventUserRenamed    = "user.renamed"
	EventUserFollowed   = "user.followed"
	EventUserUnfollowed = "user.unfollowed"
	EventTweetPosted    = "tweet.posted"
)

// UserPayload accompanies user.signed_up.
type UserPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// RenamePayload accompanies user.renamed.
type RenamePayload struct {
	UserID      int64  `json:"user_id"`
	OldUsername string `json:"old_username"`
	NewUsername string `json:"new_username"`
}

// FollowPayload accompanies user.followed and user.unfollowed.
type FollowPayload struct {
	FollowerID int64 `json:"follower_id"`
	FolloweeID int64 `json:"followee_id"`
}

// TweetPayload accompanies tweet.posted.
type TweetPayload struct {
	TweetID  int64  `json:"tweet_id"`
	AuthorID int64  `json:"author_id"`
	Content  string `json:"content"`
}
