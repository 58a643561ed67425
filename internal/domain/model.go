package domain

import (
	"strings"
	"time"
)

// GlobalTimelineBound is the number of tweet ids kept in the global timeline.
// The list is trimmed with an inclusive 0..1000 range.
const GlobalTimelineBound = 1001

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// User is a registered account.
type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	PasswordHash     string    `json:"password,omitempty"`
	RegistrationDate time.Time `json:"registration_date"`
	ModificationDate time.Time `json:"modification_date"`
}

// Public returns a copy of u without password-equivalent fields.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// FollowEdge is a directed follow relationship.
type FollowEdge struct {
	FollowerID int64     `json:"follower_id"`
	FolloweeID int64     `json:"followee_id"`
	FollowedAt time.Time `json:"followed_at"`
}

// Tweet is an immutable post.
type Tweet struct {
	ID           int64     `json:"id"`
	AuthorID     int64     `json:"author_id"`
	Content      string    `json:"content"`
	DatePosted   time.Time `json:"date_posted"`
	DateModified time.Time `json:"date_modified"`
}

// Profile aggregates a user with their tweets and relationships.
type Profile struct {
	User      User    `json:"user"`
	Tweets    []Tweet `json:"tweets"`
	Following []User  `json:"following"`
	Followers []User  `json:"followers"`
}

// Caller identifies who is performing an operation.
// The zero value is the unauthenticated caller.
type Caller struct {
	UserID int64
}

// Anonymous is the unauthenticated caller.
var Anonymous = Caller{}

// AsUser returns the caller context for an authenticated user id.
func AsUser(id int64) Caller {
	return Caller{UserID: id}
}

// Authenticated reports whether the caller carries a user id.
func (c Caller) Authenticated() bool {
	return c.UserID > 0
}

// IsBlank reports whether s is empty or whitespace only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
