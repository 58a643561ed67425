package store

import "strconv"

// Keyspace builds the legacy key layout, optionally under a namespace prefix.
type Keyspace struct {
	prefix string
}

// NewKeyspace returns a keyspace. An empty prefix keeps the bare legacy keys.
func NewKeyspace(prefix string) Keyspace {
	if prefix != "" {
		prefix += ":"
	}
	return Keyspace{prefix: prefix}
}

func (k Keyspace) UsernameIndex() string  { return k.prefix + "users" }
func (k Keyspace) NextUserID() string     { return k.prefix + "next_user_id" }
func (k Keyspace) NextTweetID() string    { return k.prefix + "next_tweet_id" }
func (k Keyspace) GlobalTimeline() string { return k.prefix + "timeline" }

func (k Keyspace) User(id int64) string      { return k.prefix + "user:" + formatID(id) }
func (k Keyspace) Following(id int64) string { return k.prefix + "following:" + formatID(id) }
func (k Keyspace) Followers(id int64) string { return k.prefix + "followers:" + formatID(id) }
func (k Keyspace) Tweet(id int64) string     { return k.prefix + "tweet:" + formatID(id) }
func (k Keyspace) UserTweets(id int64) string {
	return k.prefix + "tweet_user:" + formatID(id)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseIDs(vals []string) ([]int64, error) {
	ids := make([]int64, 0, len(vals))
	for _, v := range vals {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
