package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisherDeliversEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "graph")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	evt, err := NewEvent(EventUserFollowed, "1", FollowPayload{FollowerID: 1, FolloweeID: 2})
	require.NoError(t, err)
	require.NoError(t, NewRedisPublisher(client).Publish(ctx, "graph", evt))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, EventUserFollowed, got.Type)
	assert.Equal(t, "1", got.Subject)

	var payload FollowPayload
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, FollowPayload{FollowerID: 1, FolloweeID: 2}, payload)
}

func TestRedisPublisherWrapsErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	evt, err := NewEvent(EventTweetPosted, "1", TweetPayload{TweetID: 1, AuthorID: 1, Content: "hi"})
	require.NoError(t, err)

	err = NewRedisPublisher(client).Publish(context.Background(), "graph", evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EventTweetPosted)
}
