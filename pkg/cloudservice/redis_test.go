package cloudservice

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-cloud-publisher/pkg/payload"
)

func setupRedisService(t *testing.T, codec payload.Codec) (*RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	svc, err := NewRedisService(context.Background(), RedisConfig{Addr: mr.Addr()}, codec, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

func TestRedisServicePublish(t *testing.T) {
	svc, mr := setupRedisService(t, nil)

	client, err := svc.NewClient("test-app")
	require.NoError(t, err)
	defer client.Release()

	// Subscribe on a separate connection so we can observe the message.
	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	pubsub := sub.Subscribe(context.Background(), "data/metrics")
	defer pubsub.Close()
	_, err = pubsub.Receive(context.Background())
	require.NoError(t, err, "subscription should be established")

	p := payload.New(time.UnixMilli(1714564800000).UTC())
	p.AddMetric("temp", 21.5)

	id, err := client.Publish(context.Background(), "data/metrics", p, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	select {
	case msg := <-pubsub.Channel():
		var decoded struct {
			Timestamp int64                  `json:"timestamp"`
			Metrics   map[string]interface{} `json:"metrics"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
		assert.Equal(t, int64(1714564800000), decoded.Timestamp)
		assert.Equal(t, 21.5, decoded.Metrics["temp"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the published message")
	}
}

func TestRedisServiceSessionIDs(t *testing.T) {
	svc, _ := setupRedisService(t, nil)

	client, err := svc.NewClient("test-app")
	require.NoError(t, err)
	defer client.Release()

	p := payload.New(time.Now().UTC())
	p.AddMetric("n", int32(1))

	for want := 1; want <= 3; want++ {
		id, err := client.Publish(context.Background(), "data/metrics", p, 0, false)
		require.NoError(t, err)
		assert.Equal(t, want, id, "ids count up within the session")
	}
}

func TestRedisServiceConnectFailure(t *testing.T) {
	_, err := NewRedisService(context.Background(), RedisConfig{Addr: "127.0.0.1:1"}, nil, zerolog.Nop())
	require.Error(t, err)
}
