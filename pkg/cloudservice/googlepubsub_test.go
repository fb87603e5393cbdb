package cloudservice

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/illmade-knight/go-cloud-publisher/pkg/payload"
)

const testProjectID = "test-project"

func setupPubsubFake(t *testing.T) (*PubSubService, *pubsub.Subscription) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	opts := []option.ClientOption{
		option.WithEndpoint(srv.Addr),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		option.WithoutAuthentication(),
	}

	// Admin client for topic and subscription setup.
	admin, err := pubsub.NewClient(ctx, testProjectID, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })

	topic, err := admin.CreateTopic(ctx, "data-metrics")
	require.NoError(t, err)
	sub, err := admin.CreateSubscription(ctx, "data-metrics-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	svc, err := NewPubSubService(ctx, PubSubConfig{ProjectID: testProjectID, ClientOptions: opts}, nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return svc, sub
}

func TestPubSubServicePublish(t *testing.T) {
	svc, sub := setupPubsubFake(t)

	client, err := svc.NewClient("test-app")
	require.NoError(t, err)
	defer client.Release()

	p := payload.New(time.UnixMilli(1714564800000).UTC())
	p.AddMetric("temp", 21.5)

	id, err := client.Publish(context.Background(), "data-metrics", p, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var received *pubsub.Message
	err = sub.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
		received = msg
		msg.Ack()
		cancel()
	})
	require.NoError(t, err)
	require.NotNil(t, received, "expected to receive the published message")

	var decoded struct {
		Timestamp int64                  `json:"timestamp"`
		Metrics   map[string]interface{} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(received.Data, &decoded))
	assert.Equal(t, int64(1714564800000), decoded.Timestamp)
	assert.Equal(t, 21.5, decoded.Metrics["temp"])

	// QoS and retain have no Pub/Sub equivalent and travel as attributes.
	assert.Equal(t, "1", received.Attributes["qos"])
	assert.Equal(t, "true", received.Attributes["retain"])
	assert.Equal(t, "test-app", received.Attributes["app_id"])
}

func TestPubSubServicePublishUnknownTopic(t *testing.T) {
	svc, _ := setupPubsubFake(t)

	client, err := svc.NewClient("test-app")
	require.NoError(t, err)
	defer client.Release()

	p := payload.New(time.Now().UTC())
	p.AddMetric("n", int32(1))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = client.Publish(ctx, "no-such-topic", p, 0, false)
	require.Error(t, err)
}
