package cloudservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/illmade-knight/go-cloud-publisher/pkg/payload"
)

// PubSubConfig holds settings for a Google Cloud Pub/Sub backed cloud
// service. Topic names on the wire map directly to Pub/Sub topic ids.
type PubSubConfig struct {
	ProjectID     string `yaml:"project_id" json:"project_id"`
	ClientOptions []option.ClientOption
}

// LoadPubSubConfigFromEnv loads Pub/Sub configuration from environment
// variables.
func LoadPubSubConfigFromEnv() (*PubSubConfig, error) {
	cfg := &PubSubConfig{
		ProjectID: os.Getenv("GCP_PROJECT_ID"),
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("GCP_PROJECT_ID environment variable not set for Pub/Sub")
	}
	if credentialsFile := os.Getenv("GCP_PUBSUB_CREDENTIALS_FILE"); credentialsFile != "" {
		cfg.ClientOptions = []option.ClientOption{option.WithCredentialsFile(credentialsFile)}
	}
	return cfg, nil
}

// PubSubService creates clients that publish onto Google Cloud Pub/Sub
// topics. The underlying pubsub.Client is shared by all clients the service
// creates; Close releases it.
type PubSubService struct {
	client *pubsub.Client
	codec  payload.Codec
	logger zerolog.Logger
}

// NewPubSubService connects to Pub/Sub for the configured project. A nil
// codec selects JSON.
func NewPubSubService(ctx context.Context, cfg PubSubConfig, codec payload.Codec, logger zerolog.Logger) (*PubSubService, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}
	if codec == nil {
		codec = payload.JSONCodec{}
	}
	logger = logger.With().Str("component", "PubSubService").Str("project_id", cfg.ProjectID).Logger()
	logger.Info().Msg("PubSubService initialized successfully")
	return &PubSubService{
		client: client,
		codec:  codec,
		logger: logger,
	}, nil
}

// NewClient returns a publishing handle scoped to the given application id.
func (s *PubSubService) NewClient(appID string) (Client, error) {
	return &pubsubClient{
		client: s.client,
		codec:  s.codec,
		appID:  appID,
		topics: make(map[string]*pubsub.Topic),
		logger: s.logger.With().Str("app_id", appID).Logger(),
	}, nil
}

// Close releases the shared Pub/Sub client. Clients created by the service
// must be released first.
func (s *PubSubService) Close() error {
	return s.client.Close()
}

// pubsubClient publishes payloads to Pub/Sub topics. QoS and retain have no
// Pub/Sub equivalent; they travel as message attributes so subscribers can
// still observe them. Message ids are a session-local counter; the
// server-assigned id is a string and is logged instead.
type pubsubClient struct {
	client *pubsub.Client
	codec  payload.Codec
	appID  string
	logger zerolog.Logger

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	nextID atomic.Int64
}

func (c *pubsubClient) topic(id string) *pubsub.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topics == nil {
		c.topics = make(map[string]*pubsub.Topic)
	}
	t, ok := c.topics[id]
	if !ok {
		t = c.client.Topic(id)
		c.topics[id] = t
	}
	return t
}

func (c *pubsubClient) Publish(ctx context.Context, topic string, p *payload.Payload, qos byte, retain bool) (int, error) {
	body, err := c.codec.Encode(p)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload: %w", err)
	}

	result := c.topic(topic).Publish(ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"app_id": c.appID,
			"qos":    strconv.Itoa(int(qos)),
			"retain": strconv.FormatBool(retain),
		},
	})

	serverID, err := result.Get(ctx)
	if err != nil {
		return 0, err
	}

	id := int(c.nextID.Add(1))
	c.logger.Debug().Str("topic", topic).Str("server_id", serverID).Int("message_id", id).Msg("Message published to Pub/Sub")
	return id, nil
}

func (c *pubsubClient) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.topics {
		t.Stop()
	}
	c.topics = nil
	c.logger.Info().Msg("Pub/Sub client released, topics stopped and flushed")
}
