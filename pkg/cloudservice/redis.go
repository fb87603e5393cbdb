package cloudservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-cloud-publisher/pkg/payload"
)

// RedisConfig holds settings for a Redis pub/sub backed cloud service.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// LoadRedisConfigFromEnv loads Redis configuration from environment
// variables.
func LoadRedisConfigFromEnv() (*RedisConfig, error) {
	cfg := &RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if cfg.Addr == "" {
		return nil, errors.New("REDIS_ADDR environment variable not set")
	}
	return cfg, nil
}

// RedisService creates clients that publish onto Redis pub/sub channels.
// The channel name is the publish topic. Redis pub/sub is fire-and-forget,
// so QoS and retain are ignored.
type RedisService struct {
	rdb    *redis.Client
	codec  payload.Codec
	logger zerolog.Logger
}

// NewRedisService connects to the configured Redis server and verifies the
// connection with a ping. A nil codec selects JSON.
func NewRedisService(ctx context.Context, cfg RedisConfig, codec payload.Codec, logger zerolog.Logger) (*RedisService, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	if codec == nil {
		codec = payload.JSONCodec{}
	}
	return &RedisService{
		rdb:    rdb,
		codec:  codec,
		logger: logger.With().Str("component", "RedisService").Str("addr", cfg.Addr).Logger(),
	}, nil
}

// NewClient returns a publishing handle scoped to the given application id.
func (s *RedisService) NewClient(appID string) (Client, error) {
	return &redisClient{
		rdb:    s.rdb,
		codec:  s.codec,
		logger: s.logger.With().Str("app_id", appID).Logger(),
	}, nil
}

// Close releases the shared Redis connection. Clients created by the
// service must be released first.
func (s *RedisService) Close() error {
	return s.rdb.Close()
}

// redisClient publishes payloads to Redis channels. Message ids are a
// session-local counter; Redis only reports the receiver count.
type redisClient struct {
	rdb    *redis.Client
	codec  payload.Codec
	logger zerolog.Logger
	nextID atomic.Int64
}

func (c *redisClient) Publish(ctx context.Context, topic string, p *payload.Payload, qos byte, retain bool) (int, error) {
	body, err := c.codec.Encode(p)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload: %w", err)
	}

	receivers, err := c.rdb.Publish(ctx, topic, body).Result()
	if err != nil {
		return 0, err
	}

	id := int(c.nextID.Add(1))
	c.logger.Debug().Str("channel", topic).Int64("receivers", receivers).Int("message_id", id).Msg("Message published to Redis")
	return id, nil
}

func (c *redisClient) Release() {
	// The redis connection is owned by the service; nothing to free per client.
}
