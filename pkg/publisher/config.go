package publisher

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/illmade-knight/go-cloud-publisher/pkg/cloudservice"
)

// Backend names accepted in the service configuration.
const (
	BackendMQTT   = "mqtt"
	BackendPubSub = "pubsub"
	BackendRedis  = "redis"
)

// Config is the full service configuration: the HTTP surface, the publisher
// options and the settings of the backend to register.
type Config struct {
	HTTPAddr     string        `yaml:"http_addr"`
	Handler      HandlerConfig `yaml:"handler"`
	Publisher    Options       `yaml:"publisher"`
	Backend      string        `yaml:"backend"`
	PayloadCodec string        `yaml:"payload_codec"`

	MQTT   mqttYAML                  `yaml:"mqtt"`
	PubSub cloudservice.PubSubConfig `yaml:"pubsub"`
	Redis  cloudservice.RedisConfig  `yaml:"redis"`
}

// mqttYAML mirrors cloudservice.MQTTConfig with durations expressed in
// seconds, since YAML has no native duration type.
type mqttYAML struct {
	BrokerURL             string `yaml:"broker_url"`
	ClientIDPrefix        string `yaml:"client_id_prefix"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	KeepAliveSeconds      int    `yaml:"keep_alive_seconds"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds"`
	CACertFile            string `yaml:"ca_cert_file"`
	ClientCertFile        string `yaml:"client_cert_file"`
	ClientKeyFile         string `yaml:"client_key_file"`
	InsecureSkipVerify    bool   `yaml:"insecure_skip_verify"`
}

// MQTTConfig converts the YAML representation into the backend config.
func (m mqttYAML) MQTTConfig() cloudservice.MQTTConfig {
	return cloudservice.MQTTConfig{
		BrokerURL:          m.BrokerURL,
		ClientIDPrefix:     m.ClientIDPrefix,
		Username:           m.Username,
		Password:           m.Password,
		KeepAlive:          time.Duration(m.KeepAliveSeconds) * time.Second,
		ConnectTimeout:     time.Duration(m.ConnectTimeoutSeconds) * time.Second,
		CACertFile:         m.CACertFile,
		ClientCertFile:     m.ClientCertFile,
		ClientKeyFile:      m.ClientKeyFile,
		InsecureSkipVerify: m.InsecureSkipVerify,
	}
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:     ":8080",
		Publisher:    DefaultOptions(),
		Backend:      BackendMQTT,
		PayloadCodec: "json",
	}
}

// LoadConfigFromFile reads the YAML service configuration, applying
// defaults for anything left unset.
func LoadConfigFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from %s: %w", filePath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", filePath, err)
	}
	return &cfg, nil
}

// Validate checks the configuration for use.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	if err := c.Publisher.Validate(); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	switch c.Backend {
	case BackendMQTT:
		if c.MQTT.BrokerURL == "" {
			return fmt.Errorf("mqtt.broker_url is required for the mqtt backend")
		}
	case BackendPubSub:
		if c.PubSub.ProjectID == "" {
			return fmt.Errorf("pubsub.project_id is required for the pubsub backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (supported: mqtt, pubsub, redis)", c.Backend)
	}
	return nil
}
