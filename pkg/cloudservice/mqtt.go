package cloudservice

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-cloud-publisher/pkg/payload"
)

// MQTTConfig holds connection settings for an MQTT-backed cloud service.
type MQTTConfig struct {
	BrokerURL      string        `yaml:"broker_url" json:"broker_url"`
	ClientIDPrefix string        `yaml:"client_id_prefix" json:"client_id_prefix"`
	Username       string        `yaml:"username" json:"username"`
	Password       string        `yaml:"password" json:"password"`
	KeepAlive      time.Duration `yaml:"keep_alive" json:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`

	CACertFile         string `yaml:"ca_cert_file" json:"ca_cert_file"`
	ClientCertFile     string `yaml:"client_cert_file" json:"client_cert_file"`
	ClientKeyFile      string `yaml:"client_key_file" json:"client_key_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// LoadMQTTConfigFromEnv loads MQTT connection settings from environment
// variables.
func LoadMQTTConfigFromEnv() (*MQTTConfig, error) {
	cfg := &MQTTConfig{
		BrokerURL:      os.Getenv("MQTT_BROKER_URL"),
		ClientIDPrefix: os.Getenv("MQTT_CLIENT_ID_PREFIX"),
		Username:       os.Getenv("MQTT_USERNAME"),
		Password:       os.Getenv("MQTT_PASSWORD"),
		KeepAlive:      60 * time.Second,
		ConnectTimeout: 10 * time.Second,
		CACertFile:     os.Getenv("MQTT_CA_CERT_FILE"),
		ClientCertFile: os.Getenv("MQTT_CLIENT_CERT_FILE"),
		ClientKeyFile:  os.Getenv("MQTT_CLIENT_KEY_FILE"),
	}
	if os.Getenv("MQTT_INSECURE_SKIP_VERIFY") == "true" {
		cfg.InsecureSkipVerify = true
	}
	if cfg.BrokerURL == "" {
		return nil, errors.New("MQTT_BROKER_URL environment variable not set")
	}
	return cfg, nil
}

// MQTTService creates MQTT-connected clients for a single broker.
type MQTTService struct {
	config MQTTConfig
	codec  payload.Codec
	logger zerolog.Logger
}

// NewMQTTService creates a cloud service backed by the configured MQTT
// broker. The broker is not contacted until NewClient is called. A nil codec
// selects JSON.
func NewMQTTService(cfg MQTTConfig, codec payload.Codec, logger zerolog.Logger) (*MQTTService, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt broker URL is required")
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60 * time.Second
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ClientIDPrefix == "" {
		cfg.ClientIDPrefix = "cloud-publisher-"
	}
	if codec == nil {
		codec = payload.JSONCodec{}
	}
	return &MQTTService{
		config: cfg,
		codec:  codec,
		logger: logger.With().Str("component", "MQTTService").Logger(),
	}, nil
}

// NewClient connects a new session to the broker for the given application
// id and returns a publishing handle for it.
func (s *MQTTService) NewClient(appID string) (Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.BrokerURL)
	opts.SetClientID(fmt.Sprintf("%s%s-%s", s.config.ClientIDPrefix, appID, uuid.New().String()[:8]))
	opts.SetUsername(s.config.Username)
	opts.SetPassword(s.config.Password)
	opts.SetKeepAlive(s.config.KeepAlive)
	opts.SetConnectTimeout(s.config.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Error().Err(err).Str("app_id", appID).Msg("MQTT connection lost. Auto-reconnect will be attempted.")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.logger.Info().Str("broker", s.config.BrokerURL).Str("app_id", appID).Msg("Connected to MQTT broker")
	})

	lowered := strings.ToLower(s.config.BrokerURL)
	if strings.HasPrefix(lowered, "tls://") || strings.HasPrefix(lowered, "ssl://") {
		tlsConfig, err := newTLSConfig(&s.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	pahoClient := mqtt.NewClient(opts)
	if token := pahoClient.Connect(); token.WaitTimeout(s.config.ConnectTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", token.Error())
	}
	if !pahoClient.IsConnected() {
		return nil, fmt.Errorf("failed to connect to %s within %s", s.config.BrokerURL, s.config.ConnectTimeout)
	}

	return &mqttClient{
		client: pahoClient,
		codec:  s.codec,
		logger: s.logger.With().Str("app_id", appID).Logger(),
	}, nil
}

// newTLSConfig creates a TLS configuration for the MQTT client.
func newTLSConfig(cfg *MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CACertFile != "" {
		caCert, err := os.ReadFile(cfg.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", cfg.CACertFile, err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA certificate from %s to pool", cfg.CACertFile)
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate/key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// mqttClient is a connected MQTT session. Message ids are a session-local
// counter; the MQTT packet id is not exposed by the paho client.
type mqttClient struct {
	client mqtt.Client
	codec  payload.Codec
	logger zerolog.Logger
	nextID atomic.Int64
}

func (c *mqttClient) Publish(ctx context.Context, topic string, p *payload.Payload, qos byte, retain bool) (int, error) {
	body, err := c.codec.Encode(p)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload: %w", err)
	}

	token := c.client.Publish(topic, qos, retain, body)
	select {
	case <-token.Done():
		if token.Error() != nil {
			return 0, token.Error()
		}
	case <-ctx.Done():
		return 0, fmt.Errorf("context cancelled while publishing to %s: %w", topic, ctx.Err())
	}

	id := int(c.nextID.Add(1))
	c.logger.Debug().Str("topic", topic).Int("message_id", id).Msg("Message published to MQTT broker")
	return id, nil
}

func (c *mqttClient) Release() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		c.logger.Info().Msg("MQTT client disconnected")
	}
}
