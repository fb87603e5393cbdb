package publisher

import (
	"errors"
	"fmt"
)

// Options is the effective publishing configuration. A reconfiguration
// replaces the whole snapshot; an Options value is never mutated in place.
type Options struct {
	// AppID namespaces the backend client created for this publisher.
	AppID string `yaml:"app_id" json:"app_id"`
	// CloudServicePid names the backend registry entry to bind to.
	CloudServicePid string `yaml:"cloud_service_pid" json:"cloud_service_pid"`
	// AppTopic is the destination topic for published payloads.
	AppTopic string `yaml:"app_topic" json:"app_topic"`
	// PublishQos and PublishRetain are passed through to the backend
	// unchanged.
	PublishQos    int  `yaml:"publish_qos" json:"publish_qos"`
	PublishRetain bool `yaml:"publish_retain" json:"publish_retain"`
}

// DefaultOptions provides sensible defaults.
func DefaultOptions() Options {
	return Options{
		AppID:           "cloud-publisher",
		CloudServicePid: "cloud-service",
		AppTopic:        "data/metrics",
		PublishQos:      0,
		PublishRetain:   false,
	}
}

// Validate checks the option snapshot for use.
func (o Options) Validate() error {
	if o.AppID == "" {
		return errors.New("app_id is required")
	}
	if o.CloudServicePid == "" {
		return errors.New("cloud_service_pid is required")
	}
	if o.AppTopic == "" {
		return errors.New("app_topic is required")
	}
	if o.PublishQos < 0 || o.PublishQos > 2 {
		return fmt.Errorf("publish_qos must be 0, 1 or 2, got %d", o.PublishQos)
	}
	return nil
}
