package cloudservice

import (
	"context"

	"github.com/illmade-knight/go-cloud-publisher/pkg/payload"
)

// Client is a live handle onto a cloud messaging backend, created by a
// Service for a specific application id. Implementations may block on broker
// I/O for the duration of a Publish call; timeouts are whatever the
// underlying client imposes.
type Client interface {
	// Publish sends the payload to the given topic with the requested QoS and
	// retain flags and returns the backend-assigned message id. Message ids
	// are only meaningful within the client's own session.
	Publish(ctx context.Context, topic string, p *payload.Payload, qos byte, retain bool) (int, error)
	// Release frees the client's resources. The client must not be used
	// after Release returns.
	Release()
}

// Service is a factory for backend clients. One Service instance represents
// one configured backend connection (an MQTT broker, a Pub/Sub project, a
// Redis server) registered in a Registry under a service pid.
type Service interface {
	// NewClient creates a client scoped to the given application id.
	NewClient(appID string) (Client, error)
}
