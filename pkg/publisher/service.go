package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-cloud-publisher/pkg/cloudservice"
	"github.com/illmade-knight/go-cloud-publisher/pkg/payload"
)

// Service translates metric publish requests into cloud payloads and
// forwards them to whichever backend client is currently bound. The client
// handle is replaced by the lifecycle tracker as the named backend comes and
// goes; a publish in flight either completes on the handle it observed or
// no-ops if none was bound.
type Service struct {
	registry *cloudservice.Registry
	logger   zerolog.Logger

	mu           sync.RWMutex
	options      Options
	cloudService cloudservice.Service
	client       cloudservice.Client
	tracker      *serviceTracker
	initialized  bool
}

// New creates a Service bound to the given backend registry. The service
// does nothing until Initialize is called.
func New(registry *cloudservice.Registry, logger zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		logger:   logger.With().Str("component", "PublisherService").Logger(),
	}
}

// Initialize applies the initial option snapshot and starts tracking the
// configured backend.
func (s *Service) Initialize(opts Options) error {
	s.logger.Info().Msg("Activating publisher service...")

	if err := opts.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return errors.New("publisher service already initialized")
	}
	s.options = opts
	s.initialized = true
	s.openTrackerLocked()

	s.logger.Info().Msg("Activating publisher service... Done.")
	return nil
}

// Reconfigure replaces the option snapshot wholesale and re-binds to the
// (possibly different) named backend.
func (s *Service) Reconfigure(opts Options) error {
	s.logger.Info().Msg("Updating publisher service...")

	if err := opts.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return errors.New("publisher service not initialized")
	}
	oldTracker := s.tracker
	s.tracker = nil
	s.mu.Unlock()

	// Closed outside the lock: the tracker's callbacks take it too.
	if oldTracker != nil {
		oldTracker.close()
	}

	s.mu.Lock()
	// Unbind from the old pid's backend. Publishing no-ops until the new
	// pid binds, which may happen immediately if it is already registered.
	s.cloudService = nil
	s.releaseClientLocked()
	s.options = opts
	s.openTrackerLocked()
	s.mu.Unlock()

	s.logger.Info().Msg("Updating publisher service... Done.")
	return nil
}

// Shutdown releases the backend client and stops tracking. The service can
// not be reused afterwards.
func (s *Service) Shutdown() {
	s.logger.Debug().Msg("Deactivating publisher service...")

	s.mu.Lock()
	tracker := s.tracker
	s.tracker = nil
	s.mu.Unlock()

	// Closed outside the lock: the tracker's callbacks take it too.
	if tracker != nil {
		tracker.close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info().Str("app_id", s.options.AppID).Msg("Releasing cloud client...")
	s.releaseClientLocked()
	s.cloudService = nil
	s.initialized = false

	s.logger.Debug().Msg("Deactivating publisher service... Done.")
}

// openTrackerLocked starts tracking the currently configured pid. Callers
// must hold s.mu.
func (s *Service) openTrackerLocked() {
	s.tracker = newServiceTracker(s.registry, s.options.CloudServicePid, s.handleServiceBound, s.handleServiceRemoved, s.logger)
}

// handleServiceBound reacts to the named backend appearing or being
// replaced by recreating the cloud client.
func (s *Service) handleServiceBound(svc cloudservice.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cloudService = svc
	if err := s.setupClientLocked(); err != nil {
		s.logger.Error().Err(err).Msg("Cloud client setup failed!")
	}
}

// handleServiceRemoved reacts to the named backend disappearing by
// releasing the client. Publishing silently no-ops until the backend
// returns.
func (s *Service) handleServiceRemoved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cloudService = nil
	s.releaseClientLocked()
}

// setupClientLocked recreates the cloud client for the configured app id,
// releasing the previous one first. On failure the service is left without
// a client. Callers must hold s.mu.
func (s *Service) setupClientLocked() error {
	s.releaseClientLocked()
	client, err := s.cloudService.NewClient(s.options.AppID)
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

// releaseClientLocked releases the current client, if any. Callers must
// hold s.mu.
func (s *Service) releaseClientLocked() {
	if s.client != nil {
		s.client.Release()
		s.client = nil
	}
}

// PublishMetrics validates and translates the request, then publishes the
// resulting payload. It returns the backend message id, or 0 when no
// backend is bound (the request still succeeds in that case).
func (s *Service) PublishMetrics(ctx context.Context, request *PublishRequest) (int, error) {
	p, err := Translate(request, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return s.Publish(ctx, p)
}

// Publish forwards an already-assembled payload to the configured topic
// with the configured QoS and retain flags.
func (s *Service) Publish(ctx context.Context, p *payload.Payload) (int, error) {
	s.mu.RLock()
	client := s.client
	opts := s.options
	s.mu.RUnlock()

	if client == nil {
		s.logger.Debug().Str("topic", opts.AppTopic).Msg("No cloud client bound, publish skipped")
		return 0, nil
	}

	messageID, err := client.Publish(ctx, opts.AppTopic, p, byte(opts.PublishQos), opts.PublishRetain)
	if err != nil {
		s.logger.Error().Err(err).Str("topic", opts.AppTopic).Msg("Cannot publish topic")
		return 0, &PublishError{Topic: opts.AppTopic, Err: err}
	}

	s.logger.Info().Str("topic", opts.AppTopic).Int("message_id", messageID).Msg("Published to topic")
	return messageID, nil
}

// Options returns the current option snapshot.
func (s *Service) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options
}
