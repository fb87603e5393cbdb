package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/illmade-knight/go-cloud-publisher/pkg/cloudservice"
	"github.com/illmade-knight/go-cloud-publisher/pkg/payload"
	"github.com/illmade-knight/go-cloud-publisher/pkg/publisher"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the service configuration file")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		logger = logger.Level(level)
	}

	if err := run(*configPath, logger); err != nil {
		logger.Fatal().Err(err).Msg("Service exited with error")
	}
}

func run(configPath string, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := publisher.LoadConfigFromFile(configPath)
	if err != nil {
		return err
	}

	codec, err := payload.CodecByName(cfg.PayloadCodec)
	if err != nil {
		return err
	}

	backend, closeBackend, err := newBackend(ctx, cfg, codec, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	registry := cloudservice.NewRegistry()

	service := publisher.New(registry, logger)
	if err := service.Initialize(cfg.Publisher); err != nil {
		return err
	}
	defer service.Shutdown()

	// Registering after Initialize lets the tracker observe the backend
	// appearing, exactly as it would on a live reconfiguration.
	registry.Register(cfg.Publisher.CloudServicePid, backend)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      publisher.NewHandler(service, cfg.Handler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newBackend constructs the configured cloud service backend. The returned
// close function releases the backend's shared resources.
func newBackend(ctx context.Context, cfg *publisher.Config, codec payload.Codec, logger zerolog.Logger) (cloudservice.Service, func(), error) {
	switch cfg.Backend {
	case publisher.BackendMQTT:
		svc, err := cloudservice.NewMQTTService(cfg.MQTT.MQTTConfig(), codec, logger)
		if err != nil {
			return nil, nil, err
		}
		return svc, func() {}, nil
	case publisher.BackendPubSub:
		svc, err := cloudservice.NewPubSubService(ctx, cfg.PubSub, codec, logger)
		if err != nil {
			return nil, nil, err
		}
		return svc, func() {
			if err := svc.Close(); err != nil {
				logger.Error().Err(err).Msg("Error closing Pub/Sub service")
			}
		}, nil
	case publisher.BackendRedis:
		svc, err := cloudservice.NewRedisService(ctx, cfg.Redis, codec, logger)
		if err != nil {
			return nil, nil, err
		}
		return svc, func() {
			if err := svc.Close(); err != nil {
				logger.Error().Err(err).Msg("Error closing Redis service")
			}
		}, nil
	default:
		return nil, nil, errors.New("unknown backend " + cfg.Backend)
	}
}
