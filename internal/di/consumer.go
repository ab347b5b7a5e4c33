package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pannpers/go-logging/logging"
	"github.com/tunetrail/backend/internal/adapter/event"
	"github.com/tunetrail/backend/internal/infrastructure/messaging"
	"github.com/tunetrail/backend/internal/infrastructure/server"
	"github.com/tunetrail/backend/pkg/config"
	"github.com/tunetrail/backend/pkg/telemetry"
)

// ConsumerApp represents the event consumer process: a Watermill Router
// fanning impression, interaction, and session-lifecycle events out to the
// offline feature pipeline, plus a health probe server for its own
// readiness/liveness checks.
type ConsumerApp struct {
	Router          *message.Router
	HealthServer    *server.HealthServer
	Logger          *logging.Logger
	ShutdownTimeout time.Duration
	closers         []io.Closer
}

// Shutdown closes every resource the consumer process holds.
func (a *ConsumerApp) Shutdown(ctx context.Context) error {
	a.Logger.Info(ctx, "starting consumer shutdown")

	var errs error
	for _, closer := range a.closers {
		if err := closer.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("close resource: %w", err))
		}
	}

	if errs != nil {
		return errs
	}

	a.Logger.Info(ctx, "consumer shutdown complete")
	return nil
}

// InitializeConsumerApp wires the event consumer process: a subscriber over
// the same transport the API process publishes to (GoChannel locally, NATS
// JetStream in production), a router with retry/poison-queue/recoverer
// middleware, and one handler per event topic.
func InitializeConsumerApp(ctx context.Context) (*ConsumerApp, error) {
	cfg, err := config.Load("TUNETRAIL")
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := provideLogger(cfg)
	if err != nil {
		return nil, err
	}

	telemetryCloser, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return nil, err
	}

	wmLogger := watermill.NewStdLogger(false, false)
	var goChannel *gochannel.GoChannel
	if cfg.NATS.URL == "" {
		goChannel = gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, wmLogger)
	}

	publisher, err := messaging.NewPublisher(cfg.NATS, wmLogger, goChannel)
	if err != nil {
		return nil, fmt.Errorf("create messaging publisher: %w", err)
	}

	subscriber, err := messaging.NewSubscriber(cfg.NATS, wmLogger, goChannel)
	if err != nil {
		return nil, fmt.Errorf("create messaging subscriber: %w", err)
	}

	router, err := messaging.NewRouter(wmLogger, publisher, "poison-queue")
	if err != nil {
		return nil, fmt.Errorf("create messaging router: %w", err)
	}

	analyticsHandler := event.NewAnalyticsHandler(logger)

	router.AddNoPublisherHandler(
		"analytics-impressions",
		messaging.TopicImpressions,
		subscriber,
		analyticsHandler.HandleImpression,
	)
	router.AddNoPublisherHandler(
		"analytics-interactions",
		messaging.TopicInteractions,
		subscriber,
		analyticsHandler.HandleInteraction,
	)
	router.AddNoPublisherHandler(
		"analytics-sessions",
		messaging.TopicSessions,
		subscriber,
		analyticsHandler.HandleSessionExpired,
	)

	health := server.NewHealthServer(net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.ConsumerHealthPort)))

	return &ConsumerApp{
		Router:          router,
		HealthServer:    health,
		Logger:          logger,
		ShutdownTimeout: cfg.ShutdownTimeout,
		closers:         []io.Closer{health, publisher, telemetryCloser},
	}, nil
}
