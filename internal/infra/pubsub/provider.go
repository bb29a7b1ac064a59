// Package pubsub provides the EventPublisher implementations selected by pubsub.provider.
package pubsub

import (
	"context"
	"log/slog"

	"accounts/config"
	"accounts/internal/domain/constants"
	"accounts/internal/domain/service"
	"accounts/internal/errors"

	"go.uber.org/fx"
)

// noopPublisher is a no-op implementation when Pub/Sub is disabled
type noopPublisher struct {
	logger *slog.Logger
}

func (p *noopPublisher) Publish(_ context.Context, queue string, payload []byte) error {
	p.logger.Debug("[NoopPubSub] Event publishing disabled, skipping",
		slog.String("queue", queue),
		slog.Int("bytes", len(payload)),
	)

	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}

// PublisherParams holds dependencies for EventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewEventPublisher creates an EventPublisher based on configuration
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	cfg := params.Config.PubSub
	logger := params.Logger

	if cfg == nil || cfg.Provider == "" {
		logger.Info("PubSub not configured, using no-op publisher")

		return &noopPublisher{logger: logger}, nil
	}

	var publisher service.EventPublisher
	var err error

	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("local endpoint is required for local provider")
		}
		logger.Info("Using local HTTP publisher for Pub/Sub",
			slog.String("endpoint", cfg.LocalEndpoint),
		)

		publisher = NewLocalHTTPPublisher(cfg.LocalEndpoint, logger)

	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" {
			return nil, errors.New("project ID is required for google provider")
		}
		logger.Info("Using Google Pub/Sub publisher",
			slog.String("project_id", cfg.ProjectID),
			slog.String("queue", cfg.Queue),
		)

		publisher, err = NewGooglePubSubPublisher(params.Ctx, cfg.ProjectID, logger, cfg.Queue)
		if err != nil {
			return nil, err
		}

	case constants.PubSubProviderRabbit:
		if err := DeclareRabbitQueue(rabbitServerURL(), cfg.Queue); err != nil {
			return nil, err
		}
		logger.Info("Using RabbitMQ publisher", slog.String("queue", cfg.Queue))

		publisher, err = NewGocloudPublisher(params.Ctx, cfg.Provider, logger, cfg.Queue)
		if err != nil {
			return nil, err
		}

	case constants.PubSubProviderMem:
		logger.Info("Using in-memory publisher", slog.String("queue", cfg.Queue))

		publisher, err = NewGocloudPublisher(params.Ctx, cfg.Provider, logger, cfg.Queue)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("unknown pubsub provider: %s", cfg.Provider)
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing EventPublisher")

			return publisher.Close()
		},
	})

	return publisher, nil
}

// Module provides the Pub/Sub FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewEventPublisher),
)
