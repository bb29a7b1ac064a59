package pubsub

import (
	"context"
	"log/slog"
	"sync"

	deliverycontext "accounts/internal/delivery/context"
	"accounts/internal/domain/lifecycle"
	"accounts/internal/errors"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/rabbitpubsub"
)

// gocloudPublisher implements EventPublisher on top of gocloud.dev/pubsub.
// Topics are opened as <scheme>://<queue> and cached for the publisher's lifetime.
type gocloudPublisher struct {
	scheme string
	logger *slog.Logger

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	closed bool
}

// NewGocloudPublisher creates a publisher for a gocloud URL scheme such as "rabbit" or "mem".
// The given queues are opened eagerly so misconfiguration surfaces at startup.
func NewGocloudPublisher(ctx context.Context, scheme string, logger *slog.Logger, queues ...string) (*gocloudPublisher, error) {
	p := &gocloudPublisher{
		scheme: scheme,
		logger: logger,
		topics: make(map[string]*pubsub.Topic),
	}

	for _, queue := range queues {
		if _, err := p.topic(ctx, queue); err != nil {
			_ = p.Close()

			return nil, err
		}
	}

	return p, nil
}

func (p *gocloudPublisher) topic(ctx context.Context, queue string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("publisher is closed")
	}

	if topic, ok := p.topics[queue]; ok {
		return topic, nil
	}

	topic, err := pubsub.OpenTopic(ctx, p.scheme+"://"+queue)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open topic %s://%s", p.scheme, queue)
	}
	p.topics[queue] = topic

	return topic, nil
}

// Publish sends payload to the queue's topic.
func (p *gocloudPublisher) Publish(ctx context.Context, queue string, payload []byte) error {
	topic, err := p.topic(ctx, queue)
	if err != nil {
		return err
	}

	metadata := map[string]string{}
	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}

	if err := topic.Send(ctx, &pubsub.Message{Body: payload, Metadata: metadata}); err != nil {
		return errors.Wrapf(err, "failed to send to %s", queue)
	}

	p.logger.Debug("[GocloudPubSub] Message published",
		slog.String("scheme", p.scheme),
		slog.String("queue", queue),
	)

	return nil
}

// Close flushes and shuts down every opened topic.
func (p *gocloudPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), lifecycle.DefaultTimeout)
	defer cancel()

	var firstErr error
	for queue, topic := range p.topics {
		if err := topic.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to shut down topic %s", queue)
		}
	}
	p.topics = nil

	return firstErr
}
