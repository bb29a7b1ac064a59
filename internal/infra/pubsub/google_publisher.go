package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	deliverycontext "accounts/internal/delivery/context"
	"accounts/internal/domain/service"
	"accounts/internal/errors"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
)

// googlePubSubPublisher implements EventPublisher using Google Cloud Pub/Sub.
// Each queue name is a topic ID within the project.
type googlePubSubPublisher struct {
	client    *pubsub.Client
	projectID string
	logger    *slog.Logger

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewGooglePubSubPublisher creates a new Google Pub/Sub publisher and checks that the
// given topics exist.
func NewGooglePubSubPublisher(ctx context.Context, projectID string, logger *slog.Logger, topicIDs ...string) (service.EventPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	p := &googlePubSubPublisher{
		client:     client,
		projectID:  projectID,
		logger:     logger,
		publishers: make(map[string]*pubsub.Publisher),
	}

	for _, topicID := range topicIDs {
		topicPath := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
		if _, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topicPath}); err != nil {
			_ = client.Close()

			return nil, errors.Wrapf(err, "failed to get topic %s", topicID)
		}
		p.publishers[topicID] = client.Publisher(topicID)
	}

	logger.Info("Google Pub/Sub publisher initialized",
		slog.String("project_id", projectID),
		slog.Any("topics", topicIDs),
	)

	return p, nil
}

func (p *googlePubSubPublisher) publisher(topicID string) *pubsub.Publisher {
	p.mu.Lock()
	defer p.mu.Unlock()

	publisher, ok := p.publishers[topicID]
	if !ok {
		publisher = p.client.Publisher(topicID)
		p.publishers[topicID] = publisher
	}

	return publisher
}

// Publish publishes payload to the topic named by queue and waits for the server ack.
func (p *googlePubSubPublisher) Publish(ctx context.Context, queue string, payload []byte) error {
	attributes := map[string]string{}
	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		attributes["request_id"] = requestID
	}

	result := p.publisher(queue).Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: attributes,
	})

	serverID, err := result.Get(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to publish to %s", queue)
	}

	p.logger.Debug("[GooglePubSub] Message published",
		slog.String("topic_id", queue),
		slog.String("server_id", serverID),
	)

	return nil
}

// Close flushes pending messages and releases Pub/Sub client resources
func (p *googlePubSubPublisher) Close() error {
	p.mu.Lock()
	for _, publisher := range p.publishers {
		publisher.Stop()
	}
	p.publishers = map[string]*pubsub.Publisher{}
	p.mu.Unlock()

	if p.client != nil {
		return errors.WithStack(p.client.Close())
	}

	return nil
}
