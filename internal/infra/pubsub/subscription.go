package pubsub

import (
	"context"
	"strings"

	"accounts/internal/domain/constants"
	"accounts/internal/errors"

	"gocloud.dev/pubsub"
)

// OpenSubscription opens a gocloud subscription URL such as rabbit://user_registration.
// Rabbit topology is declared first so the consumer can start before any publisher.
func OpenSubscription(ctx context.Context, subscriptionURL string) (*pubsub.Subscription, error) {
	scheme, rest, ok := strings.Cut(subscriptionURL, "://")
	name, _, _ := strings.Cut(rest, "?")
	if !ok || scheme == "" || name == "" {
		return nil, errors.Errorf("invalid subscription url %q", subscriptionURL)
	}

	if scheme == constants.PubSubProviderRabbit {
		if err := DeclareRabbitQueue(rabbitServerURL(), name); err != nil {
			return nil, err
		}
	}

	sub, err := pubsub.OpenSubscription(ctx, subscriptionURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open subscription %s", subscriptionURL)
	}

	return sub, nil
}
