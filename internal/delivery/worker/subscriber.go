package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"accounts/config"
	"accounts/internal/delivery"
	"accounts/internal/delivery/worker/handler"
	"accounts/internal/domain/lifecycle"
	"accounts/internal/errors"
	"accounts/internal/infra/pubsub"

	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"
	gocloudpubsub "gocloud.dev/pubsub"
)

// Consecutive handling failures are nacked after an exponential delay.
const (
	defaultRetryBase = 500 * time.Millisecond
	defaultRetryCap  = 30 * time.Second
)

// subscriber pulls registration messages from a gocloud subscription.
type subscriber struct {
	url     string
	sub     *gocloudpubsub.Subscription
	handler *handler.RegistrationHandler
	logger  *slog.Logger

	retryBase time.Duration
	retryCap  time.Duration

	runCtx  context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}
}

// SubscriberParams holds dependencies for the queue subscriber
type SubscriberParams struct {
	fx.In

	Lc                  fx.Lifecycle
	Ctx                 context.Context
	Cfg                 *config.Config
	Logger              *slog.Logger
	RegistrationHandler *handler.RegistrationHandler
}

// disabledDelivery stands in when no subscription is configured; the push endpoint still runs.
type disabledDelivery struct{}

func (disabledDelivery) Serve(context.Context) error {
	return nil
}

// NewSubscriber opens pubsub.subscription, e.g. rabbit://user_registration.
func NewSubscriber(params SubscriberParams) (delivery.Delivery, error) {
	if params.Cfg.PubSub == nil || params.Cfg.PubSub.Subscription == "" {
		params.Logger.Info("No subscription configured, relying on push delivery")

		return disabledDelivery{}, nil
	}

	url := params.Cfg.PubSub.Subscription
	sub, err := pubsub.OpenSubscription(params.Ctx, url)
	if err != nil {
		return nil, err
	}

	s := newSubscriber(url, sub, params.RegistrationHandler, params.Logger)

	params.Lc.Append(fx.Hook{
		OnStop: s.stop,
	})

	return s, nil
}

func newSubscriber(url string, sub *gocloudpubsub.Subscription, h *handler.RegistrationHandler, logger *slog.Logger) *subscriber {
	runCtx, cancel := context.WithCancel(context.Background())

	return &subscriber{
		url:     url,
		sub:     sub,
		handler: h,
		logger:  logger,

		retryBase: defaultRetryBase,
		retryCap:  defaultRetryCap,

		runCtx: runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *subscriber) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(s.retryCap, retry.NewExponential(s.retryBase))
}

// wait sleeps for d and reports false when the subscriber is stopped first.
func (s *subscriber) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-s.runCtx.Done():
		return false
	}
}

// Serve receives until the subscriber is stopped. Handled messages are acked, failed ones nacked after a backoff.
func (s *subscriber) Serve(_ context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("subscriber is already serving")
	}
	defer close(s.done)

	s.logger.Info("Starting registration subscriber", slog.String("subscription", s.url))

	backoff := s.newBackoff()
	for {
		msg, err := s.sub.Receive(s.runCtx)
		if err != nil {
			if s.runCtx.Err() != nil {
				return nil
			}

			return errors.Wrapf(err, "failed to receive from %s", s.url)
		}

		if s.handler.HandleMessage(s.runCtx, msg.Body, msg.Metadata) != nil {
			delay, _ := backoff.Next()
			s.logger.Warn("Registration handling failed, retrying after backoff", slog.Duration("delay", delay))
			stopped := !s.wait(delay)

			// Without nack support the message is redelivered once its ack deadline passes.
			if msg.Nackable() {
				msg.Nack()
			}
			if stopped {
				return nil
			}

			continue
		}

		msg.Ack()
		backoff = s.newBackoff()
	}
}

func (s *subscriber) stop(ctx context.Context) error {
	s.logger.Info("Stopping registration subscriber")

	s.cancel()
	if s.started.Load() {
		select {
		case <-s.done:
		case <-ctx.Done():
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	return errors.WithStack(s.sub.Shutdown(shutdownCtx))
}
