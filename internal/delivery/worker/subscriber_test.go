package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"accounts/config"
	"accounts/internal/delivery/worker/handler"
	"accounts/internal/domain/service"
	"accounts/internal/errors"
	"accounts/internal/infra/pubsub"
	mockUsecase "accounts/internal/mocks/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubscriber_RedeliversUntilHandled(t *testing.T) {
	ctx := context.Background()
	queue := "registrations-" + uuid.NewString()
	logger := newDiscardLogger()

	publisher, err := pubsub.NewGocloudPublisher(ctx, "mem", logger, queue)
	require.NoError(t, err)
	defer publisher.Close()

	cfg := &config.Config{PubSub: &config.PubSubConfig{Subscription: "mem://" + queue}}

	uc := mockUsecase.NewMockRegistrationHandlingUsecase(t)
	handled := make(chan struct{})
	uc.EXPECT().HandleRegistration(mock.Anything, mock.Anything).Return(errors.New("transient")).Once()
	uc.EXPECT().
		HandleRegistration(mock.Anything, mock.MatchedBy(func(e *service.RegistrationEvent) bool {
			return e.UserID == "user-1"
		})).
		Run(func(context.Context, *service.RegistrationEvent) { close(handled) }).
		Return(nil).
		Once()

	registrationHandler := handler.NewRegistrationHandler(handler.RegistrationHandlerParams{
		Config:         cfg,
		Logger:         logger,
		RegistrationUC: uc,
	})

	lc := fxtest.NewLifecycle(t)
	d, err := NewSubscriber(SubscriberParams{
		Lc:                  lc,
		Ctx:                 ctx,
		Cfg:                 cfg,
		Logger:              logger,
		RegistrationHandler: registrationHandler,
	})
	require.NoError(t, err)
	lc.RequireStart()

	served := make(chan error, 1)
	go func() {
		served <- d.Serve(ctx)
	}()

	payload, err := json.Marshal(&service.RegistrationEvent{UserID: "user-1", Email: "ada@example.com"})
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(ctx, queue, payload))

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("registration was not redelivered")
	}

	lc.RequireStop()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestNewSubscriber_Disabled(t *testing.T) {
	d, err := NewSubscriber(SubscriberParams{
		Lc:     fxtest.NewLifecycle(t),
		Ctx:    context.Background(),
		Cfg:    &config.Config{},
		Logger: newDiscardLogger(),
	})
	require.NoError(t, err)

	assert.NoError(t, d.Serve(context.Background()))
}

func newFailingSubscriber(t *testing.T, calls chan<- time.Time) (*subscriber, func([]byte)) {
	t.Helper()

	ctx := context.Background()
	queue := "registrations-" + uuid.NewString()
	logger := newDiscardLogger()

	publisher, err := pubsub.NewGocloudPublisher(ctx, "mem", logger, queue)
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })

	sub, err := pubsub.OpenSubscription(ctx, "mem://"+queue)
	require.NoError(t, err)

	uc := mockUsecase.NewMockRegistrationHandlingUsecase(t)
	uc.EXPECT().
		HandleRegistration(mock.Anything, mock.Anything).
		Run(func(context.Context, *service.RegistrationEvent) {
			select {
			case calls <- time.Now():
			default:
			}
		}).
		Return(errors.New("firebase unavailable"))

	registrationHandler := handler.NewRegistrationHandler(handler.RegistrationHandlerParams{
		Config:         &config.Config{},
		Logger:         logger,
		RegistrationUC: uc,
	})

	publish := func(payload []byte) {
		require.NoError(t, publisher.Publish(ctx, queue, payload))
	}

	return newSubscriber("mem://"+queue, sub, registrationHandler, logger), publish
}

func TestSubscriber_BacksOffBetweenFailures(t *testing.T) {
	calls := make(chan time.Time, 8)
	s, publish := newFailingSubscriber(t, calls)
	s.retryBase = 50 * time.Millisecond
	s.retryCap = time.Second

	served := make(chan error, 1)
	go func() {
		served <- s.Serve(context.Background())
	}()

	payload, err := json.Marshal(&service.RegistrationEvent{UserID: "user-1"})
	require.NoError(t, err)
	publish(payload)

	var seen []time.Time
	for len(seen) < 3 {
		select {
		case at := <-calls:
			seen = append(seen, at)
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d handling attempts observed", len(seen))
		}
	}

	require.NoError(t, s.stop(context.Background()))
	require.NoError(t, <-served)

	assert.GreaterOrEqual(t, seen[1].Sub(seen[0]), 50*time.Millisecond)
	assert.GreaterOrEqual(t, seen[2].Sub(seen[1]), 100*time.Millisecond)
}

func TestSubscriber_StopInterruptsBackoff(t *testing.T) {
	calls := make(chan time.Time, 8)
	s, publish := newFailingSubscriber(t, calls)
	s.retryBase = time.Hour
	s.retryCap = time.Hour

	served := make(chan error, 1)
	go func() {
		served <- s.Serve(context.Background())
	}()

	payload, err := json.Marshal(&service.RegistrationEvent{UserID: "user-1"})
	require.NoError(t, err)
	publish(payload)

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not handled")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.stop(stopCtx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber stayed in backoff after stop")
	}
}
