// Package handler decodes registration messages for the notifier.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"accounts/config"
	deliverycontext "accounts/internal/delivery/context"
	"accounts/internal/domain/constants"
	"accounts/internal/domain/service"
	"accounts/internal/errors"
	"accounts/internal/infra/pubsub"
	"accounts/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

const requestIDAttribute = "request_id"

// RegistrationHandler turns queue deliveries into HandleRegistration calls.
// Undecodable messages are logged and acknowledged; usecase failures ask for redelivery.
type RegistrationHandler struct {
	verifyPushAuth bool
	logger         *slog.Logger
	registrationUC usecase.RegistrationHandlingUsecase
}

// RegistrationHandlerParams holds dependencies for the RegistrationHandler
type RegistrationHandlerParams struct {
	fx.In

	Config         *config.Config
	Logger         *slog.Logger
	RegistrationUC usecase.RegistrationHandlingUsecase
}

// NewRegistrationHandler creates a new registration message handler
func NewRegistrationHandler(params RegistrationHandlerParams) *RegistrationHandler {
	// Google signs push requests; other providers post unauthenticated from inside the network.
	verifyPushAuth := params.Config.PubSub != nil &&
		params.Config.PubSub.Provider == constants.PubSubProviderGoogle &&
		params.Config.Env.Env != constants.EnvDevelop

	return &RegistrationHandler{
		verifyPushAuth: verifyPushAuth,
		logger:         params.Logger,
		registrationUC: params.RegistrationUC,
	}
}

// HandlePush handles Pub/Sub style push deliveries on POST /push.
// 2xx acknowledges the message, 503 asks the pusher to retry.
func (h *RegistrationHandler) HandlePush(c echo.Context) error {
	if h.verifyPushAuth {
		if err := verifyPubSubToken(c.Request()); err != nil {
			h.logger.Warn("[Notifier] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg pubsub.PushMessage
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Notifier] Dropping unparsable push envelope", slog.Any("error", err))

		return c.NoContent(http.StatusOK)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		h.logger.Error("[Notifier] Dropping push message with invalid data encoding",
			slog.String("message_id", pushMsg.Message.MessageID),
			slog.Any("error", err),
		)

		return c.NoContent(http.StatusOK)
	}

	if err := h.HandleMessage(c.Request().Context(), data, pushMsg.Message.Attributes); err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}

	return c.NoContent(http.StatusOK)
}

// HandleMessage processes one message body. A nil return means the message can be acknowledged.
func (h *RegistrationHandler) HandleMessage(ctx context.Context, body []byte, attributes map[string]string) error {
	var event service.RegistrationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("[Notifier] Dropping malformed registration event", slog.Any("error", err))

		return nil
	}
	if event.UserID == "" {
		h.logger.Error("[Notifier] Dropping registration event without user id")

		return nil
	}

	ctx = deliverycontext.WithRequestScope(ctx, extractRequestID(ctx, attributes, &event), h.logger)
	reqLogger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	if err := h.registrationUC.HandleRegistration(ctx, &event); err != nil {
		reqLogger.Error("[Notifier] Failed to process registration event",
			slog.String("user_id", event.UserID),
			slog.Any("error", err),
		)

		return errors.Wrap(err, "failed to handle registration event")
	}

	return nil
}

// extractRequestID prefers message attributes, then the event, then the incoming context.
func extractRequestID(ctx context.Context, attributes map[string]string, event *service.RegistrationEvent) string {
	if requestID := attributes[requestIDAttribute]; requestID != "" {
		return requestID
	}

	if event.RequestID != "" {
		return event.RequestID
	}

	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

// verifyPubSubToken verifies the OIDC token Google attaches to push requests.
func verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return errors.New("invalid authorization header format")
	}

	// The audience is the push endpoint URL itself.
	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	audience := scheme + "://" + req.Host + req.URL.Path

	payload, err := idtoken.Validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
