package impl

import (
	"context"
	"log/slog"

	deliverycontext "accounts/internal/delivery/context"
	"accounts/internal/domain/service"
	"accounts/internal/errors"
	"accounts/internal/usecase"
)

const welcomeTitle = "Welcome"

type registrationService struct {
	notifier service.NotificationService
	logger   *slog.Logger
}

// NewRegistrationService creates the consumer-side handler for registration events.
func NewRegistrationService(notifier service.NotificationService, logger *slog.Logger) usecase.RegistrationHandlingUsecase {
	return &registrationService{
		notifier: notifier,
		logger:   logger,
	}
}

// HandleRegistration logs the event and sends a welcome push when the account opted in.
// Rejected push tokens are dropped; other delivery failures are returned for redelivery.
func (s *registrationService) HandleRegistration(ctx context.Context, event *service.RegistrationEvent) error {
	logger := deliverycontext.GetLoggerOrDefault(ctx, s.logger).With(slog.String("user_id", event.UserID))

	logger.Info("Registration received",
		slog.Bool("email_notification", event.Preferences.Email),
		slog.Bool("push_notification", event.Preferences.Push),
		slog.Time("registered_at", event.RegisteredAt),
	)

	if !event.HasPushTarget() {
		return nil
	}

	body := "Hi " + event.Name + ", your account is ready."
	data := map[string]string{
		"type":    "registration",
		"user_id": event.UserID,
	}

	if err := s.notifier.SendSingleNotification(ctx, event.PushToken, welcomeTitle, body, data); err != nil {
		if errors.Is(err, service.ErrInvalidPushToken) {
			logger.Warn("Dropping welcome push for rejected token", slog.Any("error", err))

			return nil
		}

		return errors.Wrap(err, "failed to send welcome push")
	}

	logger.Debug("Welcome push sent")

	return nil
}
