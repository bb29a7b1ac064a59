package usecase

import (
	"context"

	"accounts/internal/domain/service"
)

// RegistrationHandlingUsecase reacts to registration events delivered by the queue.
type RegistrationHandlingUsecase interface {
	// HandleRegistration processes one event. A returned error means the event should be redelivered.
	HandleRegistration(ctx context.Context, event *service.RegistrationEvent) error
}
