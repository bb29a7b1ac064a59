package service

import (
	"context"
	"time"
)

// RegistrationPreferences mirrors the notification flags chosen at registration.
type RegistrationPreferences struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

// RegistrationEvent is published once an account has been committed.
type RegistrationEvent struct {
	RequestID    string                  `json:"request_id,omitempty"` // For distributed tracing
	UserID       string                  `json:"user_id"`
	Name         string                  `json:"name"`
	Email        string                  `json:"email"`
	PushToken    string                  `json:"push_token,omitempty"`
	Preferences  RegistrationPreferences `json:"preferences"`
	RegisteredAt time.Time               `json:"registered_at"`
}

// HasPushTarget reports whether the new account opted into push and registered a device token.
func (e *RegistrationEvent) HasPushTarget() bool {
	return e.Preferences.Push && e.PushToken != ""
}

// EventPublisher defines the interface for publishing messages to a message queue
type EventPublisher interface {
	// Publish sends payload to the named queue. Delivery is at-most-once from the caller's view.
	Publish(ctx context.Context, queue string, payload []byte) error

	// Close releases any resources held by the publisher
	Close() error
}
