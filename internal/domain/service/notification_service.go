package service

import (
	"context"
	"errors"
)

// NotificationService defines the interface for push notification services
type NotificationService interface {
	// SendSingleNotification sends a push notification to a single device token
	SendSingleNotification(ctx context.Context, token, title, body string, data map[string]string) error
}

// ErrInvalidPushToken reports a token the push provider will never accept.
// Retrying a message that failed with it is pointless.
var ErrInvalidPushToken = errors.New("push token is invalid or unregistered")
