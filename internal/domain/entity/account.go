// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is the sole persisted identity: credentials, contact details and notification preferences.
type Account struct {
	ID                uuid.UUID // Opaque external reference, generated at creation and never changed.
	Name              string    // Display name.
	Email             string    // Login identifier, unique across accounts.
	PasswordHash      string    // Self-describing password hash. Never leaves the store/hasher boundary.
	PushToken         *string   // Optional device push identifier, unique when present.
	EmailNotification bool      // Whether the account accepts email notifications.
	PushNotification  bool      // Whether the account accepts push notifications.
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Preferences holds the notification preference flags of an account.
type Preferences struct {
	Email bool
	Push  bool
}

// Preferences returns the account's notification preferences.
func (a *Account) Preferences() Preferences {
	return Preferences{
		Email: a.EmailNotification,
		Push:  a.PushNotification,
	}
}

// PushTokenValue returns the push token or an empty string when none is registered.
func (a *Account) PushTokenValue() string {
	if a.PushToken == nil {
		return ""
	}

	return *a.PushToken
}

// NormalizeEmail returns the canonical form of an email address. Addresses differing
// only in case or surrounding whitespace identify the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
