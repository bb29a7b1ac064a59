// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"accounts/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrAccountNotFound is returned when no account matches a lookup.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository defines the storage operations the account service needs.
type AccountRepository interface {
	// FindByID retrieves a single account by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// FindByEmail retrieves a single account by its email address, always from the primary.
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)

	// Create inserts a new account. Email and push token uniqueness are enforced by the store;
	// a violation surfaces as domainerrors.ErrAccountAlreadyExists or ErrPushTokenAlreadyExists.
	Create(ctx context.Context, account *entity.Account) error
}
