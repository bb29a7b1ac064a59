// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"accounts/internal/domain/entity"
	"accounts/internal/domain/service"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new account.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	PushToken   string // Optional; empty means none.
	Preferences entity.Preferences
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string
	Password string
}

// --- Output DTOs ---

// AuthOutput is returned by both registration and login.
type AuthOutput struct {
	UserID uuid.UUID
	Token  *service.Token
}

// ProfileOutput is the public view of an account. It never carries the password hash.
type ProfileOutput struct {
	ID          uuid.UUID
	Name        string
	Email       string
	PushToken   *string
	Preferences entity.Preferences
}

// ContactOutput holds the reachable endpoints of an account.
type ContactOutput struct {
	Email     string
	PushToken *string
}

// AccountUsecase defines the interface for account-related business operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AccountUsecase interface {
	Register(ctx context.Context, input *RegisterInput) (*AuthOutput, error)
	Login(ctx context.Context, input *LoginInput) (*AuthOutput, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*ProfileOutput, error)
	GetPreferences(ctx context.Context, id uuid.UUID) (*entity.Preferences, error)
	GetContact(ctx context.Context, id uuid.UUID) (*ContactOutput, error)
}
