// Package handler contains the HTTP handlers for the account API.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"accounts/internal/delivery/http/middleware"
	"accounts/internal/delivery/http/response"
	"accounts/internal/domain/entity"
	domainerrors "accounts/internal/domain/errors"
	"accounts/internal/domain/service"
	"accounts/internal/errors"
	"accounts/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AccountHandlerParams holds dependencies for AccountHandler, injected by Fx.
type AccountHandlerParams struct {
	fx.In

	AccountUC usecase.AccountUsecase
	Logger    *slog.Logger
}

// AccountHandler serves registration, login and account lookups.
type AccountHandler struct {
	accountUC usecase.AccountUsecase
	logger    *slog.Logger
}

// NewAccountHandler is the constructor for AccountHandler.
func NewAccountHandler(params AccountHandlerParams) *AccountHandler {
	return &AccountHandler{
		accountUC: params.AccountUC,
		logger:    params.Logger,
	}
}

// PreferencesPayload carries the notification opt-ins.
type PreferencesPayload struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name        string             `json:"name" validate:"required,max=50"`
	Email       string             `json:"email" validate:"required,email,max=225"`
	Password    string             `json:"password" validate:"required,max=128"`
	PushToken   string             `json:"push_token" validate:"omitempty,max=225"`
	Preferences PreferencesPayload `json:"preferences"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is the issued bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResponse is returned by registration and login.
type AuthResponse struct {
	UserID uuid.UUID      `json:"user_id"`
	Token  *TokenResponse `json:"token"`
}

// ProfileResponse is the public view of an account.
type ProfileResponse struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	PushToken   *string            `json:"push_token"`
	Preferences PreferencesPayload `json:"preferences"`
}

// ContactResponse holds the email and push token of an account.
type ContactResponse struct {
	Email     string  `json:"email"`
	PushToken *string `json:"push_token"`
}

// Register handles account registration.
func (h *AccountHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("malformed request body")
	}

	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.accountUC.Register(c.Request().Context(), &usecase.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		PushToken:   req.PushToken,
		Preferences: entity.Preferences{Email: req.Preferences.Email, Push: req.Preferences.Push},
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, toAuthResponse(output), "Account registered successfully")
}

// Login handles credential verification.
func (h *AccountHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("malformed request body")
	}

	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.accountUC.Login(c.Request().Context(), &usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toAuthResponse(output), "Login successful")
}

// GetProfile returns the profile of the account named in the path.
func (h *AccountHandler) GetProfile(c echo.Context) error {
	id, err := parseAccountID(c)
	if err != nil {
		return err
	}

	return h.renderProfile(c, id)
}

// GetMe returns the profile of the token's subject.
func (h *AccountHandler) GetMe(c echo.Context) error {
	id, ok := middleware.GetUserID(c)
	if !ok {
		return domainerrors.ErrUnauthorized.WrapMessage("token subject missing")
	}

	return h.renderProfile(c, id)
}

func (h *AccountHandler) renderProfile(c echo.Context, id uuid.UUID) error {
	profile, err := h.accountUC.GetProfile(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, &ProfileResponse{
		ID:          profile.ID,
		Name:        profile.Name,
		Email:       profile.Email,
		PushToken:   profile.PushToken,
		Preferences: PreferencesPayload{Email: profile.Preferences.Email, Push: profile.Preferences.Push},
	}, "")
}

// GetPreferences returns the notification preferences of an account.
func (h *AccountHandler) GetPreferences(c echo.Context) error {
	id, err := parseAccountID(c)
	if err != nil {
		return err
	}

	preferences, err := h.accountUC.GetPreferences(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, &PreferencesPayload{Email: preferences.Email, Push: preferences.Push}, "")
}

// GetContact returns the email and push token of an account.
func (h *AccountHandler) GetContact(c echo.Context) error {
	id, err := parseAccountID(c)
	if err != nil {
		return err
	}

	contact, err := h.accountUC.GetContact(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, &ContactResponse{Email: contact.Email, PushToken: contact.PushToken}, "")
}

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"}, "Service is healthy")
}

// parseAccountID treats a malformed id the same as an unknown one.
func parseAccountID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, domainerrors.ErrAccountNotFound.WrapMessage("malformed account id")
	}

	return id, nil
}

func toAuthResponse(output *usecase.AuthOutput) *AuthResponse {
	return &AuthResponse{
		UserID: output.UserID,
		Token:  toTokenResponse(output.Token),
	}
}

func toTokenResponse(token *service.Token) *TokenResponse {
	if token == nil {
		return nil
	}

	return &TokenResponse{
		Token:     token.Token,
		TokenType: token.TokenType,
		ExpiresAt: token.ExpiresAt,
	}
}
