// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"accounts/config"
	deliverycontext "accounts/internal/delivery/context"
	"accounts/internal/domain/entity"
	domainerrors "accounts/internal/domain/errors"
	"accounts/internal/domain/lifecycle"
	"accounts/internal/domain/repository"
	"accounts/internal/domain/service"
	"accounts/internal/errors"
	"accounts/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	defaultTokenValidity  = 24 * time.Hour
	defaultPublishTimeout = 10 * time.Second
	defaultQueue          = "user_registration"

	// timingPassword only feeds the dummy hash compared against on unknown emails.
	timingPassword = "account-service-timing-equalisation"
)

// accountService implements the AccountUsecase interface.
type accountService struct {
	txManager      repository.TransactionManager
	accountRepo    repository.AccountRepository
	hasher         service.PasswordHasher
	tokenService   service.TokenService
	publisher      service.EventPublisher
	tokenValidity  time.Duration
	queue          string
	publishTimeout time.Duration
	logger         *slog.Logger

	timingHashOnce sync.Once
	timingHash     string

	// inflight counts registration events still being published.
	inflight sync.WaitGroup
}

// AccountServiceParams holds dependencies for AccountService, injected by Fx.
type AccountServiceParams struct {
	fx.In

	Lc           fx.Lifecycle `optional:"true"`
	TxManager    repository.TransactionManager
	AccountRepo  repository.AccountRepository
	Hasher       service.PasswordHasher
	TokenService service.TokenService
	Publisher    service.EventPublisher
	Config       *config.Config
	Logger       *slog.Logger
}

// NewAccountService is the constructor for accountService. It receives all dependencies as interfaces.
func NewAccountService(params AccountServiceParams) usecase.AccountUsecase {
	srv := &accountService{
		txManager:      params.TxManager,
		accountRepo:    params.AccountRepo,
		hasher:         params.Hasher,
		tokenService:   params.TokenService,
		publisher:      params.Publisher,
		tokenValidity:  defaultTokenValidity,
		queue:          defaultQueue,
		publishTimeout: defaultPublishTimeout,
		logger:         params.Logger,
	}

	if cfg := params.Config; cfg != nil {
		if cfg.Auth != nil && cfg.Auth.TokenValidity > 0 {
			srv.tokenValidity = cfg.Auth.TokenValidity
		}
		if cfg.PubSub != nil && cfg.PubSub.Queue != "" {
			srv.queue = cfg.PubSub.Queue
		}
		if cfg.PubSub != nil && cfg.PubSub.PublishTimeout > 0 {
			srv.publishTimeout = cfg.PubSub.PublishTimeout
		}
	}

	// Registered after the publisher's hook, so it runs before the publisher is closed.
	if params.Lc != nil {
		params.Lc.Append(fx.Hook{
			OnStop: srv.drain,
		})
	}

	return srv
}

// drain waits for in-flight registration events, bounded by lifecycle.DefaultTimeout.
func (srv *accountService) drain(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		srv.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		srv.logger.Warn("Registration events still in flight at shutdown", slog.Any("error", ctx.Err()))

		return errors.Wrap(ctx.Err(), "failed to drain registration events")
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *accountService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates the account inside one transaction, then issues a token and announces the
// registration on the queue.
func (srv *accountService) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.AuthOutput, error) {
	email := entity.NormalizeEmail(input.Email)
	srv.log(ctx).Info("Starting registration")
	srv.log(ctx).Debug("Registration requested", slog.String("email", email))

	// Hash before the transaction opens; no connection is held while hashing.
	passwordHash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during registration", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	account, err := buildAccount(input, email, passwordHash)
	if err != nil {
		return nil, err
	}

	var registered *entity.Account
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accountRepo := repoFactory.AccountRepo()

		_, err := accountRepo.FindByEmail(ctx, email)
		if err == nil {
			return domainerrors.ErrAccountAlreadyExists.WrapMessage("email already registered")
		}
		if !errors.Is(err, repository.ErrAccountNotFound) {
			return errors.Wrap(err, "failed to look up account by email")
		}

		if err := accountRepo.Create(ctx, account); err != nil {
			return errors.Wrap(err, "failed to create account during registration")
		}

		registered = account

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Registration failed", slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute registration transaction")
	}

	token, err := srv.issueToken(registered)
	if err != nil {
		srv.log(ctx).Error("Failed to issue token after registration", slog.Any("userID", registered.ID), slog.Any("error", err))

		return nil, err
	}

	srv.publishRegistration(ctx, registered)

	srv.log(ctx).Debug("Registration completed", slog.Any("userID", registered.ID))

	return &usecase.AuthOutput{UserID: registered.ID, Token: token}, nil
}

func buildAccount(input *usecase.RegisterInput, email, passwordHash string) (*entity.Account, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate account id")
	}

	account := &entity.Account{
		ID:                id,
		Name:              input.Name,
		Email:             email,
		PasswordHash:      passwordHash,
		EmailNotification: input.Preferences.Email,
		PushNotification:  input.Preferences.Push,
	}
	if input.PushToken != "" {
		pushToken := input.PushToken
		account.PushToken = &pushToken
	}

	return account, nil
}

// Login verifies credentials and issues a token. Unknown emails and wrong passwords
// fail with the same error after comparable work.
func (srv *accountService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.AuthOutput, error) {
	email := entity.NormalizeEmail(input.Email)
	srv.log(ctx).Debug("Starting login", slog.String("email", email))

	account, err := srv.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrAccountNotFound) {
			return nil, errors.Wrap(err, "failed to look up account by email")
		}

		srv.hasher.Check(input.Password, srv.dummyHash())
		srv.log(ctx).Warn("Login failed", slog.String("reason", "unknown email"))

		return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
	}

	if !srv.hasher.Check(input.Password, account.PasswordHash) {
		srv.log(ctx).Warn("Login failed", slog.Any("userID", account.ID), slog.String("reason", "password mismatch"))

		return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
	}

	token, err := srv.issueToken(account)
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Debug("User logged in successfully", slog.Any("userID", account.ID))

	return &usecase.AuthOutput{UserID: account.ID, Token: token}, nil
}

// dummyHash is computed once, on the first unknown-email login.
func (srv *accountService) dummyHash() string {
	srv.timingHashOnce.Do(func() {
		hash, err := srv.hasher.Hash(timingPassword)
		if err != nil {
			srv.logger.Warn("Failed to prepare timing hash", slog.Any("error", err))

			return
		}
		srv.timingHash = hash
	})

	return srv.timingHash
}

func (srv *accountService) issueToken(account *entity.Account) (*service.Token, error) {
	token, err := srv.tokenService.Issue(map[string]any{
		"user_id": account.ID.String(),
		"sub":     account.ID.String(),
		"email":   account.Email,
	}, srv.tokenValidity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue token")
	}

	return token, nil
}

// publishRegistration announces the new account without blocking or failing the request.
// The publish outlives the request context but is bounded by publishTimeout.
func (srv *accountService) publishRegistration(ctx context.Context, account *entity.Account) {
	event := &service.RegistrationEvent{
		RequestID: deliverycontext.GetRequestIDFromContext(ctx),
		UserID:    account.ID.String(),
		Name:      account.Name,
		Email:     account.Email,
		PushToken: account.PushTokenValue(),
		Preferences: service.RegistrationPreferences{
			Email: account.EmailNotification,
			Push:  account.PushNotification,
		},
		RegisteredAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		srv.log(ctx).Error("Failed to encode registration event", slog.Any("userID", account.ID), slog.Any("error", err))

		return
	}

	detached := context.WithoutCancel(ctx)
	logger := srv.log(ctx)

	srv.inflight.Add(1)
	go func() {
		defer srv.inflight.Done()

		publishCtx, cancel := context.WithTimeout(detached, srv.publishTimeout)
		defer cancel()

		if err := srv.publisher.Publish(publishCtx, srv.queue, payload); err != nil {
			logger.Error("Failed to publish registration event",
				slog.String("queue", srv.queue),
				slog.Any("userID", account.ID),
				slog.Any("error", err),
			)

			return
		}

		logger.Debug("Registration event published", slog.String("queue", srv.queue), slog.Any("userID", account.ID))
	}()
}

// GetProfile returns the public view of an account.
func (srv *accountService) GetProfile(ctx context.Context, id uuid.UUID) (*usecase.ProfileOutput, error) {
	account, err := srv.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	return &usecase.ProfileOutput{
		ID:          account.ID,
		Name:        account.Name,
		Email:       account.Email,
		PushToken:   account.PushToken,
		Preferences: account.Preferences(),
	}, nil
}

// GetPreferences returns the notification preferences of an account.
func (srv *accountService) GetPreferences(ctx context.Context, id uuid.UUID) (*entity.Preferences, error) {
	account, err := srv.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	preferences := account.Preferences()

	return &preferences, nil
}

// GetContact returns the email and push token of an account.
func (srv *accountService) GetContact(ctx context.Context, id uuid.UUID) (*usecase.ContactOutput, error) {
	account, err := srv.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	return &usecase.ContactOutput{
		Email:     account.Email,
		PushToken: account.PushToken,
	}, nil
}

func (srv *accountService) findAccount(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	account, err := srv.accountRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, errors.Wrap(domainerrors.ErrAccountNotFound, "account lookup failed")
		}

		return nil, errors.Wrap(err, "failed to find account by id")
	}

	return account, nil
}
