package impl

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"accounts/internal/domain/entity"
	domainerrors "accounts/internal/domain/errors"
	"accounts/internal/domain/repository"
	"accounts/internal/domain/service"
	"accounts/internal/errors"
	mockRepo "accounts/internal/mocks/repository"
	mockSvc "accounts/internal/mocks/service"
	"accounts/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// accountServiceFixtures holds all test dependencies for account service tests.
type accountServiceFixtures struct {
	service      usecase.AccountUsecase
	txManager    *mockRepo.MockTransactionManager
	accountRepo  *mockRepo.MockAccountRepository
	txRepo       *mockRepo.MockAccountRepository
	hasher       *mockSvc.MockPasswordHasher
	tokenService *mockSvc.MockTokenService
	publisher    *mockSvc.MockEventPublisher
}

func createTestAccountService(t *testing.T) accountServiceFixtures {
	f := accountServiceFixtures{
		txManager:    mockRepo.NewMockTransactionManager(t),
		accountRepo:  mockRepo.NewMockAccountRepository(t),
		txRepo:       mockRepo.NewMockAccountRepository(t),
		hasher:       mockSvc.NewMockPasswordHasher(t),
		tokenService: mockSvc.NewMockTokenService(t),
		publisher:    mockSvc.NewMockEventPublisher(t),
	}

	f.service = NewAccountService(AccountServiceParams{
		TxManager:    f.txManager,
		AccountRepo:  f.accountRepo,
		Hasher:       f.hasher,
		TokenService: f.tokenService,
		Publisher:    f.publisher,
		Config:       newTestConfig(),
		Logger:       newDiscardLogger(),
	})

	return f
}

// expectTransaction runs the transaction callback against txRepo.
func (f accountServiceFixtures) expectTransaction(t *testing.T) {
	f.txManager.EXPECT().
		Execute(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, fn func(repository.RepositoryFactory) error) error {
			factory := mockRepo.NewMockRepositoryFactory(t)
			factory.EXPECT().AccountRepo().Return(f.txRepo)

			return fn(factory)
		}).
		Once()
}

func adaInput() *usecase.RegisterInput {
	return &usecase.RegisterInput{
		Name:        "Ada",
		Email:       "ada@example.com",
		Password:    "lovelace",
		Preferences: entity.Preferences{Email: true, Push: false},
	}
}

func testToken() *service.Token {
	return &service.Token{Token: "signed.jwt.token", TokenType: "bearer", ExpiresAt: time.Now().Add(24 * time.Hour)}
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for asynchronous publish")
	}
}

func TestAccountService_Register_Success(t *testing.T) {
	f := createTestAccountService(t)
	ctx := context.Background()
	input := adaInput()

	f.expectTransaction(t)
	f.txRepo.EXPECT().FindByEmail(mock.Anything, input.Email).Return(nil, repository.ErrAccountNotFound)
	f.hasher.EXPECT().Hash(input.Password).Return("$argon2id$hashed", nil)

	var created *entity.Account
	f.txRepo.EXPECT().
		Create(mock.Anything, mock.AnythingOfType("*entity.Account")).
		Run(func(_ context.Context, account *entity.Account) {
			created = account
		}).
		Return(nil)

	f.tokenService.EXPECT().
		Issue(mock.MatchedBy(func(claims map[string]any) bool {
			return claims["user_id"] == created.ID.String() &&
				claims["sub"] == created.ID.String() &&
				claims["email"] == input.Email
		}), 1440*time.Minute).
		Return(testToken(), nil)

	done := make(chan struct{})
	var payload []byte
	f.publisher.EXPECT().
		Publish(mock.Anything, "user_registration", mock.Anything).
		Run(func(_ context.Context, _ string, p []byte) {
			payload = p
			close(done)
		}).
		Return(nil)

	output, err := f.service.Register(ctx, input)
	require.NoError(t, err)
	waitFor(t, done)

	require.NotNil(t, created)
	assert.Equal(t, created.ID, output.UserID)
	assert.NotEqual(t, uuid.Nil, output.UserID)
	assert.Equal(t, "signed.jwt.token", output.Token.Token)

	assert.Equal(t, "Ada", created.Name)
	assert.Equal(t, "$argon2id$hashed", created.PasswordHash)
	assert.NotEqual(t, input.Password, created.PasswordHash)
	assert.Nil(t, created.PushToken)
	assert.True(t, created.EmailNotification)
	assert.False(t, created.PushNotification)

	var event service.RegistrationEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, created.ID.String(), event.UserID)
	assert.Equal(t, "ada@example.com", event.Email)
	assert.Equal(t, "Ada", event.Name)
	assert.True(t, event.Preferences.Email)
	assert.False(t, event.Preferences.Push)
	assert.NotContains(t, string(payload), "lovelace")
	assert.NotContains(t, string(payload), "$argon2id$hashed")
}

func TestAccountService_Register_StoresPushToken(t *testing.T) {
	f := createTestAccountService(t)
	input := adaInput()
	input.PushToken = "device-token"
	input.Preferences.Push = true

	f.expectTransaction(t)
	f.txRepo.EXPECT().FindByEmail(mock.Anything, input.Email).Return(nil, repository.ErrAccountNotFound)
	f.hasher.EXPECT().Hash(input.Password).Return("$argon2id$hashed", nil)
	f.txRepo.EXPECT().
		Create(mock.Anything, mock.MatchedBy(func(account *entity.Account) bool {
			return account.PushToken != nil && *account.PushToken == "device-token" && account.PushNotification
		})).
		Return(nil)
	f.tokenService.EXPECT().Issue(mock.Anything, mock.Anything).Return(testToken(), nil)

	done := make(chan struct{})
	f.publisher.EXPECT().
		Publish(mock.Anything, "user_registration", mock.Anything).
		Run(func(context.Context, string, []byte) { close(done) }).
		Return(nil)

	_, err := f.service.Register(context.Background(), input)
	require.NoError(t, err)
	waitFor(t, done)
}

func TestAccountService_Register_DuplicateEmail(t *testing.T) {
	f := createTestAccountService(t)
	input := adaInput()

	f.hasher.EXPECT().Hash(input.Password).Return("$argon2id$hashed", nil)
	f.expectTransaction(t)
	f.txRepo.EXPECT().
		FindByEmail(mock.Anything, input.Email).
		Return(&entity.Account{ID: uuid.New(), Email: input.Email}, nil)

	output, err := f.service.Register(context.Background(), input)

	assert.Nil(t, output)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrAccountAlreadyExists))
	f.txRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountService_Register_ConcurrentDuplicateSurfacesAlreadyExists(t *testing.T) {
	f := createTestAccountService(t)
	input := adaInput()

	// The pre-check passes but the unique constraint rejects the insert.
	f.expectTransaction(t)
	f.txRepo.EXPECT().FindByEmail(mock.Anything, input.Email).Return(nil, repository.ErrAccountNotFound)
	f.hasher.EXPECT().Hash(input.Password).Return("$argon2id$hashed", nil)
	f.txRepo.EXPECT().
		Create(mock.Anything, mock.Anything).
		Return(domainerrors.ErrAccountAlreadyExists.WrapMessage("email already exists"))

	_, err := f.service.Register(context.Background(), input)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrAccountAlreadyExists))
}

func TestAccountService_Register_NormalizesEmail(t *testing.T) {
	f := createTestAccountService(t)
	input := adaInput()
	input.Email = "  Ada@Example.COM "

	f.hasher.EXPECT().Hash(input.Password).Return("$argon2id$hashed", nil)
	f.expectTransaction(t)
	f.txRepo.EXPECT().FindByEmail(mock.Anything, "ada@example.com").Return(nil, repository.ErrAccountNotFound)
	f.txRepo.EXPECT().
		Create(mock.Anything, mock.MatchedBy(func(account *entity.Account) bool {
			return account.Email == "ada@example.com"
		})).
		Return(nil)
	f.tokenService.EXPECT().
		Issue(mock.MatchedBy(func(claims map[string]any) bool {
			return claims["email"] == "ada@example.com"
		}), mock.Anything).
		Return(testToken(), nil)

	done := make(chan struct{})
	f.publisher.EXPECT().
		Publish(mock.Anything, "user_registration", mock.Anything).
		Run(func(context.Context, string, []byte) { close(done) }).
		Return(nil)

	_, err := f.service.Register(context.Background(), input)
	require.NoError(t, err)
	waitFor(t, done)
}

func TestAccountService_Register_HashesOutsideTransaction(t *testing.T) {
	f := createTestAccountService(t)
	input := adaInput()

	var inTx atomic.Bool
	f.hasher.EXPECT().
		Hash(input.Password).
		Run(func(string) {
			assert.False(t, inTx.Load(), "password hashed while the transaction was open")
		}).
		Return("$argon2id$hashed", nil)
	f.txManager.EXPECT().
		Execute(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, fn func(repository.RepositoryFactory) error) error {
			inTx.Store(true)
			defer inTx.Store(false)

			factory := mockRepo.NewMockRepositoryFactory(t)
			factory.EXPECT().AccountRepo().Return(f.txRepo)

			return fn(factory)
		}).
		Once()
	f.txRepo.EXPECT().FindByEmail(mock.Anything, input.Email).Return(nil, repository.ErrAccountNotFound)
	f.txRepo.EXPECT().Create(mock.Anything, mock.Anything).Return(nil)
	f.tokenService.EXPECT().Issue(mock.Anything, mock.Anything).Return(testToken(), nil)

	done := make(chan struct{})
	f.publisher.EXPECT().
		Publish(mock.Anything, "user_registration", mock.Anything).
		Run(func(context.Context, string, []byte) { close(done) }).
		Return(nil)

	_, err := f.service.Register(context.Background(), input)
	require.NoError(t, err)
	waitFor(t, done)
}

func TestAccountService_Register_Failures(t *testing.T) {
	t.Run("hash failure", func(t *testing.T) {
		f := createTestAccountService(t)
		input := adaInput()

		f.hasher.EXPECT().Hash(input.Password).Return("", errors.New("entropy exhausted"))

		_, err := f.service.Register(context.Background(), input)

		require.Error(t, err)
		assert.True(t, errors.Is(err, domainerrors.ErrPasswordHashFailed))
		f.txManager.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("lookup failure", func(t *testing.T) {
		f := createTestAccountService(t)
		input := adaInput()
		dbErr := errors.New("connection refused")

		f.hasher.EXPECT().Hash(input.Password).Return("$argon2id$hashed", nil)
		f.expectTransaction(t)
		f.txRepo.EXPECT().FindByEmail(mock.Anything, input.Email).Return(nil, dbErr)

		_, err := f.service.Register(context.Background(), input)

		require.Error(t, err)
		assert.True(t, errors.Is(err, dbErr))
		assert.False(t, errors.Is(err, domainerrors.ErrAccountAlreadyExists))
	})

	t.Run("token failure", func(t *testing.T) {
		f := createTestAccountService(t)
		input := adaInput()

		f.expectTransaction(t)
		f.txRepo.EXPECT().FindByEmail(mock.Anything, input.Email).Return(nil, repository.ErrAccountNotFound)
		f.hasher.EXPECT().Hash(input.Password).Return("$argon2id$hashed", nil)
		f.txRepo.EXPECT().Create(mock.Anything, mock.Anything).Return(nil)
		f.tokenService.EXPECT().
			Issue(mock.Anything, mock.Anything).
			Return(nil, errors.Wrap(domainerrors.ErrConfiguration, "signing failed"))

		output, err := f.service.Register(context.Background(), input)

		assert.Nil(t, output)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domainerrors.ErrConfiguration))
	})
}

func TestAccountService_Register_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := createTestAccountService(t)
	input := adaInput()

	f.expectTransaction(t)
	f.txRepo.EXPECT().FindByEmail(mock.Anything, input.Email).Return(nil, repository.ErrAccountNotFound)
	f.hasher.EXPECT().Hash(input.Password).Return("$argon2id$hashed", nil)
	f.txRepo.EXPECT().Create(mock.Anything, mock.Anything).Return(nil)
	f.tokenService.EXPECT().Issue(mock.Anything, mock.Anything).Return(testToken(), nil)

	done := make(chan struct{})
	f.publisher.EXPECT().
		Publish(mock.Anything, "user_registration", mock.Anything).
		Run(func(context.Context, string, []byte) { close(done) }).
		Return(errors.New("broker unavailable"))

	output, err := f.service.Register(context.Background(), input)

	require.NoError(t, err)
	assert.NotNil(t, output)
	waitFor(t, done)
}

func TestAccountService_Register_PublishOutlivesRequestContext(t *testing.T) {
	f := createTestAccountService(t)
	input := adaInput()

	f.expectTransaction(t)
	f.txRepo.EXPECT().FindByEmail(mock.Anything, input.Email).Return(nil, repository.ErrAccountNotFound)
	f.hasher.EXPECT().Hash(input.Password).Return("$argon2id$hashed", nil)
	f.txRepo.EXPECT().Create(mock.Anything, mock.Anything).Return(nil)
	f.tokenService.EXPECT().Issue(mock.Anything, mock.Anything).Return(testToken(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	done := make(chan struct{})
	var publishCtxErr error
	f.publisher.EXPECT().
		Publish(mock.Anything, "user_registration", mock.Anything).
		Run(func(publishCtx context.Context, _ string, _ []byte) {
			<-release
			publishCtxErr = publishCtx.Err()
			close(done)
		}).
		Return(nil)

	_, err := f.service.Register(ctx, input)
	require.NoError(t, err)

	cancel()
	close(release)
	waitFor(t, done)

	assert.NoError(t, publishCtxErr)
}

func TestAccountService_Login_Success(t *testing.T) {
	f := createTestAccountService(t)
	account := &entity.Account{ID: uuid.New(), Email: "ada@example.com", PasswordHash: "$argon2id$hashed"}

	f.accountRepo.EXPECT().FindByEmail(mock.Anything, account.Email).Return(account, nil)
	f.hasher.EXPECT().Check("lovelace", account.PasswordHash).Return(true)
	f.tokenService.EXPECT().
		Issue(mock.MatchedBy(func(claims map[string]any) bool {
			return claims["user_id"] == account.ID.String() && claims["email"] == account.Email
		}), 1440*time.Minute).
		Return(testToken(), nil)

	output, err := f.service.Login(context.Background(), &usecase.LoginInput{Email: account.Email, Password: "lovelace"})

	require.NoError(t, err)
	assert.Equal(t, account.ID, output.UserID)
	assert.Equal(t, "bearer", output.Token.TokenType)
}

func TestAccountService_Login_NormalizesEmail(t *testing.T) {
	f := createTestAccountService(t)
	account := &entity.Account{ID: uuid.New(), Email: "ada@example.com", PasswordHash: "$argon2id$hashed"}

	f.accountRepo.EXPECT().FindByEmail(mock.Anything, "ada@example.com").Return(account, nil)
	f.hasher.EXPECT().Check("lovelace", account.PasswordHash).Return(true)
	f.tokenService.EXPECT().Issue(mock.Anything, mock.Anything).Return(testToken(), nil)

	output, err := f.service.Login(context.Background(), &usecase.LoginInput{Email: "ADA@example.com", Password: "lovelace"})

	require.NoError(t, err)
	assert.Equal(t, account.ID, output.UserID)
}

func TestAccountService_Login_FailuresAreIndistinguishable(t *testing.T) {
	f := createTestAccountService(t)
	account := &entity.Account{ID: uuid.New(), Email: "ada@example.com", PasswordHash: "$argon2id$hashed"}

	f.accountRepo.EXPECT().FindByEmail(mock.Anything, account.Email).Return(account, nil)
	f.hasher.EXPECT().Check("babbage", account.PasswordHash).Return(false)

	f.accountRepo.EXPECT().FindByEmail(mock.Anything, "ghost@example.com").Return(nil, repository.ErrAccountNotFound).Twice()
	f.hasher.EXPECT().Hash(mock.Anything).Return("$argon2id$dummy", nil).Once()
	f.hasher.EXPECT().Check("babbage", "$argon2id$dummy").Return(false).Twice()

	_, wrongPassword := f.service.Login(context.Background(), &usecase.LoginInput{Email: account.Email, Password: "babbage"})
	_, unknownEmail := f.service.Login(context.Background(), &usecase.LoginInput{Email: "ghost@example.com", Password: "babbage"})
	_, unknownAgain := f.service.Login(context.Background(), &usecase.LoginInput{Email: "ghost@example.com", Password: "babbage"})

	for _, err := range []error{wrongPassword, unknownEmail, unknownAgain} {
		require.Error(t, err)
		assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))

		var appErr domainerrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "INVALID_CREDENTIALS", appErr.ErrorCode())
		assert.Equal(t, "Invalid email or password", appErr.Message())
	}
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	f.tokenService.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestAccountService_Login_StorageError(t *testing.T) {
	f := createTestAccountService(t)
	dbErr := errors.New("connection refused")

	f.accountRepo.EXPECT().FindByEmail(mock.Anything, "ada@example.com").Return(nil, dbErr)

	_, err := f.service.Login(context.Background(), &usecase.LoginInput{Email: "ada@example.com", Password: "lovelace"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, dbErr))
	assert.False(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
}

func TestAccountService_Getters(t *testing.T) {
	token := "device-token"
	account := &entity.Account{
		ID:                uuid.New(),
		Name:              "Ada",
		Email:             "ada@example.com",
		PasswordHash:      "$argon2id$hashed",
		PushToken:         &token,
		EmailNotification: true,
		PushNotification:  false,
	}

	f := createTestAccountService(t)
	f.accountRepo.EXPECT().FindByID(mock.Anything, account.ID).Return(account, nil).Times(3)

	profile, err := f.service.GetProfile(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, &usecase.ProfileOutput{
		ID:          account.ID,
		Name:        "Ada",
		Email:       "ada@example.com",
		PushToken:   &token,
		Preferences: entity.Preferences{Email: true, Push: false},
	}, profile)

	preferences, err := f.service.GetPreferences(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, &entity.Preferences{Email: true, Push: false}, preferences)

	contact, err := f.service.GetContact(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, &usecase.ContactOutput{Email: "ada@example.com", PushToken: &token}, contact)
}

func TestAccountService_Getters_NotFound(t *testing.T) {
	f := createTestAccountService(t)
	id := uuid.New()

	f.accountRepo.EXPECT().FindByID(mock.Anything, id).Return(nil, repository.ErrAccountNotFound).Times(3)

	_, profileErr := f.service.GetProfile(context.Background(), id)
	_, preferencesErr := f.service.GetPreferences(context.Background(), id)
	_, contactErr := f.service.GetContact(context.Background(), id)

	for _, err := range []error{profileErr, preferencesErr, contactErr} {
		assert.True(t, errors.Is(err, domainerrors.ErrAccountNotFound))
	}
}

func TestAccountService_InfoLogsOmitEmail(t *testing.T) {
	f := createTestAccountService(t)
	var buf bytes.Buffer
	f.service = NewAccountService(AccountServiceParams{
		TxManager:    f.txManager,
		AccountRepo:  f.accountRepo,
		Hasher:       f.hasher,
		TokenService: f.tokenService,
		Publisher:    f.publisher,
		Config:       newTestConfig(),
		Logger:       slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})),
	})

	input := adaInput()
	f.hasher.EXPECT().Hash(mock.Anything).Return("$argon2id$hashed", nil)
	f.expectTransaction(t)
	f.txRepo.EXPECT().
		FindByEmail(mock.Anything, input.Email).
		Return(&entity.Account{ID: uuid.New(), Email: input.Email}, nil)
	f.accountRepo.EXPECT().FindByEmail(mock.Anything, input.Email).Return(nil, repository.ErrAccountNotFound)
	f.hasher.EXPECT().Check(mock.Anything, mock.Anything).Return(false)

	_, registerErr := f.service.Register(context.Background(), input)
	_, loginErr := f.service.Login(context.Background(), &usecase.LoginInput{Email: input.Email, Password: "babbage"})

	require.Error(t, registerErr)
	require.Error(t, loginErr)
	assert.NotEmpty(t, buf.String())
	assert.NotContains(t, buf.String(), input.Email)
}
