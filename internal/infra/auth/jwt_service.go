package auth

import (
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"accounts/config"
	"accounts/internal/domain/constants"
	domainerrors "accounts/internal/domain/errors"
	"accounts/internal/domain/service"
	"accounts/internal/errors"
)

// DefaultTokenValidity applies when Issue is called without a positive validity.
const DefaultTokenValidity = 15 * time.Minute

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	accessSecret []byte           // Secret key for signing access tokens.
	now          func() time.Time // Clock used for iat/exp and validation.
}

// Option configures a jwtService.
type Option func(*jwtService)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *jwtService) {
		s.now = now
	}
}

// NewJWTService is the constructor for jwtService.
// It fails with ErrConfiguration when no signing secret is configured.
func NewJWTService(cfg *config.Config, opts ...Option) (service.TokenService, error) {
	if cfg == nil || cfg.SecretKey.Access == "" {
		return nil, errors.Wrap(domainerrors.ErrConfiguration, "jwt access secret must be provided")
	}

	s := &jwtService{
		accessSecret: []byte(cfg.SecretKey.Access),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Issue signs a copy of claims with iat and exp added.
func (s *jwtService) Issue(claims map[string]any, validity time.Duration) (*service.Token, error) {
	if validity <= 0 {
		validity = DefaultTokenValidity
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(validity)

	mapClaims := make(jwt.MapClaims, len(claims)+2)
	maps.Copy(mapClaims, claims)
	mapClaims["iat"] = issuedAt.Unix()
	mapClaims["exp"] = expiresAt.Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(s.accessSecret)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrConfiguration, "failed to sign token: "+err.Error())
	}
	if signed == "" {
		return nil, errors.Wrap(domainerrors.ErrConfiguration, "signer produced an empty token")
	}

	return &service.Token{
		Token:     signed,
		TokenType: constants.TokenTypeBearer,
		ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC(),
	}, nil
}

// ValidateToken checks signature, algorithm and expiry, and returns the decoded claims.
func (s *jwtService) ValidateToken(tokenString string) (*service.Claims, error) {
	claims := &service.Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return s.accessSecret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrUnauthorized, err.Error())
	}
	if !token.Valid {
		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "token is not valid")
	}

	if claims.UserID == uuid.Nil {
		subject, parseErr := uuid.Parse(claims.Subject)
		if parseErr != nil {
			return nil, errors.Wrap(domainerrors.ErrUnauthorized, "token carries no user id")
		}
		claims.UserID = subject
	}

	return claims, nil
}
