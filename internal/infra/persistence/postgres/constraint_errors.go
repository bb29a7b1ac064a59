package postgres

import (
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"accounts/internal/errors"
)

// PostgreSQL SQLSTATE codes
const (
	pgUniqueViolation  = "23505"
	pgNotNullViolation = "23502"
)

// Unique constraint and index names created by the accounts migration
const (
	accountsEmailKey     = "accounts_email_key"
	accountsPushTokenKey = "accounts_push_token_key"
)

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}

	return nil, false
}

// uniqueViolationConstraint reports the violated unique constraint name.
// An empty name with ok=true means the driver did not say which one.
func uniqueViolationConstraint(err error) (constraint string, ok bool) {
	if pgErr, isPg := asPgError(err); isPg {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}

		return pgErr.ConstraintName, true
	}

	// Set when the dialector translates errors.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}

	return "", false
}

func isNotNullConstraintViolation(err error) bool {
	pgErr, ok := asPgError(err)

	return ok && pgErr.Code == pgNotNullViolation
}
