// Package model holds the GORM persistence models. They never leave the persistence layer.
package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountModel mirrors the 'accounts' table. IDs are generated in Go (UUIDv7) before insert,
// so the INSERT carries every column and needs no RETURNING clause.
type AccountModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name              string    `gorm:"type:varchar(50);not null"`
	Email             string    `gorm:"type:varchar(225);not null;index:accounts_email_key,unique,expression:lower(email)"`
	PasswordHash      string    `gorm:"type:varchar(255);not null"`
	PushToken         *string   `gorm:"type:varchar(225);uniqueIndex:accounts_push_token_key"`
	EmailNotification bool      `gorm:"not null"`
	PushNotification  bool      `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}
