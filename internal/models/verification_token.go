package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenKind string

const (
	TokenEmailVerification TokenKind = "email_verification"
	TokenPasswordReset     TokenKind = "password_reset"
)

// VerificationToken stores only the sha256 of the token mailed to the user.
type VerificationToken struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;type:uuid;index;not null" json:"user_id"`
	Kind      TokenKind `gorm:"column:kind;type:varchar(32);index" json:"kind"`
	TokenHash string    `gorm:"column:token_hash;type:text;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"column:expires_at;type:timestamptz;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (VerificationToken) TableName() string { return "verification_tokens" }

func (t *VerificationToken) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t *VerificationToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }
