package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           string   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string   `gorm:"column:email;type:text;uniqueIndex;not null" json:"email"`
	Name         string   `gorm:"column:name;type:text" json:"name"`
	PasswordHash string   `gorm:"column:password_hash;type:text" json:"-"`
	GoogleID     *string  `gorm:"column:google_id;type:text;uniqueIndex" json:"-"`
	Role         UserRole `gorm:"column:role;type:varchar(16);default:'user'" json:"role"`

	EmailVerifiedAt *time.Time `gorm:"column:email_verified_at;type:timestamptz;index" json:"email_verified_at,omitempty"`
	LastSignInAt    *time.Time `gorm:"column:last_sign_in_at;type:timestamptz" json:"last_sign_in_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`

	CVs    []CV                `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Tokens []VerificationToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (u *User) IsVerified() bool { return u.EmailVerifiedAt != nil }

// HasPassword reports whether the account can sign in with credentials.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }
