package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the canonical account record. Password accounts carry a bcrypt
// hash and no Google subject; federated accounts carry a Google subject and
// may have no hash at all. An account that signed up with a password and
// later signed in with Google (matching email) carries both.
type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username      string    `gorm:"size:255;not null;uniqueIndex" json:"username"`
	Email         string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash  *string   `gorm:"size:255" json:"-"`
	GoogleSubject *string   `gorm:"size:255;uniqueIndex" json:"-"`
	FirstName     string    `gorm:"size:255" json:"first_name,omitempty"`
	LastName      string    `gorm:"size:255" json:"last_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsFederated reports whether the account is linked to a Google identity.
func (u *User) IsFederated() bool {
	return u.GoogleSubject != nil
}

// HasPassword reports whether password login is possible for this account.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
