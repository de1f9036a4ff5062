package identity

import (
	"time"

	"github.com/meridian-id/meridian/internal/token"
)

// Status enumerates account lifecycle states.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// User represents a registered account.
type User struct {
	ID           int64
	Fullname     string
	Username     string
	Email        string
	PhoneNumber  string
	PasswordHash string
	Role         token.Role
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser is the insert payload for an account.
type NewUser struct {
	Fullname     string
	Username     string
	Email        string
	PhoneNumber  string
	PasswordHash string
	Role         token.Role
	Status       Status
}

// UpdateUserParams carries optional field updates; nil fields are left
// untouched.
type UpdateUserParams struct {
	Fullname    *string `json:"fullname"`
	Username    *string `json:"username"`
	PhoneNumber *string `json:"phoneNumber"`
	Status      *Status `json:"status"`
}
