package token

import "time"

// Role is the account role carried inside access tokens.
type Role string

// Known roles. The catalog of roles is open-ended; these cover the roles
// the service itself assigns.
const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleService Role = "service"
)

// Payload is the decoded body of an access token. It is reconstructed on
// creation so callers do not need a verification round-trip to inspect it.
type Payload struct {
	ID         string
	UserID     string
	Username   string
	Permission string
	Role       Role
	InstanceID string
	RoleID     string
	User       map[string]any
	Metadata   map[string]any
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Valid reports whether the payload has not yet expired.
func (p *Payload) Valid() bool {
	return !time.Now().After(p.ExpiresAt)
}

// RefreshPayload is the decoded body of a refresh token.
// LinkedAccessTokenID is a back-reference only; the access token it names
// may already be expired or rotated.
type RefreshPayload struct {
	ID                  string
	UserID              string
	LinkedAccessTokenID string
	IssuedAt            time.Time
	ExpiresAt           time.Time
}
