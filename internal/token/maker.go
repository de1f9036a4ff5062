package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const refreshTokenType = "refresh"

// ErrSecretTooShort indicates a misconfigured signing secret. This is a
// construction-time failure, not a runtime one.
var ErrSecretTooShort = errors.New("token: secret key must be at least 32 characters long")

var (
	errInvalidTokenStructure        = errors.New("invalid token structure")
	errInvalidRefreshTokenStructure = errors.New("invalid refresh token structure")
)

type claims struct {
	jwt.RegisteredClaims
	Username            string         `json:"username,omitempty"`
	Permission          string         `json:"permission,omitempty"`
	Role                Role           `json:"role,omitempty"`
	InstanceID          string         `json:"instanceID,omitempty"`
	RoleID              string         `json:"roleID,omitempty"`
	User                map[string]any `json:"user,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	Type                string         `json:"type,omitempty"`
	LinkedAccessTokenID string         `json:"linkedAccessTokenID,omitempty"`
}

// Maker signs and verifies access and refresh tokens with a single
// symmetric key (HMAC-SHA256). Verification is stateless; the only
// temporal cutoff is the embedded expiry.
type Maker struct {
	secret []byte
}

// NewMaker constructs a Maker. The secret must be at least 32 characters.
func NewMaker(secret string) (*Maker, error) {
	if len(secret) < 32 {
		return nil, ErrSecretTooShort
	}
	return &Maker{secret: []byte(secret)}, nil
}

// CreateTokenParams collects the claims embedded in an access token.
type CreateTokenParams struct {
	UserID     string
	Username   string
	Permission string
	Role       Role
	Duration   time.Duration
	InstanceID string
	RoleID     string
	User       map[string]any
	Metadata   map[string]any
}

// CreateRefreshTokenParams collects the claims embedded in a refresh token.
type CreateRefreshTokenParams struct {
	UserID              string
	Duration            time.Duration
	LinkedAccessTokenID string
}

// CreateToken issues a signed access token with a fresh token identifier.
// The duration is not validated; a zero or negative duration produces a
// token that is already expired.
func (m *Maker) CreateToken(params CreateTokenParams) (string, *Payload, error) {
	now := time.Now()
	payload := &Payload{
		ID:         uuid.NewString(),
		UserID:     params.UserID,
		Username:   params.Username,
		Permission: params.Permission,
		Role:       params.Role,
		InstanceID: params.InstanceID,
		RoleID:     params.RoleID,
		User:       params.User,
		Metadata:   params.Metadata,
		IssuedAt:   now,
		ExpiresAt:  now.Add(params.Duration),
	}

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        payload.ID,
			Subject:   payload.UserID,
			IssuedAt:  jwt.NewNumericDate(payload.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
		Username:   params.Username,
		Permission: params.Permission,
		Role:       params.Role,
		InstanceID: params.InstanceID,
		RoleID:     params.RoleID,
		User:       params.User,
		Metadata:   params.Metadata,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign access token: %w", err)
	}
	return signed, payload, nil
}

// VerifyToken classifies an opaque token string: it checks the signature,
// the required identifiers and the expiry, and returns the decoded payload.
// The returned error always surfaces the underlying cause so callers can
// branch on it.
func (m *Maker) VerifyToken(tokenString string) (*Payload, error) {
	c, err := m.parse(tokenString)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if c.ID == "" || c.Subject == "" {
		return nil, fmt.Errorf("token verification failed: %w", errInvalidTokenStructure)
	}
	payload := &Payload{
		ID:         c.ID,
		UserID:     c.Subject,
		Username:   c.Username,
		Permission: c.Permission,
		Role:       c.Role,
		InstanceID: c.InstanceID,
		RoleID:     c.RoleID,
		User:       c.User,
		Metadata:   c.Metadata,
		IssuedAt:   numericDateTime(c.IssuedAt),
		ExpiresAt:  numericDateTime(c.ExpiresAt),
	}
	if !payload.Valid() {
		return nil, errors.New("token verification failed: token has expired")
	}
	return payload, nil
}

// CreateRefreshToken issues a signed refresh token. The signed form carries
// a type discriminator so it can never be replayed as an access token and
// vice versa.
func (m *Maker) CreateRefreshToken(params CreateRefreshTokenParams) (string, *RefreshPayload, error) {
	now := time.Now()
	payload := &RefreshPayload{
		ID:                  uuid.NewString(),
		UserID:              params.UserID,
		LinkedAccessTokenID: params.LinkedAccessTokenID,
		IssuedAt:            now,
		ExpiresAt:           now.Add(params.Duration),
	}

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        payload.ID,
			Subject:   payload.UserID,
			IssuedAt:  jwt.NewNumericDate(payload.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
		Type:                refreshTokenType,
		LinkedAccessTokenID: params.LinkedAccessTokenID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign refresh token: %w", err)
	}
	return signed, payload, nil
}

// VerifyRefreshToken verifies a refresh token. A correctly signed access
// token is rejected here because it lacks the refresh discriminator.
func (m *Maker) VerifyRefreshToken(tokenString string) (*RefreshPayload, error) {
	c, err := m.parse(tokenString)
	if err != nil {
		return nil, fmt.Errorf("refresh token verification failed: %w", err)
	}
	if c.ID == "" || c.Subject == "" || c.Type != refreshTokenType {
		return nil, fmt.Errorf("refresh token verification failed: %w", errInvalidRefreshTokenStructure)
	}
	payload := &RefreshPayload{
		ID:                  c.ID,
		UserID:              c.Subject,
		LinkedAccessTokenID: c.LinkedAccessTokenID,
		IssuedAt:            numericDateTime(c.IssuedAt),
		ExpiresAt:           numericDateTime(c.ExpiresAt),
	}
	if time.Now().After(payload.ExpiresAt) {
		return nil, errors.New("refresh token verification failed: refresh token has expired")
	}
	return payload, nil
}

func (m *Maker) parse(tokenString string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// numericDateTime defaults a missing claim to the epoch, which downstream
// expiry checks treat as long expired.
func numericDateTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Unix(0, 0)
	}
	return d.Time
}
