package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-id/meridian/internal/shared"
	"github.com/meridian-id/meridian/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuthn(t *testing.T) (*Authenticator, *token.Maker) {
	t.Helper()
	maker, err := token.NewMaker(testSecret)
	require.NoError(t, err)
	return New(maker, ""), maker
}

func mintToken(t *testing.T, maker *token.Maker, permission string, role token.Role, ttl time.Duration) string {
	t.Helper()
	signed, _, err := maker.CreateToken(token.CreateTokenParams{
		UserID:     "42",
		Username:   "ahmad",
		Permission: permission,
		Role:       role,
		Duration:   ttl,
	})
	require.NoError(t, err)
	return signed
}

func TestAuthorizeMissingToken(t *testing.T) {
	auth, _ := newTestAuthn(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, appErr := auth.Authorize(r, nil, "")
	require.NotNil(t, appErr)
	require.Equal(t, shared.CodeUnauthorized, appErr.Code)
	require.Equal(t, http.StatusUnauthorized, appErr.Status)
	require.Equal(t, "request unauthorized: failed to retrieve token", appErr.Message)
}

func TestAuthorizeBearerHeader(t *testing.T) {
	auth, maker := newTestAuthn(t)
	signed := mintToken(t, maker, "read:user", token.RoleUser, time.Minute)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signed)

	payload, appErr := auth.Authorize(r, map[token.Role]bool{}, "read:user")
	require.Nil(t, appErr)
	require.Equal(t, "42", payload.UserID)
}

func TestAuthorizeCookieFallback(t *testing.T) {
	auth, maker := newTestAuthn(t)
	signed := mintToken(t, maker, "read:user", token.RoleUser, time.Minute)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: signed})

	payload, appErr := auth.Authorize(r, nil, "")
	require.Nil(t, appErr)
	require.Equal(t, "42", payload.UserID)
}

func TestAuthorizeHeaderTakesPrecedenceOverCookie(t *testing.T) {
	auth, maker := newTestAuthn(t)
	headerToken := mintToken(t, maker, "read:user", token.RoleUser, time.Minute)
	cookieToken := mintToken(t, maker, "", token.RoleUser, -time.Minute)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+headerToken)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: cookieToken})

	// The expired cookie token would fail; the header one must win.
	_, appErr := auth.Authorize(r, nil, "")
	require.Nil(t, appErr)
}

func TestAuthorizeExpiredTokenIsAuthenticationError(t *testing.T) {
	auth, maker := newTestAuthn(t)
	signed := mintToken(t, maker, "read:user", token.RoleUser, -time.Minute)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signed)

	_, appErr := auth.Authorize(r, nil, "")
	require.NotNil(t, appErr)
	require.Equal(t, shared.CodeAuthenticationError, appErr.Code)
	require.Equal(t, http.StatusInternalServerError, appErr.Status)
	require.Contains(t, appErr.Message, "expired")
}

func TestAuthorizeMalformedTokenIsAuthenticationError(t *testing.T) {
	auth, _ := newTestAuthn(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")

	_, appErr := auth.Authorize(r, nil, "")
	require.NotNil(t, appErr)
	require.Equal(t, shared.CodeAuthenticationError, appErr.Code)
	require.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestAuthorizePermissionDenied(t *testing.T) {
	auth, maker := newTestAuthn(t)
	signed := mintToken(t, maker, "read:user", token.RoleUser, time.Minute)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signed)

	_, appErr := auth.Authorize(r, map[token.Role]bool{token.RoleUser: false}, "delete:user")
	require.NotNil(t, appErr)
	require.Equal(t, shared.CodePermissionDenied, appErr.Code)
	require.Equal(t, http.StatusForbidden, appErr.Status)
	require.Equal(t, "permission denied", appErr.Message)
}

func TestAuthorizeAnyJoinsScopes(t *testing.T) {
	auth, maker := newTestAuthn(t)
	signed := mintToken(t, maker, "read:user,write:user", token.RoleUser, time.Minute)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signed)

	_, appErr := auth.AuthorizeAny(r, map[token.Role]bool{}, "read:user", "write:user")
	require.Nil(t, appErr)

	_, appErr = auth.AuthorizeAny(r, map[token.Role]bool{}, "read:user", "delete:user")
	require.NotNil(t, appErr)
	require.Equal(t, shared.CodePermissionDenied, appErr.Code)
}
