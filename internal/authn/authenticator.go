package authn

import (
	"net/http"
	"strings"

	"github.com/meridian-id/meridian/internal/shared"
	"github.com/meridian-id/meridian/internal/token"
)

// DefaultCookieName is the cookie consulted when no Authorization header
// carries the token.
const DefaultCookieName = "access_token"

const bearerPrefix = "Bearer "

// DecisionMetrics counts authorization outcomes.
type DecisionMetrics interface {
	AuthzDecision(outcome string)
}

// Authenticator turns an incoming request into an authorization verdict:
// it extracts the token, verifies it through the Maker and evaluates the
// required scopes against the claimed ones.
type Authenticator struct {
	maker      *token.Maker
	cookieName string
	metrics    DecisionMetrics
}

// New constructs an Authenticator. An empty cookieName falls back to
// DefaultCookieName.
func New(maker *token.Maker, cookieName string) *Authenticator {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Authenticator{maker: maker, cookieName: cookieName}
}

// SetMetrics installs an outcome counter.
func (a *Authenticator) SetMetrics(m DecisionMetrics) {
	a.metrics = m
}

// Authorize verifies the request token and checks the required permission
// string against the claimed scopes. A missing token is the only
// unauthorized (401) outcome; a token that is present but fails
// verification for any reason is an authentication error (500) instead.
func (a *Authenticator) Authorize(r *http.Request, roleMap map[token.Role]bool, requiredPermissions string) (*token.Payload, *shared.Error) {
	raw := a.tokenFromRequest(r)
	if raw == "" {
		a.record("unauthenticated")
		return nil, &shared.Error{
			Code:    shared.CodeUnauthorized,
			Message: "request unauthorized: failed to retrieve token",
			Status:  http.StatusUnauthorized,
		}
	}

	payload, err := a.maker.VerifyToken(raw)
	if err != nil {
		a.record("error")
		return nil, &shared.Error{
			Code:    shared.CodeAuthenticationError,
			Message: err.Error(),
			Status:  http.StatusInternalServerError,
		}
	}

	if !token.HasScope(payload, roleMap, requiredPermissions) {
		a.record("denied")
		return nil, &shared.Error{
			Code:    shared.CodePermissionDenied,
			Message: "permission denied",
			Status:  http.StatusForbidden,
		}
	}

	a.record("allowed")
	return payload, nil
}

func (a *Authenticator) record(outcome string) {
	if a.metrics != nil {
		a.metrics.AuthzDecision(outcome)
	}
}

// AuthorizeAny is the list-form entry point; the required permissions are
// joined with commas and evaluated exactly as Authorize does.
func (a *Authenticator) AuthorizeAny(r *http.Request, roleMap map[token.Role]bool, requiredPermissions ...string) (*token.Payload, *shared.Error) {
	return a.Authorize(r, roleMap, strings.Join(requiredPermissions, ","))
}

// tokenFromRequest prefers a bearer Authorization header over the access
// token cookie.
func (a *Authenticator) tokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimPrefix(header, bearerPrefix)
	}
	if cookie, err := r.Cookie(a.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}
