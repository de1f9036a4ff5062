package identity

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-id/meridian/internal/authn"
	"github.com/meridian-id/meridian/internal/shared"
	"github.com/meridian-id/meridian/internal/token"
)

// Account management scopes.
const (
	ScopeRead   = "read:user"
	ScopeUpdate = "update:user"
	ScopeDelete = "delete:user"
)

const refreshCookieName = "refresh_token"

var adminFallback = map[token.Role]bool{token.RoleAdmin: true}

// CookieConfig controls the token cookies set on login and refresh.
type CookieConfig struct {
	AccessName string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Secure     bool
}

// Handler wires the auth and account HTTP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authn   *authn.Authenticator
	cookies CookieConfig
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authenticator *authn.Authenticator, cookies CookieConfig) *Handler {
	if cookies.AccessName == "" {
		cookies.AccessName = authn.DefaultCookieName
	}
	return &Handler{logger: logger, service: service, authn: authenticator, cookies: cookies}
}

// MountAuthRoutes registers the public authentication routes.
func (h *Handler) MountAuthRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
}

// MountUserRoutes registers account management routes under /users.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Get("/{id}", h.getUser)
	r.Patch("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID          int64  `json:"id"`
	Fullname    string `json:"fullname"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
	Status      string `json:"status"`
}

type authResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.RespondError(h.logger, w, shared.NewError(shared.CodeValidationError, "invalid request body"))
		return
	}

	tokens, err := h.service.Register(r.Context(), input)
	if err != nil {
		shared.RespondError(h.logger, w, shared.AsError(err, "registration failed"))
		return
	}

	h.setTokenCookies(w, tokens)
	shared.RespondJSON(h.logger, w, http.StatusCreated, toAuthResponse(tokens))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(h.logger, w, shared.NewError(shared.CodeValidationError, "invalid request body"))
		return
	}

	tokens, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		shared.RespondError(h.logger, w, shared.AsError(err, "login failed"))
		return
	}

	h.setTokenCookies(w, tokens)
	shared.RespondJSON(h.logger, w, http.StatusOK, toAuthResponse(tokens))
}

// refresh accepts the token from the body or falls back to the refresh
// cookie set on login.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		shared.RespondError(h.logger, w, shared.NewError(shared.CodeValidationError, "invalid request body"))
		return
	}
	refreshToken := req.RefreshToken
	if refreshToken == "" {
		if c, err := r.Cookie(refreshCookieName); err == nil {
			refreshToken = c.Value
		}
	}
	if refreshToken == "" {
		shared.RespondError(h.logger, w, shared.NewError(shared.CodeUnauthorized, "request unauthorized: failed to retrieve token").
			WithStatus(http.StatusUnauthorized))
		return
	}

	tokens, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		shared.RespondError(h.logger, w, shared.AsError(err, "token refresh failed"))
		return
	}

	h.setTokenCookies(w, tokens)
	shared.RespondJSON(h.logger, w, http.StatusOK, toAuthResponse(tokens))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	if _, appErr := h.authn.Authorize(r, adminFallback, ScopeRead); appErr != nil {
		shared.RespondError(h.logger, w, appErr)
		return
	}
	id, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		shared.RespondError(h.logger, w, shared.AsError(err, "failed to fetch user"))
		return
	}
	shared.RespondJSON(h.logger, w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, appErr := h.authn.Authorize(r, adminFallback, ScopeRead); appErr != nil {
		shared.RespondError(h.logger, w, appErr)
		return
	}

	afterID, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, page, err := h.service.ListUsers(r.Context(), afterID, limit)
	if err != nil {
		shared.RespondError(h.logger, w, shared.AsError(err, "failed to list users"))
		return
	}

	out := make([]userResponse, len(users))
	for i := range users {
		out[i] = toUserResponse(&users[i])
	}
	shared.RespondJSON(h.logger, w, http.StatusOK, map[string]any{
		"users": out,
		"page":  page,
	})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	payload, appErr := h.authn.Authorize(r, adminFallback, ScopeUpdate)
	if appErr != nil {
		shared.RespondError(h.logger, w, appErr)
		return
	}
	id, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	var params UpdateUserParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		shared.RespondError(h.logger, w, shared.NewError(shared.CodeValidationError, "invalid request body"))
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, params)
	if err != nil {
		h.logger.Error("update user failed",
			slog.Int64("user_id", id),
			slog.String("actor", payload.Username),
			slog.Any("error", err))
		shared.RespondError(h.logger, w, shared.AsError(err, "failed to update user"))
		return
	}
	shared.RespondJSON(h.logger, w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	payload, appErr := h.authn.Authorize(r, adminFallback, ScopeDelete)
	if appErr != nil {
		shared.RespondError(h.logger, w, appErr)
		return
	}
	id, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.service.DeleteUser(r.Context(), id)
	if err != nil {
		h.logger.Error("delete user failed",
			slog.Int64("user_id", id),
			slog.String("actor", payload.Username),
			slog.Any("error", err))
		shared.RespondError(h.logger, w, shared.AsError(err, "failed to delete user"))
		return
	}
	shared.RespondJSON(h.logger, w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(h.logger, w, shared.NewError(shared.CodeValidationError, "invalid user id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) setTokenCookies(w http.ResponseWriter, tokens *AuthTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.AccessName,
		Value:    tokens.AccessToken,
		Path:     "/",
		MaxAge:   int(h.cookies.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    tokens.RefreshToken,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.cookies.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func toUserResponse(u *User) userResponse {
	return userResponse{
		ID:          u.ID,
		Fullname:    u.Fullname,
		Username:    u.Username,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Role:        string(u.Role),
		Status:      string(u.Status),
	}
}

func toAuthResponse(tokens *AuthTokens) authResponse {
	return authResponse{
		User:         toUserResponse(tokens.User),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.AccessPayload.ExpiresAt,
	}
}
