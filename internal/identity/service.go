package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-id/meridian/internal/shared"
	"github.com/meridian-id/meridian/internal/token"
)

// PermissionSource resolves the scope string embedded in access tokens.
type PermissionSource interface {
	PermissionString(ctx context.Context, userID int64) (string, error)
}

// TokenMetrics counts issued tokens by kind.
type TokenMetrics interface {
	TokenIssued(kind string)
}

// ServiceConfig carries token lifetimes and instance identity.
type ServiceConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	InstanceID      string
}

// Service wraps registration, login and account management rules.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	maker       *token.Maker
	permissions PermissionSource
	validate    *validator.Validate
	cfg         ServiceConfig
	metrics     TokenMetrics
}

// SetMetrics installs an issued-token counter.
func (s *Service) SetMetrics(m TokenMetrics) {
	s.metrics = m
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo RepositoryPort, maker *token.Maker, permissions PermissionSource, cfg ServiceConfig) *Service {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = "default-instance"
	}
	return &Service{
		logger:      logger,
		repo:        repo,
		maker:       maker,
		permissions: permissions,
		validate:    validator.New(),
		cfg:         cfg,
	}
}

// RegisterInput carries the mandatory registration fields. Field order
// matches the order missing fields are reported in.
type RegisterInput struct {
	Fullname    string `json:"fullname" validate:"required"`
	Password    string `json:"password" validate:"required"`
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

var registerFieldLabels = map[string]struct{ name, label string }{
	"Fullname":    {"fullname", "Fullname"},
	"Password":    {"password", "Password"},
	"Username":    {"username", "Username"},
	"Email":       {"email", "Email"},
	"PhoneNumber": {"phoneNumber", "Phone number"},
}

// AuthTokens bundles a user with a freshly minted token pair.
type AuthTokens struct {
	User          *User
	AccessToken   string
	RefreshToken  string
	AccessPayload *token.Payload
}

// Register validates the input, stores the account with a bcrypt password
// hash and mints an initial token pair. No storage write happens when a
// required field is missing.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthTokens, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, requiredFieldError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.Internal(err, "failed to hash password")
	}

	user, err := s.repo.Create(ctx, NewUser{
		Fullname:     input.Fullname,
		Username:     input.Username,
		Email:        input.Email,
		PhoneNumber:  input.PhoneNumber,
		PasswordHash: string(hash),
		Role:         token.RoleUser,
		Status:       StatusActive,
	})
	if err != nil {
		return nil, err
	}

	// A fresh account holds no grants yet; the scope string is empty.
	return s.mintTokens(user, "")
}

// Login authenticates email/password credentials and mints a token pair
// carrying the user's granted scopes.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.NewError(shared.CodeInvalidCredentials, "invalid email or password")
	}

	permission, err := s.permissions.PermissionString(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return s.mintTokens(user, permission)
}

// Refresh verifies a refresh token and rotates the token pair. The linked
// access token is a back-reference only; it may already be expired.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	payload, err := s.maker.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.logger.Warn("refresh token rejected", slog.Any("error", err))
		return nil, &shared.Error{
			Code:    shared.CodeAuthenticationError,
			Message: err.Error(),
			Status:  http.StatusInternalServerError,
		}
	}

	userID, err := strconv.ParseInt(payload.UserID, 10, 64)
	if err != nil {
		return nil, &shared.Error{
			Code:    shared.CodeAuthenticationError,
			Message: "refresh token verification failed: invalid subject",
			Status:  http.StatusInternalServerError,
		}
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	permission, err := s.permissions.PermissionString(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return s.mintTokens(user, permission)
}

// GetUser fetches an account by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateUser applies a partial update.
func (s *Service) UpdateUser(ctx context.Context, id int64, params UpdateUserParams) (*User, error) {
	return s.repo.Update(ctx, id, params)
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.Delete(ctx, id)
}

// ListUsers returns a cursor page of accounts.
func (s *Service) ListUsers(ctx context.Context, afterID int64, limit int) ([]User, shared.CursorPage, error) {
	if limit <= 0 {
		limit = 20
	}
	users, err := s.repo.List(ctx, afterID, limit+1)
	if err != nil {
		return nil, shared.CursorPage{}, err
	}
	fetched := len(users)
	if fetched > limit {
		users = users[:limit]
	}
	var lastID int64
	if len(users) > 0 {
		lastID = users[len(users)-1].ID
	}
	return users, shared.NewCursorPage(lastID, fetched, limit), nil
}

func (s *Service) mintTokens(user *User, permission string) (*AuthTokens, error) {
	username := user.Username
	if username == "" {
		username = "unknown"
	}
	role := user.Role
	if role == "" {
		role = token.RoleUser
	}

	accessToken, accessPayload, err := s.maker.CreateToken(token.CreateTokenParams{
		UserID:     strconv.FormatInt(user.ID, 10),
		Username:   username,
		Permission: permission,
		Role:       role,
		Duration:   s.cfg.AccessTokenTTL,
		InstanceID: s.cfg.InstanceID,
		RoleID:     string(role),
	})
	if err != nil {
		return nil, shared.Internal(err, "failed to create access token")
	}

	refreshToken, _, err := s.maker.CreateRefreshToken(token.CreateRefreshTokenParams{
		UserID:              strconv.FormatInt(user.ID, 10),
		Duration:            s.cfg.RefreshTokenTTL,
		LinkedAccessTokenID: accessPayload.ID,
	})
	if err != nil {
		return nil, shared.Internal(err, "failed to create refresh token")
	}

	if s.metrics != nil {
		s.metrics.TokenIssued("access")
		s.metrics.TokenIssued("refresh")
	}

	return &AuthTokens{
		User:          user,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessPayload: accessPayload,
	}, nil
}

// requiredFieldError maps the first failed validation into a
// REQUIRED_FIELD error naming the offending field.
func requiredFieldError(err error) *shared.Error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		field := fieldErrs[0].StructField()
		if meta, ok := registerFieldLabels[field]; ok {
			return shared.NewError(shared.CodeRequiredField, meta.label+" is required").
				WithDetails(map[string]any{"field": meta.name})
		}
		return shared.NewError(shared.CodeRequiredField, field+" is required").
			WithDetails(map[string]any{"field": field})
	}
	return shared.NewError(shared.CodeValidationError, "invalid registration input")
}
