package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/meridian-id/meridian/testing"

	"github.com/meridian-id/meridian/internal/app"
	"github.com/meridian-id/meridian/internal/authn"
	"github.com/meridian-id/meridian/internal/identity"
	"github.com/meridian-id/meridian/internal/permission"
	"github.com/meridian-id/meridian/internal/shared"
	"github.com/meridian-id/meridian/internal/token"
)

type userStore struct {
	users  map[int64]*identity.User
	nextID int64
}

func newUserStore() *userStore {
	return &userStore{users: make(map[int64]*identity.User)}
}

func (s *userStore) Create(ctx context.Context, user identity.NewUser) (*identity.User, error) {
	s.nextID++
	now := time.Now()
	u := &identity.User{
		ID:           s.nextID,
		Fullname:     user.Fullname,
		Username:     user.Username,
		Email:        user.Email,
		PhoneNumber:  user.PhoneNumber,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		Status:       user.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*identity.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, shared.NewError(shared.CodeNotFound, "user not found").WithStatus(http.StatusNotFound)
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, shared.NewError(shared.CodeNotFound, "user not found").WithStatus(http.StatusNotFound)
}

func (s *userStore) Update(ctx context.Context, id int64, params identity.UpdateUserParams) (*identity.User, error) {
	return s.GetByID(ctx, id)
}

func (s *userStore) Delete(ctx context.Context, id int64) (*identity.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	delete(s.users, id)
	return u, nil
}

func (s *userStore) List(ctx context.Context, afterID int64, limit int) ([]identity.User, error) {
	var out []identity.User
	for id := afterID + 1; id <= s.nextID && len(out) < limit; id++ {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

type grantStore struct {
	catalog map[string]permission.Permission
	grants  []permission.UserPermission
	nextID  int64
}

func newGrantStore() *grantStore {
	return &grantStore{catalog: make(map[string]permission.Permission)}
}

func (s *grantStore) GetByIDs(ctx context.Context, ids []string) ([]permission.Permission, error) {
	var out []permission.Permission
	for _, id := range ids {
		if p, ok := s.catalog[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *grantStore) GetUserPermissions(ctx context.Context, userID int64) ([]permission.UserPermission, error) {
	var out []permission.UserPermission
	for _, g := range s.grants {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *grantStore) DeleteUserPermissions(ctx context.Context, userID int64, ids []string) ([]permission.UserPermission, error) {
	keep := s.grants[:0]
	var deleted []permission.UserPermission
	for _, g := range s.grants {
		matched := false
		if g.UserID == userID {
			for _, id := range ids {
				if g.PermissionID == id {
					matched = true
					break
				}
			}
		}
		if matched {
			deleted = append(deleted, g)
		} else {
			keep = append(keep, g)
		}
	}
	s.grants = keep
	if len(deleted) == 0 {
		return nil, shared.NewError(shared.CodeNoData, "no data deleted")
	}
	return deleted, nil
}

func (s *grantStore) WithTx(ctx context.Context, fn func(context.Context, permission.TxRepository) error) error {
	return fn(ctx, s)
}

func (s *grantStore) CreateMany(ctx context.Context, perms []permission.NewPermission) ([]permission.Permission, error) {
	now := time.Now()
	var created []permission.Permission
	for _, p := range perms {
		row := permission.Permission{ID: p.ID, Action: p.Action, ResourceName: p.ResourceName, CreatedAt: now, UpdatedAt: now}
		s.catalog[p.ID] = row
		created = append(created, row)
	}
	return created, nil
}

func (s *grantStore) CreateUserPermissions(ctx context.Context, grants []permission.NewUserPermission) ([]permission.UserPermission, error) {
	now := time.Now()
	var created []permission.UserPermission
	for _, g := range grants {
		s.nextID++
		row := permission.UserPermission{
			ID:           s.nextID,
			UserID:       g.UserID,
			PermissionID: g.PermissionID,
			CreatedBy:    g.CreatedBy,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.grants = append(s.grants, row)
		created = append(created, row)
	}
	return created, nil
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type authData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID int64 `json:"id"`
	} `json:"user"`
}

func newTestRouter(t *testing.T, users *userStore, grants *grantStore) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	maker, err := token.NewMaker("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	authenticator := authn.New(maker, "")

	permissionService := permission.NewService(logger, grants, nil, nil)
	permissionHandler := permission.NewHandler(logger, permissionService, authenticator)

	identityService := identity.NewService(logger, users, maker, permissionService, identity.ServiceConfig{
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	identityHandler := identity.NewHandler(logger, identityService, authenticator, identity.CookieConfig{})

	return app.NewRouter(app.RouterParams{
		Logger:            logger,
		IdentityHandler:   identityHandler,
		PermissionHandler: permissionHandler,
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, bearer string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr, env
}

func TestRegisterLoginGrantFlow(t *testing.T) {
	users := newUserStore()
	grants := newGrantStore()
	router := newTestRouter(t, users, grants)

	// Register a regular account.
	rr, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"fullname":    "Ada Lovelace",
		"password":    "s3cret-password",
		"username":    "ada",
		"email":       "ada@example.com",
		"phoneNumber": "+62811111111",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.True(t, env.OK)

	var registered authData
	require.NoError(t, json.Unmarshal(env.Data, &registered))
	require.NotEmpty(t, registered.AccessToken)

	// A fresh user with no grants cannot manage permissions.
	rr, env = doJSON(t, router, http.MethodPost, "/api/v1/users/1/permissions", registered.AccessToken,
		map[string][]string{"permissionIds": {"read:userPermission"}})
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "PERMISSION_DENIED", env.Error.Code)

	// Seed an admin directly and log in.
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	_, err = users.Create(context.Background(), identity.NewUser{
		Fullname:     "Administrator",
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		Role:         token.RoleAdmin,
		Status:       identity.StatusActive,
	})
	require.NoError(t, err)

	rr, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "admin@example.com",
		"password": "admin123",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var admin authData
	require.NoError(t, json.Unmarshal(env.Data, &admin))

	// Admin role passes the gate without explicit grants.
	rr, env = doJSON(t, router, http.MethodPost, "/api/v1/users/1/permissions", admin.AccessToken,
		map[string][]string{"permissionIds": {"read:userPermission"}})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.True(t, env.OK)

	// Refreshing the user's pair picks up the new grant.
	rr, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refreshToken": registered.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var refreshed authData
	require.NoError(t, json.Unmarshal(env.Data, &refreshed))

	rr, env = doJSON(t, router, http.MethodGet, "/api/v1/users/1/permissions", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, env.OK)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	router := newTestRouter(t, newUserStore(), newGrantStore())

	rr, env := doJSON(t, router, http.MethodGet, "/api/v1/users/1/permissions", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)
	require.Equal(t, "request unauthorized: failed to retrieve token", env.Error.Message)
}
