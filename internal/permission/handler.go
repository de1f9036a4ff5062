package permission

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-id/meridian/internal/authn"
	"github.com/meridian-id/meridian/internal/shared"
	"github.com/meridian-id/meridian/internal/token"
)

// Grant management scopes. Admins pass the role gate even without explicit
// grants.
const (
	ScopeRead   = "read:userPermission"
	ScopeCreate = "create:userPermission"
	ScopeDelete = "delete:userPermission"
)

var adminFallback = map[token.Role]bool{token.RoleAdmin: true}

// Handler wires HTTP endpoints for permission management.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authn   *authn.Authenticator
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authenticator *authn.Authenticator) *Handler {
	return &Handler{logger: logger, service: service, authn: authenticator}
}

// MountRoutes registers permission routes under /users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/permissions", h.listUserPermissions)
	r.Post("/{id}/permissions", h.assignPermissions)
	r.Delete("/{id}/permissions", h.deletePermissions)
}

type permissionIDsRequest struct {
	PermissionIDs []string `json:"permissionIds"`
}

type userPermissionResponse struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"userId"`
	PermissionID string `json:"permissionId"`
	CreatedBy    string `json:"createdBy"`
}

func (h *Handler) listUserPermissions(w http.ResponseWriter, r *http.Request) {
	payload, appErr := h.authn.Authorize(r, adminFallback, ScopeRead)
	if appErr != nil {
		shared.RespondError(h.logger, w, appErr)
		return
	}

	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	grants, err := h.service.GetUserPermissions(r.Context(), userID)
	if err != nil {
		h.logger.Error("list user permissions failed",
			slog.Int64("user_id", userID),
			slog.String("actor", payload.Username),
			slog.Any("error", err))
		shared.RespondError(h.logger, w, shared.AsError(err, "failed to list user permissions"))
		return
	}
	shared.RespondJSON(h.logger, w, http.StatusOK, toResponses(grants))
}

func (h *Handler) assignPermissions(w http.ResponseWriter, r *http.Request) {
	payload, appErr := h.authn.Authorize(r, adminFallback, ScopeCreate)
	if appErr != nil {
		shared.RespondError(h.logger, w, appErr)
		return
	}

	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	var req permissionIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(h.logger, w, shared.NewError(shared.CodeValidationError, "invalid request body"))
		return
	}
	if len(req.PermissionIDs) == 0 {
		shared.RespondError(h.logger, w, shared.NewError(shared.CodeRequiredField, "permissionIds is required").
			WithDetails(map[string]any{"field": "permissionIds"}))
		return
	}

	granted, err := h.service.AssignPermissionsToUser(r.Context(), userID, payload.Username, req.PermissionIDs)
	if err != nil {
		h.logger.Error("assign permissions failed",
			slog.Int64("user_id", userID),
			slog.String("actor", payload.Username),
			slog.Any("error", err))
		shared.RespondError(h.logger, w, shared.AsError(err, "failed to assign permissions"))
		return
	}
	shared.RespondJSON(h.logger, w, http.StatusCreated, toResponses(granted))
}

func (h *Handler) deletePermissions(w http.ResponseWriter, r *http.Request) {
	payload, appErr := h.authn.Authorize(r, adminFallback, ScopeDelete)
	if appErr != nil {
		shared.RespondError(h.logger, w, appErr)
		return
	}

	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	var req permissionIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(h.logger, w, shared.NewError(shared.CodeValidationError, "invalid request body"))
		return
	}

	deleted, err := h.service.DeleteUserPermissions(r.Context(), userID, req.PermissionIDs)
	if err != nil {
		h.logger.Error("delete permissions failed",
			slog.Int64("user_id", userID),
			slog.String("actor", payload.Username),
			slog.Any("error", err))
		shared.RespondError(h.logger, w, shared.AsError(err, "failed to delete permissions"))
		return
	}
	shared.RespondJSON(h.logger, w, http.StatusOK, toResponses(deleted))
}

func (h *Handler) userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(h.logger, w, shared.NewError(shared.CodeValidationError, "invalid user id"))
		return 0, false
	}
	return userID, true
}

func toResponses(grants []UserPermission) []userPermissionResponse {
	out := make([]userPermissionResponse, len(grants))
	for i, g := range grants {
		out[i] = userPermissionResponse{
			ID:           g.ID,
			UserID:       g.UserID,
			PermissionID: g.PermissionID,
			CreatedBy:    g.CreatedBy,
		}
	}
	return out
}
