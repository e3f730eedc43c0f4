package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cuemby/burrow/pkg/auth"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

type userCreateRequest struct {
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Status   types.UserStatus `json:"status,omitempty"`
}

type userUpdateRequest struct {
	Email  string           `json:"email,omitempty"`
	Status types.UserStatus `json:"status,omitempty"`
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermCreate, types.ResourceUser); err != nil {
		writeError(w, err)
		return
	}

	var req userCreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "invalid email %q", req.Email))
		return
	}
	if len(req.Password) < 8 {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "password must be at least 8 characters"))
		return
	}
	if _, err := s.Projections.UserByEmail(req.Email); err == nil {
		writeError(w, errdefs.Conflict(errdefs.CodeUserExists, "user %q already exists", req.Email))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := uuid.NewString()
	status := req.Status
	if status == "" {
		status = types.UserStatusActive
	}
	err = s.publishManagementBatch(types.TopicUsers, []managementEvent{
		{Type: projection.EvUserCreated, Payload: projection.UserPayload{
			ID:              userID,
			Email:           req.Email,
			PasswordHash:    hash,
			Status:          status,
			PrimaryTenantID: scope.Tenant.ResourceID,
		}},
		{Type: projection.EvUserTenantAssigned, Payload: projection.UserPayload{
			ID:               userID,
			TenantResourceID: scope.Tenant.ResourceID,
		}},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := s.Projections.UserByID(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermList, types.ResourceUser); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Projections.UsersByTenant(scope.Tenant.ResourceID))
}

// tenantUser loads the addressed user and rejects ids outside the tenant.
func (s *Server) tenantUser(r *http.Request, tenantResourceID string) (*types.User, error) {
	id := chi.URLParam(r, "userId")
	user, err := s.Projections.UserByID(id)
	if err != nil {
		return nil, err
	}
	if !user.HasTenant(tenantResourceID) && user.PrimaryTenantID != tenantResourceID {
		return nil, errdefs.NotFound(errdefs.CodeUserNotFound, "user %s not found", id)
	}
	return user, nil
}

// authorizeUserAccess lets a user act on their own record; anyone else needs
// the given permission on USER within the tenant.
func (s *Server) authorizeUserAccess(r *http.Request, scope *projection.Scope, targetUserID string, perm types.Permission) error {
	if p := principalFrom(r.Context()); p != nil && p.UserID == targetUserID {
		return nil
	}
	_, err := s.authorize(r, scope, perm, types.ResourceUser)
	return err
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := s.tenantUser(r, scope.Tenant.ResourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.authorizeUserAccess(r, scope, user.ID, types.PermRead); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermUpdate, types.ResourceUser); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.tenantUser(r, scope.Tenant.ResourceID)
	if err != nil {
		writeError(w, err)
		return
	}

	var req userUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var events []managementEvent
	if req.Email != "" && req.Email != user.Email {
		if _, err := s.Projections.UserByEmail(req.Email); err == nil {
			writeError(w, errdefs.Conflict(errdefs.CodeUserExists, "user %q already exists", req.Email))
			return
		}
		events = append(events, managementEvent{Type: projection.EvUserUpdated, Payload: projection.UserPayload{
			ID:    user.ID,
			Email: req.Email,
		}})
	}
	if req.Status != "" && req.Status != user.Status {
		events = append(events, managementEvent{Type: projection.EvUserStatusChanged, Payload: projection.UserPayload{
			ID:     user.ID,
			Status: req.Status,
		}})
	}
	if len(events) > 0 {
		if err := s.publishManagementBatch(types.TopicUsers, events); err != nil {
			writeError(w, err)
			return
		}
	}

	updated, err := s.Projections.UserByID(user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermDelete, types.ResourceUser); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.tenantUser(r, scope.Tenant.ResourceID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.publishManagement(types.TopicUsers, projection.EvUserDeleted, projection.UserPayload{
		ID: user.ID,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
