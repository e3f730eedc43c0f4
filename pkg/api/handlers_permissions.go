package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

type grantRequest struct {
	ResourceType        types.ResourceType `json:"resourceType"`
	ResourceID          *string            `json:"resourceId,omitempty"`
	NamespaceResourceID *string            `json:"namespaceResourceId,omitempty"`
	TopicResourceID     *string            `json:"topicResourceId,omitempty"`
	Permissions         []types.Permission `json:"permissions"`
	Constraints         *types.Constraints `json:"constraints,omitempty"`
	ExpiresAt           *time.Time         `json:"expiresAt,omitempty"`
}

type revokeRequest struct {
	ResourceType types.ResourceType `json:"resourceType"`
	ResourceID   *string            `json:"resourceId,omitempty"`
	Permissions  []types.Permission `json:"permissions"`
}

func validResourceType(rt types.ResourceType) bool {
	switch rt {
	case types.ResourceTenant, types.ResourceNamespace, types.ResourceTopic,
		types.ResourceEvent, types.ResourceConsumer, types.ResourceUser:
		return true
	}
	return false
}

func (s *Server) handlePermissionList(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, s.Projections.GrantsFor(user.ID, scope.Tenant.ResourceID, time.Now()))
}

func (s *Server) handlePermissionGrant(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermPermissionGrant, types.ResourceTenant); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.tenantUser(r, scope.Tenant.ResourceID)
	if err != nil {
		writeError(w, err)
		return
	}

	var req grantRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !validResourceType(req.ResourceType) {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "invalid resource type %q", req.ResourceType))
		return
	}
	if len(req.Permissions) == 0 {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "at least one permission is required"))
		return
	}

	grant := types.PermissionGrant{
		ID:                  uuid.NewString(),
		PrincipalID:         user.ID,
		PrincipalType:       types.PrincipalUser,
		ResourceType:        req.ResourceType,
		ResourceID:          req.ResourceID,
		TenantResourceID:    scope.Tenant.ResourceID,
		NamespaceResourceID: req.NamespaceResourceID,
		TopicResourceID:     req.TopicResourceID,
		Permissions:         req.Permissions,
		Constraints:         req.Constraints,
		GrantedAt:           time.Now().UTC(),
		ExpiresAt:           req.ExpiresAt,
	}
	if err := s.publishManagement(types.TopicPermissions, projection.EvPermissionGranted, projection.GrantPayload{
		Grant: grant,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (s *Server) handlePermissionRevoke(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermPermissionRevoke, types.ResourceTenant); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.tenantUser(r, scope.Tenant.ResourceID)
	if err != nil {
		writeError(w, err)
		return
	}

	var req revokeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !validResourceType(req.ResourceType) {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "invalid resource type %q", req.ResourceType))
		return
	}
	if len(req.Permissions) == 0 {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "at least one permission is required"))
		return
	}

	if err := s.publishManagement(types.TopicPermissions, projection.EvPermissionRevoked, projection.RevokePayload{
		PrincipalID:      user.ID,
		ResourceType:     req.ResourceType,
		ResourceID:       req.ResourceID,
		TenantResourceID: scope.Tenant.ResourceID,
		Permissions:      req.Permissions,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
