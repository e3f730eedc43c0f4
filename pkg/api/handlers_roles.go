package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

// roleGrant is one entry of a role's permission bundle.
type roleGrant struct {
	resourceType types.ResourceType
	permissions  []types.Permission
	// tenantWide pins the grant to the tenant's own resourceId instead of
	// "all resources of that type".
	tenantWide bool
}

// builtinRoles maps role ids to the grants an assignment produces, all
// scoped to the enclosing tenant.
var builtinRoles = map[string][]roleGrant{
	"admin": {
		{resourceType: types.ResourceTenant, permissions: []types.Permission{types.PermAdmin}, tenantWide: true},
	},
	"publisher": {
		{resourceType: types.ResourceEvent, permissions: []types.Permission{types.PermCreate, types.PermRead}},
		{resourceType: types.ResourceTopic, permissions: []types.Permission{types.PermRead, types.PermList}},
	},
	"subscriber": {
		{resourceType: types.ResourceConsumer, permissions: []types.Permission{types.PermManage, types.PermRead, types.PermList, types.PermUpdate, types.PermDelete}},
		{resourceType: types.ResourceEvent, permissions: []types.Permission{types.PermRead}},
		{resourceType: types.ResourceTopic, permissions: []types.Permission{types.PermRead, types.PermList}},
	},
	"viewer": {
		{resourceType: types.ResourceTenant, permissions: []types.Permission{types.PermRead}, tenantWide: true},
		{resourceType: types.ResourceNamespace, permissions: []types.Permission{types.PermRead, types.PermList}},
		{resourceType: types.ResourceTopic, permissions: []types.Permission{types.PermRead, types.PermList}},
		{resourceType: types.ResourceEvent, permissions: []types.Permission{types.PermRead}},
	},
}

func (s *Server) handleRoleAssign(w http.ResponseWriter, r *http.Request) {
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

	roleID := chi.URLParam(r, "roleId")
	bundle, ok := builtinRoles[roleID]
	if !ok {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "unknown role %q", roleID))
		return
	}

	events := make([]managementEvent, 0, len(bundle))
	now := time.Now().UTC()
	for _, rg := range bundle {
		grant := types.PermissionGrant{
			ID:               uuid.NewString(),
			PrincipalID:      user.ID,
			PrincipalType:    types.PrincipalUser,
			ResourceType:     rg.resourceType,
			TenantResourceID: scope.Tenant.ResourceID,
			Permissions:      rg.permissions,
			GrantedAt:        now,
		}
		if rg.tenantWide {
			id := scope.Tenant.ResourceID
			grant.ResourceID = &id
		}
		events = append(events, managementEvent{
			Type:    projection.EvPermissionGranted,
			Payload: projection.GrantPayload{Grant: grant},
		})
	}
	if err := s.publishManagementBatch(types.TopicPermissions, events); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId": user.ID,
		"roleId": roleID,
		"grants": s.Projections.GrantsFor(user.ID, scope.Tenant.ResourceID, time.Now()),
	})
}

func (s *Server) handleRoleRemove(w http.ResponseWriter, r *http.Request) {
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

	roleID := chi.URLParam(r, "roleId")
	bundle, ok := builtinRoles[roleID]
	if !ok {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "unknown role %q", roleID))
		return
	}

	events := make([]managementEvent, 0, len(bundle))
	for _, rg := range bundle {
		revoke := projection.RevokePayload{
			PrincipalID:      user.ID,
			ResourceType:     rg.resourceType,
			TenantResourceID: scope.Tenant.ResourceID,
			Permissions:      rg.permissions,
		}
		if rg.tenantWide {
			id := scope.Tenant.ResourceID
			revoke.ResourceID = &id
		}
		events = append(events, managementEvent{
			Type:    projection.EvPermissionRevoked,
			Payload: revoke,
		})
	}
	if err := s.publishManagementBatch(types.TopicPermissions, events); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
