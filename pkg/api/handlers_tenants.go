package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

type tenantRequest struct {
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleTenantCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := s.systemScope()
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermCreate, types.ResourceTenant); err != nil {
		writeError(w, err)
		return
	}

	var req tenantRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateResourceName(req.Name); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.Projections.TenantByName(req.Name); err == nil {
		writeError(w, errdefs.Conflict(errdefs.CodeTenantExists, "tenant %q already exists", req.Name))
		return
	}

	resourceID := uuid.NewString()
	if err := s.publishManagement(types.TopicTenants, projection.EvTenantCreated, projection.TenantPayload{
		ResourceID: resourceID,
		Name:       req.Name,
		Metadata:   req.Metadata,
	}); err != nil {
		writeError(w, err)
		return
	}

	// The creator administers the tenant they just created.
	principal := principalFrom(r.Context())
	if err := s.publishManagement(types.TopicPermissions, projection.EvPermissionGranted, projection.GrantPayload{
		Grant: types.PermissionGrant{
			ID:               uuid.NewString(),
			PrincipalID:      principal.UserID,
			PrincipalType:    types.PrincipalUser,
			ResourceType:     types.ResourceTenant,
			ResourceID:       &resourceID,
			TenantResourceID: resourceID,
			Permissions:      []types.Permission{types.PermAdmin},
		},
	}); err != nil {
		writeError(w, err)
		return
	}

	tenant, err := s.Projections.TenantByID(resourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tenant)
}

func (s *Server) handleTenantList(w http.ResponseWriter, r *http.Request) {
	scope, err := s.systemScope()
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermList, types.ResourceTenant); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Projections.Tenants())
}

func (s *Server) handleTenantGet(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermRead, types.ResourceTenant); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scope.Tenant)
}

func (s *Server) handleTenantUpdate(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermUpdate, types.ResourceTenant); err != nil {
		writeError(w, err)
		return
	}

	var req tenantRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name != "" && req.Name != scope.Tenant.Name {
		if err := validateResourceName(req.Name); err != nil {
			writeError(w, err)
			return
		}
		if _, err := s.Projections.TenantByName(req.Name); err == nil {
			writeError(w, errdefs.Conflict(errdefs.CodeTenantExists, "tenant %q already exists", req.Name))
			return
		}
	}

	if err := s.publishManagement(types.TopicTenants, projection.EvTenantUpdated, projection.TenantPayload{
		ResourceID: scope.Tenant.ResourceID,
		Name:       req.Name,
		Metadata:   req.Metadata,
	}); err != nil {
		writeError(w, err)
		return
	}

	tenant, err := s.Projections.TenantByID(scope.Tenant.ResourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (s *Server) handleTenantDelete(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermDelete, types.ResourceTenant); err != nil {
		writeError(w, err)
		return
	}
	if scope.Tenant.Name == types.SystemTenant {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "the system tenant cannot be deleted"))
		return
	}

	if err := s.publishManagement(types.TopicTenants, projection.EvTenantDeleted, projection.TenantPayload{
		ResourceID: scope.Tenant.ResourceID,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
