package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

type namespaceRequest struct {
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleNamespaceCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermCreate, types.ResourceNamespace); err != nil {
		writeError(w, err)
		return
	}

	var req namespaceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateResourceName(req.Name); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.Projections.NamespaceByName(scope.Tenant.ResourceID, req.Name); err == nil {
		writeError(w, errdefs.Conflict(errdefs.CodeNamespaceExists, "namespace %q already exists", req.Name))
		return
	}

	resourceID := uuid.NewString()
	if err := s.publishManagement(types.TopicNamespaces, projection.EvNamespaceCreated, projection.NamespacePayload{
		ResourceID:       resourceID,
		TenantResourceID: scope.Tenant.ResourceID,
		Name:             req.Name,
		Metadata:         req.Metadata,
	}); err != nil {
		writeError(w, err)
		return
	}

	ns, err := s.Projections.NamespaceByName(scope.Tenant.ResourceID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ns)
}

func (s *Server) handleNamespaceList(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermList, types.ResourceNamespace); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Projections.Namespaces(scope.Tenant.ResourceID))
}

func (s *Server) handleNamespaceGet(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermRead, types.ResourceNamespace); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scope.Namespace)
}

func (s *Server) handleNamespaceUpdate(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermUpdate, types.ResourceNamespace); err != nil {
		writeError(w, err)
		return
	}

	var req namespaceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name != "" && req.Name != scope.Namespace.Name {
		if err := validateResourceName(req.Name); err != nil {
			writeError(w, err)
			return
		}
		if _, err := s.Projections.NamespaceByName(scope.Tenant.ResourceID, req.Name); err == nil {
			writeError(w, errdefs.Conflict(errdefs.CodeNamespaceExists, "namespace %q already exists", req.Name))
			return
		}
	}

	if err := s.publishManagement(types.TopicNamespaces, projection.EvNamespaceUpdated, projection.NamespacePayload{
		ResourceID: scope.Namespace.ResourceID,
		Name:       req.Name,
		Metadata:   req.Metadata,
	}); err != nil {
		writeError(w, err)
		return
	}

	name := scope.Namespace.Name
	if req.Name != "" {
		name = req.Name
	}
	ns, err := s.Projections.NamespaceByName(scope.Tenant.ResourceID, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (s *Server) handleNamespaceDelete(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermDelete, types.ResourceNamespace); err != nil {
		writeError(w, err)
		return
	}

	if err := s.publishManagement(types.TopicNamespaces, projection.EvNamespaceDeleted, projection.NamespacePayload{
		ResourceID: scope.Namespace.ResourceID,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
