package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cuemby/burrow/pkg/auth"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

type apiKeyCreateRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Scopes      []string   `json:"scopes,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// apiKeyCreateResponse carries the plaintext exactly once.
type apiKeyCreateResponse struct {
	ApiKey *types.ApiKey `json:"apiKey"`
	Key    string        `json:"key"`
}

func (s *Server) handleApiKeyCreate(w http.ResponseWriter, r *http.Request) {
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
	if err := s.authorizeUserAccess(r, scope, user.ID, types.PermUpdate); err != nil {
		writeError(w, err)
		return
	}

	var req apiKeyCreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "api key name is required"))
		return
	}

	plaintext, hash, err := auth.MintKey()
	if err != nil {
		writeError(w, err)
		return
	}

	keyID := uuid.NewString()
	if err := s.publishManagement(types.TopicApiKeys, projection.EvApiKeyCreated, projection.ApiKeyPayload{
		ID:          keyID,
		UserID:      user.ID,
		KeyHash:     hash,
		Name:        req.Name,
		Description: req.Description,
		Scopes:      req.Scopes,
		ExpiresAt:   req.ExpiresAt,
	}); err != nil {
		writeError(w, err)
		return
	}

	key, err := s.Projections.ApiKeyByID(keyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiKeyCreateResponse{ApiKey: key, Key: plaintext})
}

func (s *Server) handleApiKeyList(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, s.Projections.ApiKeysByUser(user.ID))
}

func (s *Server) handleApiKeyRevoke(w http.ResponseWriter, r *http.Request) {
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
	if err := s.authorizeUserAccess(r, scope, user.ID, types.PermUpdate); err != nil {
		writeError(w, err)
		return
	}

	keyID := chi.URLParam(r, "keyId")
	key, err := s.Projections.ApiKeyByID(keyID)
	if err != nil {
		writeError(w, err)
		return
	}
	if key.UserID != user.ID {
		writeError(w, errdefs.NotFound(errdefs.CodeApiKeyNotFound, "api key %s not found", keyID))
		return
	}
	if key.RevokedAt != nil {
		writeError(w, errdefs.Conflict(errdefs.CodeApiKeyAlreadyRevoked, "api key %s is already revoked", keyID))
		return
	}

	if err := s.publishManagement(types.TopicApiKeys, projection.EvApiKeyRevoked, projection.ApiKeyPayload{
		ID: keyID,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
