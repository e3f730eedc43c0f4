package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cuemby/burrow/pkg/auth"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt string        `json:"expiresAt"`
	User      *types.User   `json:"user"`
	Session   *auth.Session `json:"session"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.Authn.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := s.Projections.UserByID(sess.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "sessionId",
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		User:      user,
		Session:   sess,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		if c, err := r.Cookie("sessionId"); err == nil {
			token = c.Value
		}
	}
	if token != "" {
		s.Authn.Logout(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   "sessionId",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	if principal == nil {
		writeError(w, errdefs.Unauthorized("missing credentials"))
		return
	}

	var req passwordChangeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "password must be at least 8 characters"))
		return
	}

	user, err := s.Projections.UserByID(principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		writeError(w, errdefs.New(errdefs.KindUnauthorized, errdefs.CodeInvalidCredentials, "invalid credentials"))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.publishManagement(types.TopicUsers, projection.EvUserPasswordChanged, projection.UserPayload{
		ID:           user.ID,
		PasswordHash: hash,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuthTenants(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	if principal == nil {
		writeError(w, errdefs.Unauthorized("missing credentials"))
		return
	}
	user, err := s.Projections.UserByID(principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	seen := map[string]bool{}
	var out []*types.Tenant
	ids := user.Tenants
	if user.PrimaryTenantID != "" {
		ids = append([]string{user.PrimaryTenantID}, ids...)
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if t, err := s.Projections.TenantByID(id); err == nil && t.DeletedAt == nil {
			out = append(out, t)
		}
	}
	if out == nil {
		out = []*types.Tenant{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSwitchTenant(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	token := sessionTokenFrom(r.Context())
	if principal == nil {
		writeError(w, errdefs.Unauthorized("missing credentials"))
		return
	}
	if token == "" {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidRequest, "switch-tenant requires a session credential"))
		return
	}

	tenant, err := s.Projections.TenantByName(chi.URLParam(r, "tenant"))
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := s.Projections.UserByID(principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !user.HasTenant(tenant.ResourceID) && user.PrimaryTenantID != tenant.ResourceID {
		writeError(w, errdefs.Forbidden("user is not a member of tenant %s", tenant.Name))
		return
	}

	sess, err := s.Authn.SwitchTenant(token, tenant.ResourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant":  tenant,
		"session": sess,
	})
}
