package projection

import (
	"encoding/json"
	"time"

	"github.com/cuemby/burrow/pkg/types"
)

// Control-plane event types. Every mutation of the management read models is
// one of these, published to a reserved topic and folded here.
const (
	EvTenantCreated      = "tenant.created"
	EvTenantUpdated      = "tenant.updated"
	EvTenantDeleted      = "tenant.deleted"
	EvNamespaceCreated   = "namespace.created"
	EvNamespaceUpdated   = "namespace.updated"
	EvNamespaceDeleted   = "namespace.deleted"
	EvUserCreated        = "user.created"
	EvUserUpdated        = "user.updated"
	EvUserStatusChanged  = "user.status.changed"
	EvUserPasswordChanged = "user.password.changed"
	EvUserTenantAssigned = "user.tenant.assigned"
	EvUserTenantRemoved  = "user.tenant.removed"
	EvUserDeleted        = "user.deleted"
	EvApiKeyCreated      = "apikey.created"
	EvApiKeyRevoked      = "apikey.revoked"
	EvPermissionGranted  = "permission.granted"
	EvPermissionRevoked  = "permission.revoked"
)

// ManagementEventTypes lists the event types registered on each reserved
// topic at bootstrap.
var ManagementEventTypes = map[string][]string{
	types.TopicTenants:     {EvTenantCreated, EvTenantUpdated, EvTenantDeleted},
	types.TopicNamespaces:  {EvNamespaceCreated, EvNamespaceUpdated, EvNamespaceDeleted},
	types.TopicUsers:       {EvUserCreated, EvUserUpdated, EvUserStatusChanged, EvUserPasswordChanged, EvUserTenantAssigned, EvUserTenantRemoved, EvUserDeleted},
	types.TopicApiKeys:     {EvApiKeyCreated, EvApiKeyRevoked},
	types.TopicPermissions: {EvPermissionGranted, EvPermissionRevoked},
}

// TenantPayload is the body of tenant.* events.
type TenantPayload struct {
	ResourceID string            `json:"resourceId"`
	Name       string            `json:"name,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (m *Manager) applyTenantEvent(ev *types.Event) {
	var p TenantPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ResourceID == "" {
		m.logger.Error().Str("event_id", ev.ID).Msg("malformed tenant event payload")
		return
	}

	switch ev.Type {
	case EvTenantCreated:
		m.tenants[p.ResourceID] = &types.Tenant{
			ResourceID: p.ResourceID,
			Name:       p.Name,
			Metadata:   p.Metadata,
			CreatedAt:  ev.Timestamp,
			UpdatedAt:  ev.Timestamp,
		}
	case EvTenantUpdated:
		t, ok := m.tenants[p.ResourceID]
		if !ok {
			return
		}
		if p.Name != "" {
			t.Name = p.Name
		}
		for k, v := range p.Metadata {
			if t.Metadata == nil {
				t.Metadata = make(map[string]string)
			}
			t.Metadata[k] = v
		}
		t.UpdatedAt = ev.Timestamp
	case EvTenantDeleted:
		if t, ok := m.tenants[p.ResourceID]; ok {
			at := ev.Timestamp
			t.DeletedAt = &at
			t.UpdatedAt = ev.Timestamp
		}
	}
}

// NamespacePayload is the body of namespace.* events.
type NamespacePayload struct {
	ResourceID       string            `json:"resourceId"`
	TenantResourceID string            `json:"tenantResourceId,omitempty"`
	Name             string            `json:"name,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

func (m *Manager) applyNamespaceEvent(ev *types.Event) {
	var p NamespacePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ResourceID == "" {
		m.logger.Error().Str("event_id", ev.ID).Msg("malformed namespace event payload")
		return
	}

	switch ev.Type {
	case EvNamespaceCreated:
		m.namespaces[p.ResourceID] = &types.Namespace{
			ResourceID:       p.ResourceID,
			TenantResourceID: p.TenantResourceID,
			Name:             p.Name,
			Metadata:         p.Metadata,
			CreatedAt:        ev.Timestamp,
			UpdatedAt:        ev.Timestamp,
		}
	case EvNamespaceUpdated:
		ns, ok := m.namespaces[p.ResourceID]
		if !ok {
			return
		}
		if p.Name != "" {
			ns.Name = p.Name
		}
		for k, v := range p.Metadata {
			if ns.Metadata == nil {
				ns.Metadata = make(map[string]string)
			}
			ns.Metadata[k] = v
		}
		ns.UpdatedAt = ev.Timestamp
	case EvNamespaceDeleted:
		if ns, ok := m.namespaces[p.ResourceID]; ok {
			at := ev.Timestamp
			ns.DeletedAt = &at
			ns.UpdatedAt = ev.Timestamp
		}
	}
}

// UserPayload is the body of user.* events.
type UserPayload struct {
	ID               string           `json:"id"`
	Email            string           `json:"email,omitempty"`
	PasswordHash     string           `json:"passwordHash,omitempty"`
	Status           types.UserStatus `json:"status,omitempty"`
	PrimaryTenantID  string           `json:"primaryTenantId,omitempty"`
	TenantResourceID string           `json:"tenantResourceId,omitempty"`
}

func (m *Manager) applyUserEvent(ev *types.Event) {
	var p UserPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ID == "" {
		m.logger.Error().Str("event_id", ev.ID).Msg("malformed user event payload")
		return
	}

	switch ev.Type {
	case EvUserCreated:
		status := p.Status
		if status == "" {
			status = types.UserStatusActive
		}
		m.users[p.ID] = &types.User{
			ID:              p.ID,
			Email:           p.Email,
			PasswordHash:    p.PasswordHash,
			Status:          status,
			PrimaryTenantID: p.PrimaryTenantID,
			CreatedAt:       ev.Timestamp,
			UpdatedAt:       ev.Timestamp,
		}
	case EvUserUpdated:
		u, ok := m.users[p.ID]
		if !ok {
			return
		}
		if p.Email != "" {
			u.Email = p.Email
		}
		if p.PrimaryTenantID != "" {
			u.PrimaryTenantID = p.PrimaryTenantID
		}
		u.UpdatedAt = ev.Timestamp
	case EvUserStatusChanged:
		if u, ok := m.users[p.ID]; ok && p.Status != "" {
			u.Status = p.Status
			u.UpdatedAt = ev.Timestamp
		}
	case EvUserPasswordChanged:
		if u, ok := m.users[p.ID]; ok && p.PasswordHash != "" {
			u.PasswordHash = p.PasswordHash
			u.UpdatedAt = ev.Timestamp
		}
	case EvUserTenantAssigned:
		if u, ok := m.users[p.ID]; ok && p.TenantResourceID != "" && !u.HasTenant(p.TenantResourceID) {
			u.Tenants = append(u.Tenants, p.TenantResourceID)
			u.UpdatedAt = ev.Timestamp
		}
	case EvUserTenantRemoved:
		if u, ok := m.users[p.ID]; ok {
			kept := u.Tenants[:0]
			for _, t := range u.Tenants {
				if t != p.TenantResourceID {
					kept = append(kept, t)
				}
			}
			u.Tenants = kept
			u.UpdatedAt = ev.Timestamp
		}
	case EvUserDeleted:
		if u, ok := m.users[p.ID]; ok {
			u.Status = types.UserStatusDeleted
			u.UpdatedAt = ev.Timestamp
		}
	}
}

// ApiKeyPayload is the body of apikey.* events.
type ApiKeyPayload struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId,omitempty"`
	KeyHash     string     `json:"keyHash,omitempty"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Scopes      []string   `json:"scopes,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

func (m *Manager) applyApiKeyEvent(ev *types.Event) {
	var p ApiKeyPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ID == "" {
		m.logger.Error().Str("event_id", ev.ID).Msg("malformed api key event payload")
		return
	}

	switch ev.Type {
	case EvApiKeyCreated:
		key := &types.ApiKey{
			ID:          p.ID,
			UserID:      p.UserID,
			KeyHash:     p.KeyHash,
			Name:        p.Name,
			Description: p.Description,
			Scopes:      p.Scopes,
			CreatedAt:   ev.Timestamp,
			ExpiresAt:   p.ExpiresAt,
		}
		m.apiKeys[p.ID] = key
		if p.KeyHash != "" {
			m.apiKeyHash[p.KeyHash] = p.ID
		}
	case EvApiKeyRevoked:
		if key, ok := m.apiKeys[p.ID]; ok && key.RevokedAt == nil {
			at := ev.Timestamp
			key.RevokedAt = &at
		}
	}
}

// GrantPayload is the body of permission.granted events. Revokes reuse the
// same shape: (principal, resource, permission set).
type GrantPayload struct {
	Grant types.PermissionGrant `json:"grant"`
}

// RevokePayload is the body of permission.revoked events.
type RevokePayload struct {
	PrincipalID      string             `json:"principalId"`
	ResourceType     types.ResourceType `json:"resourceType"`
	ResourceID       *string            `json:"resourceId,omitempty"`
	TenantResourceID string             `json:"tenantResourceId"`
	Permissions      []types.Permission `json:"permissions"`
}

func (m *Manager) applyPermissionEvent(ev *types.Event) {
	switch ev.Type {
	case EvPermissionGranted:
		var p GrantPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.Grant.PrincipalID == "" {
			m.logger.Error().Str("event_id", ev.ID).Msg("malformed grant payload")
			return
		}
		g := p.Grant
		if g.GrantedAt.IsZero() {
			g.GrantedAt = ev.Timestamp
		}
		m.grants = append(m.grants, &g)

	case EvPermissionRevoked:
		var p RevokePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.PrincipalID == "" {
			m.logger.Error().Str("event_id", ev.ID).Msg("malformed revoke payload")
			return
		}
		m.revokeLocked(p)
	}
}

// revokeLocked removes the named permission subset from every overlapping
// grant. Grants left with an empty permission set are dropped entirely.
func (m *Manager) revokeLocked(p RevokePayload) {
	revoked := make(map[types.Permission]bool, len(p.Permissions))
	for _, perm := range p.Permissions {
		revoked[perm] = true
	}

	kept := m.grants[:0]
	for _, g := range m.grants {
		if g.PrincipalID != p.PrincipalID ||
			g.TenantResourceID != p.TenantResourceID ||
			g.ResourceType != p.ResourceType ||
			!resourceIDMatches(g.ResourceID, p.ResourceID) {
			kept = append(kept, g)
			continue
		}

		var remaining []types.Permission
		for _, perm := range g.Permissions {
			if !revoked[perm] {
				remaining = append(remaining, perm)
			}
		}
		if len(remaining) > 0 {
			g.Permissions = remaining
			kept = append(kept, g)
		}
	}
	// Zero the tail so dropped grants do not linger in the backing array.
	for i := len(kept); i < len(m.grants); i++ {
		m.grants[i] = nil
	}
	m.grants = kept
}

func resourceIDMatches(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
