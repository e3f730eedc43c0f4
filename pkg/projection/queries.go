package projection

import (
	"sort"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
)

// Lookups return copies: the read models are mutated in place under the
// write lock, so handing out interior pointers would race with folds.

// TenantByID returns the tenant with the given resourceId, deleted or not.
func (m *Manager) TenantByID(resourceID string) (*types.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[resourceID]
	if !ok {
		return nil, errdefs.NotFound(errdefs.CodeTenantNotFound, "tenant %s not found", resourceID)
	}
	cp := *t
	return &cp, nil
}

// TenantByName returns the active tenant with the given name.
func (m *Manager) TenantByName(name string) (*types.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tenants {
		if t.Name == name && t.DeletedAt == nil {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errdefs.NotFound(errdefs.CodeTenantNotFound, "tenant %q not found", name)
}

// Tenants returns all active tenants sorted by name.
func (m *Manager) Tenants() []*types.Tenant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Tenant
	for _, t := range m.tenants {
		if t.DeletedAt == nil {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NamespaceByName returns the active namespace with the given name inside a
// tenant.
func (m *Manager) NamespaceByName(tenantResourceID, name string) (*types.Namespace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ns := range m.namespaces {
		if ns.TenantResourceID == tenantResourceID && ns.Name == name && ns.DeletedAt == nil {
			cp := *ns
			return &cp, nil
		}
	}
	return nil, errdefs.NotFound(errdefs.CodeNamespaceNotFound, "namespace %q not found", name)
}

// Namespaces returns a tenant's active namespaces sorted by name.
func (m *Manager) Namespaces(tenantResourceID string) []*types.Namespace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Namespace
	for _, ns := range m.namespaces {
		if ns.TenantResourceID == tenantResourceID && ns.DeletedAt == nil {
			cp := *ns
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// UserByID returns the user with the given id regardless of status.
func (m *Manager) UserByID(id string) (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errdefs.NotFound(errdefs.CodeUserNotFound, "user %s not found", id)
	}
	cp := *u
	cp.Tenants = append([]string(nil), u.Tenants...)
	return &cp, nil
}

// UserByEmail returns the non-deleted user with the given email.
func (m *Manager) UserByEmail(email string) (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email && u.Status != types.UserStatusDeleted {
			cp := *u
			cp.Tenants = append([]string(nil), u.Tenants...)
			return &cp, nil
		}
	}
	return nil, errdefs.NotFound(errdefs.CodeUserNotFound, "user %q not found", email)
}

// UsersByTenant returns non-deleted users associated with the tenant.
func (m *Manager) UsersByTenant(tenantResourceID string) []*types.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.User
	for _, u := range m.users {
		if u.Status == types.UserStatusDeleted {
			continue
		}
		if u.HasTenant(tenantResourceID) || u.PrimaryTenantID == tenantResourceID {
			cp := *u
			cp.Tenants = append([]string(nil), u.Tenants...)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// ApiKeyByID returns an API key by id.
func (m *Manager) ApiKeyByID(id string) (*types.ApiKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.apiKeys[id]
	if !ok {
		return nil, errdefs.NotFound(errdefs.CodeApiKeyNotFound, "api key %s not found", id)
	}
	cp := *k
	return &cp, nil
}

// ApiKeyByHash returns an API key by the SHA-256 hash of its plaintext.
func (m *Manager) ApiKeyByHash(keyHash string) (*types.ApiKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.apiKeyHash[keyHash]
	if !ok {
		return nil, errdefs.NotFound(errdefs.CodeApiKeyNotFound, "api key not found")
	}
	cp := *m.apiKeys[id]
	return &cp, nil
}

// ApiKeysByUser returns a user's API keys sorted by creation time.
func (m *Manager) ApiKeysByUser(userID string) []*types.ApiKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.ApiKey
	for _, k := range m.apiKeys {
		if k.UserID == userID {
			cp := *k
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// TouchApiKey records a use of the key. lastUsedAt is advisory and kept in
// memory only; it is not an event.
func (m *Manager) TouchApiKey(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.apiKeys[id]; ok {
		k.LastUsedAt = &at
	}
}

// GrantsFor returns the principal's non-expired grants scoped to the tenant.
func (m *Manager) GrantsFor(principalID, tenantResourceID string, now time.Time) []*types.PermissionGrant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.PermissionGrant
	for _, g := range m.grants {
		if g.PrincipalID != principalID || g.TenantResourceID != tenantResourceID {
			continue
		}
		if g.Expired(now) {
			continue
		}
		cp := *g
		cp.Permissions = append([]types.Permission(nil), g.Permissions...)
		out = append(out, &cp)
	}
	return out
}

// HasTenantEvents reports whether any tenant with the given name has been
// projected, deleted or not. Bootstrap uses it for idempotence.
func (m *Manager) HasTenantEvents(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tenants {
		if t.Name == name {
			return true
		}
	}
	return false
}

// HasNamespaceEvents reports whether a namespace with the given name exists
// under the tenant, deleted or not.
func (m *Manager) HasNamespaceEvents(tenantResourceID, name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ns := range m.namespaces {
		if ns.TenantResourceID == tenantResourceID && ns.Name == name {
			return true
		}
	}
	return false
}

// HasActiveAdmin reports whether any active user holds ADMIN on the tenant.
func (m *Manager) HasActiveAdmin(tenantResourceID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	for _, g := range m.grants {
		if g.TenantResourceID != tenantResourceID || g.Expired(now) || !g.Has(types.PermAdmin) {
			continue
		}
		if u, ok := m.users[g.PrincipalID]; ok && u.Status == types.UserStatusActive {
			return true
		}
	}
	return false
}
