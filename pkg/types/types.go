package types

import (
	"encoding/json"
	"time"
)

// Event is an immutable record appended to a topic. The ID is the canonical
// "<tenant>/<namespace>/<topic>-<sequence>" form and doubles as the on-disk
// filename (plus ".json").
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// SchemaDef binds an event type to the JSON schema its payloads must satisfy.
type SchemaDef struct {
	EventType string          `json:"eventType"`
	Schema    json.RawMessage `json:"schema"`
}

// Topic is the persistent configuration of one append-only log. Name is the
// human-readable handle used in URLs; ResourceID is the stable identity that
// permissions reference. Sequence is the last assigned sequence number.
type Topic struct {
	ResourceID          string      `json:"resourceId"`
	TenantResourceID    string      `json:"tenantResourceId"`
	NamespaceResourceID string      `json:"namespaceResourceId"`
	Tenant              string      `json:"tenant"`
	Namespace           string      `json:"namespace"`
	Name                string      `json:"name"`
	Sequence            int64       `json:"sequence"`
	Schemas             []SchemaDef `json:"schemas"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
	DeletedAt           *time.Time  `json:"deletedAt,omitempty"`
}

// SchemaFor returns the schema registered for the given event type, or nil.
func (t *Topic) SchemaFor(eventType string) *SchemaDef {
	for i := range t.Schemas {
		if t.Schemas[i].EventType == eventType {
			return &t.Schemas[i]
		}
	}
	return nil
}

// ConsumerKind selects the delivery transport for a consumer.
type ConsumerKind string

const (
	ConsumerKindHTTP     ConsumerKind = "http"
	ConsumerKindInMemory ConsumerKind = "inmemory"
)

// Consumer is a registered subscriber. Topics maps topic name to the last
// delivered event id; a nil entry means "from tail at registration", i.e.
// only events published after the subscription are delivered.
type Consumer struct {
	ID             string             `json:"id"`
	Kind           ConsumerKind       `json:"kind"`
	Tenant         string             `json:"tenant"`
	Namespace      string             `json:"namespace"`
	Callback       string             `json:"callback,omitempty"`
	Topics         map[string]*string `json:"topics"`
	CorrelationID  string             `json:"correlationId,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	LastDeliveryAt *time.Time         `json:"lastDeliveryAt,omitempty"`
}

// Tenant is the top-level isolation boundary.
type Tenant struct {
	ResourceID string            `json:"resourceId"`
	Name       string            `json:"name"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	DeletedAt  *time.Time        `json:"deletedAt,omitempty"`
}

// Namespace groups topics within a tenant.
type Namespace struct {
	ResourceID       string            `json:"resourceId"`
	TenantResourceID string            `json:"tenantResourceId"`
	Name             string            `json:"name"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	DeletedAt        *time.Time        `json:"deletedAt,omitempty"`
}

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	UserStatusActive            UserStatus = "ACTIVE"
	UserStatusSuspended         UserStatus = "SUSPENDED"
	UserStatusDeleted           UserStatus = "DELETED"
	UserStatusPendingActivation UserStatus = "PENDING_ACTIVATION"
)

// User is a system-wide identity. Email is unique across active users.
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Status          UserStatus `json:"status"`
	PrimaryTenantID string     `json:"primaryTenantId,omitempty"`
	Tenants         []string   `json:"tenants,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// HasTenant reports whether the user is associated with the given tenant.
func (u *User) HasTenant(tenantResourceID string) bool {
	for _, t := range u.Tenants {
		if t == tenantResourceID {
			return true
		}
	}
	return false
}

// ApiKey is a long-lived credential tied to a user. Only the SHA-256 hash of
// the plaintext is ever persisted.
type ApiKey struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	KeyHash     string     `json:"-"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Scopes      []string   `json:"scopes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
}

// IsActive reports whether the key is neither revoked nor expired at now.
func (k *ApiKey) IsActive(now time.Time) bool {
	if k.RevokedAt != nil {
		return false
	}
	if k.ExpiresAt != nil && !now.Before(*k.ExpiresAt) {
		return false
	}
	return true
}

// PrincipalType identifies what kind of identity a grant applies to.
type PrincipalType string

const (
	PrincipalUser   PrincipalType = "USER"
	PrincipalApiKey PrincipalType = "API_KEY"
	PrincipalRole   PrincipalType = "ROLE"
	PrincipalGroup  PrincipalType = "GROUP"
)

// ResourceType identifies what kind of resource a grant covers.
type ResourceType string

const (
	ResourceTenant    ResourceType = "TENANT"
	ResourceNamespace ResourceType = "NAMESPACE"
	ResourceTopic     ResourceType = "TOPIC"
	ResourceEvent     ResourceType = "EVENT"
	ResourceConsumer  ResourceType = "CONSUMER"
	ResourceUser      ResourceType = "USER"
)

// Permission is a single capability token.
type Permission string

const (
	PermCreate           Permission = "CREATE"
	PermRead             Permission = "READ"
	PermList             Permission = "LIST"
	PermUpdate           Permission = "UPDATE"
	PermDelete           Permission = "DELETE"
	PermAdmin            Permission = "ADMIN"
	PermSchemaManage     Permission = "SCHEMA_MANAGE"
	PermReadHistory      Permission = "READ_HISTORY"
	PermReadExport       Permission = "READ_EXPORT"
	PermWriteAdmin       Permission = "WRITE_ADMIN"
	PermReplay           Permission = "REPLAY"
	PermPurge            Permission = "PURGE"
	PermActivate         Permission = "ACTIVATE"
	PermSuspend          Permission = "SUSPEND"
	PermPasswordReset    Permission = "PASSWORD_RESET"
	PermManage           Permission = "MANAGE"
	PermPermissionGrant  Permission = "PERMISSION_GRANT"
	PermPermissionRevoke Permission = "PERMISSION_REVOKE"
)

// Constraints optionally narrow when and for what a grant applies.
type Constraints struct {
	EventTypes []string `json:"eventTypes,omitempty"`
	MaxAgeDays int      `json:"maxAgeDays,omitempty"`
	// Time-of-day window in "HH:MM" 24h form; both empty means unconstrained.
	TimeOfDayStart string `json:"timeOfDayStart,omitempty"`
	TimeOfDayEnd   string `json:"timeOfDayEnd,omitempty"`
}

// PermissionGrant asserts that a principal holds a permission set over a
// resource. A nil ResourceID means every resource of ResourceType within the
// grant's scope.
type PermissionGrant struct {
	ID                  string        `json:"id"`
	PrincipalID         string        `json:"principalId"`
	PrincipalType       PrincipalType `json:"principalType"`
	ResourceType        ResourceType  `json:"resourceType"`
	ResourceID          *string       `json:"resourceId,omitempty"`
	TenantResourceID    string        `json:"tenantResourceId"`
	NamespaceResourceID *string       `json:"namespaceResourceId,omitempty"`
	TopicResourceID     *string       `json:"topicResourceId,omitempty"`
	Permissions         []Permission  `json:"permissions"`
	Constraints         *Constraints  `json:"constraints,omitempty"`
	GrantedAt           time.Time     `json:"grantedAt"`
	ExpiresAt           *time.Time    `json:"expiresAt,omitempty"`
}

// Has reports whether the grant carries the permission token.
func (g *PermissionGrant) Has(p Permission) bool {
	for _, q := range g.Permissions {
		if q == p {
			return true
		}
	}
	return false
}

// Expired reports whether the grant has lapsed at now.
func (g *PermissionGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !now.Before(*g.ExpiresAt)
}

// PublishRequest is one entry of a publish batch.
type PublishRequest struct {
	Tenant    string          `json:"-"`
	Namespace string          `json:"-"`
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// Reserved names for the event-sourced control plane.
const (
	SystemTenant     = "$system"
	SystemNamespace  = "$management"
	TopicTenants     = "tenants"
	TopicNamespaces  = "namespaces"
	TopicUsers       = "users"
	TopicPermissions = "permissions"
	TopicApiKeys     = "api-keys"
)

// ManagementTopics lists every reserved control-plane topic.
var ManagementTopics = []string{
	TopicTenants,
	TopicNamespaces,
	TopicUsers,
	TopicPermissions,
	TopicApiKeys,
}
