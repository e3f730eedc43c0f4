package bootstrap

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/auth"
	"github.com/cuemby/burrow/pkg/consumers"
	"github.com/cuemby/burrow/pkg/dispatch"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/publish"
	"github.com/cuemby/burrow/pkg/topics"
	"github.com/cuemby/burrow/pkg/types"
)

// permissiveSchema accepts any JSON object. Management topics carry it for
// every control-plane event type so seeding flows through the normal
// pipeline.
var permissiveSchema = json.RawMessage(`{"type":"object"}`)

// Bootstrap seeds the event-sourced control plane on startup. Every step
// checks current state first, so running it again is a no-op.
type Bootstrap struct {
	registry    *topics.Registry
	pipeline    *publish.Pipeline
	projections *projection.Manager
	consumers   consumers.Store
	dispatchers *dispatch.Manager

	adminEmail    string
	adminPassword string

	logger zerolog.Logger
}

// New creates a bootstrap runner.
func New(registry *topics.Registry, pipeline *publish.Pipeline, projections *projection.Manager,
	store consumers.Store, dispatchers *dispatch.Manager, adminEmail, adminPassword string) *Bootstrap {
	return &Bootstrap{
		registry:      registry,
		pipeline:      pipeline,
		projections:   projections,
		consumers:     store,
		dispatchers:   dispatchers,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		logger:        log.WithComponent("bootstrap"),
	}
}

// Run performs the full startup sequence: replay projections, ensure the
// reserved tenant, namespace, and topics, seed the admin, replay again, and
// resume dispatchers for persisted consumers.
func (b *Bootstrap) Run() error {
	if err := b.projections.Rebuild(); err != nil {
		return err
	}

	tenantID := b.systemTenantID()
	namespaceID := b.systemNamespaceID()

	if err := b.ensureManagementTopics(tenantID, namespaceID); err != nil {
		return err
	}
	if err := b.ensureSystemTenant(tenantID); err != nil {
		return err
	}
	if err := b.ensureSystemNamespace(tenantID, namespaceID); err != nil {
		return err
	}
	if err := b.ensureAdmin(tenantID); err != nil {
		return err
	}
	if err := b.resumeDispatchers(); err != nil {
		return err
	}

	b.logger.Info().Msg("bootstrap complete")
	return nil
}

// systemTenantID returns the projected $system tenant id, or mints one for
// first boot.
func (b *Bootstrap) systemTenantID() string {
	if t, err := b.projections.TenantByName(types.SystemTenant); err == nil {
		return t.ResourceID
	}
	return uuid.NewString()
}

func (b *Bootstrap) systemNamespaceID() string {
	if t, err := b.projections.TenantByName(types.SystemTenant); err == nil {
		if ns, err := b.projections.NamespaceByName(t.ResourceID, types.SystemNamespace); err == nil {
			return ns.ResourceID
		}
	}
	return uuid.NewString()
}

// ensureManagementTopics registers the five reserved topics, each with a
// permissive schema per control-plane event type. Existing topics get any
// event types a newer build introduced, additively.
func (b *Bootstrap) ensureManagementTopics(tenantID, namespaceID string) error {
	for _, name := range types.ManagementTopics {
		wanted := projection.ManagementEventTypes[name]

		existing, err := b.registry.Get(types.SystemTenant, types.SystemNamespace, name)
		if err != nil {
			if !errdefs.IsCode(err, errdefs.CodeTopicNotFound) {
				return err
			}
			schemas := make([]types.SchemaDef, 0, len(wanted))
			for _, et := range wanted {
				schemas = append(schemas, types.SchemaDef{EventType: et, Schema: permissiveSchema})
			}
			if _, err := b.registry.Create(topics.CreateParams{
				Tenant:              types.SystemTenant,
				Namespace:           types.SystemNamespace,
				Name:                name,
				TenantResourceID:    tenantID,
				NamespaceResourceID: namespaceID,
				Schemas:             schemas,
			}); err != nil {
				return err
			}
			continue
		}

		have := make(map[string]bool, len(existing.Schemas))
		for _, s := range existing.Schemas {
			have[s.EventType] = true
		}
		desired := existing.Schemas
		missing := false
		for _, et := range wanted {
			if !have[et] {
				desired = append(desired, types.SchemaDef{EventType: et, Schema: permissiveSchema})
				missing = true
			}
		}
		if missing {
			if _, err := b.registry.UpdateSchemas(types.SystemTenant, types.SystemNamespace, name, desired); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Bootstrap) ensureSystemTenant(tenantID string) error {
	if b.projections.HasTenantEvents(types.SystemTenant) {
		return nil
	}
	return b.publish(types.TopicTenants, projection.EvTenantCreated, projection.TenantPayload{
		ResourceID: tenantID,
		Name:       types.SystemTenant,
	})
}

func (b *Bootstrap) ensureSystemNamespace(tenantID, namespaceID string) error {
	if b.projections.HasNamespaceEvents(tenantID, types.SystemNamespace) {
		return nil
	}
	return b.publish(types.TopicNamespaces, projection.EvNamespaceCreated, projection.NamespacePayload{
		ResourceID:       namespaceID,
		TenantResourceID: tenantID,
		Name:             types.SystemNamespace,
	})
}

// ensureAdmin seeds the initial administrator: an active user assigned to
// the system tenant holding ADMIN on it.
func (b *Bootstrap) ensureAdmin(tenantID string) error {
	if b.projections.HasActiveAdmin(tenantID) {
		return nil
	}
	if b.adminPassword == "" {
		return errdefs.Invalid(errdefs.CodeInvalidInput,
			"no active admin exists and no admin password is configured")
	}

	hash, err := auth.HashPassword(b.adminPassword)
	if err != nil {
		return err
	}

	userID := uuid.NewString()
	if err := b.publish(types.TopicUsers, projection.EvUserCreated, projection.UserPayload{
		ID:              userID,
		Email:           b.adminEmail,
		PasswordHash:    hash,
		Status:          types.UserStatusActive,
		PrimaryTenantID: tenantID,
	}); err != nil {
		return err
	}
	if err := b.publish(types.TopicUsers, projection.EvUserTenantAssigned, projection.UserPayload{
		ID:               userID,
		TenantResourceID: tenantID,
	}); err != nil {
		return err
	}

	adminResource := tenantID
	if err := b.publish(types.TopicPermissions, projection.EvPermissionGranted, projection.GrantPayload{
		Grant: types.PermissionGrant{
			ID:               uuid.NewString(),
			PrincipalID:      userID,
			PrincipalType:    types.PrincipalUser,
			ResourceType:     types.ResourceTenant,
			ResourceID:       &adminResource,
			TenantResourceID: tenantID,
			Permissions:      []types.Permission{types.PermAdmin},
		},
	}); err != nil {
		return err
	}

	b.logger.Info().Str("email", b.adminEmail).Msg("admin user seeded")
	return nil
}

// resumeDispatchers starts a dispatcher for every topic that has at least
// one persisted consumer, so unread events flow without waiting for a new
// publish.
func (b *Bootstrap) resumeDispatchers() error {
	list, err := b.consumers.ListConsumers()
	if err != nil {
		return err
	}
	for _, c := range list {
		for topic := range c.Topics {
			b.dispatchers.Ensure(c.Tenant, c.Namespace, topic)
		}
	}
	if len(list) > 0 {
		b.logger.Info().Int("consumers", len(list)).Msg("dispatchers resumed")
	}
	return nil
}

func (b *Bootstrap) publish(topic, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errdefs.Internal(err, "encoding %s payload", eventType)
	}
	_, err = b.pipeline.Publish([]types.PublishRequest{{
		Tenant:    types.SystemTenant,
		Namespace: types.SystemNamespace,
		Topic:     topic,
		Type:      eventType,
		Payload:   raw,
	}})
	return err
}
