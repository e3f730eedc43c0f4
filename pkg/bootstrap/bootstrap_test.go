package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/auth"
	"github.com/cuemby/burrow/pkg/consumers"
	"github.com/cuemby/burrow/pkg/dispatch"
	"github.com/cuemby/burrow/pkg/eventstore"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/publish"
	"github.com/cuemby/burrow/pkg/schema"
	"github.com/cuemby/burrow/pkg/topics"
	"github.com/cuemby/burrow/pkg/types"
)

type stack struct {
	registry    *topics.Registry
	store       *eventstore.Store
	pipeline    *publish.Pipeline
	projections *projection.Manager
	consumers   *consumers.BoltStore
	dispatchers *dispatch.Manager
}

func newStack(t *testing.T) *stack {
	t.Helper()
	registry, err := topics.NewRegistry(t.TempDir())
	require.NoError(t, err)
	store, err := eventstore.NewStore(t.TempDir())
	require.NoError(t, err)
	consumerStore, err := consumers.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { consumerStore.Close() })

	projections := projection.NewManager(store)
	pipeline := publish.NewPipeline(registry, store, schema.NewValidator())
	pipeline.SetApplier(projections)
	dispatchers := dispatch.NewManager(store, consumerStore, dispatch.NewHTTPAdapter(),
		dispatch.Config{TickInterval: time.Minute})
	t.Cleanup(dispatchers.StopAll)

	return &stack{
		registry:    registry,
		store:       store,
		pipeline:    pipeline,
		projections: projections,
		consumers:   consumerStore,
		dispatchers: dispatchers,
	}
}

func (s *stack) boot(t *testing.T, password string) error {
	t.Helper()
	return New(s.registry, s.pipeline, s.projections, s.consumers, s.dispatchers,
		"admin@example.com", password).Run()
}

// TestRunSeedsControlPlane tests the first-boot sequence end to end
func TestRunSeedsControlPlane(t *testing.T) {
	s := newStack(t)
	require.NoError(t, s.boot(t, "bootpass"))

	// The five reserved topics exist with permissive per-type schemas.
	for _, name := range types.ManagementTopics {
		topic, err := s.registry.Get(types.SystemTenant, types.SystemNamespace, name)
		require.NoError(t, err, "topic %s", name)
		assert.Len(t, topic.Schemas, len(projection.ManagementEventTypes[name]))
	}

	// The $system tenant and $management namespace are projected.
	tenant, err := s.projections.TenantByName(types.SystemTenant)
	require.NoError(t, err)
	_, err = s.projections.NamespaceByName(tenant.ResourceID, types.SystemNamespace)
	require.NoError(t, err)

	// The admin can log in and holds ADMIN on the system tenant.
	authn := auth.NewAuthenticator(s.projections)
	sess, err := authn.Login("admin@example.com", "bootpass")
	require.NoError(t, err)
	assert.True(t, s.projections.HasActiveAdmin(tenant.ResourceID))
	grants := s.projections.GrantsFor(sess.UserID, tenant.ResourceID, time.Now())
	require.Len(t, grants, 1)
	assert.True(t, grants[0].Has(types.PermAdmin))
}

// TestRunIsIdempotent tests that a second run changes nothing
func TestRunIsIdempotent(t *testing.T) {
	s := newStack(t)
	require.NoError(t, s.boot(t, "bootpass"))

	tenant, err := s.projections.TenantByName(types.SystemTenant)
	require.NoError(t, err)
	admins := s.projections.UsersByTenant(tenant.ResourceID)
	require.Len(t, admins, 1)

	// A rerun without a password still succeeds: every step is guarded.
	require.NoError(t, s.boot(t, ""))

	assert.Len(t, s.projections.UsersByTenant(tenant.ResourceID), 1)
	assert.Len(t, s.projections.GrantsFor(admins[0].ID, tenant.ResourceID, time.Now()), 1)
	assert.Len(t, s.projections.Tenants(), 1)

	// No extra control-plane events were appended.
	events, err := s.store.ReadSince(types.SystemTenant, types.SystemNamespace, types.TopicUsers, 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

// TestRunRequiresAdminPassword tests the first-boot password guard
func TestRunRequiresAdminPassword(t *testing.T) {
	s := newStack(t)
	err := s.boot(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin password")
}

// TestRunResumesDispatchers tests that persisted consumers restart their topics
func TestRunResumesDispatchers(t *testing.T) {
	s := newStack(t)
	require.NoError(t, s.consumers.CreateConsumer(&types.Consumer{
		ID:        "c1",
		Kind:      types.ConsumerKindHTTP,
		Tenant:    "acme",
		Namespace: "billing",
		Callback:  "https://example.com/hook",
		Topics:    map[string]*string{"invoices": nil},
	}))

	require.NoError(t, s.boot(t, "bootpass"))
	assert.Equal(t, 1, s.dispatchers.Running())
}
