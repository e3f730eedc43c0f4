package topics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(t.TempDir())
	require.NoError(t, err)
	return r
}

func invoiceParams() CreateParams {
	return CreateParams{
		Tenant:              "acme",
		Namespace:           "billing",
		Name:                "invoices",
		TenantResourceID:    "tenant-uuid",
		NamespaceResourceID: "ns-uuid",
		Schemas: []types.SchemaDef{
			{EventType: "invoice.created", Schema: json.RawMessage(`{"type":"object","required":["id"]}`)},
		},
	}
}

// TestCreateAndGet tests topic registration and config roundtrip
func TestCreateAndGet(t *testing.T) {
	r := newTestRegistry(t)

	created, err := r.Create(invoiceParams())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ResourceID)
	assert.Equal(t, int64(0), created.Sequence)

	got, err := r.Get("acme", "billing", "invoices")
	require.NoError(t, err)
	assert.Equal(t, created.ResourceID, got.ResourceID)
	assert.Equal(t, "tenant-uuid", got.TenantResourceID)
	require.Len(t, got.Schemas, 1)
	assert.Equal(t, "invoice.created", got.Schemas[0].EventType)
}

// TestCreateConflict tests that duplicate registration is rejected
func TestCreateConflict(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Create(invoiceParams())
	require.NoError(t, err)

	_, err = r.Create(invoiceParams())
	require.Error(t, err)
	assert.True(t, errdefs.IsCode(err, errdefs.CodeTopicExists))
}

// TestCreateInvalidName tests name validation
func TestCreateInvalidName(t *testing.T) {
	r := newTestRegistry(t)

	for _, name := range []string{"", "a/b", `a\b`, ".", ".."} {
		p := invoiceParams()
		p.Name = name
		_, err := r.Create(p)
		assert.Error(t, err, "name %q", name)
	}
}

// TestUpdateSchemasAdditive tests additive-only schema evolution
func TestUpdateSchemasAdditive(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Create(invoiceParams())
	require.NoError(t, err)

	// Adding a new event type succeeds.
	updated, err := r.UpdateSchemas("acme", "billing", "invoices", []types.SchemaDef{
		{EventType: "invoice.created", Schema: json.RawMessage(`{"type":"object","required":["id"]}`)},
		{EventType: "invoice.voided", Schema: json.RawMessage(`{"type":"object"}`)},
	})
	require.NoError(t, err)
	assert.Len(t, updated.Schemas, 2)

	// Omitting a registered event type is rejected.
	_, err = r.UpdateSchemas("acme", "billing", "invoices", []types.SchemaDef{
		{EventType: "invoice.voided", Schema: json.RawMessage(`{"type":"object"}`)},
	})
	require.Error(t, err)
	assert.True(t, errdefs.IsCode(err, errdefs.CodeSchemaRemoval))

	// The failed update left the schema list untouched.
	got, err := r.Get("acme", "billing", "invoices")
	require.NoError(t, err)
	assert.Len(t, got.Schemas, 2)
}

// TestSoftDelete tests that deleted topics vanish from active lookups
func TestSoftDelete(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Create(invoiceParams())
	require.NoError(t, err)

	require.NoError(t, r.SoftDelete("acme", "billing", "invoices"))

	_, err = r.GetActive("acme", "billing", "invoices")
	require.Error(t, err)
	assert.True(t, errdefs.IsCode(err, errdefs.CodeTopicNotFound))

	// The raw record is still there with DeletedAt set.
	got, err := r.Get("acme", "billing", "invoices")
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	list, err := r.List("acme", "billing")
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestList tests namespace listing
func TestList(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Create(invoiceParams())
	require.NoError(t, err)
	p := invoiceParams()
	p.Name = "payments"
	_, err = r.Create(p)
	require.NoError(t, err)

	list, err := r.List("acme", "billing")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = r.List("acme", "empty")
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestPersistSequence tests that sequence bumps survive reloads
func TestPersistSequence(t *testing.T) {
	r := newTestRegistry(t)
	topic, err := r.Create(invoiceParams())
	require.NoError(t, err)

	topic.Sequence = 7
	require.NoError(t, r.Persist(topic))

	got, err := r.Get("acme", "billing", "invoices")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Sequence)
}

// TestAcquireSameLock tests per-topic lock identity
func TestAcquireSameLock(t *testing.T) {
	r := newTestRegistry(t)
	a := r.Acquire("acme", "billing", "invoices")
	b := r.Acquire("acme", "billing", "invoices")
	c := r.Acquire("acme", "billing", "payments")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
