package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/auth"
	"github.com/cuemby/burrow/pkg/authz"
	"github.com/cuemby/burrow/pkg/bootstrap"
	"github.com/cuemby/burrow/pkg/consumers"
	"github.com/cuemby/burrow/pkg/dispatch"
	"github.com/cuemby/burrow/pkg/eventstore"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/publish"
	"github.com/cuemby/burrow/pkg/schema"
	"github.com/cuemby/burrow/pkg/topics"
	"github.com/cuemby/burrow/pkg/types"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "bootpass1"
)

type apiFixture struct {
	t      *testing.T
	router http.Handler

	admin string // admin session token
}

func newAPIFixture(t *testing.T) *apiFixture {
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
	dispatchers := dispatch.NewManager(store, consumerStore, dispatch.NewHTTPAdapter(),
		dispatch.Config{TickInterval: time.Minute})
	t.Cleanup(dispatchers.StopAll)
	pipeline.SetApplier(projections)
	pipeline.SetNudger(dispatchers)

	authn := auth.NewAuthenticator(projections)
	require.NoError(t, bootstrap.New(registry, pipeline, projections, consumerStore, dispatchers,
		adminEmail, adminPassword).Run())

	srv := NewServer(Deps{
		Registry:    registry,
		Store:       store,
		Pipeline:    pipeline,
		Consumers:   consumerStore,
		Dispatchers: dispatchers,
		Projections: projections,
		Resolver:    projection.NewResourceResolver(projections, registry),
		Authn:       authn,
		Authz:       authz.NewEngine(projections),
		Version:     "test",
	})

	f := &apiFixture{t: t, router: srv.Router()}
	f.admin = f.login(adminEmail, adminPassword)
	return f
}

func (f *apiFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) decode(rec *httptest.ResponseRecorder, v any) {
	f.t.Helper()
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), v))
}

func (f *apiFixture) code(rec *httptest.ResponseRecorder) string {
	f.t.Helper()
	var body errorBody
	f.decode(rec, &body)
	return body.Code
}

func (f *apiFixture) login(email, password string) string {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password})
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResponse
	f.decode(rec, &resp)
	return resp.Token
}

func (f *apiFixture) createTenant(name string) {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/tenants", f.admin, tenantRequest{Name: name})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (f *apiFixture) createNamespace(tenant, name string) {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/tenants/"+tenant+"/namespaces", f.admin, namespaceRequest{Name: name})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (f *apiFixture) createTopic(tenant, ns, name string) {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/tenants/"+tenant+"/namespaces/"+ns+"/topics", f.admin, topicCreateRequest{
		Name: name,
		Schemas: []types.SchemaDef{
			{EventType: "invoice.created", Schema: json.RawMessage(`{"type":"object","required":["id"]}`)},
		},
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
}

// TestHealthEndpoints tests the unauthenticated health and readiness probes
func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	f.decode(rec, &health)
	assert.Equal(t, "healthy", health["status"])

	rec = f.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestAuthenticationRequired tests credential enforcement on protected routes
func TestAuthenticationRequired(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/tenants", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/tenants", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/auth/login", "", loginRequest{Email: adminEmail, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", f.code(rec))
}

// TestTenantLifecycle tests tenant CRUD through the API
func TestTenantLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	f.createTenant("acme")

	rec := f.do(http.MethodPost, "/tenants", f.admin, tenantRequest{Name: "acme"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "TENANT_EXISTS", f.code(rec))

	rec = f.do(http.MethodPost, "/tenants", f.admin, tenantRequest{Name: "$reserved"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/tenants", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*types.Tenant
	f.decode(rec, &list)
	names := make([]string, 0, len(list))
	for _, tn := range list {
		names = append(names, tn.Name)
	}
	assert.Contains(t, names, "acme")

	// The creator can read and update the tenant they created.
	rec = f.do(http.MethodGet, "/tenants/acme", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPut, "/tenants/acme", f.admin, tenantRequest{Metadata: map[string]string{"tier": "gold"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated types.Tenant
	f.decode(rec, &updated)
	assert.Equal(t, "gold", updated.Metadata["tier"])

	rec = f.do(http.MethodDelete, "/tenants/acme", f.admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/tenants/acme", f.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TENANT_NOT_FOUND", f.code(rec))

	// The system tenant refuses deletion.
	rec = f.do(http.MethodDelete, "/tenants/$system", f.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestTopicSchemaEvolution tests additive schema updates over the API
func TestTopicSchemaEvolution(t *testing.T) {
	f := newAPIFixture(t)
	f.createTenant("acme")
	f.createNamespace("acme", "billing")
	f.createTopic("acme", "billing", "invoices")

	rec := f.do(http.MethodPost, "/tenants/acme/namespaces", f.admin, namespaceRequest{Name: "billing"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NAMESPACE_EXISTS", f.code(rec))

	base := "/tenants/acme/namespaces/billing/topics/invoices"
	rec = f.do(http.MethodPut, base, f.admin, topicUpdateRequest{Schemas: []types.SchemaDef{
		{EventType: "invoice.created", Schema: json.RawMessage(`{"type":"object","required":["id"]}`)},
		{EventType: "invoice.voided", Schema: json.RawMessage(`{"type":"object"}`)},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Dropping a registered event type is rejected.
	rec = f.do(http.MethodPut, base, f.admin, topicUpdateRequest{Schemas: []types.SchemaDef{
		{EventType: "invoice.voided", Schema: json.RawMessage(`{"type":"object"}`)},
	}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SCHEMA_REMOVAL_NOT_ALLOWED", f.code(rec))

	rec = f.do(http.MethodDelete, base, f.admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(http.MethodGet, base, f.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestPublishAndRead tests the event publish and read paths
func TestPublishAndRead(t *testing.T) {
	f := newAPIFixture(t)
	f.createTenant("acme")
	f.createNamespace("acme", "billing")
	f.createTopic("acme", "billing", "invoices")

	publishPath := "/tenants/acme/namespaces/billing/events"
	rec := f.do(http.MethodPost, publishPath, f.admin, []types.PublishRequest{
		{Topic: "invoices", Type: "invoice.created", Payload: json.RawMessage(`{"id":"inv-1"}`)},
		{Topic: "invoices", Type: "invoice.created", Payload: json.RawMessage(`{"id":"inv-2"}`)},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pub publishResponse
	f.decode(rec, &pub)
	assert.Equal(t, []string{"acme/billing/invoices-1", "acme/billing/invoices-2"}, pub.EventIDs)

	// Schema failures surface as the publish-level code.
	rec = f.do(http.MethodPost, publishPath, f.admin, []types.PublishRequest{
		{Topic: "invoices", Type: "invoice.created", Payload: json.RawMessage(`{"amount":3}`)},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EVENT_PUBLISH_FAILED", f.code(rec))

	rec = f.do(http.MethodPost, publishPath, f.admin, []types.PublishRequest{
		{Topic: "invoices", Type: "invoice.mystery", Payload: json.RawMessage(`{}`)},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EVENT_PUBLISH_FAILED", f.code(rec))

	rec = f.do(http.MethodPost, publishPath, f.admin, []types.PublishRequest{
		{Topic: "ghost", Type: "invoice.created", Payload: json.RawMessage(`{"id":"x"}`)},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TOPIC_NOT_FOUND", f.code(rec))

	readPath := "/tenants/acme/namespaces/billing/topics/invoices/events"
	rec = f.do(http.MethodGet, readPath, f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events eventsResponse
	f.decode(rec, &events)
	assert.Equal(t, 2, events.Count)

	rec = f.do(http.MethodGet, readPath+"?sinceEventId=acme/billing/invoices-1", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	f.decode(rec, &events)
	require.Equal(t, 1, events.Count)
	assert.Equal(t, "acme/billing/invoices-2", events.Events[0].ID)

	rec = f.do(http.MethodGet, readPath+"?limit=nope", f.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestRoleEnforcement tests that role bundles bound what a user can do
func TestRoleEnforcement(t *testing.T) {
	f := newAPIFixture(t)
	f.createTenant("acme")
	f.createNamespace("acme", "billing")
	f.createTopic("acme", "billing", "invoices")

	rec := f.do(http.MethodPost, "/tenants/acme/users", f.admin, userCreateRequest{
		Email:    "bob@acme.io",
		Password: "bobpass123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bob types.User
	f.decode(rec, &bob)

	rec = f.do(http.MethodPost, "/tenants/acme/users/"+bob.ID+"/roles/publisher", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/tenants/acme/users/"+bob.ID+"/roles/ghostrole", f.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bobToken := f.login("bob@acme.io", "bobpass123")

	// A publisher can publish.
	rec = f.do(http.MethodPost, "/tenants/acme/namespaces/billing/events", bobToken, []types.PublishRequest{
		{Topic: "invoices", Type: "invoice.created", Payload: json.RawMessage(`{"id":"inv-1"}`)},
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// But cannot create topics or tenants.
	rec = f.do(http.MethodPost, "/tenants/acme/namespaces/billing/topics", bobToken, topicCreateRequest{Name: "other"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", f.code(rec))

	rec = f.do(http.MethodPost, "/tenants", bobToken, tenantRequest{Name: "bobco"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Removing the role revokes the bundle.
	rec = f.do(http.MethodDelete, "/tenants/acme/users/"+bob.ID+"/roles/publisher", f.admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodPost, "/tenants/acme/namespaces/billing/events", bobToken, []types.PublishRequest{
		{Topic: "invoices", Type: "invoice.created", Payload: json.RawMessage(`{"id":"inv-2"}`)},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// TestConsumerEndpoints tests webhook registration and management
func TestConsumerEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.createTenant("acme")
	f.createNamespace("acme", "billing")
	f.createTopic("acme", "billing", "invoices")

	base := "/tenants/acme/namespaces/billing/consumers"
	rec := f.do(http.MethodPost, base+"/register", f.admin, consumerRegisterRequest{
		Callback: "not a url",
		Topics:   []string{"invoices"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CALLBACK", f.code(rec))

	rec = f.do(http.MethodPost, base+"/register", f.admin, consumerRegisterRequest{
		Callback: "https://example.com/hook",
		Topics:   []string{"invoices"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c types.Consumer
	f.decode(rec, &c)
	assert.NotEmpty(t, c.ID)
	assert.Contains(t, c.Topics, "invoices")

	rec = f.do(http.MethodGet, base, f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*types.Consumer
	f.decode(rec, &list)
	assert.Len(t, list, 1)

	rec = f.do(http.MethodPut, base+"/"+c.ID, f.admin, consumerUpdateRequest{Callback: "https://example.com/v2"})
	require.Equal(t, http.StatusOK, rec.Code)

	// A consumer is invisible outside its namespace.
	f.createNamespace("acme", "ops")
	rec = f.do(http.MethodGet, "/tenants/acme/namespaces/ops/consumers/"+c.ID, f.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CONSUMER_NOT_FOUND", f.code(rec))

	rec = f.do(http.MethodDelete, base+"/"+c.ID, f.admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(http.MethodGet, base+"/"+c.ID, f.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// webhookTarget is a callback endpoint that records delivered event ids.
type webhookTarget struct {
	mu  sync.Mutex
	ids []string
	srv *httptest.Server
}

func newWebhookTarget(t *testing.T) *webhookTarget {
	t.Helper()
	target := &webhookTarget{}
	target.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Events []struct {
				ID string `json:"id"`
			} `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		target.mu.Lock()
		for _, ev := range body.Events {
			target.ids = append(target.ids, ev.ID)
		}
		target.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(target.srv.Close)
	return target
}

func (w *webhookTarget) delivered() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.ids...)
}

// TestConsumerRegistersAtTail tests that only events published after
// registration are delivered
func TestConsumerRegistersAtTail(t *testing.T) {
	f := newAPIFixture(t)
	f.createTenant("acme")
	f.createNamespace("acme", "billing")
	f.createTopic("acme", "billing", "invoices")
	target := newWebhookTarget(t)

	publishPath := "/tenants/acme/namespaces/billing/events"
	rec := f.do(http.MethodPost, publishPath, f.admin, []types.PublishRequest{
		{Topic: "invoices", Type: "invoice.created", Payload: json.RawMessage(`{"id":"inv-1"}`)},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/tenants/acme/namespaces/billing/consumers/register", f.admin, consumerRegisterRequest{
		Callback: target.srv.URL,
		Topics:   []string{"invoices"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c types.Consumer
	f.decode(rec, &c)
	require.NotNil(t, c.Topics["invoices"])
	assert.Equal(t, "acme/billing/invoices-1", *c.Topics["invoices"])

	rec = f.do(http.MethodPost, publishPath, f.admin, []types.PublishRequest{
		{Topic: "invoices", Type: "invoice.created", Payload: json.RawMessage(`{"id":"inv-2"}`)},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		return len(target.delivered()) > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"acme/billing/invoices-2"}, target.delivered())
}

// TestConsumerTopicSetUpdate tests changing a consumer's subscriptions
func TestConsumerTopicSetUpdate(t *testing.T) {
	f := newAPIFixture(t)
	f.createTenant("acme")
	f.createNamespace("acme", "billing")
	f.createTopic("acme", "billing", "invoices")
	f.createTopic("acme", "billing", "receipts")

	base := "/tenants/acme/namespaces/billing/consumers"
	target := newWebhookTarget(t)
	rec := f.do(http.MethodPost, base+"/register", f.admin, consumerRegisterRequest{
		Callback: target.srv.URL,
		Topics:   []string{"invoices"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c types.Consumer
	f.decode(rec, &c)

	// Two receipts events predate the subscription.
	rec = f.do(http.MethodPost, "/tenants/acme/namespaces/billing/events", f.admin, []types.PublishRequest{
		{Topic: "receipts", Type: "invoice.created", Payload: json.RawMessage(`{"id":"r-1"}`)},
		{Topic: "receipts", Type: "invoice.created", Payload: json.RawMessage(`{"id":"r-2"}`)},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// An added topic starts at the tail; the kept one keeps its position.
	rec = f.do(http.MethodPut, base+"/"+c.ID, f.admin, consumerUpdateRequest{
		Topics: map[string]*string{"invoices": nil, "receipts": nil},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated types.Consumer
	f.decode(rec, &updated)
	require.NotNil(t, updated.Topics["receipts"])
	assert.Equal(t, "acme/billing/receipts-2", *updated.Topics["receipts"])
	assert.Nil(t, updated.Topics["invoices"])

	// An explicit position is honored and may drop a subscription.
	pos := "acme/billing/receipts-1"
	rec = f.do(http.MethodPut, base+"/"+c.ID, f.admin, consumerUpdateRequest{
		Topics: map[string]*string{"receipts": &pos},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated = types.Consumer{}
	f.decode(rec, &updated)
	require.NotNil(t, updated.Topics["receipts"])
	assert.Equal(t, pos, *updated.Topics["receipts"])
	assert.NotContains(t, updated.Topics, "invoices")

	// A position past the topic's sequence is rejected.
	beyond := "acme/billing/receipts-9"
	rec = f.do(http.MethodPut, base+"/"+c.ID, f.admin, consumerUpdateRequest{
		Topics: map[string]*string{"receipts": &beyond},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// So is a position that names another topic.
	foreign := "acme/billing/invoices-1"
	rec = f.do(http.MethodPut, base+"/"+c.ID, f.admin, consumerUpdateRequest{
		Topics: map[string]*string{"receipts": &foreign},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, base+"/"+c.ID, f.admin, consumerUpdateRequest{
		Topics: map[string]*string{"ghost": nil},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TOPIC_NOT_FOUND", f.code(rec))

	// An explicit empty set is invalid.
	rec = f.do(http.MethodPut, base+"/"+c.ID, f.admin, map[string]any{"topics": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestApiKeyFlow tests minting, using, and revoking API keys
func TestApiKeyFlow(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/tenants", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The admin mints a key for themselves under the system tenant.
	rec = f.do(http.MethodPost, "/auth/login", "", loginRequest{Email: adminEmail, Password: adminPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	var session loginResponse
	f.decode(rec, &session)
	adminID := session.User.ID

	keyPath := fmt.Sprintf("/tenants/%s/users/%s/api-keys", types.SystemTenant, adminID)
	rec = f.do(http.MethodPost, keyPath, f.admin, apiKeyCreateRequest{Name: "ci"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created apiKeyCreateResponse
	f.decode(rec, &created)
	assert.True(t, len(created.Key) > len(auth.KeyPrefix))
	assert.Equal(t, auth.KeyPrefix, created.Key[:len(auth.KeyPrefix)])
	assert.Empty(t, created.ApiKey.KeyHash, "the hash never leaves the server")

	// The plaintext works as a bearer credential.
	rec = f.do(http.MethodGet, "/tenants", created.Key, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodDelete, keyPath+"/"+created.ApiKey.ID, f.admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/tenants", created.Key, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodDelete, keyPath+"/"+created.ApiKey.ID, f.admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "API_KEY_ALREADY_REVOKED", f.code(rec))
}

// TestSwitchTenant tests session tenant switching and membership checks
func TestSwitchTenant(t *testing.T) {
	f := newAPIFixture(t)
	f.createTenant("acme")

	rec := f.do(http.MethodPost, "/auth/switch-tenant/$system", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The admin is not a member of acme.
	rec = f.do(http.MethodPost, "/auth/switch-tenant/acme", f.admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/auth/tenants", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []*types.Tenant
	f.decode(rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, types.SystemTenant, mine[0].Name)
}
