package auth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/eventstore"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

type authFixture struct {
	t     *testing.T
	m     *projection.Manager
	authn *Authenticator
	seq   map[string]int64
	clock time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		t:     t,
		m:     projection.NewManager(nil),
		seq:   make(map[string]int64),
		clock: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
	}
	f.authn = NewAuthenticator(f.m)
	f.authn.now = func() time.Time { return f.clock }
	return f
}

func (f *authFixture) apply(topic, eventType string, payload any) {
	f.t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(f.t, err)
	f.seq[topic]++
	f.m.Apply(topic, []*types.Event{{
		ID:        eventstore.FormatEventID(types.SystemTenant, types.SystemNamespace, topic, f.seq[topic]),
		Timestamp: f.clock,
		Type:      eventType,
		Payload:   body,
	}})
}

func (f *authFixture) addUser(id, email, password string, status types.UserStatus) {
	f.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(f.t, err)
	f.apply(types.TopicUsers, projection.EvUserCreated, projection.UserPayload{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		Status:       status,
	})
}

// TestLogin tests credential verification outcomes
func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser("u1", "ana@acme.io", "hunter22", types.UserStatusActive)
	f.addUser("u2", "bo@acme.io", "hunter22", types.UserStatusSuspended)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  bool
	}{
		{name: "valid credentials", email: "ana@acme.io", password: "hunter22"},
		{name: "wrong password", email: "ana@acme.io", password: "hunter23", wantErr: true},
		{name: "unknown email", email: "zo@acme.io", password: "hunter22", wantErr: true},
		{name: "suspended user", email: "bo@acme.io", password: "hunter22", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := f.authn.Login(tt.email, tt.password)
			if tt.wantErr {
				require.Error(t, err)
				// Every failure mode reports the same code.
				assert.True(t, errdefs.IsCode(err, errdefs.CodeInvalidCredentials))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, sess.Token)
			assert.Equal(t, "u1", sess.UserID)
			assert.True(t, sess.ExpiresAt.Equal(f.clock.Add(DefaultSessionTTL)))
		})
	}
}

// TestSessionLifecycle tests authenticate, expiry eviction, and logout
func TestSessionLifecycle(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser("u1", "ana@acme.io", "hunter22", types.UserStatusActive)

	sess, err := f.authn.Login("ana@acme.io", "hunter22")
	require.NoError(t, err)

	p, err := f.authn.AuthenticateSession(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, []string{"u1"}, p.IDs())

	// Past the TTL the token is rejected and evicted.
	f.clock = f.clock.Add(DefaultSessionTTL + time.Minute)
	_, err = f.authn.AuthenticateSession(sess.Token)
	require.Error(t, err)
	assert.True(t, errdefs.IsCode(err, errdefs.CodeUnauthorized))

	// Logout of an unknown token is a no-op.
	f.authn.Logout(sess.Token)
	f.authn.Logout("ghost")
}

// TestSessionRejectsInactiveUser tests that suspension cuts live sessions off
func TestSessionRejectsInactiveUser(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser("u1", "ana@acme.io", "hunter22", types.UserStatusActive)

	sess, err := f.authn.Login("ana@acme.io", "hunter22")
	require.NoError(t, err)

	f.apply(types.TopicUsers, projection.EvUserStatusChanged, projection.UserPayload{
		ID: "u1", Status: types.UserStatusSuspended,
	})

	_, err = f.authn.AuthenticateSession(sess.Token)
	assert.Error(t, err)
}

// TestSwitchTenant tests recording the active tenant on a session
func TestSwitchTenant(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser("u1", "ana@acme.io", "hunter22", types.UserStatusActive)

	sess, err := f.authn.Login("ana@acme.io", "hunter22")
	require.NoError(t, err)

	updated, err := f.authn.SwitchTenant(sess.Token, "tenant-2")
	require.NoError(t, err)
	assert.Equal(t, "tenant-2", updated.ActiveTenant)

	_, err = f.authn.SwitchTenant("ghost", "tenant-2")
	assert.Error(t, err)
}

// TestAuthenticateAPIKey tests key lookup, revocation, and principal ids
func TestAuthenticateAPIKey(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser("u1", "ana@acme.io", "hunter22", types.UserStatusActive)

	plaintext, hash, err := MintKey()
	require.NoError(t, err)
	f.apply(types.TopicApiKeys, projection.EvApiKeyCreated, projection.ApiKeyPayload{
		ID: "k1", UserID: "u1", KeyHash: hash, Name: "ci",
	})

	p, err := f.authn.AuthenticateAPIKey(plaintext)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "k1", p.ApiKeyID)
	assert.Equal(t, []string{"u1", "k1"}, p.IDs())

	_, err = f.authn.AuthenticateAPIKey(KeyPrefix + "not-a-real-key")
	assert.Error(t, err)

	f.apply(types.TopicApiKeys, projection.EvApiKeyRevoked, projection.ApiKeyPayload{ID: "k1"})
	_, err = f.authn.AuthenticateAPIKey(plaintext)
	require.Error(t, err)
	assert.True(t, errdefs.IsCode(err, errdefs.CodeUnauthorized))
}

// TestMintKeyFormat tests the plaintext shape and hash stability
func TestMintKeyFormat(t *testing.T) {
	plaintext, hash, err := MintKey()
	require.NoError(t, err)
	assert.True(t, len(plaintext) > len(KeyPrefix))
	assert.Equal(t, KeyPrefix, plaintext[:len(KeyPrefix)])
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashKey(plaintext))

	other, _, err := MintKey()
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, other)
}

// TestHashPassword tests the bcrypt roundtrip
func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong")))
}
