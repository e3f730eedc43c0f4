package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

const (
	// KeyPrefix marks API key plaintexts so the HTTP layer can tell them
	// apart from session tokens in Authorization headers.
	KeyPrefix = "es_"

	// DefaultSessionTTL bounds how long a login session stays valid.
	DefaultSessionTTL = 24 * time.Hour
)

// Principal is the resolved identity of an authenticated request. ApiKeyID
// is empty for session logins.
type Principal struct {
	UserID   string
	ApiKeyID string
}

// IDs returns the principal ids grants may reference.
func (p Principal) IDs() []string {
	if p.ApiKeyID == "" {
		return []string{p.UserID}
	}
	return []string{p.UserID, p.ApiKeyID}
}

// Session is one logged-in browser or CLI session. Sessions live in memory
// only; a restart logs everyone out.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	// ActiveTenant is the tenant resourceId selected via switch-tenant,
	// empty until set.
	ActiveTenant string `json:"activeTenant,omitempty"`
}

// Authenticator verifies credentials against the projections and tracks
// live sessions.
type Authenticator struct {
	projections *projection.Manager
	sessionTTL  time.Duration
	logger      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	now func() time.Time
}

// NewAuthenticator creates an authenticator over the projections.
func NewAuthenticator(projections *projection.Manager) *Authenticator {
	return &Authenticator{
		projections: projections,
		sessionTTL:  DefaultSessionTTL,
		logger:      log.WithComponent("auth"),
		sessions:    make(map[string]*Session),
		now:         time.Now,
	}
}

// SetSessionTTL overrides the default session lifetime.
func (a *Authenticator) SetSessionTTL(ttl time.Duration) {
	if ttl > 0 {
		a.sessionTTL = ttl
	}
}

// Login verifies an email/password pair and mints a session. Lookup and
// compare failures return the same INVALID_CREDENTIALS error so the
// response does not reveal which part was wrong.
func (a *Authenticator) Login(email, password string) (*Session, error) {
	user, err := a.projections.UserByEmail(email)
	if err != nil {
		return nil, errdefs.New(errdefs.KindUnauthorized, errdefs.CodeInvalidCredentials, "invalid credentials")
	}
	if user.Status != types.UserStatusActive {
		return nil, errdefs.New(errdefs.KindUnauthorized, errdefs.CodeInvalidCredentials, "invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, errdefs.New(errdefs.KindUnauthorized, errdefs.CodeInvalidCredentials, "invalid credentials")
	}

	now := a.now()
	sess := &Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(a.sessionTTL),
	}

	a.mu.Lock()
	a.sessions[sess.Token] = sess
	a.mu.Unlock()

	a.logger.Info().Str("user_id", user.ID).Msg("session created")
	return sess, nil
}

// SwitchTenant records the session's active tenant and returns the updated
// session.
func (a *Authenticator) SwitchTenant(token, tenantResourceID string) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sess, ok := a.sessions[token]
	if !ok || a.now().After(sess.ExpiresAt) {
		return nil, errdefs.Unauthorized("invalid or expired session")
	}
	sess.ActiveTenant = tenantResourceID
	cp := *sess
	return &cp, nil
}

// Logout invalidates a session token. Unknown tokens are a no-op.
func (a *Authenticator) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// AuthenticateSession resolves a session token to its principal.
func (a *Authenticator) AuthenticateSession(token string) (*Principal, error) {
	a.mu.Lock()
	sess, ok := a.sessions[token]
	if ok && a.now().After(sess.ExpiresAt) {
		delete(a.sessions, token)
		ok = false
	}
	a.mu.Unlock()
	if !ok {
		return nil, errdefs.Unauthorized("invalid or expired session")
	}

	user, err := a.projections.UserByID(sess.UserID)
	if err != nil || user.Status != types.UserStatusActive {
		return nil, errdefs.Unauthorized("user no longer active")
	}
	return &Principal{UserID: user.ID}, nil
}

// AuthenticateAPIKey resolves an API key plaintext to its principal. The
// effective user must still be active.
func (a *Authenticator) AuthenticateAPIKey(plaintext string) (*Principal, error) {
	key, err := a.projections.ApiKeyByHash(HashKey(plaintext))
	if err != nil {
		return nil, errdefs.Unauthorized("invalid api key")
	}
	now := a.now()
	if !key.IsActive(now) {
		return nil, errdefs.Unauthorized("api key revoked or expired")
	}
	user, err := a.projections.UserByID(key.UserID)
	if err != nil || user.Status != types.UserStatusActive {
		return nil, errdefs.Unauthorized("user no longer active")
	}

	// Advisory only, so off the request path.
	go a.projections.TouchApiKey(key.ID, now)

	return &Principal{UserID: user.ID, ApiKeyID: key.ID}, nil
}

// MintKey generates a fresh API key. The plaintext is shown to the caller
// exactly once; only the hash is ever stored.
func MintKey() (plaintext, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", errdefs.Internal(err, "generating api key")
	}
	plaintext = KeyPrefix + base64.RawURLEncoding.EncodeToString(raw)
	return plaintext, HashKey(plaintext), nil
}

// HashKey returns the hex SHA-256 of an API key plaintext.
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errdefs.Internal(err, "hashing password")
	}
	return string(h), nil
}
