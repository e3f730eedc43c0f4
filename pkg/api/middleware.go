package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/cuemby/burrow/pkg/auth"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/metrics"
)

type contextKey int

const (
	principalKey contextKey = iota
	sessionTokenKey
)

// principalFrom returns the authenticated principal stored by the auth
// middleware.
func principalFrom(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalKey).(*auth.Principal)
	return p
}

// sessionTokenFrom returns the bearer session token, empty for API key auth.
func sessionTokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(sessionTokenKey).(string)
	return t
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe logs every request and records the API metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Msg("request handled")
	})
}

// authenticate resolves the request credential to a principal. API keys are
// tried first (the "es_" prefix marks them), then session tokens from the
// Authorization header or the sessionId cookie.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := bearerToken(r)
		if credential == "" {
			if c, err := r.Cookie("sessionId"); err == nil {
				credential = c.Value
			}
		}
		if credential == "" {
			writeError(w, errdefs.Unauthorized("missing credentials"))
			return
		}

		var principal *auth.Principal
		var err error
		ctx := r.Context()
		if strings.HasPrefix(credential, auth.KeyPrefix) {
			principal, err = s.Authn.AuthenticateAPIKey(credential)
		} else {
			principal, err = s.Authn.AuthenticateSession(credential)
			ctx = context.WithValue(ctx, sessionTokenKey, credential)
		}
		if err != nil {
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, principalKey, principal)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
