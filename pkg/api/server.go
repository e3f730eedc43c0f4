package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/auth"
	"github.com/cuemby/burrow/pkg/authz"
	"github.com/cuemby/burrow/pkg/consumers"
	"github.com/cuemby/burrow/pkg/dispatch"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/eventstore"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/publish"
	"github.com/cuemby/burrow/pkg/topics"
	"github.com/cuemby/burrow/pkg/types"
)

// Deps carries everything the HTTP layer serves from.
type Deps struct {
	Registry    *topics.Registry
	Store       *eventstore.Store
	Pipeline    *publish.Pipeline
	Consumers   consumers.Store
	Dispatchers *dispatch.Manager
	Projections *projection.Manager
	Resolver    *projection.ResourceResolver
	Authn       *auth.Authenticator
	Authz       *authz.Engine
	Version     string
}

// Server is the HTTP API.
type Server struct {
	Deps

	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer creates the API server with its full route table.
func NewServer(deps Deps) *Server {
	return &Server{
		Deps:   deps,
		logger: log.WithComponent("api"),
	}
}

// Router builds the route table. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.observe)

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	// Everything else requires a credential.
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/auth/password/change", s.handlePasswordChange)
		r.Get("/auth/tenants", s.handleAuthTenants)
		r.Post("/auth/switch-tenant/{tenant}", s.handleSwitchTenant)

		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", s.handleTenantCreate)
			r.Get("/", s.handleTenantList)

			r.Route("/{tenant}", func(r chi.Router) {
				r.Get("/", s.handleTenantGet)
				r.Put("/", s.handleTenantUpdate)
				r.Delete("/", s.handleTenantDelete)

				r.Route("/users", func(r chi.Router) {
					r.Post("/", s.handleUserCreate)
					r.Get("/", s.handleUserList)
					r.Route("/{userId}", func(r chi.Router) {
						r.Get("/", s.handleUserGet)
						r.Put("/", s.handleUserUpdate)
						r.Delete("/", s.handleUserDelete)

						r.Post("/roles/{roleId}", s.handleRoleAssign)
						r.Delete("/roles/{roleId}", s.handleRoleRemove)

						r.Post("/api-keys", s.handleApiKeyCreate)
						r.Get("/api-keys", s.handleApiKeyList)
						r.Delete("/api-keys/{keyId}", s.handleApiKeyRevoke)

						r.Get("/permissions", s.handlePermissionList)
						r.Post("/permissions", s.handlePermissionGrant)
						r.Delete("/permissions", s.handlePermissionRevoke)
					})
				})

				r.Route("/namespaces", func(r chi.Router) {
					r.Post("/", s.handleNamespaceCreate)
					r.Get("/", s.handleNamespaceList)
					r.Route("/{namespace}", func(r chi.Router) {
						r.Get("/", s.handleNamespaceGet)
						r.Put("/", s.handleNamespaceUpdate)
						r.Delete("/", s.handleNamespaceDelete)

						r.Post("/events", s.handlePublish)

						r.Route("/topics", func(r chi.Router) {
							r.Post("/", s.handleTopicCreate)
							r.Get("/", s.handleTopicList)
							r.Get("/{topic}", s.handleTopicGet)
							r.Put("/{topic}", s.handleTopicUpdateSchemas)
							r.Delete("/{topic}", s.handleTopicDelete)
							r.Get("/{topic}/events", s.handleEventsRead)
						})

						r.Route("/consumers", func(r chi.Router) {
							r.Post("/register", s.handleConsumerRegister)
							r.Get("/", s.handleConsumerList)
							r.Get("/{consumerId}", s.handleConsumerGet)
							r.Put("/{consumerId}", s.handleConsumerUpdate)
							r.Delete("/{consumerId}", s.handleConsumerDelete)
						})
					})
				})
			})
		})
	})

	return r
}

// Start serves the API until Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("api server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// resolveScope translates the URL path names into a resolved Scope.
func (s *Server) resolveScope(r *http.Request) (*projection.Scope, error) {
	return s.Resolver.Resolve(
		chi.URLParam(r, "tenant"),
		chi.URLParam(r, "namespace"),
		chi.URLParam(r, "topic"),
	)
}

// authorize runs the engine for the request principal against a resolved
// scope.
func (s *Server) authorize(r *http.Request, scope *projection.Scope, perm types.Permission, rt types.ResourceType, eventTypes ...string) (*authz.Decision, error) {
	principal := principalFrom(r.Context())
	if principal == nil {
		return nil, errdefs.Unauthorized("missing credentials")
	}
	return s.Authz.Authorize(authz.Request{
		PrincipalIDs: principal.IDs(),
		Permission:   perm,
		ResourceType: rt,
		Scope:        scope,
		EventTypes:   eventTypes,
	})
}

// systemScope resolves the reserved $system tenant, the scope for
// tenant-collection operations.
func (s *Server) systemScope() (*projection.Scope, error) {
	return s.Resolver.Resolve(types.SystemTenant, "", "")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   s.Version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"store":       "ok",
		"consumers":   "ok",
		"dispatchers": "ok",
	}
	status := http.StatusOK
	if _, err := s.Consumers.ListConsumers(); err != nil {
		checks["consumers"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":      map[bool]string{true: "ready", false: "not ready"}[status == http.StatusOK],
		"timestamp":   time.Now().UTC(),
		"checks":      checks,
		"dispatchers": s.Dispatchers.Running(),
	})
}
