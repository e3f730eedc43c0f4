package authz

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

// Request is one authorization question: may this principal perform the
// required permission on the addressed resource type within the resolved
// scope?
type Request struct {
	// PrincipalIDs holds the authenticated user id and, when the request
	// authenticated with an API key, the key id as well. A grant to either
	// satisfies the request.
	PrincipalIDs []string
	Permission   types.Permission
	ResourceType types.ResourceType
	Scope        *projection.Scope
	// EventTypes restricts the decision to grants covering these event
	// types (publish and typed-read paths).
	EventTypes []string
	Now        time.Time
}

// Decision is a successful (ALLOW) outcome. MaxAgeDays carries the tightest
// read-horizon constraint of the satisfying grant, 0 meaning unconstrained.
type Decision struct {
	MaxAgeDays int
}

// Engine decides allow/deny from the permission projection plus inheritance
// and expiry rules.
type Engine struct {
	projections *projection.Manager
	logger      zerolog.Logger
}

// NewEngine creates an authorization engine over the projections.
func NewEngine(projections *projection.Manager) *Engine {
	return &Engine{
		projections: projections,
		logger:      log.WithComponent("authz"),
	}
}

// Authorize returns a Decision on ALLOW and a PERMISSION_DENIED error on
// DENY. Requests inside a soft-deleted tenant are always denied.
func (e *Engine) Authorize(req Request) (*Decision, error) {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	if req.Scope == nil || req.Scope.Tenant == nil {
		return nil, errdefs.Forbidden("no tenant in scope")
	}
	if req.Scope.Tenant.DeletedAt != nil {
		return nil, errdefs.Forbidden("tenant %s is deleted", req.Scope.Tenant.Name)
	}

	for _, principalID := range req.PrincipalIDs {
		grants := e.projections.GrantsFor(principalID, req.Scope.Tenant.ResourceID, req.Now)
		for _, g := range grants {
			if !e.scopeMatches(g, req.Scope) {
				continue
			}
			if !e.satisfies(g, req) {
				continue
			}
			if !constraintsAllow(g.Constraints, req) {
				continue
			}
			dec := &Decision{}
			if g.Constraints != nil {
				dec.MaxAgeDays = g.Constraints.MaxAgeDays
			}
			return dec, nil
		}
	}

	e.logger.Debug().
		Strs("principals", req.PrincipalIDs).
		Str("permission", string(req.Permission)).
		Str("resource_type", string(req.ResourceType)).
		Str("tenant", req.Scope.Tenant.Name).
		Msg("authorization denied")
	return nil, errdefs.Forbidden("missing %s on %s", req.Permission, req.ResourceType)
}

// scopeMatches checks the grant's namespace/topic narrowing against the
// request scope. A grant narrowed to a namespace cannot authorize an
// operation addressed above it.
func (e *Engine) scopeMatches(g *types.PermissionGrant, scope *projection.Scope) bool {
	if g.NamespaceResourceID != nil {
		if scope.Namespace == nil || scope.Namespace.ResourceID != *g.NamespaceResourceID {
			return false
		}
	}
	if g.TopicResourceID != nil {
		if scope.Topic == nil || scope.Topic.ResourceID != *g.TopicResourceID {
			return false
		}
	}
	return true
}

// satisfies applies the direct-match and inheritance rules.
func (e *Engine) satisfies(g *types.PermissionGrant, req Request) bool {
	carries := g.Has(req.Permission) || g.Has(types.PermAdmin)

	// Direct match on the addressed resource type.
	if g.ResourceType == req.ResourceType {
		if !carries {
			return false
		}
		return g.ResourceID == nil || *g.ResourceID == addressedID(req)
	}

	// Inheritance downward: ADMIN (or SCHEMA_MANAGE for schema routes) at an
	// enclosing scope satisfies anything beneath it.
	inheritable := g.Has(types.PermAdmin) ||
		(req.Permission == types.PermSchemaManage && g.Has(types.PermSchemaManage))
	if !inheritable {
		return false
	}

	switch g.ResourceType {
	case types.ResourceTenant:
		if !under(req.ResourceType, types.ResourceNamespace, types.ResourceTopic, types.ResourceEvent, types.ResourceConsumer, types.ResourceUser) {
			return false
		}
		return g.ResourceID == nil || *g.ResourceID == req.Scope.Tenant.ResourceID
	case types.ResourceNamespace:
		if !under(req.ResourceType, types.ResourceTopic, types.ResourceEvent, types.ResourceConsumer) {
			return false
		}
		if req.Scope.Namespace == nil {
			return false
		}
		return g.ResourceID == nil || *g.ResourceID == req.Scope.Namespace.ResourceID
	}
	return false
}

// addressedID returns the UUID of the resource the request addresses, empty
// when the type has no single addressed instance (EVENT, CONSUMER).
func addressedID(req Request) string {
	switch req.ResourceType {
	case types.ResourceTenant:
		return req.Scope.Tenant.ResourceID
	case types.ResourceNamespace:
		if req.Scope.Namespace != nil {
			return req.Scope.Namespace.ResourceID
		}
	case types.ResourceTopic:
		if req.Scope.Topic != nil {
			return req.Scope.Topic.ResourceID
		}
	}
	return ""
}

func under(t types.ResourceType, allowed ...types.ResourceType) bool {
	for _, a := range allowed {
		if t == a {
			return true
		}
	}
	return false
}

// constraintsAllow applies the optional grant constraints: event-type
// allowlist and time-of-day window. The max-age horizon is reported on the
// Decision rather than enforced here.
func constraintsAllow(c *types.Constraints, req Request) bool {
	if c == nil {
		return true
	}

	if len(c.EventTypes) > 0 && len(req.EventTypes) > 0 {
		allowed := make(map[string]bool, len(c.EventTypes))
		for _, t := range c.EventTypes {
			allowed[t] = true
		}
		for _, t := range req.EventTypes {
			if !allowed[t] {
				return false
			}
		}
	}

	if c.TimeOfDayStart != "" && c.TimeOfDayEnd != "" {
		if !inWindow(req.Now, c.TimeOfDayStart, c.TimeOfDayEnd) {
			return false
		}
	}
	return true
}

// inWindow checks an "HH:MM".."HH:MM" window in UTC; windows crossing
// midnight wrap.
func inWindow(now time.Time, start, end string) bool {
	minutes := func(hhmm string) (int, bool) {
		var h, m int
		if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
			return 0, false
		}
		if h < 0 || h > 23 || m < 0 || m > 59 {
			return 0, false
		}
		return h*60 + m, true
	}

	s, ok1 := minutes(start)
	e, ok2 := minutes(end)
	if !ok1 || !ok2 {
		return false
	}
	n := now.UTC().Hour()*60 + now.UTC().Minute()
	if s <= e {
		return n >= s && n <= e
	}
	return n >= s || n <= e
}
