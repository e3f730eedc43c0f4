package projection

import (
	"github.com/cuemby/burrow/pkg/topics"
	"github.com/cuemby/burrow/pkg/types"
)

// ResourceResolver translates the human-readable names that appear in URLs
// into the stable resource UUIDs that permissions reference.
type ResourceResolver struct {
	projections *Manager
	registry    *topics.Registry
}

// NewResourceResolver creates a resolver over the projections and the topic
// registry.
func NewResourceResolver(projections *Manager, registry *topics.Registry) *ResourceResolver {
	return &ResourceResolver{projections: projections, registry: registry}
}

// Scope is a resolved (tenant, namespace, topic) path. Namespace and Topic
// are nil when the request did not address them.
type Scope struct {
	Tenant    *types.Tenant
	Namespace *types.Namespace
	Topic     *types.Topic
}

// Resolve looks up each non-empty name in turn. Missing names produce the
// corresponding *_NOT_FOUND error.
func (r *ResourceResolver) Resolve(tenantName, namespaceName, topicName string) (*Scope, error) {
	scope := &Scope{}

	if tenantName == "" {
		return scope, nil
	}
	tenant, err := r.projections.TenantByName(tenantName)
	if err != nil {
		return nil, err
	}
	scope.Tenant = tenant

	if namespaceName == "" {
		return scope, nil
	}
	ns, err := r.projections.NamespaceByName(tenant.ResourceID, namespaceName)
	if err != nil {
		return nil, err
	}
	scope.Namespace = ns

	if topicName == "" {
		return scope, nil
	}
	topic, err := r.registry.GetActive(tenantName, namespaceName, topicName)
	if err != nil {
		return nil, err
	}
	scope.Topic = topic

	return scope, nil
}
