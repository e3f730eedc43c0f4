package topics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/types"
)

// Registry is the persistent topic configuration store. One JSON file per
// topic lives at <configRoot>/<tenant>/<namespace>/<name>.json holding the
// stable IDs, the current sequence, and the schema list.
type Registry struct {
	configRoot string
	logger     zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRegistry creates a registry rooted at configRoot, creating it on demand.
func NewRegistry(configRoot string) (*Registry, error) {
	if err := os.MkdirAll(configRoot, 0755); err != nil {
		return nil, errdefs.IO(err, "create config root %s", configRoot)
	}
	return &Registry{
		configRoot: configRoot,
		logger:     log.WithComponent("topics"),
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// Acquire returns the exclusive lock for one topic. Publishes to the same
// topic serialize on it; distinct topics proceed in parallel.
func (r *Registry) Acquire(tenant, namespace, name string) *sync.Mutex {
	key := tenant + "/" + namespace + "/" + name
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

func (r *Registry) configPath(tenant, namespace, name string) string {
	return filepath.Join(r.configRoot, tenant, namespace, name+".json")
}

// CreateParams carries everything needed to register a topic.
type CreateParams struct {
	Tenant              string
	Namespace           string
	Name                string
	TenantResourceID    string
	NamespaceResourceID string
	Schemas             []types.SchemaDef
}

// Create registers a new topic with a fresh resourceId and sequence 0. It
// fails with TOPIC_ALREADY_EXISTS when the (tenant, namespace, name) tuple
// is already registered.
func (r *Registry) Create(p CreateParams) (*types.Topic, error) {
	if err := validateName(p.Name); err != nil {
		return nil, err
	}

	lock := r.Acquire(p.Tenant, p.Namespace, p.Name)
	lock.Lock()
	defer lock.Unlock()

	path := r.configPath(p.Tenant, p.Namespace, p.Name)
	if _, err := os.Stat(path); err == nil {
		return nil, errdefs.Conflict(errdefs.CodeTopicExists,
			"topic %s/%s/%s already exists", p.Tenant, p.Namespace, p.Name)
	}

	now := time.Now().UTC()
	topic := &types.Topic{
		ResourceID:          uuid.NewString(),
		TenantResourceID:    p.TenantResourceID,
		NamespaceResourceID: p.NamespaceResourceID,
		Tenant:              p.Tenant,
		Namespace:           p.Namespace,
		Name:                p.Name,
		Sequence:            0,
		Schemas:             p.Schemas,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := r.Persist(topic); err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("topic", p.Tenant+"/"+p.Namespace+"/"+p.Name).
		Str("resource_id", topic.ResourceID).
		Msg("topic created")
	return topic, nil
}

// Get loads a topic config. Soft-deleted topics are returned; callers that
// must reject them use GetActive.
func (r *Registry) Get(tenant, namespace, name string) (*types.Topic, error) {
	data, err := os.ReadFile(r.configPath(tenant, namespace, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.NotFound(errdefs.CodeTopicNotFound,
				"topic %s/%s/%s not found", tenant, namespace, name)
		}
		return nil, errdefs.IO(err, "read topic config %s/%s/%s", tenant, namespace, name)
	}
	var topic types.Topic
	if err := json.Unmarshal(data, &topic); err != nil {
		return nil, errdefs.IO(err, "decode topic config %s/%s/%s", tenant, namespace, name)
	}
	return &topic, nil
}

// GetActive loads a topic and rejects soft-deleted ones with TOPIC_NOT_FOUND.
func (r *Registry) GetActive(tenant, namespace, name string) (*types.Topic, error) {
	topic, err := r.Get(tenant, namespace, name)
	if err != nil {
		return nil, err
	}
	if topic.DeletedAt != nil {
		return nil, errdefs.NotFound(errdefs.CodeTopicNotFound,
			"topic %s/%s/%s not found", tenant, namespace, name)
	}
	return topic, nil
}

// List returns every topic registered under the namespace, soft-deleted
// topics excluded.
func (r *Registry) List(tenant, namespace string) ([]*types.Topic, error) {
	dir := filepath.Join(r.configRoot, tenant, namespace)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errdefs.IO(err, "read namespace config directory %s", dir)
	}

	var out []*types.Topic
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		topic, err := r.Get(tenant, namespace, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		if topic.DeletedAt == nil {
			out = append(out, topic)
		}
	}
	return out, nil
}

// UpdateSchemas replaces the topic's schema list with the desired one,
// enforcing additive-only evolution: every previously registered eventType
// must still be present. Matching eventTypes take the new schema body;
// backward compatibility of the schema against past events is not checked,
// which is the documented policy.
func (r *Registry) UpdateSchemas(tenant, namespace, name string, desired []types.SchemaDef) (*types.Topic, error) {
	lock := r.Acquire(tenant, namespace, name)
	lock.Lock()
	defer lock.Unlock()

	topic, err := r.GetActive(tenant, namespace, name)
	if err != nil {
		return nil, err
	}

	have := make(map[string]bool, len(desired))
	for _, s := range desired {
		have[s.EventType] = true
	}
	for _, s := range topic.Schemas {
		if !have[s.EventType] {
			return nil, errdefs.Conflict(errdefs.CodeSchemaRemoval,
				"event type %q cannot be removed from topic %s/%s/%s",
				s.EventType, tenant, namespace, name)
		}
	}

	topic.Schemas = desired
	topic.UpdatedAt = time.Now().UTC()
	if err := r.Persist(topic); err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("topic", tenant+"/"+namespace+"/"+name).
		Int("schemas", len(desired)).
		Msg("topic schemas updated")
	return topic, nil
}

// SoftDelete marks the topic deleted. Its events stay on disk.
func (r *Registry) SoftDelete(tenant, namespace, name string) error {
	lock := r.Acquire(tenant, namespace, name)
	lock.Lock()
	defer lock.Unlock()

	topic, err := r.GetActive(tenant, namespace, name)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	topic.DeletedAt = &now
	topic.UpdatedAt = now
	return r.Persist(topic)
}

// Persist writes the topic config durably: temp file in the same directory,
// fsync, then rename over the old config. The caller holds the topic lock.
func (r *Registry) Persist(topic *types.Topic) error {
	path := r.configPath(topic.Tenant, topic.Namespace, topic.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errdefs.IO(err, "create config directory for %s", topic.Name)
	}

	data, err := json.MarshalIndent(topic, "", "  ")
	if err != nil {
		return errdefs.IO(err, "marshal topic config %s", topic.Name)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+topic.Name+"-*.tmp")
	if err != nil {
		return errdefs.IO(err, "create temp config for %s", topic.Name)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errdefs.IO(err, "write temp config for %s", topic.Name)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errdefs.IO(err, "sync temp config for %s", topic.Name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errdefs.IO(err, "close temp config for %s", topic.Name)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errdefs.IO(err, "replace config for %s", topic.Name)
	}
	return nil
}

// validateName rejects names that would break the path and id formats.
func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return errdefs.Invalid(errdefs.CodeInvalidInput, "invalid topic name %q", name)
	}
	return nil
}
