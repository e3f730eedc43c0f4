package projection

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/eventstore"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
)

// Reader reads control-plane topics from the event log. Satisfied by
// *eventstore.Store.
type Reader interface {
	ReadSince(tenant, namespace, topic string, since int64, limit int) ([]*types.Event, error)
}

// Manager holds the five in-memory read models, each a pure fold of its
// reserved topic. Replays and single-event applies take the write lock;
// lookups take the read lock.
type Manager struct {
	reader Reader

	mu          sync.RWMutex
	tenants     map[string]*types.Tenant    // by resourceId
	namespaces  map[string]*types.Namespace // by resourceId
	users       map[string]*types.User      // by id
	apiKeys     map[string]*types.ApiKey    // by id
	apiKeyHash  map[string]string           // keyHash -> key id
	grants      []*types.PermissionGrant
	lastApplied map[string]int64 // management topic -> last folded sequence

	stopCh chan struct{}
	done   sync.WaitGroup
	logger zerolog.Logger
}

// NewManager creates an empty projection layer over the event log.
func NewManager(reader Reader) *Manager {
	return &Manager{
		reader:      reader,
		tenants:     make(map[string]*types.Tenant),
		namespaces:  make(map[string]*types.Namespace),
		users:       make(map[string]*types.User),
		apiKeys:     make(map[string]*types.ApiKey),
		apiKeyHash:  make(map[string]string),
		lastApplied: make(map[string]int64),
		stopCh:      make(chan struct{}),
		logger:      log.WithComponent("projection"),
	}
}

// Rebuild discards all read models and replays every management topic in
// order. Projections are pure folds, so a rebuild converges on the same
// state as the live applies that produced it.
func (m *Manager) Rebuild() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ProjectionRebuildDuration)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tenants = make(map[string]*types.Tenant)
	m.namespaces = make(map[string]*types.Namespace)
	m.users = make(map[string]*types.User)
	m.apiKeys = make(map[string]*types.ApiKey)
	m.apiKeyHash = make(map[string]string)
	m.grants = nil
	m.lastApplied = make(map[string]int64)

	for _, topic := range types.ManagementTopics {
		if err := m.replayLocked(topic); err != nil {
			return err
		}
	}

	m.logger.Info().
		Int("tenants", len(m.tenants)).
		Int("namespaces", len(m.namespaces)).
		Int("users", len(m.users)).
		Int("grants", len(m.grants)).
		Msg("projections rebuilt")
	return nil
}

// Apply folds freshly published events into the read models. Events at or
// below the already-applied sequence are skipped, so the synchronous notify
// path and the reconciliation pass never double-fold.
func (m *Manager) Apply(topic string, events []*types.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		m.applyLocked(topic, ev)
	}
}

// Start begins the periodic reconciliation pass that re-reads each
// management topic's tail, catching up anything a failed notify missed.
func (m *Manager) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	m.done.Add(1)
	go func() {
		defer m.done.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := m.Reconcile(); err != nil {
					m.logger.Error().Err(err).Msg("reconciliation pass failed")
				}
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop halts the reconciliation loop.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.done.Wait()
}

// Reconcile re-reads the unapplied tail of every management topic.
func (m *Manager) Reconcile() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, topic := range types.ManagementTopics {
		if err := m.replayLocked(topic); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) replayLocked(topic string) error {
	events, err := m.reader.ReadSince(types.SystemTenant, types.SystemNamespace, topic, m.lastApplied[topic], 0)
	if err != nil {
		return err
	}
	for _, ev := range events {
		m.applyLocked(topic, ev)
	}
	return nil
}

func (m *Manager) applyLocked(topic string, ev *types.Event) {
	id, err := eventstore.ParseEventID(ev.ID)
	if err != nil {
		m.logger.Error().Err(err).Str("event_id", ev.ID).Msg("unparseable control-plane event id")
		return
	}
	if id.Sequence <= m.lastApplied[topic] {
		return
	}

	switch topic {
	case types.TopicTenants:
		m.applyTenantEvent(ev)
	case types.TopicNamespaces:
		m.applyNamespaceEvent(ev)
	case types.TopicUsers:
		m.applyUserEvent(ev)
	case types.TopicApiKeys:
		m.applyApiKeyEvent(ev)
	case types.TopicPermissions:
		m.applyPermissionEvent(ev)
	default:
		m.logger.Warn().Str("topic", topic).Msg("event for unknown management topic ignored")
		return
	}

	m.lastApplied[topic] = id.Sequence
	metrics.ProjectionEventsAppliedTotal.WithLabelValues(topic).Inc()
}
