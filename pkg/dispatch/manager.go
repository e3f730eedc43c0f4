package dispatch

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/log"
)

// Config tunes every dispatcher the manager creates.
type Config struct {
	// TickInterval is the periodic wake interval (default 5 s).
	TickInterval time.Duration
	// BatchMax caps events per delivery; <= 0 means unbounded.
	BatchMax int
	// Retry is the per-batch retry policy.
	Retry RetryPolicy
}

// Manager owns one dispatcher per topic and routes nudges to them.
type Manager struct {
	reader    EventReader
	consumers ConsumerStore
	adapter   DeliveryAdapter
	cfg       Config

	mu          sync.Mutex
	dispatchers map[string]*Dispatcher
	stopped     bool

	logger zerolog.Logger
}

// NewManager creates a dispatcher manager.
func NewManager(reader EventReader, consumers ConsumerStore, adapter DeliveryAdapter, cfg Config) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	return &Manager{
		reader:      reader,
		consumers:   consumers,
		adapter:     adapter,
		cfg:         cfg,
		dispatchers: make(map[string]*Dispatcher),
		logger:      log.WithComponent("dispatch"),
	}
}

func key(tenant, namespace, topic string) string {
	return tenant + "/" + namespace + "/" + topic
}

// Ensure starts the topic's dispatcher if it is not already running.
// Called on topic creation, consumer registration, and bootstrap resume.
func (m *Manager) Ensure(tenant, namespace, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	k := key(tenant, namespace, topic)
	if _, ok := m.dispatchers[k]; ok {
		return
	}
	d := NewDispatcher(tenant, namespace, topic, m.reader, m.consumers, m.adapter,
		m.cfg.TickInterval, m.cfg.BatchMax, m.cfg.Retry)
	m.dispatchers[k] = d
	d.Start()
}

// Nudge signals the topic's dispatcher, starting it on first use.
func (m *Manager) Nudge(tenant, namespace, topic string) {
	m.Ensure(tenant, namespace, topic)

	m.mu.Lock()
	d, ok := m.dispatchers[key(tenant, namespace, topic)]
	m.mu.Unlock()
	if ok {
		d.Nudge()
	}
}

// Running reports how many dispatchers are live.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dispatchers)
}

// StopAll drains and stops every dispatcher. Idempotent.
func (m *Manager) StopAll() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	dispatchers := make([]*Dispatcher, 0, len(m.dispatchers))
	for _, d := range m.dispatchers {
		dispatchers = append(dispatchers, d)
	}
	m.mu.Unlock()

	for _, d := range dispatchers {
		d.Stop()
	}
	m.logger.Info().Int("dispatchers", len(dispatchers)).Msg("all dispatchers stopped")
}
