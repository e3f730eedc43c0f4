package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/eventstore"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
)

// EventReader reads a topic's events after a sequence. Satisfied by
// *eventstore.Store.
type EventReader interface {
	ReadSince(tenant, namespace, topic string, since int64, limit int) ([]*types.Event, error)
}

// ConsumerStore is the slice of the consumer registry the dispatcher needs.
type ConsumerStore interface {
	ListConsumersByTopic(tenant, namespace, topic string) ([]*types.Consumer, error)
	AdvancePosition(id, topic, eventID string, at time.Time) error
	DeleteConsumer(id string) error
}

// RetryPolicy controls delivery retries for one batch.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries for the same batch.
	MaxAttempts int
	// InitialInterval is the first backoff delay; it doubles per attempt.
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay.
	MaxInterval time.Duration
}

// DefaultRetryPolicy is 5 attempts at 1s, 2s, 4s, 8s, 16s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     5,
	InitialInterval: time.Second,
	MaxInterval:     16 * time.Second,
}

// Dispatcher is the background actor for one topic. It wakes on a periodic
// tick or an asynchronous nudge and advances every subscribed consumer by
// delivering unseen events in sequence order. Nudges coalesce: any number
// arriving before the actor wakes cause at most one extra pass.
type Dispatcher struct {
	tenant    string
	namespace string
	topic     string

	reader    EventReader
	consumers ConsumerStore
	adapter   DeliveryAdapter

	tick     time.Duration
	batchMax int
	retry    RetryPolicy

	nudgeCh chan struct{}
	stopCh  chan struct{}
	done    sync.WaitGroup
	startMu sync.Mutex
	running bool

	logger zerolog.Logger
}

// NewDispatcher creates a stopped dispatcher for one topic.
func NewDispatcher(tenant, namespace, topic string, reader EventReader, consumers ConsumerStore, adapter DeliveryAdapter, tick time.Duration, batchMax int, retry RetryPolicy) *Dispatcher {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy
	}
	return &Dispatcher{
		tenant:    tenant,
		namespace: namespace,
		topic:     topic,
		reader:    reader,
		consumers: consumers,
		adapter:   adapter,
		tick:      tick,
		batchMax:  batchMax,
		retry:     retry,
		nudgeCh:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		logger:    log.WithTopic(tenant, namespace, topic).With().Str("component", "dispatcher").Logger(),
	}
}

// Start begins the dispatch loop. Starting a running dispatcher is a no-op.
func (d *Dispatcher) Start() {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.done.Add(1)
	go d.run()
	metrics.DispatchersRunning.Inc()
	d.logger.Info().Msg("dispatcher started")
}

// Stop drains the current wake and stops the loop. Stopping a stopped
// dispatcher is a no-op.
func (d *Dispatcher) Stop() {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if !d.running {
		return
	}
	close(d.stopCh)
	d.done.Wait()
	d.running = false
	metrics.DispatchersRunning.Dec()
	d.logger.Info().Msg("dispatcher stopped")
}

// Nudge signals that events may be available. Never blocks.
func (d *Dispatcher) Nudge() {
	select {
	case d.nudgeCh <- struct{}{}:
	default:
		// A wake is already pending; coalesce.
	}
}

func (d *Dispatcher) run() {
	defer d.done.Done()

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.DispatcherWakesTotal.WithLabelValues("tick").Inc()
			d.wake()
		case <-d.nudgeCh:
			metrics.DispatcherWakesTotal.WithLabelValues("nudge").Inc()
			d.wake()
		case <-d.stopCh:
			return
		}
	}
}

// wake runs one pass: snapshot subscribers, then catch each one up.
// Deliveries to distinct consumers proceed concurrently; order within one
// consumer is sequence order by construction.
func (d *Dispatcher) wake() {
	subs, err := d.consumers.ListConsumersByTopic(d.tenant, d.namespace, d.topic)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to list consumers")
		return
	}
	if len(subs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, consumer := range subs {
		wg.Add(1)
		go func(c *types.Consumer) {
			defer wg.Done()
			d.catchUp(c)
		}(consumer)
	}
	wg.Wait()
}

// catchUp reads the consumer's unseen events and delivers them.
func (d *Dispatcher) catchUp(consumer *types.Consumer) {
	since, ok := d.position(consumer)
	if !ok {
		return
	}

	batch, err := d.reader.ReadSince(d.tenant, d.namespace, d.topic, since, d.batchMax)
	if err != nil {
		d.logger.Error().Err(err).Str("consumer_id", consumer.ID).Msg("failed to read events")
		return
	}
	if len(batch) == 0 {
		return
	}

	if err := d.deliver(consumer, batch); err != nil {
		d.exhausted(consumer, err)
		return
	}

	last := batch[len(batch)-1]
	if err := d.consumers.AdvancePosition(consumer.ID, d.topic, last.ID, time.Now().UTC()); err != nil {
		d.logger.Error().Err(err).Str("consumer_id", consumer.ID).Msg("failed to advance position")
	}
}

// position decodes the consumer's stored last-delivered id for this topic.
// A nil position means the topic had no events at registration, so every
// sequence is unseen.
func (d *Dispatcher) position(consumer *types.Consumer) (int64, bool) {
	stored, subscribed := consumer.Topics[d.topic]
	if !subscribed {
		return 0, false
	}
	if stored == nil {
		return 0, true
	}
	id, err := eventstore.ParseEventID(*stored)
	if err != nil {
		d.logger.Error().Err(err).Str("consumer_id", consumer.ID).Msg("corrupt stored position")
		return 0, false
	}
	return id.Sequence, true
}

// deliver attempts the batch under the retry policy: exponential backoff,
// same batch each try, up to MaxAttempts total.
func (d *Dispatcher) deliver(consumer *types.Consumer, batch []*types.Event) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.retry.InitialInterval
	bo.MaxInterval = d.retry.MaxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()

	attempt := func() error {
		timer := metrics.NewTimer()
		ctx, cancel := context.WithTimeout(context.Background(), DeliveryTimeout)
		defer cancel()
		err := d.adapter.Deliver(ctx, consumer, batch)
		timer.ObserveDuration(metrics.DeliveryDuration)
		if err != nil {
			metrics.DeliveriesTotal.WithLabelValues("failure").Inc()
			d.logger.Warn().Err(err).
				Str("consumer_id", consumer.ID).
				Int("events", len(batch)).
				Msg("delivery attempt failed")
			return err
		}
		metrics.DeliveriesTotal.WithLabelValues("success").Inc()
		return nil
	}

	return backoff.Retry(attempt, backoff.WithMaxRetries(bo, uint64(d.retry.MaxAttempts-1)))
}

// exhausted applies the retry-exhaustion policy: the consumer is removed.
// Its position is untouched, so the events stay readable and undelivered.
func (d *Dispatcher) exhausted(consumer *types.Consumer, cause error) {
	d.logger.Error().Err(cause).
		Str("consumer_id", consumer.ID).
		Int("attempts", d.retry.MaxAttempts).
		Msg("delivery retries exhausted, removing consumer")

	if err := d.consumers.DeleteConsumer(consumer.ID); err != nil {
		d.logger.Error().Err(err).Str("consumer_id", consumer.ID).Msg("failed to remove consumer")
		return
	}
	metrics.ConsumersRemovedTotal.Inc()
}
