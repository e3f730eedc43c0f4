package publish

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/eventstore"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/schema"
	"github.com/cuemby/burrow/pkg/topics"
	"github.com/cuemby/burrow/pkg/types"
)

// DefaultMaxPayloadBytes caps a single event payload.
const DefaultMaxPayloadBytes = 1 << 20 // 1 MiB

// Nudger receives an "events available" signal after a publish. Nudges are
// asynchronous and coalesce inside the dispatcher.
type Nudger interface {
	Nudge(tenant, namespace, topic string)
}

// Applier folds freshly published control-plane events into the in-memory
// read models. It is called synchronously so a publish-then-query round trip
// on the same request observes its own write.
type Applier interface {
	Apply(topic string, events []*types.Event)
}

// Pipeline validates, sequences, and durably writes event batches.
type Pipeline struct {
	registry  *topics.Registry
	store     *eventstore.Store
	validator *schema.Validator
	nudger    Nudger
	applier   Applier

	maxPayload int
	logger     zerolog.Logger
	now        func() time.Time
}

// NewPipeline creates a publish pipeline over the given registry and store.
func NewPipeline(registry *topics.Registry, store *eventstore.Store, validator *schema.Validator) *Pipeline {
	return &Pipeline{
		registry:   registry,
		store:      store,
		validator:  validator,
		maxPayload: DefaultMaxPayloadBytes,
		logger:     log.WithComponent("publish"),
		now:        time.Now,
	}
}

// SetNudger wires the dispatcher manager. May be nil (no deliveries).
func (p *Pipeline) SetNudger(n Nudger) { p.nudger = n }

// SetApplier wires the projection layer. May be nil.
func (p *Pipeline) SetApplier(a Applier) { p.applier = a }

// SetMaxPayloadBytes overrides the per-event payload cap.
func (p *Pipeline) SetMaxPayloadBytes(n int) {
	if n > 0 {
		p.maxPayload = n
	}
}

type topicKey struct {
	tenant, namespace, topic string
}

// Publish appends a non-empty batch of events. The batch is grouped by
// topic; each group is sequenced and written under that topic's exclusive
// lock. The returned slice holds assigned event ids in input order; on
// partial failure the ids assigned before the error are returned alongside
// it and the corresponding events remain durable.
func (p *Pipeline) Publish(batch []types.PublishRequest) ([]string, error) {
	if len(batch) == 0 {
		return nil, errdefs.Invalid(errdefs.CodeInvalidRequest, "empty publish batch")
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PublishDuration)

	// Group by topic, preserving input order within each group.
	order := make([]topicKey, 0, len(batch))
	groups := make(map[topicKey][]int)
	for i, req := range batch {
		key := topicKey{req.Tenant, req.Namespace, req.Topic}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	ids := make([]string, len(batch))
	written := make(map[topicKey][]*types.Event)

	var failure error
	for _, key := range order {
		evs, err := p.publishGroup(key, groups[key], batch, ids)
		if len(evs) > 0 {
			written[key] = evs
		}
		if err != nil {
			failure = err
			break
		}
	}

	// Locks are released; signal dispatchers asynchronously and fold
	// control-plane events synchronously.
	for key, evs := range written {
		metrics.EventsPublishedTotal.
			WithLabelValues(key.tenant, key.namespace, key.topic).
			Add(float64(len(evs)))
		if p.nudger != nil {
			go p.nudger.Nudge(key.tenant, key.namespace, key.topic)
		}
		if p.applier != nil && key.tenant == types.SystemTenant && key.namespace == types.SystemNamespace {
			p.applier.Apply(key.topic, evs)
		}
	}

	if failure != nil {
		metrics.PublishFailuresTotal.WithLabelValues(errdefs.CodeOf(failure)).Inc()
		return compact(ids), failure
	}
	return ids, nil
}

// publishGroup sequences and writes one topic's share of the batch under the
// topic lock. Events written before an error stay durable and their already
// bumped sequence is persisted before returning.
func (p *Pipeline) publishGroup(key topicKey, indexes []int, batch []types.PublishRequest, ids []string) ([]*types.Event, error) {
	lock := p.registry.Acquire(key.tenant, key.namespace, key.topic)
	lock.Lock()
	defer lock.Unlock()

	topic, err := p.registry.GetActive(key.tenant, key.namespace, key.topic)
	if err != nil {
		return nil, err
	}

	var written []*types.Event
	for _, i := range indexes {
		req := batch[i]

		def := topic.SchemaFor(req.Type)
		if def == nil {
			return written, p.finishGroup(topic, written, errdefs.NotFound(errdefs.CodeSchemaNotFound,
				"no schema registered for event type %q on topic %s", req.Type, key.topic))
		}
		if len(req.Payload) > p.maxPayload {
			return written, p.finishGroup(topic, written, errdefs.New(errdefs.KindTooLarge, errdefs.CodePayloadTooLarge,
				"payload of %d bytes exceeds limit %d", len(req.Payload), p.maxPayload))
		}
		if err := p.validator.Validate(def, req.Payload); err != nil {
			return written, p.finishGroup(topic, written, err)
		}

		seq := topic.Sequence + 1
		ev := &types.Event{
			ID:        eventstore.FormatEventID(key.tenant, key.namespace, key.topic, seq),
			Timestamp: p.now().UTC(),
			Type:      req.Type,
			Payload:   req.Payload,
		}
		if err := p.store.Append(key.tenant, key.namespace, key.topic, ev); err != nil {
			return written, p.finishGroup(topic, written, err)
		}

		topic.Sequence = seq
		ids[i] = ev.ID
		written = append(written, ev)
	}

	return written, p.finishGroup(topic, written, nil)
}

// finishGroup persists the bumped sequence for whatever was written. The
// persisted sequence is authoritative even when a later event in the batch
// failed.
func (p *Pipeline) finishGroup(topic *types.Topic, written []*types.Event, cause error) error {
	if len(written) > 0 {
		if err := p.registry.Persist(topic); err != nil {
			p.logger.Error().Err(err).
				Str("topic", topic.Tenant+"/"+topic.Namespace+"/"+topic.Name).
				Msg("failed to persist topic sequence")
			if cause == nil {
				return err
			}
		}
	}
	return cause
}

func compact(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
