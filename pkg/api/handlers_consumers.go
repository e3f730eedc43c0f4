package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/eventstore"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/types"
)

type consumerRegisterRequest struct {
	Kind          types.ConsumerKind `json:"kind,omitempty"`
	Callback      string             `json:"callback"`
	Topics        []string           `json:"topics"`
	CorrelationID string             `json:"correlationId,omitempty"`
}

type consumerUpdateRequest struct {
	Callback      string             `json:"callback,omitempty"`
	Topics        map[string]*string `json:"topics,omitempty"`
	CorrelationID string             `json:"correlationId,omitempty"`
}

func (s *Server) handleConsumerRegister(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermManage, types.ResourceConsumer); err != nil {
		writeError(w, err)
		return
	}

	var req consumerRegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Kind == "" {
		req.Kind = types.ConsumerKindHTTP
	}
	if req.Kind == types.ConsumerKindHTTP {
		if err := validateCallback(req.Callback); err != nil {
			writeError(w, err)
			return
		}
	}
	if len(req.Topics) == 0 {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidInput, "at least one topic is required"))
		return
	}

	// Subscriptions start at the tail: the stored position is the current
	// last event, or nil when the topic is still empty.
	positions := make(map[string]*string, len(req.Topics))
	for _, name := range req.Topics {
		topic, err := s.Registry.GetActive(scope.Tenant.Name, scope.Namespace.Name, name)
		if err != nil {
			writeError(w, err)
			return
		}
		if topic.Sequence > 0 {
			tail := eventstore.FormatEventID(scope.Tenant.Name, scope.Namespace.Name, name, topic.Sequence)
			positions[name] = &tail
		} else {
			positions[name] = nil
		}
	}

	now := time.Now().UTC()
	consumer := &types.Consumer{
		ID:            uuid.NewString(),
		Kind:          req.Kind,
		Tenant:        scope.Tenant.Name,
		Namespace:     scope.Namespace.Name,
		Callback:      req.Callback,
		Topics:        positions,
		CorrelationID: req.CorrelationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Consumers.CreateConsumer(consumer); err != nil {
		writeError(w, err)
		return
	}

	for _, name := range req.Topics {
		s.Dispatchers.Ensure(scope.Tenant.Name, scope.Namespace.Name, name)
	}
	writeJSON(w, http.StatusCreated, consumer)
}

func (s *Server) handleConsumerList(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermList, types.ResourceConsumer); err != nil {
		writeError(w, err)
		return
	}

	list, err := s.Consumers.ListConsumersByScope(scope.Tenant.Name, scope.Namespace.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// scopedConsumer loads a consumer and rejects ids that belong to another
// tenant or namespace.
func (s *Server) scopedConsumer(r *http.Request, tenant, namespace string) (*types.Consumer, error) {
	id := chi.URLParam(r, "consumerId")
	consumer, err := s.Consumers.GetConsumer(id)
	if err != nil {
		return nil, err
	}
	if consumer.Tenant != tenant || consumer.Namespace != namespace {
		return nil, errdefs.NotFound(errdefs.CodeConsumerNotFound, "consumer %s not found", id)
	}
	return consumer, nil
}

func (s *Server) handleConsumerGet(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermRead, types.ResourceConsumer); err != nil {
		writeError(w, err)
		return
	}

	consumer, err := s.scopedConsumer(r, scope.Tenant.Name, scope.Namespace.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, consumer)
}

func (s *Server) handleConsumerUpdate(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermUpdate, types.ResourceConsumer); err != nil {
		writeError(w, err)
		return
	}

	consumer, err := s.scopedConsumer(r, scope.Tenant.Name, scope.Namespace.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	var req consumerUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Callback != "" {
		if err := validateCallback(req.Callback); err != nil {
			writeError(w, err)
			return
		}
		consumer.Callback = req.Callback
	}
	if req.CorrelationID != "" {
		consumer.CorrelationID = req.CorrelationID
	}
	if req.Topics != nil {
		topics, err := s.consumerTopicSet(scope, consumer, req.Topics)
		if err != nil {
			writeError(w, err)
			return
		}
		consumer.Topics = topics
	}
	consumer.UpdatedAt = time.Now().UTC()

	if err := s.Consumers.UpdateConsumer(consumer); err != nil {
		writeError(w, err)
		return
	}
	for name := range consumer.Topics {
		s.Dispatchers.Ensure(scope.Tenant.Name, scope.Namespace.Name, name)
	}
	writeJSON(w, http.StatusOK, consumer)
}

// consumerTopicSet resolves an updated subscription map. Existing topics keep
// their stored position, added topics start at the tail, and an explicit
// position must decode to an already-assigned sequence of that topic.
func (s *Server) consumerTopicSet(scope *projection.Scope, consumer *types.Consumer, requested map[string]*string) (map[string]*string, error) {
	if len(requested) == 0 {
		return nil, errdefs.Invalid(errdefs.CodeInvalidInput, "at least one topic is required")
	}

	next := make(map[string]*string, len(requested))
	for name, position := range requested {
		topic, err := s.Registry.GetActive(scope.Tenant.Name, scope.Namespace.Name, name)
		if err != nil {
			return nil, err
		}

		if position != nil {
			id, err := eventstore.ParseEventID(*position)
			if err != nil {
				return nil, err
			}
			id = id.WithScope(scope.Tenant.Name, scope.Namespace.Name)
			if id.Tenant != scope.Tenant.Name || id.Namespace != scope.Namespace.Name || id.Topic != name {
				return nil, errdefs.Invalid(errdefs.CodeInvalidInput, "position %q does not belong to topic %s", *position, name)
			}
			if id.Sequence > topic.Sequence {
				return nil, errdefs.Invalid(errdefs.CodeInvalidInput, "position %q is beyond topic %s sequence %d", *position, name, topic.Sequence)
			}
			canonical := id.String()
			next[name] = &canonical
			continue
		}

		if current, ok := consumer.Topics[name]; ok {
			next[name] = current
			continue
		}
		if topic.Sequence > 0 {
			tail := eventstore.FormatEventID(scope.Tenant.Name, scope.Namespace.Name, name, topic.Sequence)
			next[name] = &tail
		} else {
			next[name] = nil
		}
	}
	return next, nil
}

func (s *Server) handleConsumerDelete(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermDelete, types.ResourceConsumer); err != nil {
		writeError(w, err)
		return
	}

	consumer, err := s.scopedConsumer(r, scope.Tenant.Name, scope.Namespace.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Consumers.DeleteConsumer(consumer.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateCallback(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errdefs.Invalid(errdefs.CodeInvalidCallback, "invalid callback URL %q", raw)
	}
	return nil
}
