package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/eventstore"
	"github.com/cuemby/burrow/pkg/schema"
	"github.com/cuemby/burrow/pkg/topics"
	"github.com/cuemby/burrow/pkg/types"
)

type topicCreateRequest struct {
	Name    string            `json:"name"`
	Schemas []types.SchemaDef `json:"schemas"`
}

type topicUpdateRequest struct {
	Schemas []types.SchemaDef `json:"schemas"`
}

func (s *Server) handleTopicCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermCreate, types.ResourceTopic); err != nil {
		writeError(w, err)
		return
	}

	var req topicCreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	for i := range req.Schemas {
		if err := schema.Check(req.Schemas[i]); err != nil {
			writeError(w, err)
			return
		}
	}

	topic, err := s.Registry.Create(topics.CreateParams{
		Tenant:              scope.Tenant.Name,
		Namespace:           scope.Namespace.Name,
		Name:                req.Name,
		TenantResourceID:    scope.Tenant.ResourceID,
		NamespaceResourceID: scope.Namespace.ResourceID,
		Schemas:             req.Schemas,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.Dispatchers.Ensure(topic.Tenant, topic.Namespace, topic.Name)
	writeJSON(w, http.StatusCreated, topic)
}

func (s *Server) handleTopicList(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermList, types.ResourceTopic); err != nil {
		writeError(w, err)
		return
	}

	list, err := s.Registry.List(scope.Tenant.Name, scope.Namespace.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleTopicGet(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermRead, types.ResourceTopic); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scope.Topic)
}

func (s *Server) handleTopicUpdateSchemas(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermSchemaManage, types.ResourceTopic); err != nil {
		writeError(w, err)
		return
	}

	var req topicUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	for i := range req.Schemas {
		if err := schema.Check(req.Schemas[i]); err != nil {
			writeError(w, err)
			return
		}
	}

	topic, err := s.Registry.UpdateSchemas(scope.Tenant.Name, scope.Namespace.Name, scope.Topic.Name, req.Schemas)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

func (s *Server) handleTopicDelete(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.authorize(r, scope, types.PermDelete, types.ResourceTopic); err != nil {
		writeError(w, err)
		return
	}

	if err := s.Registry.SoftDelete(scope.Tenant.Name, scope.Namespace.Name, scope.Topic.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type publishResponse struct {
	EventIDs []string `json:"eventIds"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var batch []types.PublishRequest
	if err := decode(r, &batch); err != nil {
		writeError(w, err)
		return
	}
	if len(batch) == 0 {
		writeError(w, errdefs.Invalid(errdefs.CodeInvalidRequest, "empty publish batch"))
		return
	}

	eventTypes := make([]string, 0, len(batch))
	for i := range batch {
		batch[i].Tenant = scope.Tenant.Name
		batch[i].Namespace = scope.Namespace.Name
		eventTypes = append(eventTypes, batch[i].Type)
	}

	if _, err := s.authorize(r, scope, types.PermCreate, types.ResourceEvent, eventTypes...); err != nil {
		writeError(w, err)
		return
	}

	ids, err := s.Pipeline.Publish(batch)
	if err != nil {
		writeError(w, publishFailure(err))
		return
	}
	writeJSON(w, http.StatusCreated, publishResponse{EventIDs: ids})
}

// publishFailure folds schema failures into the publish-level code the
// clients key on; other failures keep their own code and status.
func publishFailure(err error) error {
	switch errdefs.CodeOf(err) {
	case errdefs.CodeSchemaValidation, errdefs.CodeSchemaNotFound:
		return errdefs.New(errdefs.KindInvalid, errdefs.CodeEventPublishFailed, "%s", err.Error())
	default:
		return err
	}
}

type eventsResponse struct {
	Events []*types.Event `json:"events"`
	Count  int            `json:"count"`
}

func (s *Server) handleEventsRead(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		writeError(w, err)
		return
	}
	decision, err := s.authorize(r, scope, types.PermRead, types.ResourceEvent)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, errdefs.Invalid(errdefs.CodeInvalidRequest, "invalid limit %q", raw))
			return
		}
	}

	var events []*types.Event
	if date := q.Get("date"); date != "" {
		events, err = s.Store.ReadDate(scope.Tenant.Name, scope.Namespace.Name, scope.Topic.Name, date, limit)
	} else {
		var since int64
		if raw := q.Get("sinceEventId"); raw != "" {
			id, perr := eventstore.ParseEventID(raw)
			if perr != nil {
				writeError(w, perr)
				return
			}
			id = id.WithScope(scope.Tenant.Name, scope.Namespace.Name)
			if id.Tenant != scope.Tenant.Name || id.Namespace != scope.Namespace.Name || id.Topic != scope.Topic.Name {
				writeError(w, errdefs.Invalid(errdefs.CodeInvalidEvent, "event id %q does not address this topic", raw))
				return
			}
			since = id.Sequence
		}
		events, err = s.Store.ReadSince(scope.Tenant.Name, scope.Namespace.Name, scope.Topic.Name, since, limit)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	events = clampAge(events, decision.MaxAgeDays)
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events)})
}

// clampAge drops events older than the grant's read horizon.
func clampAge(events []*types.Event, maxAgeDays int) []*types.Event {
	if maxAgeDays <= 0 {
		if events == nil {
			return []*types.Event{}
		}
		return events
	}
	horizon := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	out := make([]*types.Event, 0, len(events))
	for _, ev := range events {
		if !ev.Timestamp.Before(horizon) {
			out = append(out, ev)
		}
	}
	return out
}
