package api

import (
	"encoding/json"
	"strings"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
)

// publishManagement appends one control-plane event to a reserved topic.
// The projection layer folds it synchronously inside the pipeline, so the
// handler can read its own write immediately after.
func (s *Server) publishManagement(topic, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errdefs.Internal(err, "encoding %s payload", eventType)
	}
	_, err = s.Pipeline.Publish([]types.PublishRequest{{
		Tenant:    types.SystemTenant,
		Namespace: types.SystemNamespace,
		Topic:     topic,
		Type:      eventType,
		Payload:   raw,
	}})
	return err
}

// managementEvent is one entry of a management batch.
type managementEvent struct {
	Type    string
	Payload any
}

// publishManagementBatch appends several events to one reserved topic in a
// single sequenced batch.
func (s *Server) publishManagementBatch(topic string, events []managementEvent) error {
	batch := make([]types.PublishRequest, 0, len(events))
	for _, ev := range events {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return errdefs.Internal(err, "encoding %s payload", ev.Type)
		}
		batch = append(batch, types.PublishRequest{
			Tenant:    types.SystemTenant,
			Namespace: types.SystemNamespace,
			Topic:     topic,
			Type:      ev.Type,
			Payload:   raw,
		})
	}
	_, err := s.Pipeline.Publish(batch)
	return err
}

// validateResourceName rejects empty names, path separators, and the
// reserved "$" prefix used by the control plane.
func validateResourceName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return errdefs.Invalid(errdefs.CodeInvalidInput, "invalid name %q", name)
	}
	if strings.HasPrefix(name, "$") {
		return errdefs.Invalid(errdefs.CodeInvalidInput, "names beginning with $ are reserved")
	}
	return nil
}
