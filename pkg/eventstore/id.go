package eventstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/burrow/pkg/errdefs"
)

// EventID is the decoded form of a canonical event id.
type EventID struct {
	Tenant    string
	Namespace string
	Topic     string
	Sequence  int64
}

// String re-encodes the id into its canonical wire form.
func (id EventID) String() string {
	return FormatEventID(id.Tenant, id.Namespace, id.Topic, id.Sequence)
}

// FormatEventID builds the canonical "<tenant>/<namespace>/<topic>-<sequence>" id.
func FormatEventID(tenant, namespace, topic string, sequence int64) string {
	return fmt.Sprintf("%s/%s/%s-%d", tenant, namespace, topic, sequence)
}

// ParseEventID decodes a canonical event id. Legacy single-segment ids
// ("<topic>-<sequence>") are accepted; callers supply the tenant and
// namespace from request context via WithScope when needed.
func ParseEventID(raw string) (EventID, error) {
	segments := strings.Split(raw, "/")

	var scoped EventID
	var last string
	switch len(segments) {
	case 1:
		last = segments[0]
	case 3:
		scoped.Tenant = segments[0]
		scoped.Namespace = segments[1]
		last = segments[2]
		if scoped.Tenant == "" || scoped.Namespace == "" {
			return EventID{}, errdefs.Invalid(errdefs.CodeInvalidEvent, "malformed event id %q", raw)
		}
	default:
		return EventID{}, errdefs.Invalid(errdefs.CodeInvalidEvent, "malformed event id %q", raw)
	}

	// The final segment is "<topic>-<sequence>"; topic itself may contain
	// dashes, so split on the last one.
	cut := strings.LastIndex(last, "-")
	if cut <= 0 || cut == len(last)-1 {
		return EventID{}, errdefs.Invalid(errdefs.CodeInvalidEvent, "malformed event id %q", raw)
	}
	seq, err := strconv.ParseInt(last[cut+1:], 10, 64)
	if err != nil || seq <= 0 {
		return EventID{}, errdefs.Invalid(errdefs.CodeInvalidEvent, "malformed event sequence in %q", raw)
	}

	scoped.Topic = last[:cut]
	scoped.Sequence = seq
	return scoped, nil
}

// WithScope fills in tenant and namespace on a legacy id that lacked them.
func (id EventID) WithScope(tenant, namespace string) EventID {
	if id.Tenant == "" {
		id.Tenant = tenant
	}
	if id.Namespace == "" {
		id.Namespace = namespace
	}
	return id
}
