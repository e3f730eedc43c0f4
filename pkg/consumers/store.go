package consumers

import (
	"time"

	"github.com/cuemby/burrow/pkg/types"
)

// Store defines the interface for persistent consumer state. Consumer
// records survive restarts; on startup dispatchers resume from the stored
// positions.
type Store interface {
	CreateConsumer(consumer *types.Consumer) error
	GetConsumer(id string) (*types.Consumer, error)
	ListConsumers() ([]*types.Consumer, error)
	ListConsumersByScope(tenant, namespace string) ([]*types.Consumer, error)
	ListConsumersByTopic(tenant, namespace, topic string) ([]*types.Consumer, error)
	UpdateConsumer(consumer *types.Consumer) error
	DeleteConsumer(id string) error

	// AdvancePosition sets the consumer's last-delivered event id for one
	// topic in a single atomic write and records the delivery time. It is
	// called only after the delivery adapter reports success.
	AdvancePosition(id, topic, eventID string, at time.Time) error

	// Utility
	Close() error
}
