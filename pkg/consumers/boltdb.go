package consumers

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
)

var (
	// Bucket names
	bucketConsumers = []byte("consumers")
)

// BoltStore implements Store using BoltDB. Position updates are
// read-modify-write inside one write transaction, which gives the
// per-consumer atomicity the delivery path relies on.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed consumer store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "consumers.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConsumers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db}
	s.refreshGauge()
	return s, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// CreateConsumer persists a new consumer record
func (s *BoltStore) CreateConsumer(consumer *types.Consumer) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConsumers)
		data, err := json.Marshal(consumer)
		if err != nil {
			return err
		}
		return b.Put([]byte(consumer.ID), data)
	})
	if err != nil {
		return errdefs.IO(err, "persist consumer %s", consumer.ID)
	}
	s.refreshGauge()
	return nil
}

// GetConsumer retrieves a consumer by ID
func (s *BoltStore) GetConsumer(id string) (*types.Consumer, error) {
	var consumer types.Consumer
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConsumers)
		data := b.Get([]byte(id))
		if data == nil {
			return errdefs.NotFound(errdefs.CodeConsumerNotFound, "consumer not found: %s", id)
		}
		return json.Unmarshal(data, &consumer)
	})
	if err != nil {
		return nil, err
	}
	return &consumer, nil
}

// ListConsumers returns all consumers
func (s *BoltStore) ListConsumers() ([]*types.Consumer, error) {
	var consumers []*types.Consumer
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConsumers)
		return b.ForEach(func(k, v []byte) error {
			var consumer types.Consumer
			if err := json.Unmarshal(v, &consumer); err != nil {
				return err
			}
			consumers = append(consumers, &consumer)
			return nil
		})
	})
	return consumers, err
}

// ListConsumersByScope returns consumers registered in one namespace
func (s *BoltStore) ListConsumersByScope(tenant, namespace string) ([]*types.Consumer, error) {
	all, err := s.ListConsumers()
	if err != nil {
		return nil, err
	}

	var filtered []*types.Consumer
	for _, c := range all {
		if c.Tenant == tenant && c.Namespace == namespace {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// ListConsumersByTopic returns consumers subscribed to one topic
func (s *BoltStore) ListConsumersByTopic(tenant, namespace, topic string) ([]*types.Consumer, error) {
	scoped, err := s.ListConsumersByScope(tenant, namespace)
	if err != nil {
		return nil, err
	}

	var filtered []*types.Consumer
	for _, c := range scoped {
		if _, ok := c.Topics[topic]; ok {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// UpdateConsumer overwrites a consumer record (upsert)
func (s *BoltStore) UpdateConsumer(consumer *types.Consumer) error {
	return s.CreateConsumer(consumer)
}

// DeleteConsumer removes a consumer record
func (s *BoltStore) DeleteConsumer(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConsumers)
		if b.Get([]byte(id)) == nil {
			return errdefs.NotFound(errdefs.CodeConsumerNotFound, "consumer not found: %s", id)
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return err
	}
	s.refreshGauge()
	return nil
}

// AdvancePosition updates one topic's last-delivered position atomically.
func (s *BoltStore) AdvancePosition(id, topic, eventID string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConsumers)
		data := b.Get([]byte(id))
		if data == nil {
			return errdefs.NotFound(errdefs.CodeConsumerNotFound, "consumer not found: %s", id)
		}

		var consumer types.Consumer
		if err := json.Unmarshal(data, &consumer); err != nil {
			return err
		}
		if _, ok := consumer.Topics[topic]; !ok {
			return errdefs.NotFound(errdefs.CodeTopicNotFound,
				"consumer %s is not subscribed to topic %s", id, topic)
		}

		pos := eventID
		consumer.Topics[topic] = &pos
		consumer.LastDeliveryAt = &at
		consumer.UpdatedAt = at

		updated, err := json.Marshal(&consumer)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}

func (s *BoltStore) refreshGauge() {
	var n int
	_ = s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketConsumers).Stats().KeyN
		return nil
	})
	metrics.ConsumersTotal.Set(float64(n))
}
