/*
Package projection builds the in-memory read models of the event-sourced
control plane.

The five models (tenants, namespaces, users, api-keys, and permission
grants) are each a pure fold of one reserved topic under $system/$management. On
startup Rebuild replays every topic in order; at runtime the publish
pipeline calls Apply synchronously after each successful management publish,
giving read-your-writes within a request. A periodic reconciliation pass
re-reads each topic's unapplied tail in case a notify was missed.

Folds track the last applied sequence per topic and skip anything at or
below it, so replay, live apply, and reconciliation compose without
double-counting. All models sit behind one RWMutex: folds take the write
lock, lookups the read lock, and lookups return copies.

The ResourceResolver maps URL names to stable resource UUIDs by consulting
the projections (tenants, namespaces) and the topic registry.
*/
package projection
