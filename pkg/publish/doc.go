/*
Package publish implements the publish pipeline: the single write path into
the event store.

A batch is grouped by topic. Each group runs under the topic's exclusive
lock: load config, then per event look up the schema for its type, validate
the payload, assign sequence = current + 1, write the event file, and
finally persist the bumped sequence with the config's fsync+rename
discipline. Publishes to distinct topics proceed in parallel.

The pipeline is partial-failure safe: events written before an error stay
durable, their sequence is persisted, and their ids are returned alongside
the error for the failing event.

After the locks are released, affected dispatchers are nudged
asynchronously, and events published to the reserved $system/$management
topics are folded into the projections synchronously so a request observes
its own writes.
*/
package publish
