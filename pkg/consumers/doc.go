/*
Package consumers provides BoltDB-backed persistence for webhook consumer
records.

The Store interface covers consumer CRUD plus AdvancePosition, the one field
mutated at runtime: a consumer's last-delivered event id per topic. Position
advances happen inside a single BoltDB write transaction, so a crash during
delivery never leaves a half-updated record, and a failed delivery never
advances the position at all.

Records survive restarts; bootstrap reloads them and resumes dispatchers for
every topic with at least one subscriber.
*/
package consumers
