/*
Package topics manages persistent topic configuration.

Each topic's config (stable resource IDs, current sequence, registered
schemas) is one JSON file under the config root, which is independent of the
event data root. Config writes go through a temp-file + fsync + rename so a
crash never leaves a torn sequence on disk.

The registry also owns the per-topic exclusive locks. The publish pipeline
takes a topic's lock for the duration of sequence assignment and event
writes; Create and UpdateSchemas take it internally.

Schema evolution is additive-only: UpdateSchemas rejects any desired list
that drops a previously registered eventType.
*/
package topics
