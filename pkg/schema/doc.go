/*
Package schema validates event payloads against per-topic JSON schemas using
a draft 2020-12 engine. Compiled schemas are cached by content hash; Check
rejects malformed schema documents when topics are created or updated.
*/
package schema
