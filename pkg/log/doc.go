/*
Package log wraps zerolog with Burrow's logging conventions.

Init configures the process-wide logger once at startup (level, JSON vs
console). Components take child loggers via WithComponent and enrich them
with WithTopic / WithConsumer / WithUser so every line carries the resource
it concerns.
*/
package log
