/*
Package dispatch fans published events out to webhook consumers.

One Dispatcher runs per topic as a background actor driven by two inputs: a
periodic tick (default 5 s) and an asynchronous nudge sent after each
publish to the topic. Nudges coalesce through a 1-buffered channel, so any
burst arriving before the actor wakes causes at most one extra pass.

Per wake, the dispatcher snapshots the topic's subscribers and, for each
one, reads events with sequence strictly greater than the stored
last-delivered position and hands the batch to the DeliveryAdapter. The
position advances, atomically, only after the adapter reports success, which
is what makes delivery at-least-once: a crash or failure between delivery
and advance causes a redelivery, never a gap.

Failed batches retry with exponential backoff (5 attempts: 1s, 2s, 4s, 8s,
16s). Exhaustion removes the consumer; its position is left untouched so the
undelivered events remain readable.

The Manager owns the per-topic dispatchers, routes nudges, starts actors on
first use, and drains them all on shutdown. Stop completes within the
longest in-flight delivery timeout.
*/
package dispatch
