/*
Package eventstore provides the append-only, file-backed per-topic event log.

Each event is a single JSON file:

	<dataRoot>/<tenant>/<namespace>/<topic>/<YYYY-MM-DD>/<bucket>/<topic>-<seq>.json

where <bucket> is the zero-padded group (sequence-1)/1000, so events 1-1000
land in 0000, 1001-2000 in 0001, and so on. Directories are created on
demand. Because sequences are assigned in time order, walking date
directories in ascending name order and buckets and files in ascending
numeric order yields ascending sequence order.

The store does not allocate sequences or hold locks; the publish pipeline
owns the per-topic lock and hands fully-formed events to Append. Reads come
in two shapes: everything after a sequence (dispatcher polling, the
?sinceEventId= query) and everything on a date.

Event ids encode and decode through FormatEventID / ParseEventID; the legacy
single-segment "<topic>-<seq>" form is accepted on input and re-scoped from
request context.
*/
package eventstore
