/*
Package types defines the shared data model for Burrow's event store, webhook
delivery, and event-sourced control plane.

The package is dependency-free by design: every other package imports it, and
it imports nothing of Burrow. Types fall into three groups:

Data plane:
  - Event: one immutable JSON record in a topic
  - Topic: per-topic configuration (stable IDs, sequence, schemas)
  - SchemaDef: eventType → JSON schema binding
  - Consumer: a webhook subscription with per-topic positions

Control plane (projected from reserved topics):
  - Tenant, Namespace: resource scoping with stable resourceIds
  - User, ApiKey: identities and credentials
  - PermissionGrant, Constraints: authorization records

Identity rules:
  - Human-readable names (tenant, namespace, topic) appear in URLs and may
    change; permissions always reference the immutable resourceId.
  - Event IDs are "<tenant>/<namespace>/<topic>-<sequence>".

The reserved control-plane location is $system/$management with the five
topics listed in ManagementTopics.
*/
package types
