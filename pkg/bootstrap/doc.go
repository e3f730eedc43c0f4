/*
Package bootstrap seeds the control plane on startup: the reserved $system
tenant and $management namespace, the five management topics with their
event-type schemas, and an initial active admin holding ADMIN on $system.
Every step checks projected state first, so the sequence is idempotent.
After seeding it resumes a dispatcher for each topic that has persisted
consumers.
*/
package bootstrap
