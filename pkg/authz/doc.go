/*
Package authz decides allow/deny for every authenticated request.

The engine consults the permission projection: it collects the principal's
non-expired grants for the request tenant, keeps those whose resource type
and id match the addressed resource (a nil grant resourceId means every
resource of that type within scope), and allows when a grant carries the
required permission or ADMIN. ADMIN at TENANT scope inherits downward to
everything inside the tenant; ADMIN at NAMESPACE scope to everything inside
the namespace; SCHEMA_MANAGE inherits the same way for schema routes.

Grant constraints narrow the decision: an event-type allowlist, a
time-of-day window, and a max-age read horizon reported on the Decision for
read handlers to clamp. Operations inside a soft-deleted tenant are denied
outright.
*/
package authz
