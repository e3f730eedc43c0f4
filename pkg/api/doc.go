/*
Package api is the HTTP surface of the broker.

Routes are mounted on a chi router. Health, readiness, metrics, and login
are public; everything else passes through the authentication middleware
(API key or session bearer token, sessionId cookie as fallback) and then a
per-route authorization check against the resolved (tenant, namespace,
topic) scope.

Control-plane mutations never write read models directly: each handler
appends an event to the matching reserved topic through the publish
pipeline, which folds it into the projections synchronously before the
response is written.

Typed errors from the core packages map onto HTTP statuses in respond.go;
the body always carries {error, code} with a stable code.
*/
package api
