/*
Package auth authenticates requests and manages credentials.

Two credential forms are accepted: login sessions minted by Login after a
bcrypt password check, and API keys carrying the "es_" prefix. Sessions are
held in an in-memory map with a TTL. API keys are looked up by the SHA-256
hash of their plaintext in the api-key projection; the plaintext itself is
returned once at mint time and never stored.

Both paths resolve to a Principal naming the effective user and, for key
auth, the key id, so grants addressed to either identity apply.
*/
package auth
