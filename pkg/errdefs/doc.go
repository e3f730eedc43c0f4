/*
Package errdefs defines Burrow's typed error values.

Services return *Error carrying a Kind (for HTTP status mapping and retry
classification) and a stable wire Code (returned to clients in the error
body). Errors wrap their causes so errors.Is/As work through the chain; the
API layer is the single place where kinds become status codes.
*/
package errdefs
