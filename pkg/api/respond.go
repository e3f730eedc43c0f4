package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cuemby/burrow/pkg/errdefs"
)

// errorBody is the wire form of every failure response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a typed error to its HTTP status and stable code.
// Internal errors get a safe generic message; everything else surfaces its
// own text.
func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: errdefs.CodeOf(err)})
}

func statusOf(err error) int {
	switch errdefs.KindOf(err) {
	case errdefs.KindInvalid:
		return http.StatusBadRequest
	case errdefs.KindNotFound:
		return http.StatusNotFound
	case errdefs.KindConflict:
		return http.StatusConflict
	case errdefs.KindUnauthorized:
		return http.StatusUnauthorized
	case errdefs.KindForbidden:
		return http.StatusForbidden
	case errdefs.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case errdefs.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// maxBodyBytes caps request bodies well above the per-event payload cap so
// batches fit.
const maxBodyBytes = 8 << 20

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return errdefs.Invalid(errdefs.CodeInvalidRequest, "reading request body")
	}
	if int64(len(body)) > maxBodyBytes {
		return errdefs.New(errdefs.KindTooLarge, errdefs.CodePayloadTooLarge, "request body too large")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errdefs.Invalid(errdefs.CodeInvalidRequest, "malformed JSON body: %v", err)
	}
	return nil
}
