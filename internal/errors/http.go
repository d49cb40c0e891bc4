// Package errors provides the HTTP error envelope used by the ops API.
package errors

import (
	"encoding/json"
	"net/http"
)

// Stable machine-readable error codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
)

// HTTPErrorResponse is the JSON envelope every API error is wrapped in.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError carries the code, message, and request correlation id.
type HTTPError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError writes the envelope with the given status. requestID is
// the correlation id established by the server's middleware, so the
// envelope always matches the access log line.
func WriteError(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{Code: code, Message: message, RequestID: requestID},
	})
}
