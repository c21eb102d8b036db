// Package rest translates between handler results and the HTTP/JSON surface.
//
// Handlers and flows return *rest.Error values; WriteError maps them to a
// structured JSON body with the proper status code. Everything else becomes
// an opaque 500 so internals never leak to clients.
package rest

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/civicwatch/backend/core/logger"
)

// Error is a request-boundary error with an HTTP status.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// The error taxonomy. Every failure a flow can report maps onto one of
// these constructors.

// ValidationError reports malformed or missing required input.
func ValidationError(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "validation_error", Message: message}
}

// AuthError reports a missing, invalid or expired token, or a credential
// mismatch. The message for credential mismatches must not reveal whether
// the account exists.
func AuthError(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "auth_error", Message: message}
}

// DuplicateError reports a uniqueness collision, e.g. username or email
// already taken.
func DuplicateError(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "duplicate_error", Message: message}
}

// NotFoundError reports an unknown resource id.
func NotFoundError(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "not_found", Message: message}
}

// StorageError reports a failed write to disk or blob storage. The request
// is aborted, nothing is persisted.
func StorageError(message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "storage_error", Message: message}
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Default().WithError(err).Errorln("cannot encode JSON response")
	}
}

// WriteError writes err as a structured JSON error body. Unknown error
// types become a plain 500 without detail.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	rlog := logger.FromContext(r.Context())
	var rerr *Error
	if !errors.As(err, &rerr) {
		rlog.WithError(err).Errorln("internal error")
		rerr = &Error{Status: http.StatusInternalServerError, Code: "internal_error"}
	} else if rerr.Status >= http.StatusInternalServerError {
		rlog.WithError(err).Errorln("request failed")
	} else {
		rlog.WithError(err).Debugln("request rejected")
	}
	WriteJSON(w, rerr.Status, rerr)
}

// Decode reads the request body as JSON into v. A malformed body yields a
// ValidationError.
func Decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ValidationError("invalid JSON body")
	}
	return nil
}
