package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/scanctl/internal/auth"
	"github.com/nerrad567/scanctl/internal/console"
	"github.com/nerrad567/scanctl/internal/dispatch"
	"github.com/nerrad567/scanctl/internal/history"
	"github.com/nerrad567/scanctl/internal/protocol"
	"github.com/nerrad567/scanctl/internal/registry"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeBusy         = "busy"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeUnavailable  = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a console, registry or dispatch error onto an HTTP
// status. Unrecognised errors are logged and reported as 500 with a generic
// message.
func (s *Server) writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, history.ErrNotFound),
		errors.Is(err, auth.ErrOperatorNotFound):
		writeNotFound(w, err.Error())

	case errors.Is(err, registry.ErrDuplicateController),
		errors.Is(err, registry.ErrMacroExists),
		errors.Is(err, auth.ErrUsernameExists):
		writeConflict(w, err.Error())

	case errors.Is(err, dispatch.ErrBusy):
		writeError(w, http.StatusConflict, ErrCodeBusy, err.Error())

	case errors.Is(err, registry.ErrInvalidUnit),
		errors.Is(err, registry.ErrInvalidController),
		errors.Is(err, registry.ErrInvalidMacro),
		errors.Is(err, protocol.ErrUnknownCommand),
		errors.Is(err, protocol.ErrUnknownOption),
		errors.Is(err, protocol.ErrInvalidAddress),
		errors.Is(err, dispatch.ErrInvalidRequest),
		errors.Is(err, console.ErrNothingToSend),
		errors.Is(err, console.ErrNoEnabledUnits),
		errors.Is(err, console.ErrNoInterface),
		errors.Is(err, console.ErrNoSource):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())

	case errors.Is(err, dispatch.ErrNoTransmitter):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())

	default:
		s.logger.Error(op+" failed", "error", err)
		writeInternalError(w, op+" failed")
	}
}
