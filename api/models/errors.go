// api/models/errors.go
package models

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidSlotID      = errors.New("invalid slot ID")
	ErrInvalidGridSize    = errors.New("invalid grid size")
	ErrMissingPayload     = errors.New("missing payload")
	ErrMeshTooLarge       = errors.New("mesh data too large")
	ErrSlotNotFound       = errors.New("mesh slot not found")
	ErrEndpointNotFound   = errors.New("API endpoint not found")
	ErrWriteFailure       = errors.New("write failure")
	ErrConfigNotFound     = errors.New("could not detect printer configuration file")
	ErrParameterNotFound  = errors.New("parameter not found in printer configuration")
	ErrNotLeader          = errors.New("journal is not the leader")
	ErrUnknownCommandType = errors.New("unknown command type")
)

// ErrorKind groups errors by how a caller should react to them
type ErrorKind string

const (
	InvalidInput ErrorKind = "invalid_input"
	NotFound     ErrorKind = "not_found"
	Backend      ErrorKind = "backend"
	Unavailable  ErrorKind = "unavailable"
)

// KindOf classifies an error. Anything unrecognised is a backend failure.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidSlotID),
		errors.Is(err, ErrInvalidGridSize),
		errors.Is(err, ErrMissingPayload),
		errors.Is(err, ErrMeshTooLarge):
		return InvalidInput
	case errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrEndpointNotFound):
		return NotFound
	case errors.Is(err, ErrNotLeader):
		return Unavailable
	default:
		return Backend
	}
}

// StatusCode maps an error onto the HTTP status the API answers with
func StatusCode(err error) int {
	switch KindOf(err) {
	case InvalidInput:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
