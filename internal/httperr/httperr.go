// Package httperr writes JSON error bodies and maps deck errors to HTTP
// statuses.
package httperr

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"webdeck/internal/deck"
	"webdeck/internal/layout"
	"webdeck/internal/registry"
)

// Error codes.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidBody    = "invalid_request_body"
	CodeValidation     = "validation_failed"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeNotSaved       = "not_saved"
	CodeInternal       = "internal_error"
	CodeUnavailable    = "service_unavailable"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Field   string `json:"field,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Code: code, Message: message, Status: status})
}

func WriteErrorWithField(w http.ResponseWriter, status int, code, message, field string) {
	WriteJSON(w, status, ErrorResponse{Code: code, Message: message, Status: status, Field: field})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

// Classify maps an error from the deck packages to a status and code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, layout.ErrNotPlaced),
		errors.Is(err, deck.ErrPresetNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, registry.ErrDuplicateID):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, registry.ErrEmptyID),
		errors.Is(err, registry.ErrEmptyName),
		errors.Is(err, registry.ErrIDMismatch),
		errors.Is(err, layout.ErrOutOfBounds),
		errors.Is(err, layout.ErrUnknownButton),
		errors.Is(err, layout.ErrInvalidSwap),
		errors.Is(err, layout.ErrInvalidDimensions),
		errors.Is(err, deck.ErrInvalidPreset):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, deck.ErrNotSaved):
		return http.StatusInternalServerError, CodeNotSaved
	case errors.Is(err, deck.ErrPresetsDisabled):
		return http.StatusNotImplemented, CodeUnavailable
	}
	return http.StatusInternalServerError, CodeInternal
}

// FromError writes err using Classify.
func FromError(w http.ResponseWriter, err error) {
	status, code := Classify(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[http] %s: %v", code, err)
	}
	WriteError(w, status, code, err.Error())
}
