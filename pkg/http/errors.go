package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cicalumni/alumni-api/internal/models"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`   // Machine-readable error code
	Message string `json:"message"` // Human-readable message
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Error:   errorCode,
		Message: message,
	})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// WriteServiceError maps an error returned by a service flow onto the HTTP
// error taxonomy. Messages of *models.Error are passed through; anything
// unrecognised becomes a generic 500.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", models.PublicMessage(err, "Invalid request"))
	case errors.Is(err, models.ErrConflict):
		WriteError(w, http.StatusBadRequest, "conflict", models.PublicMessage(err, "Resource already exists"))
	case errors.Is(err, models.ErrBadRequest):
		WriteBadRequest(w, models.PublicMessage(err, "Bad request"))
	case errors.Is(err, models.ErrNotFound):
		WriteNotFound(w, models.PublicMessage(err, "Not found"))
	case errors.Is(err, models.ErrUnauthorized):
		WriteUnauthorized(w, models.PublicMessage(err, "Unauthorized"))
	case errors.Is(err, models.ErrForbidden):
		WriteForbidden(w, models.PublicMessage(err, "Forbidden"))
	case errors.Is(err, models.ErrMailDelivery):
		WriteError(w, http.StatusInternalServerError, "mail_delivery_failed", models.PublicMessage(err, "Failed to send email"))
	default:
		WriteInternalError(w, "Internal server error")
	}
}
