package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet/internal/repository"
	"fleet/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Only the sentinel text reaches the caller; the full error is attached to the
// context for the request logger.
func respondError(c *gin.Context, err error) {
	code, public := mapErrorToHTTPStatus(err)
	_ = c.Error(err)
	c.JSON(code, ErrorResponse{Error: public})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

var statusBySentinel = []struct {
	err  error
	code int
}{
	// Validation errors
	{service.ErrInvalidDriverKey, http.StatusBadRequest},
	{service.ErrInvalidAmount, http.StatusBadRequest},
	{service.ErrInvalidEvent, http.StatusBadRequest},
	{service.ErrInvalidApplication, http.StatusBadRequest},
	{service.ErrInvalidRegistration, http.StatusBadRequest},
	{service.ErrInvalidSettings, http.StatusBadRequest},
	{service.ErrInvalidOrderID, http.StatusBadRequest},
	{service.ErrInvalidStatus, http.StatusBadRequest},

	{service.ErrPermissionDenied, http.StatusForbidden},

	// Not found errors
	{service.ErrDriverNotFound, http.StatusNotFound},
	{service.ErrIncentiveNotFound, http.StatusNotFound},
	{repository.ErrNotFound, http.StatusNotFound},

	// Conflict errors
	{service.ErrDriverExists, http.StatusConflict},
	{service.ErrDispatchIDInUse, http.StatusConflict},
	{service.ErrInvalidTransition, http.StatusConflict},
	{service.ErrDriverNotSettleable, http.StatusConflict},
	{service.ErrAlreadySettled, http.StatusConflict},
	{service.ErrApprovalInProgress, http.StatusConflict},

	// Internal, with a readable message
	{service.ErrExternalDependency, http.StatusInternalServerError},
	{service.ErrConcurrencyConflict, http.StatusInternalServerError},
}

// mapErrorToHTTPStatus maps service/repository errors to an HTTP status code
// and the message shown to the caller.
func mapErrorToHTTPStatus(err error) (int, string) {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.code, s.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}
