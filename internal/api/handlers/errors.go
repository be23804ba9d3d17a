package handlers

import (
	"net/http"

	"github.com/djeeyo/nmreggae/internal/csvimport"
	"github.com/djeeyo/nmreggae/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrorResponse defines the structure of an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error represents an API error
type Error struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Common API errors
var (
	ErrInvalidRequest     = &Error{Message: "Invalid request", StatusCode: http.StatusBadRequest, Code: "INVALID_REQUEST"}
	ErrNotFound           = &Error{Message: "Event not found", StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	ErrInternalServer     = &Error{Message: "Internal server error", StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
	ErrUnauthorized       = &Error{Message: "Invalid password", StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED"}
	ErrParseFailed        = &Error{Message: "Failed to parse CSV", StatusCode: http.StatusBadRequest, Code: "PARSE_ERROR"}
	ErrNoFile             = &Error{Message: "No file uploaded", StatusCode: http.StatusBadRequest, Code: "VALIDATION_ERROR"}
	ErrServiceUnavailable = &Error{Message: "Service unavailable", StatusCode: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE"}
)

// NewValidationError creates a new validation error with a custom message
func NewValidationError(message string) *Error {
	return &Error{
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
	}
}

// WriteError maps err onto a status and a JSON body. Store failures get a
// generic message; the detail only goes to the log.
func WriteError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(apiErr.StatusCode, ErrorResponse{Error: apiErr.Message, Code: apiErr.Code})
}

func toAPIError(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, services.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, services.ErrInvalidInput):
		return NewValidationError(err.Error())
	case errors.Is(err, csvimport.ErrParse):
		return ErrParseFailed
	case errors.Is(err, services.ErrSearchUnavailable):
		return &Error{Message: "Search is not configured", StatusCode: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE"}
	default:
		return ErrInternalServer
	}
}
