// Package errors defines the application error taxonomy and the
// structured responses the validation API serves.
package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is a structured API error response. Every error body the
// API serves carries success=false plus a human-readable message.
type APIError struct {
	StatusCode int    `json:"-"`
	Success    bool   `json:"success"`
	Message    string `json:"error"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given status and message
func New(statusCode int, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Success:    false,
		Message:    message,
	}
}

// Predefined error responses for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest = New(http.StatusBadRequest, "Invalid request format")
	ErrMissingKey     = New(http.StatusBadRequest, "License key is required")
	ErrMissingKeys    = New(http.StatusBadRequest, "License keys array is required")
	ErrTooManyKeys    = New(http.StatusBadRequest, "Maximum 100 keys per batch request")

	// 401 Unauthorized
	ErrUnauthorized = New(http.StatusUnauthorized, "Invalid or missing API key")

	// 404 Not Found
	ErrLicenseNotFound  = New(http.StatusNotFound, "License key not found")
	ErrEndpointNotFound = New(http.StatusNotFound, "Endpoint not found")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "Too many requests, please try again later")

	// 500 Internal Server Error
	ErrInternalServer = New(http.StatusInternalServerError, "Internal server error")
)

// Internal creates a 500 error carrying the failure detail in the log
// path only; the served message stays generic.
func Internal(err error) *APIError {
	_ = err
	return ErrInternalServer
}

// BadRequest creates a 400 error with a specific message
func BadRequest(message string) *APIError {
	return New(http.StatusBadRequest, message)
}

// ErrorType classifies internal failures for logging and metrics
type ErrorType string

const (
	ErrTypeLicense    ErrorType = "LICENSE"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypePermission ErrorType = "PERMISSION"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeDiscord    ErrorType = "DISCORD"
)

// AppError is an application-internal error with classification and
// an optional cause chain.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause}
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewLicenseError creates a license-related error
func NewLicenseError(message string, cause error) *AppError {
	return NewAppError(ErrTypeLicense, message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewPermissionError creates a permission error
func NewPermissionError(message string) *AppError {
	return NewAppError(ErrTypePermission, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewDiscordError creates a chat-platform error
func NewDiscordError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDiscord, message, cause)
}
