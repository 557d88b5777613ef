package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeTenantSuspended ErrorCode = "TENANT_SUSPENDED"

	// Validation
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired   ErrorCode = "MISSING_REQUIRED"
	ErrCodeInvalidWebhookURL ErrorCode = "INVALID_WEBHOOK_URL"
	ErrCodeUnsupportedType   ErrorCode = "UNSUPPORTED_MESSAGE_TYPE"

	// Resource
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeTenantNotFound  ErrorCode = "TENANT_NOT_FOUND"
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeAlreadyExists   ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict        ErrorCode = "CONFLICT"

	// Connection lifecycle
	ErrCodeNotConnected    ErrorCode = "NOT_CONNECTED"
	ErrCodePairingCode     ErrorCode = "PAIRING_CODE_ERROR"
	ErrCodeLoggedOut       ErrorCode = "LOGGED_OUT"
	ErrCodeConnectTimeout  ErrorCode = "CONNECT_TIMEOUT"
	ErrCodeSendFailed      ErrorCode = "SEND_FAILED"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Webhook
	ErrCodeWebhookFailed ErrorCode = "WEBHOOK_FAILED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Retryable reports whether the condition is transient: the caller may
// retry the same operation later. Terminal conditions (logout, validation,
// missing resources) return false.
func (e *AppError) Retryable() bool {
	switch e.Code {
	case ErrCodeNotConnected,
		ErrCodeConnectTimeout,
		ErrCodeSendFailed,
		ErrCodeRateLimitExceeded,
		ErrCodeWebhookFailed,
		ErrCodeExternal:
		return true
	}
	return false
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func TenantSuspended() *AppError {
	return New(ErrCodeTenantSuspended, "Tenant is suspended")
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func TenantNotFound(tenantID string) *AppError {
	return New(ErrCodeTenantNotFound, "Tenant not found").WithDetails(map[string]string{"tenantId": tenantID})
}

func SessionNotFound(sessionID string) *AppError {
	return New(ErrCodeSessionNotFound, "Session not found").WithDetails(map[string]string{"sessionId": sessionID})
}

func AlreadyExists(resource string) *AppError {
	return New(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func InvalidWebhookURL(url string) *AppError {
	return New(ErrCodeInvalidWebhookURL, "Webhook URL must use http or https").WithDetails(map[string]string{"url": url})
}

func UnsupportedMessageType(kind string) *AppError {
	return New(ErrCodeUnsupportedType, fmt.Sprintf("Unsupported message type: %s", kind))
}

func NotConnected(sessionID string) *AppError {
	return New(ErrCodeNotConnected, "Session is not connected").WithDetails(map[string]string{"sessionId": sessionID})
}

func PairingCodeError(cause error) *AppError {
	return Wrap(ErrCodePairingCode, "Failed to issue pairing code", cause)
}

func SendFailed(cause error) *AppError {
	return Wrap(ErrCodeSendFailed, "Failed to send message", cause)
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func WebhookFailed(url string) *AppError {
	return New(ErrCodeWebhookFailed, "Webhook delivery failed").WithDetails(map[string]string{"url": url})
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

func External(service string, cause error) *AppError {
	return Wrap(ErrCodeExternal, fmt.Sprintf("External service error: %s", service), cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
