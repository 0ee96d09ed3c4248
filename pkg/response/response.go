package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response represents the standard API response structure
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo represents error details in the response
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// --- Error Code Constants ---

const (
	// Client errors (4xx)
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"
	ErrCodeValidationFailed = "VALIDATION_FAILED"

	// Server errors (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Registration and session errors
	ErrCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	ErrCodeDuplicateDocument   = "DUPLICATE_DOCUMENT"
	ErrCodeIdentityError       = "IDENTITY_ERROR"
	ErrCodeProfileCreateFailed = "PROFILE_CREATE_FAILED"
	ErrCodeOnboardingFailed    = "ONBOARDING_FAILED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeAccountPending      = "ACCOUNT_PENDING"
	ErrCodeSessionExpired      = "SESSION_EXPIRED"
	ErrCodeInvalidState        = "INVALID_STATE"
)

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes
var ErrorCodeToHTTPStatus = map[string]int{
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeTooManyRequests:     http.StatusTooManyRequests,
	ErrCodeValidationFailed:    http.StatusBadRequest,
	ErrCodeInternalError:       http.StatusInternalServerError,
	ErrCodeServiceUnavailable:  http.StatusServiceUnavailable,
	ErrCodeDuplicateEmail:      http.StatusConflict,
	ErrCodeDuplicateDocument:   http.StatusConflict,
	ErrCodeIdentityError:       http.StatusBadRequest,
	ErrCodeProfileCreateFailed: http.StatusInternalServerError,
	ErrCodeOnboardingFailed:    http.StatusInternalServerError,
	ErrCodeUserNotFound:        http.StatusNotFound,
	ErrCodeAccountPending:      http.StatusForbidden,
	ErrCodeSessionExpired:      http.StatusUnauthorized,
	ErrCodeInvalidState:        http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeToHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Write sends resp with the status implied by its error code, or 200 on success
func Write(c *gin.Context, resp *Response) {
	status := http.StatusOK
	if resp.Error != nil {
		status = GetHTTPStatus(resp.Error.Code)
	}
	c.JSON(status, resp)
}

// Abort is Write followed by c.Abort, for middleware
func Abort(c *gin.Context, resp *Response) {
	status := http.StatusOK
	if resp.Error != nil {
		status = GetHTTPStatus(resp.Error.Code)
	}
	c.AbortWithStatusJSON(status, resp)
}

// --- Response Builders ---

// Success creates a success response with data
func Success(data any) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// Error creates an error response
func Error(code string, message string) *Response {
	return &Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// ErrorWithDetails creates an error response with additional details
func ErrorWithDetails(code string, message string, details map[string]string) *Response {
	return &Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// --- Common Error Responses ---

// BadRequest creates a bad request error response
func BadRequest(message string) *Response {
	return Error(ErrCodeBadRequest, message)
}

// Unauthorized creates an unauthorized error response
func Unauthorized(message string) *Response {
	if message == "" {
		message = "Autenticación requerida"
	}
	return Error(ErrCodeUnauthorized, message)
}

// Forbidden creates a forbidden error response
func Forbidden(message string) *Response {
	if message == "" {
		message = "Acceso denegado"
	}
	return Error(ErrCodeForbidden, message)
}

// NotFound creates a not found error response
func NotFound(message string) *Response {
	if message == "" {
		message = "Recurso no encontrado"
	}
	return Error(ErrCodeNotFound, message)
}

// InternalError creates an internal server error response
func InternalError(message string) *Response {
	if message == "" {
		message = "Ha ocurrido un error. Por favor, intenta de nuevo."
	}
	return Error(ErrCodeInternalError, message)
}

// ValidationFailed creates a validation error response with field details
func ValidationFailed(details map[string]string) *Response {
	return ErrorWithDetails(ErrCodeValidationFailed, "Datos inválidos", details)
}

// TooManyRequests creates a rate limit error response
func TooManyRequests(message string) *Response {
	if message == "" {
		message = "Demasiados intentos. Por favor, espera un momento."
	}
	return Error(ErrCodeTooManyRequests, message)
}

// ServiceUnavailable creates a service unavailable error response
func ServiceUnavailable(message string) *Response {
	if message == "" {
		message = "Servicio temporalmente no disponible"
	}
	return Error(ErrCodeServiceUnavailable, message)
}
