package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Provider error codes, in the auth/* namespace used by the translation table
const (
	CodeEmailAlreadyInUse    = "auth/email-already-in-use"
	CodeWeakPassword         = "auth/weak-password"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeInvalidPassword      = "auth/invalid-password"
	CodeMissingPassword      = "auth/missing-password"
	CodeMissingEmail         = "auth/missing-email"
	CodeUserNotFound         = "auth/user-not-found"
	CodeWrongPassword        = "auth/wrong-password"
	CodeInvalidCredential    = "auth/invalid-credential"
	CodeUserDisabled         = "auth/user-disabled"
	CodeTooManyRequests      = "auth/too-many-requests"
	CodeOperationNotAllowed  = "auth/operation-not-allowed"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodeTimeout              = "auth/timeout"
	CodeInternalError        = "auth/internal-error"
	CodeServiceUnavailable   = "auth/service-unavailable"
	CodeInvalidAPIKey        = "auth/invalid-api-key"
	CodeUserTokenExpired     = "auth/user-token-expired"
	CodeInvalidUserToken     = "auth/invalid-user-token"
	CodeUserMismatch         = "auth/user-mismatch"
	CodeExpiredActionCode    = "auth/expired-action-code"
	CodeInvalidActionCode    = "auth/invalid-action-code"
)

// ErrSubjectMismatch is returned when re-verified credentials belong to another subject
var ErrSubjectMismatch = &Error{Code: CodeUserMismatch, Message: "signed-in subject does not match"}

// Error is a provider failure carrying an auth/* code
type Error struct {
	Code    string
	Message string
	// Status is the HTTP status returned by the provider, 0 for transport failures
	Status int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the auth/* code of err, or "" when err is not a provider error
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// restCodes maps Identity Toolkit REST error messages onto auth/* codes
var restCodes = map[string]string{
	"EMAIL_EXISTS":                CodeEmailAlreadyInUse,
	"WEAK_PASSWORD":               CodeWeakPassword,
	"INVALID_EMAIL":               CodeInvalidEmail,
	"MISSING_EMAIL":               CodeMissingEmail,
	"MISSING_PASSWORD":            CodeMissingPassword,
	"EMAIL_NOT_FOUND":             CodeUserNotFound,
	"USER_NOT_FOUND":              CodeUserNotFound,
	"INVALID_PASSWORD":            CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   CodeInvalidCredential,
	"USER_DISABLED":               CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": CodeTooManyRequests,
	"OPERATION_NOT_ALLOWED":       CodeOperationNotAllowed,
	"INVALID_ID_TOKEN":            CodeInvalidUserToken,
	"TOKEN_EXPIRED":               CodeUserTokenExpired,
	"EXPIRED_OOB_CODE":            CodeExpiredActionCode,
	"INVALID_OOB_CODE":            CodeInvalidActionCode,
	"API_KEY_INVALID":             CodeInvalidAPIKey,
}

// codeFromREST converts a REST error message such as
// "WEAK_PASSWORD : Password should be at least 6 characters".
func codeFromREST(message string, status int) string {
	if strings.HasPrefix(message, "API key not valid") {
		return CodeInvalidAPIKey
	}
	key := message
	if i := strings.Index(key, " "); i > 0 {
		key = key[:i]
	}
	if code, ok := restCodes[key]; ok {
		return code
	}
	if key == "" || status >= 500 {
		return CodeInternalError
	}
	return "auth/" + strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}
