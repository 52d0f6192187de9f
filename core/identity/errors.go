package identity

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorCode is the closed set of failure codes the provider reports.
type ErrorCode string

const (
	CodeInvalidCredentials ErrorCode = "invalid_credentials"
	CodeEmailNotConfirmed  ErrorCode = "email_not_confirmed"
	CodeRateLimited        ErrorCode = "over_request_rate_limit"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeUserExists         ErrorCode = "user_already_exists"
	CodeWeakPassword       ErrorCode = "weak_password"
	CodeInvalidToken       ErrorCode = "invalid_token"
	CodeSessionNotFound    ErrorCode = "session_not_found"
	CodeNotFound           ErrorCode = "not_found"
	CodeDuplicateKey       ErrorCode = "duplicate_key"
	CodeForbidden          ErrorCode = "forbidden"
	CodeNetwork            ErrorCode = "network_error"
	CodeUnexpected         ErrorCode = "unexpected_failure"
)

// Error is a failure reported by the identity provider.
type Error struct {
	Status  int       `json:"status,omitempty"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"error"`
}

func NewError(status int, code ErrorCode, msg string) *Error {
	return &Error{Status: status, Code: code, Message: msg}
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("identity: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("identity: %s (%s)", e.Message, e.Code)
}

// Temporary reports whether the failure is worth retrying later.
func (e *Error) Temporary() bool {
	return e.Code == CodeNetwork || e.Status >= http.StatusInternalServerError
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr, true
	}
	return nil, false
}

// Provider-side failures, with the messages clients match on.
var (
	ErrInvalidCredentials = NewError(http.StatusBadRequest, CodeInvalidCredentials, "Invalid login credentials")
	ErrEmailNotConfirmed  = NewError(http.StatusBadRequest, CodeEmailNotConfirmed, "Email not confirmed")
	ErrRateLimited        = NewError(http.StatusTooManyRequests, CodeRateLimited, "For security purposes, you can only request this after a while: rate limit exceeded")
	ErrInvalidEmail       = NewError(http.StatusBadRequest, CodeValidationFailed, "Unable to validate email address: invalid format")
	ErrUserExists         = NewError(http.StatusUnprocessableEntity, CodeUserExists, "User already registered")
	ErrInvalidToken       = NewError(http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
	ErrSessionNotFound    = NewError(http.StatusUnauthorized, CodeSessionNotFound, "Auth session missing")
	ErrForbidden          = NewError(http.StatusForbidden, CodeForbidden, "Permission denied")
	ErrNotFound           = NewError(http.StatusNotFound, CodeNotFound, "Resource not found")
	ErrDuplicateKey       = NewError(http.StatusConflict, CodeDuplicateKey, "Duplicate key value violates unique constraint")
)

// WeakPassword reports a password rejected by the password policy.
func WeakPassword(reason string) *Error {
	return NewError(http.StatusUnprocessableEntity, CodeWeakPassword, reason)
}
