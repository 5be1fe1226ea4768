// Package apierr renders the JSON envelopes every endpoint answers with:
//
//	{"success": false, "error": {"code": "...", "message": "...", "status": 403}}
//	{"success": true, "data": {...}}
//
// The error status is always mirrored as the HTTP status code.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Code string

const (
	CodeAuthenticationRequired    Code = "AUTHENTICATION_REQUIRED"
	CodeEmailVerificationRequired Code = "EMAIL_VERIFICATION_REQUIRED"
	CodeInsufficientPermissions   Code = "INSUFFICIENT_PERMISSIONS"
	CodeResourceAccessDenied      Code = "RESOURCE_ACCESS_DENIED"
	CodeNotFound                  Code = "NOT_FOUND"
	CodeRateLimitExceeded         Code = "RATE_LIMIT_EXCEEDED"
	CodeCSRFTokenInvalid          Code = "CSRF_TOKEN_INVALID"
	CodeInvalidRequest            Code = "INVALID_REQUEST"
	CodeInvalidCredentials        Code = "INVALID_CREDENTIALS"
	CodeInvalidRefreshToken       Code = "INVALID_REFRESH_TOKEN"
	CodeConflict                  Code = "CONFLICT"
	CodeInternal                  Code = "INTERNAL_ERROR"
)

// Error is the wire form of a denial or failure.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message) }

func New(status int, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func AuthenticationRequired() *Error {
	return New(http.StatusUnauthorized, CodeAuthenticationRequired, "invalid or expired token")
}

func EmailVerificationRequired() *Error {
	return New(http.StatusForbidden, CodeEmailVerificationRequired, "email verification required")
}

func InsufficientPermissions(message string) *Error {
	if message == "" {
		message = "insufficient permissions"
	}
	return New(http.StatusForbidden, CodeInsufficientPermissions, message)
}

func ResourceAccessDenied() *Error {
	return New(http.StatusForbidden, CodeResourceAccessDenied, "access to this resource is denied")
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, what+" not found")
}

func RateLimitExceeded() *Error {
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "too many attempts, try again later")
}

func CSRFTokenInvalid() *Error {
	return New(http.StatusForbidden, CodeCSRFTokenInvalid, "csrf token missing or invalid")
}

func InvalidRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeInvalidRequest, message)
}

func InvalidCredentials() *Error {
	return New(http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
}

func InvalidRefreshToken() *Error {
	return New(http.StatusUnauthorized, CodeInvalidRefreshToken, "invalid or expired refresh token")
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

func Internal() *Error {
	return New(http.StatusInternalServerError, CodeInternal, "internal error")
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// Abort stops the gin chain and writes the error envelope.
// Non-*Error values are reported as INTERNAL_ERROR without detail.
func Abort(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		_ = c.Error(err)
		e = Internal()
	}
	c.AbortWithStatusJSON(e.Status, errorResponse{Success: false, Error: e})
}

func OK(c *gin.Context, status int, data any) {
	c.JSON(status, dataResponse{Success: true, Data: data})
}
