package auth

import (
	"errors"
	"fmt"
)

// Code classifies an authentication failure. Codes are stable API: callers
// branch on them, servers may supply their own through error responses.
type Code string

const (
	// CodeNotAuthenticated means no passive strategy succeeded and the host
	// cannot present an interactive flow.
	CodeNotAuthenticated Code = "NOT_AUTHENTICATED"

	// Protocol validation failures.
	CodeStateMismatch   Code = "STATE_MISMATCH"
	CodeNoCode          Code = "NO_CODE"
	CodeInvalidResponse Code = "INVALID_RESPONSE"
	CodeNoSession       Code = "NO_SESSION"
	CodeValidation      Code = "VALIDATION_ERROR"

	// Remote rejections. These carry the HTTP status and, when the server
	// provides one, its message.
	CodeSendCodeError       Code = "SEND_CODE_ERROR"
	CodeInvalidCode         Code = "INVALID_CODE"
	CodeVerificationFailed  Code = "VERIFICATION_FAILED"
	CodeTokenExchangeFailed Code = "TOKEN_EXCHANGE_FAILED"
	CodeGameInfoError       Code = "GAME_INFO_ERROR"
	CodeAuthError           Code = "AUTH_ERROR"

	// Environment and user-initiated terminations.
	CodePopupBlocked  Code = "POPUP_BLOCKED"
	CodeUserCancelled Code = "USER_CANCELLED"
)

// ErrPromptCancelled is returned by UI ports when the user abandons a prompt.
// Flows translate it into a CodeUserCancelled terminal error.
var ErrPromptCancelled = errors.New("prompt cancelled")

// Error is a typed authentication error with a stable code and, for remote
// rejections, the HTTP status of the failing response.
type Error struct {
	Code    Code
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
	}
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an Error without an HTTP status.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// newHTTPError builds an Error carrying the status of a rejected response.
func newHTTPError(code Code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
