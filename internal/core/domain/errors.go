package domain

import (
	"errors"
	"time"
)

// Kind classifies every failure the core returns to its transport layer.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindInvalidCredentials  Kind = "invalid_credentials"
	KindCPFNotFound         Kind = "cpf_not_found"
	KindUserNotFound        Kind = "user_not_found"
	KindRateLimited         Kind = "rate_limited"
	KindTokenInvalid        Kind = "token_invalid"
	KindTokenExpired        Kind = "token_expired"
	KindTokenError          Kind = "token_error"
	KindWrongTokenKind      Kind = "wrong_token_kind"
	KindInvalidRefreshToken Kind = "invalid_refresh_token"
	KindInternal            Kind = "internal_error"
)

// Error is a typed failure. Two Errors match under errors.Is when their kinds
// are equal, so sentinels still match after RetryAfter or a cause is attached.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrCPFNotFound         = &Error{Kind: KindCPFNotFound, Message: "cpf not found"}
	ErrUserNotFound        = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrRateLimited         = &Error{Kind: KindRateLimited, Message: "too many attempts"}
	ErrTokenInvalid        = &Error{Kind: KindTokenInvalid, Message: "invalid token"}
	ErrTokenExpired        = &Error{Kind: KindTokenExpired, Message: "token expired"}
	ErrTokenError          = &Error{Kind: KindTokenError, Message: "token verification failed"}
	ErrWrongTokenKind      = &Error{Kind: KindWrongTokenKind, Message: "wrong token kind"}
	ErrInvalidRefreshToken = &Error{Kind: KindInvalidRefreshToken, Message: "invalid refresh token"}
	ErrInternal            = &Error{Kind: KindInternal, Message: "internal error"}
)

// NewValidationError reports malformed caller input. The message is safe to return.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// RateLimited returns ErrRateLimited carrying a retry-after hint.
func RateLimited(retryAfter time.Duration) *Error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &Error{Kind: KindRateLimited, Message: ErrRateLimited.Message, RetryAfter: retryAfter}
}

// Internal hides cause behind a generic internal error. The cause is kept for logging.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: ErrInternal.Message, Err: cause}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
