package token

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidClient      = errors.New("client authentication failed")
	ErrInvalidGrant       = errors.New("grant is invalid, expired or revoked")
	ErrInvalidToken       = errors.New("token is invalid, expired or revoked")
	ErrInvalidScope       = errors.New("requested scope is unknown")
	ErrInsufficientScope  = errors.New("requested scope exceeds granted scope")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccessDenied       = errors.New("access denied")
	ErrServiceUnavailable = errors.New("authorization service unavailable")
)

// RateLimitedError carries the retry hint alongside the sentinel.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// OAuthCode maps an engine error to the error code reported to clients.
// Unmapped errors report as server_error.
func OAuthCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidClient):
		return "invalid_client"
	case errors.Is(err, ErrInvalidGrant):
		return "invalid_grant"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrInvalidScope):
		return "invalid_scope"
	case errors.Is(err, ErrInsufficientScope):
		return "insufficient_scope"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	default:
		return "server_error"
	}
}
