package token

import (
	"errors"
	"testing"
	"time"
)

func TestOAuthCodes(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{ErrInvalidClient, "invalid_client"},
		{ErrInvalidGrant, "invalid_grant"},
		{ErrInvalidToken, "invalid_token"},
		{ErrInvalidScope, "invalid_scope"},
		{ErrInsufficientScope, "insufficient_scope"},
		{ErrRateLimited, "rate_limited"},
		{&RateLimitedError{RetryAfter: 5 * time.Second}, "rate_limited"},
		{ErrAccountLocked, "account_locked"},
		{ErrAccessDenied, "access_denied"},
		{ErrServiceUnavailable, "service_unavailable"},
		{errors.New("something else"), "server_error"},
	}
	for _, tc := range cases {
		if got := OAuthCode(tc.err); got != tc.code {
			t.Errorf("OAuthCode(%v) = %q, want %q", tc.err, got, tc.code)
		}
	}
}

func TestRateLimitedErrorIs(t *testing.T) {
	err := error(&RateLimitedError{RetryAfter: time.Minute})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("retry hint lost the sentinel")
	}
}
