package provider

import (
	"fmt"
	"time"
)

// RateLimitError is returned by adapters when the backend answered with a
// 429-style response. RetryAfter carries the provider's retry hint when one
// was supplied, zero otherwise.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider rate limited, retry after %s", e.RetryAfter)
	}
	return "provider rate limited"
}

// AuthError is returned by adapters when the backend rejected the credentials
// in a way a retry cannot fix, such as a revoked refresh token. Callers flip
// the connection's connected flag when they see one.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "provider rejected credentials: " + e.Reason
}
