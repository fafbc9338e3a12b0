package render

import (
	"fmt"
	"time"
)

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After. The
// client never sleeps on it; the duration is surfaced so the user can decide.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// BadRequestError indicates the service rejected the request (4xx).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// ServerError indicates 5xx errors from the rendering service.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("service error: %s", e.APIError.Error()) }

// UnreachableError indicates the rendering service could not be reached at
// all (nothing listening, DNS failure).
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("service unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("service unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
