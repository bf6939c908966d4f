package service

import (
	"fmt"
	"time"

	"github.com/veldtman/grind-api/internal/security"
)

// RateLimitError is returned when a caller exceeded their operation budget.
// It unwraps to security.ErrRateLimited and carries the backoff hint the
// transport layer surfaces to the client.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return security.ErrRateLimited
}
