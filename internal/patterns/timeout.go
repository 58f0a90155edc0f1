package patterns

import (
	"context"
	"time"
)

// WithTimeout creates a context with timeout for fail-fast behavior
func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

// DefaultTimeout is the default timeout for calls to the payment network
const DefaultTimeout = 10 * time.Second

// FinalizeTimeout bounds a single finalize attempt (grant continuation
// plus outgoing payment creation)
const FinalizeTimeout = 30 * time.Second
