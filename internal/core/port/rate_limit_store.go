package port

import (
	"context"
	"time"
)

// RateLimitStore keeps sliding windows of attempts per key.
type RateLimitStore interface {
	// Hit drops attempts older than window, records one at the given instant and
	// returns the number of attempts now inside the window.
	Hit(ctx context.Context, key string, window time.Duration, at time.Time) (int, error)
	Count(ctx context.Context, key string, window time.Duration, at time.Time) (int, error)
	// Oldest reports the earliest attempt still inside the window.
	Oldest(ctx context.Context, key string, window time.Duration, at time.Time) (time.Time, bool, error)
	Reset(ctx context.Context, key string) error
}
