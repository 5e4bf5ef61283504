// Package rate implements fixed-window request limits keyed by route and
// client address.
package rate

import (
	"context"
	"time"
)

type Limiter interface {
	// Allow records one hit for key and reports whether it is within limit
	// for the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}
