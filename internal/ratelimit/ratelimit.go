// Package ratelimit throttles the public purchase endpoint per client IP.
// Two stores exist: an in-memory sliding window for single-node runs and a
// Redis-backed window for multi-instance deployments.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Store tracks request counts per key within a window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
