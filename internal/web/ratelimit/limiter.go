// Package ratelimit throttles requests per key, in memory or in redis.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Limiter decides whether the request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (*Info, error)
}

// Info describes the limit state after a call to Allow
type Info struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// RetryAfter is the whole number of seconds until ResetAt, at least one
func (i *Info) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(i.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
