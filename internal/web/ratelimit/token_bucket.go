package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-memory limiter refilling Capacity tokens every Window
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	now      func() time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// TokenBucketConfig configures a TokenBucket
type TokenBucketConfig struct {
	Capacity int
	Window   time.Duration
	// CleanupInterval of zero disables the background sweep
	CleanupInterval time.Duration
}

// NewTokenBucket creates a limiter. Call Close to stop the sweeper.
func NewTokenBucket(cfg TokenBucketConfig) *TokenBucket {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	tb := &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: cfg.Capacity,
		window:   cfg.Window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		tb.wg.Add(1)
		go tb.cleanupLoop(cfg.CleanupInterval)
	}
	return tb
}

// Allow takes one token from key's bucket
func (tb *TokenBucket) Allow(_ context.Context, key string) (*Info, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.capacity), lastRefill: now}
		tb.buckets[key] = b
	}

	perToken := tb.window / time.Duration(tb.capacity)
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		b.tokens += float64(elapsed) / float64(perToken)
		if b.tokens > float64(tb.capacity) {
			b.tokens = float64(tb.capacity)
		}
		b.lastRefill = now
	}

	info := &Info{Limit: tb.capacity}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	}
	info.Remaining = int(b.tokens)
	// time until the next whole token
	if b.tokens < 1 {
		info.ResetAt = now.Add(time.Duration((1 - b.tokens) * float64(perToken)))
	} else {
		info.ResetAt = now
	}
	return info, nil
}

func (tb *TokenBucket) cleanupLoop(interval time.Duration) {
	defer tb.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tb.sweep()
		case <-tb.done:
			return
		}
	}
}

// sweep drops buckets that have been full for a whole window
func (tb *TokenBucket) sweep() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	for key, b := range tb.buckets {
		if now.Sub(b.lastRefill) > tb.window {
			delete(tb.buckets, key)
		}
	}
}

// Close stops the sweeper goroutine
func (tb *TokenBucket) Close() error {
	tb.closeOnce.Do(func() {
		close(tb.done)
		tb.wg.Wait()
	})
	return nil
}
