// Package ratelimit throttles calls to the OAuth providers' APIs based on the
// rate limit headers they return.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Reset header values above this are Unix timestamps (Discord), below it
// they are seconds until reset (Reddit).
const epochThreshold = 1_000_000_000

// ErrWindowExhausted is returned by Wait when the endpoint's window resets
// after the caller's deadline.
var ErrWindowExhausted = errors.New("rate limit window exhausted")

// Bucket represents a rate limit bucket for a single provider endpoint
type Bucket struct {
	Remaining int           // Requests remaining in current window
	Limit     int           // Total requests allowed per window
	ResetAt   time.Time     // When the rate limit resets
	limiter   *rate.Limiter // Token bucket rate limiter
	mu        sync.Mutex
}

// RateLimiter manages rate limits per endpoint
type RateLimiter struct {
	buckets map[string]*Bucket // endpoint -> bucket
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*Bucket),
		logger:  logger,
	}
}

// getBucket retrieves or creates a bucket for an endpoint
func (rl *RateLimiter) getBucket(endpoint string) *Bucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[endpoint]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[endpoint]; exists {
		return bucket
	}

	// Start at 5 req/s; provider headers tighten or relax this after the first response
	bucket = &Bucket{
		Remaining: 5,
		Limit:     5,
		ResetAt:   time.Now().Add(1 * time.Second),
		limiter:   rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}

	rl.buckets[endpoint] = bucket
	return bucket
}

// Wait blocks until a request to endpoint is allowed or ctx is done. An
// exhausted window that outlasts ctx's deadline fails immediately.
func (rl *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	bucket := rl.getBucket(endpoint)

	bucket.mu.Lock()
	exhausted := bucket.Remaining <= 0 && time.Now().Before(bucket.ResetAt)
	resetAt := bucket.ResetAt
	limiter := bucket.limiter
	bucket.mu.Unlock()

	if exhausted {
		if deadline, ok := ctx.Deadline(); ok && deadline.Before(resetAt) {
			return fmt.Errorf("%w: %s resets at %s", ErrWindowExhausted, endpoint, resetAt.Format(time.RFC3339))
		}

		waitDuration := time.Until(resetAt)
		rl.logger.Warn("rate limit exhausted, waiting",
			zap.String("endpoint", endpoint),
			zap.Duration("wait_duration", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	return nil
}

// UpdateFromHeaders updates the endpoint's bucket from X-Ratelimit-* response
// headers. Both Reddit's relative reset and Discord's absolute reset are
// understood.
func (rl *RateLimiter) UpdateFromHeaders(endpoint string, headers http.Header) {
	bucket := rl.getBucket(endpoint)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	// Reddit sends fractional counts ("596.0")
	if remaining := headers.Get("X-Ratelimit-Remaining"); remaining != "" {
		if val, err := strconv.ParseFloat(remaining, 64); err == nil {
			bucket.Remaining = int(math.Floor(val))
		}
	}

	if limit := headers.Get("X-Ratelimit-Limit"); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			bucket.Limit = val
		}
	} else if used := headers.Get("X-Ratelimit-Used"); used != "" {
		// Reddit reports used + remaining instead of a limit
		if val, err := strconv.Atoi(used); err == nil {
			bucket.Limit = val + bucket.Remaining
		}
	}

	if resetAt, ok := parseReset(headers); ok {
		bucket.ResetAt = resetAt
	}

	if bucket.Limit > 0 {
		resetDuration := time.Until(bucket.ResetAt)
		if resetDuration > 0 {
			tokensPerSecond := float64(bucket.Limit) / resetDuration.Seconds()
			bucket.limiter = rate.NewLimiter(rate.Limit(tokensPerSecond), bucket.Limit)
		}
	}

	rl.logger.Debug("updated rate limit from headers",
		zap.String("endpoint", endpoint),
		zap.Int("remaining", bucket.Remaining),
		zap.Int("limit", bucket.Limit),
		zap.Time("reset_at", bucket.ResetAt),
	)
}

func parseReset(headers http.Header) (time.Time, bool) {
	if after := headers.Get("X-Ratelimit-Reset-After"); after != "" {
		if val, err := strconv.ParseFloat(after, 64); err == nil {
			return time.Now().Add(time.Duration(val * float64(time.Second))), true
		}
	}

	reset := headers.Get("X-Ratelimit-Reset")
	if reset == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, reset); err == nil {
		return t, true
	}
	val, err := strconv.ParseFloat(reset, 64)
	if err != nil {
		return time.Time{}, false
	}
	if val >= epochThreshold {
		sec, frac := math.Modf(val)
		return time.Unix(int64(sec), int64(frac*1e9)), true
	}
	return time.Now().Add(time.Duration(val * float64(time.Second))), true
}

// HandleRateLimitResponse drains the endpoint's bucket after a 429 response
func (rl *RateLimiter) HandleRateLimitResponse(endpoint string, headers http.Header) error {
	bucket := rl.getBucket(endpoint)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	var retryAfter time.Duration
	if retry := headers.Get("Retry-After"); retry != "" {
		if seconds, err := strconv.ParseFloat(retry, 64); err == nil {
			retryAfter = time.Duration(seconds * float64(time.Second))
		}
	}

	if retryAfter == 0 {
		if resetAt, ok := parseReset(headers); ok {
			retryAfter = time.Until(resetAt)
		}
	}

	if retryAfter <= 0 {
		retryAfter = 1 * time.Second
	}

	bucket.Remaining = 0
	bucket.ResetAt = time.Now().Add(retryAfter)

	rl.logger.Warn("rate limited by provider API",
		zap.String("endpoint", endpoint),
		zap.Duration("retry_after", retryAfter),
	)

	return fmt.Errorf("rate limited, retry after %v", retryAfter)
}

// GetStatus returns the current rate limit status for an endpoint
func (rl *RateLimiter) GetStatus(endpoint string) (remaining int, limit int, resetAt time.Time) {
	bucket := rl.getBucket(endpoint)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	return bucket.Remaining, bucket.Limit, bucket.ResetAt
}
