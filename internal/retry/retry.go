// Package retry supervises an asynchronous operation with bounded
// retry, exponential backoff and jitter.
package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Policy is the retry configuration. It is plain configuration, not
// mutable state; a zero MaxRetries policy still performs one attempt.
type Policy struct {
	MaxRetries         int
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	ExponentialBackoff bool
	Jitter             bool
}

// DefaultPolicy mirrors the crawl defaults: three retries over a
// jittered exponential curve capped at eight times the base delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:         3,
		BaseDelay:          2 * time.Second,
		MaxDelay:           16 * time.Second,
		ExponentialBackoff: true,
		Jitter:             true,
	}
}

// nonRetryablePatterns match failures that are deterministic: a
// malformed URL or an auth wall fails identically on every attempt.
var nonRetryablePatterns = []string{
	"invalid url",
	"invalid selector",
	"parsing error",
	"authentication failed",
	"permission denied",
	"access denied",
	"404",
	"401",
	"403",
}

// DefaultNonRetryable reports whether the error text matches a known
// deterministic-failure pattern.
func DefaultNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Governor wraps operations with the retry algorithm. Each Execute
// call is independent; no state persists between calls.
type Governor struct {
	policy       Policy
	nonRetryable func(error) bool
	logger       *zap.Logger

	// injectable for tests
	sleep     func(context.Context, time.Duration) error
	randFloat func() float64
}

// NewGovernor builds a Governor. A nil classifier falls back to
// DefaultNonRetryable; a nil logger falls back to a no-op.
func NewGovernor(policy Policy, nonRetryable func(error) bool, logger *zap.Logger) *Governor {
	if nonRetryable == nil {
		nonRetryable = DefaultNonRetryable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Governor{
		policy:       policy,
		nonRetryable: nonRetryable,
		logger:       logger,
		sleep:        sleepCtx,
		randFloat:    rand.Float64,
	}
}

// Execute runs op until it succeeds, fails terminally, or the attempt
// budget (MaxRetries+1) is exhausted, surfacing the last failure.
func Execute[T any](ctx context.Context, g *Governor, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= g.policy.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		g.logger.Warn("attempt failed",
			zap.String("operation", label),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", g.policy.MaxRetries+1),
			zap.Error(err),
		)
		if attempt == g.policy.MaxRetries {
			break
		}
		if g.nonRetryable(err) {
			g.logger.Info("terminal failure, not retrying",
				zap.String("operation", label),
				zap.Error(err),
			)
			break
		}
		delay := g.delay(attempt)
		g.logger.Debug("backing off before retry",
			zap.String("operation", label),
			zap.Duration("delay", delay),
		)
		if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}
	return zero, lastErr
}

// delay computes the wait before the next attempt: the base delay,
// doubled per attempt when exponential backoff is on, capped at the
// max delay, then scaled by a uniform factor in [0.5, 1.0) when jitter
// is on to desynchronize concurrent callers.
func (g *Governor) delay(attempt int) time.Duration {
	delay := g.policy.BaseDelay
	if g.policy.ExponentialBackoff {
		scaled := float64(g.policy.BaseDelay) * math.Pow(2, float64(attempt))
		if g.policy.MaxDelay > 0 && scaled > float64(g.policy.MaxDelay) {
			scaled = float64(g.policy.MaxDelay)
		}
		delay = time.Duration(scaled)
	}
	if g.policy.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + g.randFloat()*0.5))
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
