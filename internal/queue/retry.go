package queue

import (
	"math"
	"time"
)

// RetryStrategy decides whether a failed job is retried and after how long.
type RetryStrategy interface {
	ShouldRetry(attempts, maxAttempts int) bool
	NextRetryDelay(attempts int) time.Duration
}

// ExponentialBackoffStrategy doubles the delay on every attempt, capped at
// MaxDelay.
type ExponentialBackoffStrategy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NewExponentialBackoffStrategy creates the default retry strategy.
func NewExponentialBackoffStrategy(base, maxDelay time.Duration) ExponentialBackoffStrategy {
	return ExponentialBackoffStrategy{BaseDelay: base, MaxDelay: maxDelay}
}

func (s ExponentialBackoffStrategy) ShouldRetry(attempts, maxAttempts int) bool {
	return attempts < maxAttempts
}

func (s ExponentialBackoffStrategy) NextRetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delay := time.Duration(float64(s.BaseDelay) * math.Pow(2, float64(attempts-1)))
	if delay > s.MaxDelay || delay <= 0 {
		return s.MaxDelay
	}
	return delay
}
