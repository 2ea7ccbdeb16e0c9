package provider

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy controls how the execution loop repeats a model turn after a
// retryable failure. Delays grow exponentially from BaseDelay, capped at
// MaxDelay, with optional jitter to avoid thundering herds.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the initial one.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Multiplier scales the delay between consecutive attempts.
	Multiplier float64

	// Jitter adds up to 25% random variance to each delay.
	Jitter bool

	// OnRetry, when set, is notified before each retry sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy mirrors the backoff most model backends recommend.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay computes the sleep before the given retry attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && delay > max {
		delay = max
	}
	if p.Jitter {
		delay += delay * 0.25 * rand.Float64()
	}
	return time.Duration(delay)
}
