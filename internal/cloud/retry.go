package cloud

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"
)

type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

func (rc RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if rc.MaxRetries < 0 {
		rc.MaxRetries = 0
	}
	if rc.InitialDelay <= 0 {
		rc.InitialDelay = d.InitialDelay
	}
	if rc.MaxDelay <= 0 {
		rc.MaxDelay = d.MaxDelay
	}
	if rc.Multiplier <= 0 {
		rc.Multiplier = d.Multiplier
	}
	return rc
}

// withRetry runs fn until it succeeds, returns a permanent error, the retries
// run out or ctx ends.
func withRetry(ctx context.Context, rc RetryConfig, fn func() error) error {
	delay := rc.InitialDelay
	var err error

	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(applyJitter(delay)):
			}
			delay = min(time.Duration(float64(delay)*rc.Multiplier), rc.MaxDelay)
		}

		err = fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isRetryable(err) {
			return err
		}
	}
	return err
}

func isRetryable(err error) bool {
	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		return uploadErr.IsRetryable()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func applyJitter(delay time.Duration) time.Duration {
	jitterFactor := 0.9 + rand.Float64()*0.2
	return time.Duration(float64(delay) * jitterFactor)
}
