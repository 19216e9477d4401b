package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultRetryDelay   = 2 * time.Second
	defaultRetryTimeout = 12 * time.Second
	defaultAttempts     = 3
)

// Policy controls AsyncRetry. Delay doubles after every failed attempt.
type Policy struct {
	Delay    time.Duration
	Timeout  time.Duration
	Attempts int
}

func (p Policy) withDefaults() Policy {
	if p.Delay <= 0 {
		p.Delay = defaultRetryDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultRetryTimeout
	}
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	return p
}

// AsyncRetry runs fn in the background until it succeeds, attempts run out or
// ctx is done. The returned channel receives the last error (nil on success)
// and is then closed.
func AsyncRetry(ctx context.Context, logger *slog.Logger, name string, policy Policy, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	if fn == nil {
		close(done)
		return done
	}
	if ctx == nil {
		ctx = context.Background()
	}
	policy = policy.withDefaults()
	if logger != nil {
		logger.Info(name+"_retry_scheduled", "delay", policy.Delay.String(), "timeout", policy.Timeout.String(), "attempts", policy.Attempts)
	}
	go func() {
		defer close(done)
		delay := policy.Delay
		var err error
		for attempt := 1; attempt <= policy.Attempts; attempt++ {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				done <- ctx.Err()
				return
			case <-timer.C:
			}
			err = runOnce(ctx, policy.Timeout, fn)
			if err == nil {
				if logger != nil {
					logger.Info(name+"_retry_ok", "attempt", attempt)
				}
				done <- nil
				return
			}
			if logger != nil {
				logger.Warn(name+"_retry_failed", "attempt", attempt, "error", err.Error())
			}
			delay *= 2
		}
		done <- err
	}()
	return done
}

func runOnce(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
