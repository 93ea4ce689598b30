package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options bound how often and how fast an operation is retried.
// Backoff is deterministic: min(BaseDelay * Multiplier^attempt, MaxDelay), no jitter.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.MaxAttempts < 1 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = def.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = def.MaxDelay
	}
	if o.Multiplier <= 1 {
		o.Multiplier = def.Multiplier
	}
	return o
}

// Delay returns the sleep before retrying after the given zero-based attempt.
func (o Options) Delay(attempt int) time.Duration {
	o = o.normalized()
	delay := o.BaseDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * o.Multiplier)
		if delay >= o.MaxDelay {
			return o.MaxDelay
		}
	}
	if delay > o.MaxDelay {
		return o.MaxDelay
	}
	return delay
}

// Do runs fn up to opts.MaxAttempts times, sleeping the backoff delay between
// attempts. The error of the last attempt is returned once attempts are exhausted.
func Do(ctx context.Context, log *zap.Logger, label string, opts Options, fn func(ctx context.Context) error) error {
	opts = opts.normalized()
	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == opts.MaxAttempts-1 {
			break
		}
		delay := opts.Delay(attempt)
		if log != nil {
			log.Warn("operation failed, retrying",
				zap.String("op", label),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", opts.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: attempts exhausted: %w", label, lastErr)
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, log *zap.Logger, label string, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, log, label, opts, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
