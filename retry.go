package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// retrier runs an operation up to MaxRetries+1 times with exponential
// backoff between attempts, capped at MaxDelaySeconds.
type retrier struct {
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

func newRetrier(config RetryConfig) *retrier {
	return &retrier{config: config, sleep: sleepContext}
}

// delays returns the wait before each retry, in order.
func (r *retrier) delays() []time.Duration {
	out := make([]time.Duration, 0, r.config.MaxRetries)
	delay := time.Duration(r.config.InitialDelaySeconds) * time.Second
	maxDelay := time.Duration(r.config.MaxDelaySeconds) * time.Second
	for i := 0; i < r.config.MaxRetries; i++ {
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
		out = append(out, delay)
		delay = time.Duration(float64(delay) * r.config.BackoffMultiplier)
	}
	return out
}

func (r *retrier) Do(ctx context.Context, target string, op func(ctx context.Context) error) error {
	delays := r.delays()

	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := delays[attempt-1]
			logger.Info("retrying",
				zap.String("target", target),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.config.MaxRetries),
				zap.Duration("delay", wait))
			if err := r.sleep(ctx, wait); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		logger.Warn("attempt failed", zap.String("target", target), zap.Error(err))
	}

	return fmt.Errorf("failed after %d retries: %w", r.config.MaxRetries, lastErr)
}
