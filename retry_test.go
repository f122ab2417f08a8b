package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrierDelays(t *testing.T) {
	r := newRetrier(RetryConfig{MaxRetries: 5, InitialDelaySeconds: 5, MaxDelaySeconds: 30, BackoffMultiplier: 2})
	assert.Equal(t, []time.Duration{
		5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second, 30 * time.Second,
	}, r.delays())

	assert.Empty(t, newRetrier(RetryConfig{}).delays())
}

func TestRetrierDo(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelaySeconds: 1, MaxDelaySeconds: 10, BackoffMultiplier: 3}

	t.Run("succeeds after failures", func(t *testing.T) {
		r := newRetrier(cfg)
		var slept sleepLog
		r.sleep = slept.sleep

		calls := 0
		err := r.Do(context.Background(), "+39", func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("flaky")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, sleepLog{time.Second, 3 * time.Second}, slept)
	})

	t.Run("gives up", func(t *testing.T) {
		r := newRetrier(cfg)
		var slept sleepLog
		r.sleep = slept.sleep

		calls := 0
		err := r.Do(context.Background(), "+39", func(ctx context.Context) error {
			calls++
			return ErrComposerNotFound
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrComposerNotFound)
		assert.Contains(t, err.Error(), "failed after 2 retries")
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		r := newRetrier(cfg)
		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		err := r.Do(ctx, "+39", func(ctx context.Context) error {
			calls++
			cancel()
			return errors.New("browser gone")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
