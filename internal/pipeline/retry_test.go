package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("rate limit exceeded")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("invalid recipient address")
	err := withRetry(context.Background(), 3, time.Millisecond, "op", func(context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, "op", func(context.Context) error {
		calls++
		return errors.New("service unavailable")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, 3, time.Hour, "op", func(context.Context) error {
		return errors.New("timeout talking to server")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&googleapi.Error{Code: 429}))
	assert.True(t, isTransient(&googleapi.Error{Code: 503}))
	assert.False(t, isTransient(&googleapi.Error{Code: 400}))
	assert.False(t, isTransient(&googleapi.Error{Code: 404}))

	assert.True(t, isTransient(errors.New("rate limit exceeded")))
	assert.True(t, isTransient(errors.New("user-rate quota exhausted")))
	assert.True(t, isTransient(errors.New("connection reset by peer")))
	assert.True(t, isTransient(errors.New("temporarily unavailable")))

	assert.False(t, isTransient(errors.New("invalid recipient")))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(context.DeadlineExceeded))
	assert.False(t, isTransient(nil))
}
