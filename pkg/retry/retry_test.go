package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "herald/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnFatal(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(errors.New("bad payload"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_StopsOnPermanentAppError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return pkgerrors.ErrInvalidEvent.WithMessage("missing tenant")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	var attempts []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return pkgerrors.ErrLookupFailed
	}, func(attempt int, err error, _ time.Duration) {
		attempts = append(attempts, attempt)
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestCalculateBackoffDuration_Capped(t *testing.T) {
	assert.Equal(t, 4*time.Second, CalculateBackoffDuration(2, time.Second, 2, 10*time.Second))
	assert.Equal(t, 10*time.Second, CalculateBackoffDuration(5, time.Second, 2, 10*time.Second))
}
