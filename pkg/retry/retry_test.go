package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstTry(t *testing.T) {
	r := NewDefaultRetrier()
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	r := NewRetrier(&Config{
		MaxRetries:    5,
		BackoffFactor: 1.0,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Jitter:        time.Millisecond,
	})
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastError(t *testing.T) {
	r := NewRetrier(&Config{
		MaxRetries:    2,
		BackoffFactor: 1.0,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		Jitter:        0,
	})
	wantErr := errors.New("permanent")
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	r := NewRetrier(&Config{
		MaxRetries:    100,
		BackoffFactor: 1.0,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      50 * time.Millisecond,
		Jitter:        0,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, func() error {
		return errors.New("always fails")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
