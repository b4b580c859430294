package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast() Options {
	return Options{Min: time.Millisecond, Max: 4 * time.Millisecond, MaxAttempts: 4}
}

func TestNextBounded(t *testing.T) {
	b, err := New(fast())
	require.NoError(t, err)
	n := 0
	for {
		d, ok := b.Next()
		if !ok {
			break
		}
		n++
		assert.LessOrEqual(t, d, 4*time.Millisecond)
		assert.Positive(t, d)
	}
	assert.Equal(t, 3, n)
}

func TestDo(t *testing.T) {
	b, err := New(fast())
	require.NoError(t, err)

	calls := 0
	err = b.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	bad := errors.New("bad request")
	err = b.Do(context.Background(), func() error {
		calls++
		return Permanent(bad)
	})
	assert.Equal(t, bad, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = b.Do(context.Background(), func() error {
		calls++
		return errors.New("down")
	})
	assert.ErrorContains(t, err, "retry limit exceeded")
	assert.Equal(t, 4, calls)
}

func TestDoCanceled(t *testing.T) {
	b, err := New(Options{Min: time.Hour, Max: time.Hour, MaxAttempts: -1})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = b.Do(ctx, func() error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	_, err := New(Options{Grow: 0.5})
	assert.Error(t, err)
	_, err = New(Options{Min: -1})
	assert.Error(t, err)
}
