package retry

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"zero", Policy{}, false},
		{"retries and delay", Policy{MaxRetries: 3, Delay: time.Second}, false},
		{"negative retries", Policy{MaxRetries: -1}, true},
		{"negative delay", Policy{Delay: -time.Millisecond}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		result := Do(ctx, Policy{MaxRetries: 2}, func(_ context.Context, _ int) (string, error) {
			calls++
			return "ok", nil
		}, nil)

		require.NoError(t, result.Err)
		assert.Equal(t, "ok", result.Value)
		assert.Equal(t, 1, result.Attempts)
		assert.Equal(t, 1, calls)
	})

	t.Run("success on third attempt", func(t *testing.T) {
		var seen []int
		var retried []int
		result := Do(ctx, Policy{MaxRetries: 2, Delay: time.Millisecond}, func(_ context.Context, attempt int) (int, error) {
			seen = append(seen, attempt)
			if attempt < 3 {
				return 0, errors.New("flaky")
			}
			return 42, nil
		}, func(attempt int, _ error) {
			retried = append(retried, attempt)
		})

		require.NoError(t, result.Err)
		assert.Equal(t, 42, result.Value)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, []int{1, 2, 3}, seen)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("exhausted returns the original error", func(t *testing.T) {
		boom := errors.New("boom")
		result := Do(ctx, Policy{MaxRetries: 1}, func(_ context.Context, _ int) (int, error) {
			return 0, boom
		}, nil)

		assert.Same(t, boom, result.Err)
		assert.Equal(t, 2, result.Attempts)
	})

	t.Run("waits between attempts", func(t *testing.T) {
		delay := 20 * time.Millisecond
		result := Do(ctx, Policy{MaxRetries: 2, Delay: delay}, func(_ context.Context, _ int) (int, error) {
			return 0, errors.New("nope")
		}, nil)

		assert.GreaterOrEqual(t, result.Duration, 2*delay)
	})

	t.Run("max int retries still runs the operation", func(t *testing.T) {
		calls := 0
		result := Do(ctx, Policy{MaxRetries: math.MaxInt}, func(_ context.Context, attempt int) (int, error) {
			calls++
			if attempt < 3 {
				return 0, errors.New("flaky")
			}
			return 7, nil
		}, nil)

		require.NoError(t, result.Err)
		assert.Equal(t, 7, result.Value)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, 3, calls)
	})

	t.Run("zero retries runs once", func(t *testing.T) {
		calls := 0
		result := Do(ctx, None, func(_ context.Context, _ int) (int, error) {
			calls++
			return 0, errors.New("nope")
		}, nil)

		assert.Error(t, result.Err)
		assert.Equal(t, 1, result.Attempts)
		assert.Equal(t, 1, calls)
	})
}

func TestPolicy_Attempts(t *testing.T) {
	assert.Equal(t, 1, None.Attempts())
	assert.Equal(t, 4, Policy{MaxRetries: 3}.Attempts())
	assert.Equal(t, math.MaxInt, Policy{MaxRetries: math.MaxInt}.Attempts())
}
