package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMPolicy_MatchesSpecConstants(t *testing.T) {
	p := LLMPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 3*time.Second, p.InitialDelay)
	assert.Equal(t, 3*time.Second, p.MaxDelay)
	assert.False(t, p.Jitter)
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsLastErrorAfterExhaustingAttempts(t *testing.T) {
	wantErr := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 2, InitialDelay: time.Millisecond}, func(attempt int) error {
		calls++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 2, calls)
}

func TestDo_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond}, func(attempt int) error {
		calls++
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "ctx is only checked between attempts, so the first attempt still runs")
}
