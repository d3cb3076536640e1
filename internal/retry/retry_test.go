package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestGovernor(t *testing.T, policy Policy, nonRetryable func(error) bool) (*Governor, *[]time.Duration) {
	t.Helper()
	g := NewGovernor(policy, nonRetryable, nil)
	slept := &[]time.Duration{}
	g.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	g.randFloat = func() float64 { return 0 }
	return g, slept
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	g, slept := newTestGovernor(t, DefaultPolicy(), nil)

	calls := 0
	result, err := Execute(context.Background(), g, "op", func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 1, calls)
	require.Empty(t, *slept)
}

func TestExecuteExhaustsAttemptBudget(t *testing.T) {
	policy := Policy{MaxRetries: 3, BaseDelay: time.Second}
	g, slept := newTestGovernor(t, policy, nil)

	calls := 0
	opErr := errors.New("connection reset")
	_, err := Execute(context.Background(), g, "op", func(context.Context) (int, error) {
		calls++
		return 0, opErr
	})

	require.ErrorIs(t, err, opErr)
	require.Equal(t, 4, calls, "expected MaxRetries+1 attempts")
	require.Len(t, *slept, 3, "no sleep after the final attempt")
}

func TestExecuteStopsOnNonRetryable(t *testing.T) {
	g, slept := newTestGovernor(t, DefaultPolicy(), nil)

	calls := 0
	_, err := Execute(context.Background(), g, "op", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("invalid url: missing scheme")
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
	require.Empty(t, *slept)
}

func TestExecuteRecoversMidway(t *testing.T) {
	g, _ := newTestGovernor(t, DefaultPolicy(), nil)

	calls := 0
	result, err := Execute(context.Background(), g, "op", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient network failure")
		}
		return 42, nil
	})

	require.NoError(t, err)
	require.Equal(t, 42, result)
	require.Equal(t, 3, calls)
}

func TestExecuteCustomClassifier(t *testing.T) {
	sentinel := errors.New("stop now")
	g, _ := newTestGovernor(t, DefaultPolicy(), func(err error) bool {
		return errors.Is(err, sentinel)
	})

	calls := 0
	_, err := Execute(context.Background(), g, "op", func(context.Context) (int, error) {
		calls++
		return 0, sentinel
	})

	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
}

func TestExecuteSleepCancellation(t *testing.T) {
	policy := Policy{MaxRetries: 2, BaseDelay: time.Second}
	g := NewGovernor(policy, nil, nil)
	g.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	calls := 0
	_, err := Execute(context.Background(), g, "op", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls, "cancellation during backoff ends the loop")
}

func TestDelayExponentialBackoffCapped(t *testing.T) {
	policy := Policy{
		MaxRetries:         5,
		BaseDelay:          time.Second,
		MaxDelay:           4 * time.Second,
		ExponentialBackoff: true,
	}
	g, _ := newTestGovernor(t, policy, nil)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		4 * time.Second,
	}
	for attempt, expected := range want {
		require.Equal(t, expected, g.delay(attempt), "attempt %d", attempt)
	}
}

func TestDelayConstantWithoutBackoff(t *testing.T) {
	policy := Policy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond}
	g, _ := newTestGovernor(t, policy, nil)

	for attempt := 0; attempt < 4; attempt++ {
		require.Equal(t, 500*time.Millisecond, g.delay(attempt))
	}
}

func TestDelayJitterBounds(t *testing.T) {
	policy := Policy{
		MaxRetries:         3,
		BaseDelay:          2 * time.Second,
		MaxDelay:           16 * time.Second,
		ExponentialBackoff: true,
		Jitter:             true,
	}

	g := NewGovernor(policy, nil, nil)
	g.randFloat = func() float64 { return 0 }
	require.Equal(t, time.Second, g.delay(0), "lower jitter bound halves the delay")

	g.randFloat = func() float64 { return 0.999999 }
	got := g.delay(0)
	require.GreaterOrEqual(t, got, time.Second)
	require.Less(t, got, 2*time.Second)
}

func TestDefaultNonRetryable(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"invalid url: no host", true},
		{"invalid selector .foo", true},
		{"parsing error near token", true},
		{"authentication failed", true},
		{"permission denied", true},
		{"access denied by policy", true},
		{"http status 404", true},
		{"got 401 from origin", true},
		{"got 403 from origin", true},
		{"connection refused", false},
		{"navigation timeout", false},
		{"", false},
	}
	for _, tt := range tests {
		var err error
		if tt.msg != "" {
			err = errors.New(tt.msg)
		}
		require.Equal(t, tt.want, DefaultNonRetryable(err), "message %q", tt.msg)
	}
}
