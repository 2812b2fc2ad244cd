package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type httpError struct {
	statusCode int
}

func (e *httpError) Error() string   { return http.StatusText(e.statusCode) }
func (e *httpError) StatusCode() int { return e.statusCode }

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		BaseBackoff: 5 * time.Millisecond,
		MaxBackoff:  20 * time.Millisecond,
	}
}

func TestFomo_Retry_DefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	require.Equal(t, 3, cfg.MaxAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.BaseBackoff)
	require.Equal(t, 5*time.Second, cfg.MaxBackoff)
	require.Nil(t, cfg.Retryable)
}

func TestFomo_Retry_Do_SuccessOnFirstAttempt(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
}

func TestFomo_Retry_Do_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestFomo_Retry_Do_ExhaustsAllAttempts(t *testing.T) {
	t.Parallel()
	attempts := 0
	originalErr := errors.New("connection reset")
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		return originalErr
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
	require.ErrorIs(t, err, originalErr)
	require.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestFomo_Retry_Do_NonRetryableError(t *testing.T) {
	t.Parallel()
	attempts := 0
	originalErr := errors.New("invalid input")
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		return originalErr
	})
	require.Equal(t, originalErr, err)
	require.Equal(t, 1, attempts)
}

func TestFomo_Retry_Do_CustomPredicate(t *testing.T) {
	t.Parallel()
	stale := errors.New("stale key reference")
	cfg := fastConfig(4)
	cfg.Retryable = func(err error) bool { return errors.Is(err, stale) }

	var retried []int
	cfg.OnRetry = func(attempt int, err error) {
		require.ErrorIs(t, err, stale)
		retried = append(retried, attempt)
	}

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return stale
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, []int{1, 2}, retried)

	// The custom predicate replaces the default one entirely.
	attempts = 0
	err = Do(context.Background(), cfg, func() error {
		attempts++
		return errors.New("connection reset")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestFomo_Retry_Do_ZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
}

func TestFomo_Retry_Do_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts: 5,
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  time.Second,
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("connection reset")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, attempts)
}

func TestFomo_Retry_IsRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "op timeout", err: &net.OpError{Op: "read", Err: errors.New("i/o timeout")}, want: true},
		{name: "connection reset", err: errors.New("connection reset by peer"), want: true},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "eof", err: errors.New("unexpected EOF"), want: true},
		{name: "rate limit", err: errors.New("rate limit exceeded"), want: true},
		{name: "blockhash expired", err: errors.New("Blockhash not found"), want: true},
		{name: "429", err: &httpError{statusCode: http.StatusTooManyRequests}, want: true},
		{name: "503", err: &httpError{statusCode: http.StatusServiceUnavailable}, want: true},
		{name: "400", err: &httpError{statusCode: http.StatusBadRequest}, want: false},
		{name: "program error", err: errors.New("custom program error: 0x1771"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestFomo_Retry_CalculateBackoff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		base    time.Duration
		max     time.Duration
		attempt int
		minExp  time.Duration
		maxExp  time.Duration
	}{
		{name: "first retry", base: 500 * time.Millisecond, max: 5 * time.Second, attempt: 1, minExp: 500 * time.Millisecond, maxExp: time.Second},
		{name: "third retry", base: 500 * time.Millisecond, max: 5 * time.Second, attempt: 3, minExp: 2 * time.Second, maxExp: 4 * time.Second},
		{name: "capped", base: 500 * time.Millisecond, max: 5 * time.Second, attempt: 6, minExp: 2500 * time.Millisecond, maxExp: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for range 20 {
				got := calculateBackoff(tt.base, tt.max, tt.attempt)
				require.GreaterOrEqual(t, got, tt.minExp)
				require.LessOrEqual(t, got, tt.maxExp)
			}
		})
	}
}
