package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusErr(code int) error {
	return &HTTPError{Method: http.MethodGet, Endpoint: "http://ragflow/test", StatusCode: code}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"500", statusErr(500), true},
		{"502", statusErr(502), true},
		{"503", statusErr(503), true},
		{"429", statusErr(429), true},
		{"400", statusErr(400), false},
		{"401", statusErr(401), false},
		{"404", statusErr(404), false},
		{"connection reset", &TransportError{Err: syscall.ECONNRESET}, true},
		{"connection aborted", &TransportError{Err: syscall.ECONNABORTED}, true},
		{"timed out", &TransportError{Err: syscall.ETIMEDOUT}, true},
		{"net timeout", &TransportError{Err: timeoutErr{}}, true},
		{"deadline", &TransportError{Err: context.DeadlineExceeded}, true},
		{"eof", &TransportError{Err: io.EOF}, true},
		{"canceled", &TransportError{Err: context.Canceled}, false},
		{"wrapped canceled", fmt.Errorf("upload: %w", context.Canceled), false},
		{"protocol", &ProtocolError{Endpoint: "x", Message: "bad json"}, false},
		{"plain", errors.New("boom"), false},
		{"wrapped 503", fmt.Errorf("create dataset: %w", statusErr(503)), true},
		{"aborted deadline", fmt.Errorf("%w: %w", ErrAborted, context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestBackoffIsLinear(t *testing.T) {
	a, _ := newTestAdapter(t, "http://ragflow", "", 3)
	assert.Equal(t, time.Second, a.Backoff(1))
	assert.Equal(t, 2*time.Second, a.Backoff(2))
	assert.Equal(t, 3*time.Second, a.Backoff(3))
	assert.Equal(t, time.Second, a.Backoff(0))
}

func TestExecuteSuccessFirstAttempt(t *testing.T) {
	a, sleeper := newTestAdapter(t, "http://ragflow", "", 3)
	calls := 0
	err := a.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.recorded())
}

func TestExecuteTerminalErrorNotRetried(t *testing.T) {
	a, sleeper := newTestAdapter(t, "http://ragflow", "", 3)
	calls := 0
	err := a.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return statusErr(http.StatusUnauthorized)
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Empty(t, sleeper.recorded())
}

func TestExecuteRetriesWithLinearBackoff(t *testing.T) {
	a, sleeper := newTestAdapter(t, "http://ragflow", "", 3)
	calls := 0
	err := a.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return statusErr(http.StatusServiceUnavailable)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.recorded())
}

func TestExecuteTwoRetriesBudget(t *testing.T) {
	a, sleeper := newTestAdapter(t, "http://x", "", 2)
	calls := 0
	err := a.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return statusErr(http.StatusServiceUnavailable)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.recorded())
}

func TestExecuteExhaustionPropagatesLastError(t *testing.T) {
	a, sleeper := newTestAdapter(t, "http://ragflow", "", 3)
	calls := 0
	err := a.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 4 {
			return statusErr(http.StatusBadGateway)
		}
		return statusErr(http.StatusServiceUnavailable)
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeper.recorded())
}

func TestExecuteZeroRetries(t *testing.T) {
	a, sleeper := newTestAdapter(t, "http://ragflow", "", 0)
	calls := 0
	err := a.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return statusErr(http.StatusInternalServerError)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.recorded())
}

func TestExecuteRateLimitedIsRetried(t *testing.T) {
	a, _ := newTestAdapter(t, "http://ragflow", "", 3)
	calls := 0
	err := a.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return statusErr(http.StatusTooManyRequests)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecuteCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	a, err := New(Config{BaseURL: "http://ragflow", MaxRetries: 3, RetryDelay: time.Hour},
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			close(started)
			return sleepContext(ctx, d)
		}))
	require.NoError(t, err)

	go func() {
		<-started
		cancel()
	}()

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- a.Execute(ctx, func(ctx context.Context) error {
			calls++
			return statusErr(http.StatusServiceUnavailable)
		})
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsRetryable(err))
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
}

func TestExecuteDeadlineDuringBackoffIsTerminal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	a, err := New(Config{BaseURL: "http://ragflow", MaxRetries: 3, RetryDelay: time.Hour})
	require.NoError(t, err)

	calls := 0
	err = a.Execute(ctx, func(ctx context.Context) error {
		calls++
		return statusErr(http.StatusServiceUnavailable)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsRetryable(err))
}

func TestFallbackDeadlineDuringBackoffIsTerminal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	a, err := New(Config{BaseURL: "http://ragflow", MaxRetries: 3, RetryDelay: time.Hour})
	require.NoError(t, err)

	var tried []string
	err = a.Fallback(ctx, []string{"/a", "/b"}, func(ctx context.Context, path string) error {
		tried = append(tried, path)
		return statusErr(http.StatusServiceUnavailable)
	})
	require.Error(t, err)
	assert.Equal(t, []string{"/a"}, tried)
	assert.ErrorIs(t, err, ErrAborted)
	assert.False(t, IsRetryable(err))
}

func TestExecuteAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, _ := newTestAdapter(t, "http://ragflow", "", 3)
	calls := 0
	err := a.Execute(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestFallbackMovesPastTerminalError(t *testing.T) {
	a, sleeper := newTestAdapter(t, "http://ragflow", "", 3)
	var tried []string
	err := a.Fallback(context.Background(), []string{"/a", "/b", "/c"}, func(ctx context.Context, path string) error {
		tried = append(tried, path)
		if path == "/a" {
			return statusErr(http.StatusNotFound)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, tried)
	assert.Empty(t, sleeper.recorded())
}

func TestFallbackSharedBudget(t *testing.T) {
	a, sleeper := newTestAdapter(t, "http://ragflow", "", 2)
	var tried []string
	err := a.Fallback(context.Background(), []string{"/a", "/b", "/c"}, func(ctx context.Context, path string) error {
		tried = append(tried, path)
		return statusErr(http.StatusServiceUnavailable)
	})
	require.Error(t, err)
	// 预算在第一个候选上耗尽，后续候选各尝试一次
	assert.Equal(t, []string{"/a", "/a", "/a", "/b", "/c"}, tried)
	assert.LessOrEqual(t, len(tried), 3+2)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.recorded())
}

func TestFallbackAllFailReturnsLastError(t *testing.T) {
	a, _ := newTestAdapter(t, "http://ragflow", "", 1)
	err := a.Fallback(context.Background(), []string{"/a", "/b"}, func(ctx context.Context, path string) error {
		if path == "/a" {
			return statusErr(http.StatusNotFound)
		}
		return statusErr(http.StatusMethodNotAllowed)
	})
	assert.Equal(t, http.StatusMethodNotAllowed, StatusCode(err))
}

func TestFallbackRetryThenSucceedOnSameCandidate(t *testing.T) {
	a, sleeper := newTestAdapter(t, "http://ragflow", "", 3)
	var tried []string
	err := a.Fallback(context.Background(), []string{"/a", "/b"}, func(ctx context.Context, path string) error {
		tried = append(tried, path)
		if len(tried) == 1 {
			return statusErr(http.StatusInternalServerError)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/a"}, tried)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.recorded())
}

func TestFallbackNoPaths(t *testing.T) {
	a, _ := newTestAdapter(t, "http://ragflow", "", 3)
	err := a.Fallback(context.Background(), nil, func(ctx context.Context, path string) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestFallbackEmitsEvents(t *testing.T) {
	var kinds []EventKind
	a, err := New(Config{BaseURL: "http://ragflow", MaxRetries: 1, RetryDelay: time.Millisecond},
		WithObserver(ObserverFunc(func(ev Event) { kinds = append(kinds, ev.Kind) })),
		WithSleeper(func(ctx context.Context, d time.Duration) error { return nil }))
	require.NoError(t, err)

	_ = a.Fallback(context.Background(), []string{"/a", "/b"}, func(ctx context.Context, path string) error {
		return statusErr(http.StatusServiceUnavailable)
	})
	assert.Equal(t, []EventKind{EventRetry, EventFallback, EventGiveUp}, kinds)
}
