package wrapper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func makeResponse(status int, headers map[string]string) *http.Response {
	header := http.Header{}
	for k, v := range headers {
		header.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader("")),
	}
}

func testRetrier(maxRetries int, baseDelay time.Duration, slept *[]time.Duration) *retrier {
	r := newRetrier(maxRetries, baseDelay)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return r
}

func TestRetrySucceedsAfterRetryableStatuses(t *testing.T) {
	var slept []time.Duration
	r := testRetrier(3, time.Second, &slept)

	calls := 0
	resp, err := r.Do(context.Background(), func() (*http.Response, error) {
		calls++
		if calls <= 2 {
			return makeResponse(http.StatusServiceUnavailable, nil), nil
		}
		return makeResponse(http.StatusOK, nil), nil
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, calls)
	require.Len(t, slept, 2)
}

func TestRetryExhaustedReturnsLastResponse(t *testing.T) {
	var slept []time.Duration
	r := testRetrier(1, time.Second, &slept)

	calls := 0
	resp, err := r.Do(context.Background(), func() (*http.Response, error) {
		calls++
		return makeResponse(http.StatusServiceUnavailable, nil), nil
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, 2, calls)
	require.Len(t, slept, 1)
}

func TestRetryNonRetryableStatusReturnsImmediately(t *testing.T) {
	var slept []time.Duration
	r := testRetrier(3, time.Second, &slept)

	calls := 0
	resp, err := r.Do(context.Background(), func() (*http.Response, error) {
		calls++
		return makeResponse(http.StatusBadRequest, nil), nil
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 1, calls)
	require.Empty(t, slept)
}

func TestRetryNetworkErrorPropagatesAfterRetries(t *testing.T) {
	var slept []time.Duration
	r := testRetrier(2, time.Second, &slept)

	wantErr := errors.New("connection refused")
	calls := 0
	resp, err := r.Do(context.Background(), func() (*http.Response, error) {
		calls++
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Nil(t, resp)
	require.Equal(t, 3, calls)
	require.Len(t, slept, 2)
}

func TestRetryAfterHeaderOverridesJitter(t *testing.T) {
	var slept []time.Duration
	r := testRetrier(1, time.Millisecond, &slept)

	calls := 0
	_, err := r.Do(context.Background(), func() (*http.Response, error) {
		calls++
		if calls == 1 {
			return makeResponse(http.StatusTooManyRequests, map[string]string{"Retry-After": "2"}), nil
		}
		return makeResponse(http.StatusOK, nil), nil
	})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestRetryAfterFractionalSeconds(t *testing.T) {
	resp := makeResponse(http.StatusTooManyRequests, map[string]string{"Retry-After": "0.5"})
	require.Equal(t, 500*time.Millisecond, retryDelay(resp, time.Second, 0))
}

func TestRetryAfterUnparseableFallsBackToJitter(t *testing.T) {
	resp := makeResponse(http.StatusTooManyRequests, map[string]string{"Retry-After": "soon"})
	delay := retryDelay(resp, time.Second, 2)
	require.GreaterOrEqual(t, delay, time.Duration(0))
	require.Less(t, delay, 4*time.Second)
}

func TestJitterDelayBounds(t *testing.T) {
	for attempt := 0; attempt < 5; attempt++ {
		limit := time.Second << attempt
		for i := 0; i < 50; i++ {
			d := jitterDelay(time.Second, attempt)
			require.GreaterOrEqual(t, d, time.Duration(0))
			require.Less(t, d, limit)
		}
	}
}

func TestRetrySleepCancelled(t *testing.T) {
	r := newRetrier(3, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Do(ctx, func() (*http.Response, error) {
		return makeResponse(http.StatusServiceUnavailable, nil), nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
