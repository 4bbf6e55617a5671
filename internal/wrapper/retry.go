package wrapper

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Statuses worth retrying. Everything else, success or failure, is
// returned to the caller for interpretation.
var retryableStatuses = map[int]struct{}{
	http.StatusTooManyRequests:    {},
	http.StatusBadGateway:         {},
	http.StatusServiceUnavailable: {},
	http.StatusGatewayTimeout:     {},
}

// Operation issues one HTTP request and returns the raw response.
type Operation func() (*http.Response, error)

type retrier struct {
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func newRetrier(maxRetries int, baseDelay time.Duration) *retrier {
	return &retrier{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleepContext,
	}
}

// Do calls op up to maxRetries+1 times. Network-level failures are retried
// with backoff until attempts run out, then propagated. A response with a
// retryable status is retried; once attempts are exhausted the last failing
// response is returned without error so the caller decides what the status
// means. Any other status is returned immediately.
func (r *retrier) Do(ctx context.Context, op Operation) (*http.Response, error) {
	logger := logutil.GetLogger(ctx)
	for attempt := 0; ; attempt++ {
		resp, err := op()
		if err != nil {
			if attempt >= r.maxRetries {
				return nil, err
			}
			logger.Warn("wrapper request failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", r.maxRetries+1),
				zap.Error(err),
			)
			if serr := r.sleep(ctx, jitterDelay(r.baseDelay, attempt)); serr != nil {
				return nil, serr
			}
			continue
		}
		if _, retryable := retryableStatuses[resp.StatusCode]; !retryable {
			return resp, nil
		}
		if attempt >= r.maxRetries {
			logger.Warn("wrapper status still retryable, giving up",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempts", attempt+1),
			)
			return resp, nil
		}
		delay := retryDelay(resp, r.baseDelay, attempt)
		logger.Info("wrapper retryable status",
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.maxRetries+1),
			zap.Duration("delay", delay),
		)
		discardBody(resp)
		if serr := r.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}
}

// retryDelay honours an explicit Retry-After (seconds, integer or float)
// without jitter; otherwise falls back to full-jitter exponential backoff.
func retryDelay(resp *http.Response, baseDelay time.Duration, attempt int) time.Duration {
	if value := strings.TrimSpace(resp.Header.Get("Retry-After")); value != "" {
		if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return jitterDelay(baseDelay, attempt)
}

// jitterDelay draws uniformly from [0, baseDelay*2^attempt). Full jitter
// keeps concurrent clients from retrying in lockstep.
func jitterDelay(baseDelay time.Duration, attempt int) time.Duration {
	limit := baseDelay << attempt
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// discardBody releases a response we are about to retry past so the
// underlying connection can be reused.
func discardBody(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
