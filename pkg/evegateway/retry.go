package evegateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// DefaultRetryClient retries transient ESI failures with exponential
// backoff and tracks the error budget headers on every response.
type DefaultRetryClient struct {
	httpClient  *http.Client
	errorLimits *ESIErrorLimits
	limitsMutex *sync.RWMutex
}

// NewDefaultRetryClient builds a retry client sharing the owning
// gateway's error-limit state.
func NewDefaultRetryClient(httpClient *http.Client, errorLimits *ESIErrorLimits, limitsMutex *sync.RWMutex) *DefaultRetryClient {
	return &DefaultRetryClient{
		httpClient:  httpClient,
		errorLimits: errorLimits,
		limitsMutex: limitsMutex,
	}
}

// DoWithRetry sends the request, retrying network errors, 5xx responses
// and both rate limit codes (420, 429) up to maxRetries extra attempts.
// Any other response is handed back to the caller as-is.
func (r *DefaultRetryClient) DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := r.httpClient.Do(req.Clone(ctx))
		if err != nil {
			if attempt == maxRetries {
				return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			if err := sleepCtx(ctx, capDuration(backoff(attempt, time.Second), 10*time.Second)); err != nil {
				return nil, err
			}
			continue
		}

		// 404s are the one error class ESI does not count against the
		// error budget.
		if resp.StatusCode != http.StatusNotFound {
			r.noteErrorBudget(ctx, resp.Header, req)
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		resp.Body.Close()

		if attempt == maxRetries {
			return nil, fmt.Errorf("request failed with status %d after %d attempts", resp.StatusCode, attempt+1)
		}

		wait := statusBackoff(resp.StatusCode, attempt)
		slog.WarnContext(ctx, "ESI error requires backoff",
			"status_code", resp.StatusCode,
			"attempt", attempt,
			"backoff_duration", wait.String())

		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func retryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == 420 || statusCode == http.StatusTooManyRequests
}

// statusBackoff picks the wait before the next attempt. 420 is the ESI
// error limit kicking in and needs minutes, not seconds.
func statusBackoff(statusCode, attempt int) time.Duration {
	switch {
	case statusCode == 420:
		return capDuration(backoff(attempt, time.Minute), 10*time.Minute)
	case statusCode == http.StatusTooManyRequests:
		return capDuration(backoff(attempt, time.Second), 60*time.Second)
	default:
		return capDuration(backoff(attempt, time.Second), 30*time.Second)
	}
}

func backoff(attempt int, unit time.Duration) time.Duration {
	return time.Duration(1<<uint(attempt)) * unit
}

func capDuration(d, limit time.Duration) time.Duration {
	if d > limit {
		return limit
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// noteErrorBudget records the X-ESI-Error-Limit-* headers. A nearly spent
// budget is logged with the endpoint that burned it, because once it hits
// zero ESI rejects everything until the window resets.
func (r *DefaultRetryClient) noteErrorBudget(ctx context.Context, headers http.Header, req *http.Request) {
	r.limitsMutex.Lock()
	defer r.limitsMutex.Unlock()

	if resetStr := headers.Get("X-ESI-Error-Limit-Reset"); resetStr != "" {
		if reset, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			r.errorLimits.Reset = time.Unix(reset, 0)
		}
	}
	if windowStr := headers.Get("X-ESI-Error-Limit-Window"); windowStr != "" {
		if window, err := strconv.Atoi(windowStr); err == nil {
			r.errorLimits.Window = window
		}
	}

	remainStr := headers.Get("X-ESI-Error-Limit-Remain")
	if remainStr == "" {
		return
	}
	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return
	}
	r.errorLimits.Remain = remain

	if remain <= 50 {
		endpoint, method := "unknown", "unknown"
		if req != nil {
			endpoint = req.URL.String()
			method = req.Method
		}
		slog.ErrorContext(ctx, "ESI error budget running low",
			"x_esi_error_limit_remain", remain,
			"endpoint", endpoint,
			"method", method,
			"reset_time", r.errorLimits.Reset.Format(time.RFC3339),
			"window", r.errorLimits.Window,
		)
	}
}
