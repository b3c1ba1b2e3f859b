package evegateway

import (
	"context"
	"net/http"
	"time"
)

// CacheEntry is one cached ESI response with the validators needed for
// conditional revalidation.
type CacheEntry struct {
	Data         []byte
	ETag         string
	LastModified string
	Expires      time.Time
}

// ESIErrorLimits mirrors the X-ESI-Error-Limit-* headers. ESI rejects all
// requests for the rest of the window once the budget hits zero, so the
// pipeline exposes this on its status endpoint.
type ESIErrorLimits struct {
	Remain int
	Reset  time.Time
	Window int
}

// CacheManager stores ESI responses together with their conditional
// validators. Implementations: RedisCacheManager for the binaries,
// MemoryCacheManager for tests.
type CacheManager interface {
	Get(key string) ([]byte, bool, error)
	GetForNotModified(key string) ([]byte, bool, error)
	Set(key string, data []byte, headers http.Header) error
	RefreshExpiry(key string, headers http.Header) error
	SetConditionalHeaders(req *http.Request, key string) error
}

// RetryClient executes requests with retries on transient ESI failures
// while accounting for the shared error budget.
type RetryClient interface {
	DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error)
}
