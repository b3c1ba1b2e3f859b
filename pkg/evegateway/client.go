package evegateway

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"go-killtracker/pkg/config"
	"go-killtracker/pkg/evegateway/killmails"
	"go-killtracker/pkg/evegateway/status"
	"go-killtracker/pkg/evegateway/universe"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client bundles the ESI category clients behind one shared HTTP client,
// cache and error budget tracker.
type Client struct {
	errorLimits *ESIErrorLimits
	limitsMutex *sync.RWMutex

	Status    status.Client
	Killmails killmails.Client
	Universe  universe.Client
}

// NewClient creates an ESI client with in-memory response caching, for
// tests and one-off tooling that has no Redis at hand.
func NewClient() *Client {
	return NewClientWithCache(NewDefaultCacheManager())
}

// NewClientWithCache creates an ESI client backed by the given cache
// manager. The app passes a Redis-backed manager here so cached responses
// survive restarts.
func NewClientWithCache(cacheManager CacheManager) *Client {
	var transport http.RoundTripper = http.DefaultTransport
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		transport = otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Host)
			}),
		)
	}

	// ESI requires a User-Agent with contact information.
	userAgent := config.GetEnv("ESI_USER_AGENT", "go-killtracker/1.0.0 contact@example.com")
	baseURL := config.GetEnv("ESI_BASE_URL", "https://esi.evetech.net/latest")

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}

	errorLimits := &ESIErrorLimits{}
	limitsMutex := &sync.RWMutex{}
	retryClient := NewDefaultRetryClient(httpClient, errorLimits, limitsMutex)

	return &Client{
		errorLimits: errorLimits,
		limitsMutex: limitsMutex,
		Status:      status.NewStatusClient(baseURL, userAgent, cacheManager, retryClient),
		Killmails:   killmails.NewKillmailClient(baseURL, userAgent, cacheManager, retryClient),
		Universe:    universe.NewUniverseClient(baseURL, userAgent, cacheManager, retryClient),
	}
}

// ErrorLimitStatus returns a snapshot of the ESI error budget as seen in
// the most recent response headers
func (c *Client) ErrorLimitStatus() ESIErrorLimits {
	c.limitsMutex.RLock()
	defer c.limitsMutex.RUnlock()
	return *c.errorLimits
}
