package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client interface for the ESI server status endpoint
type Client interface {
	GetServerStatus(ctx context.Context) (*ServerStatusResponse, error)
}

// ServerStatusResponse is the ESI /status/ payload. During daily downtime
// the endpoint errors instead of answering, so an unreachable status
// endpoint usually means the game server is down rather than ESI broken.
type ServerStatusResponse struct {
	Players       int       `json:"players"`
	ServerVersion string    `json:"server_version"`
	StartTime     time.Time `json:"start_time"`
}

// CacheManager is the slice of the response cache this client needs.
type CacheManager interface {
	Get(key string) ([]byte, bool, error)
	GetForNotModified(key string) ([]byte, bool, error)
	Set(key string, data []byte, headers http.Header) error
	RefreshExpiry(key string, headers http.Header) error
	SetConditionalHeaders(req *http.Request, key string) error
}

// RetryClient executes requests with retries on transient ESI failures.
type RetryClient interface {
	DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error)
}

// StatusClient implements the status endpoint client
type StatusClient struct {
	baseURL      string
	userAgent    string
	cacheManager CacheManager
	retryClient  RetryClient
}

// NewStatusClient builds the /status/ endpoint client.
func NewStatusClient(baseURL, userAgent string, cacheManager CacheManager, retryClient RetryClient) Client {
	return &StatusClient{
		baseURL:      baseURL,
		userAgent:    userAgent,
		cacheManager: cacheManager,
		retryClient:  retryClient,
	}
}

// GetServerStatus returns the current game server status. ESI caches the
// answer for roughly thirty seconds, so repeated calls are served from the
// cache manager rather than hitting the endpoint again.
func (c *StatusClient) GetServerStatus(ctx context.Context) (*ServerStatusResponse, error) {
	cacheKey := c.baseURL + "/status/"

	if data, found, err := c.cacheManager.Get(cacheKey); err == nil && found {
		var status ServerStatusResponse
		if err := json.Unmarshal(data, &status); err == nil {
			return &status, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cacheKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	c.cacheManager.SetConditionalHeaders(req, cacheKey)

	resp, err := c.retryClient.DoWithRetry(ctx, req, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to call ESI: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		c.cacheManager.RefreshExpiry(cacheKey, resp.Header)
		if data, found, err := c.cacheManager.GetForNotModified(cacheKey); err == nil && found {
			var status ServerStatusResponse
			if err := json.Unmarshal(data, &status); err != nil {
				return nil, fmt.Errorf("failed to parse cached response: %w", err)
			}
			return &status, nil
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ESI returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.cacheManager.Set(cacheKey, body, resp.Header)

	var status ServerStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	slog.DebugContext(ctx, "Retrieved game server status",
		slog.Int("players", status.Players),
		slog.String("server_version", status.ServerVersion))

	return &status, nil
}
