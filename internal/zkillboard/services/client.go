package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"go-killtracker/internal/zkillboard/dto"
	"go-killtracker/pkg/config"
	"go-killtracker/pkg/evegateway"
)

const (
	userAgent        = "go-killtracker/1.0"
	maxResponseBytes = 10 << 20
)

// RedisQClient talks to the zKillboard RedisQ feed and REST API. Live
// packages come straight from RedisQ; historical packages are composed
// from a zKillboard API lookup plus the ESI killmail body.
type RedisQClient struct {
	httpClient *http.Client
	esi        *evegateway.Client

	endpoint string
	apiURL   string
	queueID  string
	ttw      int
}

// NewRedisQClient creates a client for the RedisQ feed
func NewRedisQClient(esi *evegateway.Client) *RedisQClient {
	queueID := os.Getenv("ZKB_QUEUE_ID")
	if queueID == "" {
		queueID = fmt.Sprintf("killtracker-%s", uuid.New().String())
	}

	var transport http.RoundTripper = http.DefaultTransport
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	httpClient := &http.Client{
		Timeout:   config.GetDurationEnv("ZKB_HTTP_TIMEOUT", 30, time.Second),
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &RedisQClient{
		httpClient: httpClient,
		esi:        esi,
		endpoint:   config.GetEnv("ZKB_REDISQ_URL", "https://redisq.zkillboard.com/listen.php"),
		apiURL:     config.GetEnv("ZKB_API_URL", "https://zkillboard.com/api"),
		queueID:    queueID,
		ttw:        config.GetIntEnv("ZKB_TTW", 10),
	}
}

// QueueID returns the queue identifier this client polls with.
func (c *RedisQClient) QueueID() string {
	return c.queueID
}

// Endpoint returns the RedisQ listen URL.
func (c *RedisQClient) Endpoint() string {
	return c.endpoint
}

// TTW returns the long-poll wait time in seconds.
func (c *RedisQClient) TTW() int {
	return c.ttw
}

// Poll performs one long-poll request against RedisQ. A nil package with a
// nil error means the poll timed out without an event. Any error, including
// rate limiting and ban notices served as HTML, means the feed is not
// usable right now and the caller should stop polling.
func (c *RedisQClient) Poll(ctx context.Context) (*dto.RedisQPackage, error) {
	url := fmt.Sprintf("%s?queueID=%s&ttw=%d", c.endpoint, c.queueID, c.ttw)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("redisq request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("redisq rate limited (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("redisq returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read redisq response: %w", err)
	}

	var envelope dto.RedisQResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		// Ban notices arrive as HTML pages with status 200. Record the
		// shape only; the content is never parsed.
		slog.WarnContext(ctx, "RedisQ returned a non-JSON response",
			"status", resp.StatusCode,
			"body_length", len(body))
		return nil, fmt.Errorf("redisq returned non-JSON response: %w", err)
	}

	return envelope.Package, nil
}

// GetPackage composes the package shape for one historical killmail. The
// zKillboard API lookup supplies the hash and metadata, ESI supplies the
// killmail body.
func (c *RedisQClient) GetPackage(ctx context.Context, killmailID int64) (*dto.RedisQPackage, error) {
	url := fmt.Sprintf("%s/killID/%d/", c.apiURL, killmailID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zkillboard api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zkillboard api returned status %d for killmail %d", resp.StatusCode, killmailID)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read zkillboard api response: %w", err)
	}

	// The API returns a single-element array for an ID lookup.
	var records []dto.ZKBAPIRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse zkillboard api response: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("killmail %d not found on zkillboard", killmailID)
	}
	record := records[0]
	if record.ZKB.Hash == "" {
		return nil, fmt.Errorf("zkillboard api returned no hash for killmail %d", killmailID)
	}

	killmail, err := c.esi.Killmails.GetKillmail(ctx, killmailID, record.ZKB.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch killmail %d from esi: %w", killmailID, err)
	}

	return &dto.RedisQPackage{
		KillID:   killmailID,
		Killmail: killmail,
		ZKB:      record.ZKB,
	}, nil
}
