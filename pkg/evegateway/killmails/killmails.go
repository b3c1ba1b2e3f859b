package killmails

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Client fetches killmails from ESI.
type Client interface {
	GetKillmail(ctx context.Context, killmailID int64, hash string) (*KillmailResponse, error)
}

// KillmailResponse represents a full killmail as served by ESI. The same
// shape arrives embedded in zKillboard RedisQ packages.
type KillmailResponse struct {
	KillmailID    int64      `json:"killmail_id"`
	KillmailTime  time.Time  `json:"killmail_time"`
	SolarSystemID int        `json:"solar_system_id"`
	MoonID        *int64     `json:"moon_id,omitempty"`
	WarID         *int64     `json:"war_id,omitempty"`
	Victim        Victim     `json:"victim"`
	Attackers     []Attacker `json:"attackers"`
}

// Victim is the destroyed party of a killmail.
type Victim struct {
	CharacterID   *int64    `json:"character_id,omitempty"`
	CorporationID *int64    `json:"corporation_id,omitempty"`
	AllianceID    *int64    `json:"alliance_id,omitempty"`
	FactionID     *int64    `json:"faction_id,omitempty"`
	ShipTypeID    int       `json:"ship_type_id"`
	DamageTaken   int64     `json:"damage_taken"`
	Position      *Position `json:"position,omitempty"`
	Items         []Item    `json:"items,omitempty"`
}

// Attacker is one participant on the aggressing side.
type Attacker struct {
	CharacterID    *int64  `json:"character_id,omitempty"`
	CorporationID  *int64  `json:"corporation_id,omitempty"`
	AllianceID     *int64  `json:"alliance_id,omitempty"`
	FactionID      *int64  `json:"faction_id,omitempty"`
	ShipTypeID     *int    `json:"ship_type_id,omitempty"`
	WeaponTypeID   *int    `json:"weapon_type_id,omitempty"`
	DamageDone     int64   `json:"damage_done"`
	FinalBlow      bool    `json:"final_blow"`
	SecurityStatus float64 `json:"security_status"`
}

// Position is a point in solar-system coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Item represents an item fitted to or carried by the victim's ship
type Item struct {
	ItemTypeID        int64  `json:"item_type_id"`
	Flag              int64  `json:"flag"`
	Singleton         int64  `json:"singleton"`
	QuantityDestroyed *int64 `json:"quantity_destroyed,omitempty"`
	QuantityDropped   *int64 `json:"quantity_dropped,omitempty"`
	Items             []Item `json:"items,omitempty"`
}

// KillmailClient talks to the /killmails/ ESI endpoints.
type KillmailClient struct {
	baseURL      string
	userAgent    string
	cacheManager CacheManager
	retryClient  RetryClient
}

// CacheManager caches killmail bodies. Killmails never change once
// published, so cached entries are effectively permanent.
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

// NewKillmailClient builds the killmail endpoint client.
func NewKillmailClient(baseURL, userAgent string, cacheManager CacheManager, retryClient RetryClient) Client {
	return &KillmailClient{
		baseURL:      baseURL,
		userAgent:    userAgent,
		cacheManager: cacheManager,
		retryClient:  retryClient,
	}
}

// GetKillmail fetches a killmail from ESI by ID and hash. This is the hot
// path of every ingest cycle, so it carries its own span. Killmails are
// immutable; cached responses are served until expiry and 304 revalidation
// keeps entries alive after that.
func (c *KillmailClient) GetKillmail(ctx context.Context, killmailID int64, hash string) (*KillmailResponse, error) {
	tracer := otel.Tracer("go-killtracker/evegateway/killmails")
	ctx, span := tracer.Start(ctx, "killmails.GetKillmail")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("esi.killmail_id", killmailID),
		attribute.String("esi.killmail_hash", hash),
	)

	endpoint := fmt.Sprintf("/killmails/%d/%s/", killmailID, hash)
	var killmail KillmailResponse
	if err := c.getJSON(ctx, endpoint, &killmail); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "killmail fetch failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "killmail fetched")
	return &killmail, nil
}

// getJSON performs one cache-aware GET against ESI and decodes the body
// into out, following the ESI caching contract with conditional headers
// and 304 revalidation.
func (c *KillmailClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	cacheKey := c.baseURL + endpoint

	if data, found, err := c.cacheManager.Get(cacheKey); err == nil && found {
		if err := json.Unmarshal(data, out); err == nil {
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cacheKey, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	c.cacheManager.SetConditionalHeaders(req, cacheKey)

	resp, err := c.retryClient.DoWithRetry(ctx, req, 3)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		c.cacheManager.RefreshExpiry(cacheKey, resp.Header)
		if data, found, err := c.cacheManager.GetForNotModified(cacheKey); err == nil && found {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to parse cached response: %w", err)
			}
			return nil
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ESI returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if err := c.cacheManager.Set(cacheKey, body, resp.Header); err != nil {
		slog.Error("Failed to cache ESI response", "error", err, "endpoint", endpoint)
	}

	return nil
}
