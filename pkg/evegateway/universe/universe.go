package universe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go-killtracker/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ESI rejects name resolution requests with more than 1000 IDs.
const namesChunkSize = 1000

// ErrNoRoute indicates ESI could not find a stargate route between two
// systems, which is the normal answer for wormhole and Pochven systems.
var ErrNoRoute = errors.New("no route found")

var errNotFound = errors.New("not found")

// Client resolves names, systems and routes through the ESI universe
// endpoints.
type Client interface {
	PostNames(ctx context.Context, ids []int64) ([]NameRef, error)
	GetRoute(ctx context.Context, originID, destinationID int) ([]int, error)
	GetSystemInfo(ctx context.Context, systemID int) (*SystemInfoResponse, error)
	GetConstellationInfo(ctx context.Context, constellationID int) (*ConstellationInfoResponse, error)
}

// NameRef represents one resolved ID from the names endpoint
type NameRef struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
}

// Position is a location in space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SystemInfoResponse carries the solar system attributes trackers
// filter on, security status above all.
type SystemInfoResponse struct {
	SystemID        int       `json:"system_id"`
	Name            string    `json:"name"`
	ConstellationID int       `json:"constellation_id"`
	SecurityStatus  float64   `json:"security_status"`
	SecurityClass   string    `json:"security_class,omitempty"`
	Position        *Position `json:"position,omitempty"`
	Stargates       []int     `json:"stargates,omitempty"`
}

// ConstellationInfoResponse represents constellation information
type ConstellationInfoResponse struct {
	ConstellationID int    `json:"constellation_id"`
	Name            string `json:"name"`
	RegionID        int    `json:"region_id"`
}

// UniverseClient talks to the /universe/ and /route/ ESI endpoints.
type UniverseClient struct {
	baseURL      string
	userAgent    string
	cacheManager CacheManager
	retryClient  RetryClient
}

// CacheManager caches resolved universe data. Names and system
// attributes change rarely, so hits dominate after warmup.
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

// NewUniverseClient builds the universe endpoint client.
func NewUniverseClient(baseURL, userAgent string, cacheManager CacheManager, retryClient RetryClient) Client {
	return &UniverseClient{
		baseURL:      baseURL,
		userAgent:    userAgent,
		cacheManager: cacheManager,
		retryClient:  retryClient,
	}
}

// getJSON performs one cache-aware GET against ESI and decodes the body
// into out. Conditional headers and 304 revalidation follow the ESI
// caching contract. A 404 surfaces as errNotFound so callers can map it
// to their own sentinel.
func (c *UniverseClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	cacheKey := fmt.Sprintf("%s%s", c.baseURL, endpoint)

	// Serve from cache when the entry is still fresh.
	if cachedData, found, err := c.cacheManager.Get(cacheKey); err == nil && found {
		if err := json.Unmarshal(cachedData, out); err == nil {
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	c.cacheManager.SetConditionalHeaders(req, cacheKey)

	resp, err := c.retryClient.DoWithRetry(ctx, req, 3)
	if err != nil {
		return fmt.Errorf("failed to call ESI: %w", err)
	}
	defer resp.Body.Close()

	// 304 means the cached body still stands, only the expiry moves.
	if resp.StatusCode == http.StatusNotModified {
		c.cacheManager.RefreshExpiry(cacheKey, resp.Header)

		if cachedData, found, err := c.cacheManager.GetForNotModified(cacheKey); err == nil && found {
			if err := json.Unmarshal(cachedData, out); err != nil {
				return fmt.Errorf("failed to parse cached response: %w", err)
			}
			return nil
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}

	if resp.StatusCode != http.StatusOK {
		slog.ErrorContext(ctx, "ESI universe endpoint returned error",
			"endpoint", endpoint,
			"status_code", resp.StatusCode)
		return fmt.Errorf("ESI returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Update cache
	c.cacheManager.Set(cacheKey, body, resp.Header)

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// PostNames resolves IDs to names and categories via the universe names
// endpoint. Requests are chunked to the ESI limit, so any number of IDs
// can be passed. POST responses are not cacheable; callers are expected
// to cache resolved names themselves.
func (c *UniverseClient) PostNames(ctx context.Context, ids []int64) ([]NameRef, error) {
	var span trace.Span

	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		tracer := otel.Tracer("go-killtracker/evegateway/universe")
		ctx, span = tracer.Start(ctx, "universe.PostNames")
		defer span.End()

		span.SetAttributes(
			attribute.String("esi.endpoint", "universe_names"),
			attribute.Int("esi.id_count", len(ids)),
		)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	var resolved []NameRef
	for start := 0; start < len(ids); start += namesChunkSize {
		end := start + namesChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		refs, err := c.postNamesChunk(ctx, ids[start:end])
		if err != nil {
			if span != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to resolve names")
			}
			return nil, err
		}
		resolved = append(resolved, refs...)
	}

	if span != nil {
		span.SetAttributes(attribute.Int("esi.resolved_count", len(resolved)))
		span.SetStatus(codes.Ok, "names resolved")
	}

	slog.DebugContext(ctx, "Resolved IDs via ESI", "requested", len(ids), "resolved", len(resolved))
	return resolved, nil
}

func (c *UniverseClient) postNamesChunk(ctx context.Context, ids []int64) ([]NameRef, error) {
	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal IDs: %w", err)
	}

	url := fmt.Sprintf("%s/universe/names/", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.retryClient.DoWithRetry(ctx, req, 3)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// ESI answers 404 when any single ID in the batch is unknown.
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ESI returned status %d: %s", resp.StatusCode, string(body))
	}

	var refs []NameRef
	if err := json.NewDecoder(resp.Body).Decode(&refs); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return refs, nil
}

// GetRoute returns the shortest stargate route between two solar systems
// as an ordered list of system IDs, endpoints included. Route responses
// carry long cache headers, so repeated lookups for the same pair are
// served from cache.
func (c *UniverseClient) GetRoute(ctx context.Context, originID, destinationID int) ([]int, error) {
	var span trace.Span
	endpoint := fmt.Sprintf("/route/%d/%d/", originID, destinationID)

	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		tracer := otel.Tracer("go-killtracker/evegateway/universe")
		ctx, span = tracer.Start(ctx, "universe.GetRoute")
		defer span.End()

		span.SetAttributes(
			attribute.String("esi.endpoint", "route"),
			attribute.Int("esi.origin_id", originID),
			attribute.Int("esi.destination_id", destinationID),
		)
	}

	var route []int
	err := c.getJSON(ctx, endpoint, &route)
	if err != nil {
		if errors.Is(err, errNotFound) {
			if span != nil {
				span.SetStatus(codes.Ok, "no route between systems")
			}
			return nil, ErrNoRoute
		}
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to retrieve route")
		}
		return nil, err
	}

	if span != nil {
		span.SetAttributes(attribute.Int("esi.route_length", len(route)))
		span.SetStatus(codes.Ok, "route retrieved")
	}

	return route, nil
}

// GetSystemInfo fetches a solar system, including its security status.
func (c *UniverseClient) GetSystemInfo(ctx context.Context, systemID int) (*SystemInfoResponse, error) {
	var span trace.Span
	endpoint := fmt.Sprintf("/universe/systems/%d/", systemID)

	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		tracer := otel.Tracer("go-killtracker/evegateway/universe")
		ctx, span = tracer.Start(ctx, "universe.GetSystemInfo")
		defer span.End()

		span.SetAttributes(
			attribute.String("esi.endpoint", "universe_system"),
			attribute.Int("esi.system_id", systemID),
		)
	}

	var system SystemInfoResponse
	if err := c.getJSON(ctx, endpoint, &system); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("solar system %d not found", systemID)
		}
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to retrieve system")
		}
		return nil, err
	}

	if span != nil {
		span.SetAttributes(attribute.String("esi.system_name", system.Name))
		span.SetStatus(codes.Ok, "system retrieved")
	}

	return &system, nil
}

// GetConstellationInfo retrieves constellation information from ESI
func (c *UniverseClient) GetConstellationInfo(ctx context.Context, constellationID int) (*ConstellationInfoResponse, error) {
	var span trace.Span
	endpoint := fmt.Sprintf("/universe/constellations/%d/", constellationID)

	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		tracer := otel.Tracer("go-killtracker/evegateway/universe")
		ctx, span = tracer.Start(ctx, "universe.GetConstellationInfo")
		defer span.End()

		span.SetAttributes(
			attribute.String("esi.endpoint", "universe_constellation"),
			attribute.Int("esi.constellation_id", constellationID),
		)
	}

	var constellation ConstellationInfoResponse
	if err := c.getJSON(ctx, endpoint, &constellation); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("constellation %d not found", constellationID)
		}
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to retrieve constellation")
		}
		return nil, err
	}

	if span != nil {
		span.SetStatus(codes.Ok, "constellation retrieved")
	}

	return &constellation, nil
}
