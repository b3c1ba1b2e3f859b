package evegateway

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// expiryFromHeaders derives a cache expiry time from ESI response headers.
// The Expires header is authoritative, Cache-Control max-age is the
// fallback. Without either the entry gets a short default so it can still
// serve 304 revalidation.
func expiryFromHeaders(headers http.Header) time.Time {
	if expires := headers.Get("Expires"); expires != "" {
		if parsedTime, err := time.Parse(time.RFC1123, expires); err == nil {
			return parsedTime
		}
		if parsedTime, err := time.Parse(time.RFC1123Z, expires); err == nil {
			return parsedTime
		}
	}
	if cacheControl := headers.Get("Cache-Control"); cacheControl != "" {
		if maxAge := parseCacheControlMaxAge(cacheControl); maxAge > 0 {
			return time.Now().Add(time.Duration(maxAge) * time.Second)
		}
	}
	return time.Now().Add(5 * time.Second)
}

// parseCacheControlMaxAge is a simple parser for the max-age directive
func parseCacheControlMaxAge(cacheControl string) int {
	_, after, found := strings.Cut(cacheControl, "max-age=")
	if !found {
		return 0
	}

	value := after
	if comma := strings.IndexByte(value, ','); comma >= 0 {
		value = value[:comma]
	}

	maxAge, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return maxAge
}

// MemoryCacheManager keeps cached ESI responses in process memory. The
// killtracker binaries use the Redis-backed manager instead so the cache
// survives restarts; this one serves tests and one-off tooling.
type MemoryCacheManager struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// NewDefaultCacheManager creates an in-memory cache manager.
func NewDefaultCacheManager() *MemoryCacheManager {
	return &MemoryCacheManager{
		entries: make(map[string]*CacheEntry),
	}
}

// Get returns cached data while the entry is still fresh.
func (c *MemoryCacheManager) Get(key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || entry.Expires.Before(time.Now()) {
		return nil, false, nil
	}
	return entry.Data, true, nil
}

// GetForNotModified returns cached data even when expired, for answering
// 304 revalidations.
func (c *MemoryCacheManager) GetForNotModified(key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return entry.Data, true, nil
}

// Set stores a response body with the validators and expiry from its headers.
func (c *MemoryCacheManager) Set(key string, data []byte, headers http.Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &CacheEntry{
		Data:         data,
		ETag:         headers.Get("ETag"),
		LastModified: headers.Get("Last-Modified"),
		Expires:      expiryFromHeaders(headers),
	}
	return nil
}

// RefreshExpiry pushes an entry's expiry forward after a 304 response.
func (c *MemoryCacheManager) RefreshExpiry(key string, headers http.Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.Expires = expiryFromHeaders(headers)
	}
	return nil
}

// SetConditionalHeaders adds If-None-Match and If-Modified-Since from the
// cached entry, when one exists.
func (c *MemoryCacheManager) SetConditionalHeaders(req *http.Request, key string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	}
	if entry.LastModified != "" {
		req.Header.Set("If-Modified-Since", entry.LastModified)
	}
	return nil
}
