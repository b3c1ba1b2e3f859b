package evegateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go-killtracker/pkg/database"

	"github.com/redis/go-redis/v9"
)

// RedisCacheManager implements CacheManager using Redis for persistence.
// Cached ESI responses survive restarts, which matters for the ingest
// loop where the same entities come back killmail after killmail.
type RedisCacheManager struct {
	redis *database.Redis
	ctx   context.Context
}

// NewRedisCacheManager wraps the shared Redis handle as a CacheManager.
func NewRedisCacheManager(redisClient *database.Redis) *RedisCacheManager {
	return &RedisCacheManager{
		redis: redisClient,
		ctx:   context.Background(),
	}
}

func (r *RedisCacheManager) getEntry(key string) (*CacheEntry, error) {
	cacheKey := fmt.Sprintf("esi:cache:%s", key)

	entryJSON, err := r.redis.Get(r.ctx, cacheKey)
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var entry CacheEntry
	if err := json.Unmarshal([]byte(entryJSON), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &entry, nil
}

func (r *RedisCacheManager) putEntry(key string, entry *CacheEntry) error {
	cacheKey := fmt.Sprintf("esi:cache:%s", key)

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	// Redis TTL mirrors the entry expiry so stale entries eventually
	// vanish on their own.
	ttl := time.Until(entry.Expires)
	if ttl < 0 {
		ttl = 5 * time.Second
	}

	return r.redis.Set(r.ctx, cacheKey, entryJSON, ttl)
}

// Get retrieves data from the Redis cache
func (r *RedisCacheManager) Get(key string) ([]byte, bool, error) {
	entry, err := r.getEntry(key)
	if err != nil || entry == nil {
		return nil, false, err
	}

	if entry.Expires.Before(time.Now()) {
		r.redis.Delete(r.ctx, fmt.Sprintf("esi:cache:%s", key))
		return nil, false, nil
	}

	return entry.Data, true, nil
}

// GetForNotModified retrieves data from the Redis cache even if expired (for 304 responses)
func (r *RedisCacheManager) GetForNotModified(key string) ([]byte, bool, error) {
	entry, err := r.getEntry(key)
	if err != nil || entry == nil {
		return nil, false, err
	}

	return entry.Data, true, nil
}

// RefreshExpiry extends a cached entry after a 304, using the expiry
// headers of the revalidation response.
func (r *RedisCacheManager) RefreshExpiry(key string, headers http.Header) error {
	entry, err := r.getEntry(key)
	if err != nil || entry == nil {
		return err
	}

	entry.Expires = expiryFromHeaders(headers)
	return r.putEntry(key, entry)
}

// Set stores data in the Redis cache
func (r *RedisCacheManager) Set(key string, data []byte, headers http.Header) error {
	return r.putEntry(key, &CacheEntry{
		Data:         data,
		ETag:         headers.Get("ETag"),
		LastModified: headers.Get("Last-Modified"),
		Expires:      expiryFromHeaders(headers),
	})
}

// SetConditionalHeaders adds If-None-Match and If-Modified-Since from
// the cached entry, when one exists.
func (r *RedisCacheManager) SetConditionalHeaders(req *http.Request, key string) error {
	entry, err := r.getEntry(key)
	if err != nil || entry == nil {
		return err
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	}
	if entry.LastModified != "" {
		req.Header.Set("If-Modified-Since", entry.LastModified)
	}

	return nil
}
