package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go-killtracker/pkg/database"
	"go-killtracker/pkg/evegateway"

	"github.com/redis/go-redis/v9"
)

// Entity names effectively never change, but renames and faction
// reshuffles do happen, so cached entries age out after a month.
const entityCacheTTL = 30 * 24 * time.Hour

// EntityRef is the resolved name and category for one EVE ID
type EntityRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// EntityResolver maps IDs to names. Unknown IDs resolve to nil without
// error; ResolveMissing bulk-warms the cache ahead of formatting.
type EntityResolver interface {
	Resolve(ctx context.Context, id int64) (*EntityRef, error)
	ResolveMissing(ctx context.Context, ids []int64) error
	Name(ctx context.Context, id int64) string
}

// EntityService is a Redis read-through cache over the ESI bulk name
// resolution endpoint.
type EntityService struct {
	redis *database.Redis
	esi   *evegateway.Client
}

// NewEntityService creates a new entity resolver
func NewEntityService(redisClient *database.Redis, esiClient *evegateway.Client) *EntityService {
	return &EntityService{
		redis: redisClient,
		esi:   esiClient,
	}
}

func entityKey(id int64) string {
	return fmt.Sprintf("entity:%d", id)
}

// Resolve returns the cached entity for id, fetching it on a miss.
// Returns nil for IDs ESI does not recognize.
func (s *EntityService) Resolve(ctx context.Context, id int64) (*EntityRef, error) {
	var ref EntityRef
	err := s.redis.GetJSON(ctx, entityKey(id), &ref)
	if err == nil {
		return &ref, nil
	}
	if err != redis.Nil {
		return nil, err
	}

	if err := s.ResolveMissing(ctx, []int64{id}); err != nil {
		return nil, err
	}

	err = s.redis.GetJSON(ctx, entityKey(id), &ref)
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// ResolveMissing fetches names for all IDs not yet cached and stores
// them. IDs the upstream cannot resolve are skipped; a later Resolve for
// them misses again rather than caching a negative.
func (s *EntityService) ResolveMissing(ctx context.Context, ids []int64) error {
	var missing []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true

		exists, err := s.redis.Exists(ctx, entityKey(id))
		if err != nil {
			return err
		}
		if exists == 0 {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	refs, err := s.esi.Universe.PostNames(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to resolve %d IDs: %w", len(missing), err)
	}

	for _, ref := range refs {
		entity := EntityRef{ID: ref.ID, Name: ref.Name, Category: ref.Category}
		if err := s.redis.SetJSON(ctx, entityKey(ref.ID), entity, entityCacheTTL); err != nil {
			return err
		}
	}

	slog.DebugContext(ctx, "Warmed entity name cache", "missing", len(missing), "resolved", len(refs))
	return nil
}

// Name is a display helper: the resolved name, or an empty string when
// the entity is unknown.
func (s *EntityService) Name(ctx context.Context, id int64) string {
	ref, err := s.Resolve(ctx, id)
	if err != nil || ref == nil {
		return ""
	}
	return ref.Name
}
