package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go-killtracker/internal/killmails/models"
	"go-killtracker/pkg/config"

	"go.mongodb.org/mongo-driver/mongo"
)

// Service is the killmail archive. Archiving is opt-in: when storing is
// disabled the pipeline never submits store jobs and the archive only
// serves reads of whatever was stored previously.
type Service struct {
	repository     *Repository
	storingEnabled bool
	retentionDays  int
}

func NewService(repository *Repository) *Service {
	return &Service{
		repository:     repository,
		storingEnabled: config.GetBoolEnv("STORING_KILLMAILS_ENABLED", false),
		retentionDays:  config.GetIntEnv("PURGE_KILLMAILS_AFTER_DAYS", 30),
	}
}

// StoringEnabled reports whether matched killmails should be archived.
func (s *Service) StoringEnabled() bool {
	return s.storingEnabled
}

// Store archives one killmail. A killmail that is already archived is not
// an error: the duplicate insert is logged at info and swallowed.
func (s *Service) Store(ctx context.Context, killmail *models.Killmail) error {
	if err := s.repository.Insert(ctx, killmail); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			slog.InfoContext(ctx, "Killmail already archived", "killmail_id", killmail.KillmailID)
			return nil
		}
		return fmt.Errorf("failed to store killmail %d: %w", killmail.KillmailID, err)
	}
	return nil
}

// StoreJSON parses a canonical killmail payload and archives it. This is
// the entry point for store jobs, which carry killmails as JSON.
func (s *Service) StoreJSON(ctx context.Context, payload []byte) error {
	killmail, err := models.FromJSON(payload)
	if err != nil {
		return fmt.Errorf("invalid killmail payload: %w", err)
	}
	return s.Store(ctx, killmail)
}

// GetKillmail retrieves an archived killmail by ID. Returns nil when the
// killmail was never archived.
func (s *Service) GetKillmail(ctx context.Context, killmailID int64) (*models.Killmail, error) {
	return s.repository.GetByKillmailID(ctx, killmailID)
}

// GetRecent returns recent archived killmails, optionally filtered by
// solar system.
func (s *Service) GetRecent(ctx context.Context, systemID int, since time.Time, limit int) ([]models.Killmail, error) {
	if systemID != 0 {
		return s.repository.GetRecentBySystem(ctx, systemID, since, limit)
	}
	return s.repository.GetRecent(ctx, limit)
}

// PurgeStale deletes archived killmails older than the retention window
// and returns the number deleted. Retention 0 disables purging.
func (s *Service) PurgeStale(ctx context.Context) (int64, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.repository.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale killmails: %w", err)
	}

	if deleted > 0 {
		slog.InfoContext(ctx, "Purged stale killmails",
			"deleted", deleted,
			"retention_days", s.retentionDays)
	}
	return deleted, nil
}

// GetStats returns basic statistics about the killmail archive
func (s *Service) GetStats(ctx context.Context) (map[string]interface{}, error) {
	count, err := s.repository.Count(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_killmails": count,
		"collection":      models.KillmailsCollection,
		"storing_enabled": s.storingEnabled,
		"retention_days":  s.retentionDays,
	}, nil
}

// HealthCheck performs a health check for the service
func (s *Service) HealthCheck(ctx context.Context) error {
	if _, err := s.repository.Count(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
