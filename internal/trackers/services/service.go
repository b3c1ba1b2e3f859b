package services

import (
	"context"
	"fmt"
	"time"

	killmailModels "go-killtracker/internal/killmails/models"
	"go-killtracker/internal/trackers/models"

	"github.com/google/uuid"
)

// WebhookDirectory is the slice of the webhooks module the tracker service
// needs: save-time existence checks for the target webhook.
type WebhookDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// ConfigError rejects a tracker configuration at save time. It surfaces to
// the API as a 422 with the offending field named.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid tracker configuration: %s: %s", e.Field, e.Reason)
}

// Service owns tracker persistence and evaluation. Trackers are validated
// once at save time so evaluation never has to second-guess a stored
// configuration.
type Service struct {
	repository *Repository
	evaluator  *Evaluator
	webhooks   WebhookDirectory
}

func NewService(repository *Repository, evaluator *Evaluator, webhooks WebhookDirectory) *Service {
	return &Service{
		repository: repository,
		evaluator:  evaluator,
		webhooks:   webhooks,
	}
}

// CreateTracker validates and stores a new tracker, assigning its ID and
// timestamps
func (s *Service) CreateTracker(ctx context.Context, tracker *models.Tracker) (*models.Tracker, error) {
	if err := s.validate(ctx, tracker); err != nil {
		return nil, err
	}

	if tracker.ID == "" {
		tracker.ID = uuid.New().String()
	}
	if tracker.PingType == "" {
		tracker.PingType = models.PingTypeNone
	}
	if tracker.Color == "" {
		tracker.Color = models.ColorNone
	}

	now := time.Now().UTC()
	tracker.CreatedAt = now
	tracker.UpdatedAt = now

	if err := s.repository.Create(ctx, tracker); err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}
	return tracker, nil
}

// GetTracker retrieves a tracker by ID, nil when it does not exist
func (s *Service) GetTracker(ctx context.Context, id string) (*models.Tracker, error) {
	return s.repository.GetByID(ctx, id)
}

// ListTrackers returns all trackers, narrowed to one webhook's trackers
// when webhookID is set. Operators use the narrowed form to see what still
// references a webhook before deleting it.
func (s *Service) ListTrackers(ctx context.Context, webhookID string) ([]models.Tracker, error) {
	if webhookID != "" {
		return s.repository.ListByWebhook(ctx, webhookID)
	}
	return s.repository.List(ctx)
}

// ListEnabled returns the trackers the pipeline fans killmails out to
func (s *Service) ListEnabled(ctx context.Context) ([]models.Tracker, error) {
	return s.repository.ListEnabled(ctx)
}

// UpdateTracker validates and replaces an existing tracker. The creation
// timestamp is preserved; everything else comes from the caller.
func (s *Service) UpdateTracker(ctx context.Context, id string, tracker *models.Tracker) (*models.Tracker, error) {
	existing, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	if err := s.validate(ctx, tracker); err != nil {
		return nil, err
	}

	tracker.ID = existing.ID
	tracker.CreatedAt = existing.CreatedAt
	tracker.UpdatedAt = time.Now().UTC()
	if tracker.PingType == "" {
		tracker.PingType = models.PingTypeNone
	}
	if tracker.Color == "" {
		tracker.Color = models.ColorNone
	}

	if err := s.repository.Update(ctx, tracker); err != nil {
		return nil, fmt.Errorf("failed to update tracker %s: %w", id, err)
	}
	return tracker, nil
}

// DeleteTracker removes a tracker and reports whether it existed
func (s *Service) DeleteTracker(ctx context.Context, id string) (bool, error) {
	return s.repository.Delete(ctx, id)
}

// SetEnabled flips a tracker on or off
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (bool, error) {
	return s.repository.SetEnabled(ctx, id, enabled)
}

// Evaluate runs one tracker against one killmail. See Evaluator.Evaluate.
func (s *Service) Evaluate(ctx context.Context, tracker *models.Tracker, killmail *killmailModels.Killmail, opts EvaluateOptions) *killmailModels.Killmail {
	return s.evaluator.Evaluate(ctx, tracker, killmail, opts)
}

// EvaluateByID loads a tracker and runs it against a killmail carried as
// canonical JSON. Disabled or deleted trackers match nothing; a tracker
// may have been edited between fan-out and execution, which is fine
// because the stored configuration is always the authority.
func (s *Service) EvaluateByID(ctx context.Context, trackerID string, payload []byte, opts EvaluateOptions) (*killmailModels.Killmail, *models.Tracker, error) {
	tracker, err := s.repository.GetByID(ctx, trackerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tracker %s: %w", trackerID, err)
	}
	if tracker == nil || !tracker.IsEnabled {
		return nil, nil, nil
	}

	killmail, err := killmailModels.FromJSON(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid killmail payload: %w", err)
	}

	return s.evaluator.Evaluate(ctx, tracker, killmail, opts), tracker, nil
}

// validate applies the save-time configuration rules: structural field
// rules via the validator tags on the model, then the cross-field rules,
// then the rules that need other modules (webhook existence) so cheap
// structural failures surface first.
func (s *Service) validate(ctx context.Context, tracker *models.Tracker) error {
	if err := trackerValidate.Struct(tracker); err != nil {
		return configErrorFrom(err)
	}
	if tracker.NeedsOrigin() && tracker.OriginSolarSystemID == nil {
		return &ConfigError{
			Field:  "origin_solar_system_id",
			Reason: "required when require_max_jumps or require_max_distance is set",
		}
	}
	if tracker.ExcludeNPCKills && tracker.RequireNPCKills {
		return &ConfigError{
			Field:  "require_npc_kills",
			Reason: "mutually exclusive with exclude_npc_kills",
		}
	}
	if tracker.RequireMinAttackers != nil && tracker.RequireMaxAttackers != nil &&
		*tracker.RequireMinAttackers > *tracker.RequireMaxAttackers {
		return &ConfigError{
			Field:  "require_min_attackers",
			Reason: "must not exceed require_max_attackers",
		}
	}

	exists, err := s.webhooks.Exists(ctx, tracker.WebhookID)
	if err != nil {
		return fmt.Errorf("failed to verify webhook %s: %w", tracker.WebhookID, err)
	}
	if !exists {
		return &ConfigError{Field: "webhook_id", Reason: "webhook does not exist"}
	}

	return nil
}

// GetStats returns basic statistics about the tracker collection
func (s *Service) GetStats(ctx context.Context) (map[string]interface{}, error) {
	total, err := s.repository.Count(ctx)
	if err != nil {
		return nil, err
	}
	enabled, err := s.repository.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_trackers":   total,
		"enabled_trackers": len(enabled),
		"collection":       models.TrackersCollection,
	}, nil
}

// HealthCheck performs a health check for the service
func (s *Service) HealthCheck(ctx context.Context) error {
	if _, err := s.repository.Count(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
