package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	killmailModels "go-killtracker/internal/killmails/models"
	trackerModels "go-killtracker/internal/trackers/models"
	"go-killtracker/internal/webhooks/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrDuplicateName is returned when a webhook name collides with an
// existing one. The name is the operator-facing handle, so it is unique.
var ErrDuplicateName = errors.New("webhook name already in use")

// ErrInvalidURL is returned when the webhook URL is not an absolute
// http(s) URL.
var ErrInvalidURL = errors.New("webhook url must be an absolute http(s) url")

// QueueStatus is the operator view of one webhook's delivery pipeline
type QueueStatus struct {
	WebhookID    string             `json:"webhook_id"`
	QueueSize    int64              `json:"queue_size"`
	ErrorSize    int64              `json:"error_size"`
	State        models.SenderState `json:"state"`
	BlockedUntil *time.Time         `json:"blocked_until,omitempty"`
}

// Service is the webhook module facade: CRUD over the store, queue
// operations, and delivery. The scheduler and the trackers module talk
// to this type only.
type Service struct {
	repository *Repository
	queue      *QueueService
	formatter  *FormatterService
	sender     *SenderService
}

// NewService creates a new webhooks service
func NewService(repository *Repository, queue *QueueService, formatter *FormatterService, sender *SenderService) *Service {
	return &Service{
		repository: repository,
		queue:      queue,
		formatter:  formatter,
		sender:     sender,
	}
}

// CreateWebhook validates and stores a new webhook
func (s *Service) CreateWebhook(ctx context.Context, webhook *models.Webhook) (*models.Webhook, error) {
	if err := validateWebhookURL(webhook.URL); err != nil {
		return nil, err
	}
	if webhook.ID == "" {
		webhook.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now

	if err := s.repository.Create(ctx, webhook); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	slog.InfoContext(ctx, "Webhook created", "webhook_id", webhook.ID, "name", webhook.Name)
	return webhook, nil
}

// GetWebhook returns one webhook, or nil when it does not exist
func (s *Service) GetWebhook(ctx context.Context, id string) (*models.Webhook, error) {
	return s.repository.GetByID(ctx, id)
}

// ListWebhooks returns all webhooks sorted by name
func (s *Service) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	return s.repository.List(ctx)
}

// UpdateWebhook replaces a webhook's configuration. Identity and creation
// time are preserved. Returns nil when the webhook does not exist.
func (s *Service) UpdateWebhook(ctx context.Context, id string, incoming *models.Webhook) (*models.Webhook, error) {
	existing, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	if err := validateWebhookURL(incoming.URL); err != nil {
		return nil, err
	}

	incoming.ID = existing.ID
	incoming.CreatedAt = existing.CreatedAt
	incoming.UpdatedAt = time.Now().UTC()

	if err := s.repository.Update(ctx, incoming); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to update webhook %s: %w", id, err)
	}
	return incoming, nil
}

// DeleteWebhook removes a webhook and drops its queues. Queued payloads
// have nowhere to go once the webhook is gone.
func (s *Service) DeleteWebhook(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repository.Delete(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}

	dropped, err := s.queue.Clear(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "Failed to clear queue of deleted webhook", "webhook_id", id, "error", err)
	}
	droppedErrors, err := s.queue.ClearError(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "Failed to clear error queue of deleted webhook", "webhook_id", id, "error", err)
	}

	slog.InfoContext(ctx, "Webhook deleted",
		"webhook_id", id, "dropped_messages", dropped, "dropped_errors", droppedErrors)
	return true, nil
}

// SetEnabled flips delivery on or off for one webhook
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (bool, error) {
	return s.repository.SetEnabled(ctx, id, enabled)
}

// Exists reports whether a webhook with the given ID is stored. Satisfies
// the tracker module's webhook directory dependency.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repository.Exists(ctx, id)
}

// FormatKillmail renders the final payload for a matched killmail
func (s *Service) FormatKillmail(ctx context.Context, tracker *trackerModels.Tracker, killmail *killmailModels.Killmail) ([]byte, error) {
	return s.formatter.FormatKillmailMessage(ctx, tracker, killmail)
}

// Enqueue appends a ready-to-send payload to a webhook's main queue and
// returns the resulting queue size
func (s *Service) Enqueue(ctx context.Context, webhookID string, payload []byte) (int64, error) {
	return s.queue.Enqueue(ctx, webhookID, payload)
}

// RunSender executes one send cycle for the webhook
func (s *Service) RunSender(ctx context.Context, webhookID string) error {
	return s.sender.Run(ctx, webhookID)
}

// SetSendScheduler wires the task scheduler into the sender
func (s *Service) SetSendScheduler(scheduler SendScheduler) {
	s.sender.SetScheduler(scheduler)
}

// SendTest pushes a test payload through the full delivery path
func (s *Service) SendTest(ctx context.Context, webhookID string, payload []byte) (*TestReport, error) {
	return s.sender.SendTest(ctx, webhookID, payload)
}

// QueueStatus reports queue sizes and sender state for one webhook
func (s *Service) QueueStatus(ctx context.Context, id string) (*QueueStatus, error) {
	webhook, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if webhook == nil {
		return nil, nil
	}

	status := &QueueStatus{WebhookID: id}
	if status.QueueSize, err = s.queue.Size(ctx, id); err != nil {
		return nil, err
	}
	if status.ErrorSize, err = s.queue.ErrorSize(ctx, id); err != nil {
		return nil, err
	}
	if status.State, err = s.sender.State(ctx, id); err != nil {
		return nil, err
	}
	if status.BlockedUntil, err = s.sender.BlockedUntil(ctx, id); err != nil {
		return nil, err
	}
	return status, nil
}

// ResetFailedMessages moves all error-queue payloads back onto the main
// queue and returns how many moved
func (s *Service) ResetFailedMessages(ctx context.Context, webhookID string) (int64, error) {
	return s.queue.ResetFailedMessages(ctx, webhookID)
}

// RecoverPendingDeliveries walks every enabled webhook at the start of an
// ingest cycle: failed payloads move back onto the main queue for another
// try, and any webhook left with a backlog gets a delivery task. The kick
// matters after a restart, when the durable queues survived but the tasks
// that would have drained them did not. Returns payloads moved and
// webhooks kicked.
func (s *Service) RecoverPendingDeliveries(ctx context.Context) (int64, int, error) {
	webhooks, err := s.repository.ListEnabled(ctx)
	if err != nil {
		return 0, 0, err
	}

	var moved int64
	kicked := 0
	for i := range webhooks {
		id := webhooks[i].ID
		restored, err := s.queue.ResetFailedMessages(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "Failed to reset error queue", "webhook_id", id, "error", err)
			continue
		}
		moved += restored

		if s.sender.rescheduleIfPending(ctx, id) {
			kicked++
		}
	}
	return moved, kicked, nil
}

// ClearQueue drops all pending payloads for one webhook
func (s *Service) ClearQueue(ctx context.Context, webhookID string) (int64, error) {
	return s.queue.Clear(ctx, webhookID)
}

// ClearErrorQueue drops all poisoned payloads for one webhook
func (s *Service) ClearErrorQueue(ctx context.Context, webhookID string) (int64, error) {
	return s.queue.ClearError(ctx, webhookID)
}

// GetStats returns webhook store statistics
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
		"total_webhooks":   total,
		"enabled_webhooks": len(enabled),
		"collection":       models.WebhooksCollection,
	}, nil
}

// HealthCheck verifies the webhook store is reachable
func (s *Service) HealthCheck(ctx context.Context) error {
	_, err := s.repository.Count(ctx)
	return err
}

func validateWebhookURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
