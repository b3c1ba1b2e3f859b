package dto

import (
	"time"

	"go-killtracker/internal/webhooks/models"
)

// WebhookResponse represents a stored webhook
type WebhookResponse struct {
	ID string `json:"id" doc:"Webhook ID"`

	WebhookRequest

	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last modification time"`
}

// WebhookListResponse represents a list of webhooks
type WebhookListResponse struct {
	Webhooks []WebhookResponse `json:"webhooks" doc:"List of webhooks"`
	Count    int               `json:"count" doc:"Number of webhooks returned"`
}

// QueueStatusResponse represents one webhook's delivery pipeline state
type QueueStatusResponse struct {
	WebhookID    string     `json:"webhook_id" doc:"Webhook ID"`
	QueueSize    int64      `json:"queue_size" doc:"Payloads waiting for delivery"`
	ErrorSize    int64      `json:"error_size" doc:"Poisoned payloads parked for retry"`
	State        string     `json:"state" enum:"IDLE,DRAINING,RATE_LIMITED" doc:"Sender state"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty" doc:"Rate limit unblock instant, when rate limited"`
}

// ResetFailedResponse reports how many payloads were requeued
type ResetFailedResponse struct {
	WebhookID string `json:"webhook_id" doc:"Webhook ID"`
	Moved     int64  `json:"moved" doc:"Payloads moved back to the main queue"`
}

// ClearQueueResponse reports how many payloads were dropped
type ClearQueueResponse struct {
	WebhookID string `json:"webhook_id" doc:"Webhook ID"`
	Dropped   int64  `json:"dropped" doc:"Payloads removed"`
}

// SendTestResponse reports the outcome of a test delivery
type SendTestResponse struct {
	WebhookID    string     `json:"webhook_id" doc:"Webhook ID"`
	Delivered    bool       `json:"delivered" doc:"Whether the test payload left the queue cleanly"`
	QueueSize    int64      `json:"queue_size" doc:"Main queue size after the attempt"`
	ErrorSize    int64      `json:"error_size" doc:"Error queue size after the attempt"`
	State        string     `json:"state" doc:"Sender state after the attempt"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty" doc:"Rate limit unblock instant, when rate limited"`
}

// WebhookStatsResponse represents statistics about the webhook collection
type WebhookStatsResponse struct {
	TotalWebhooks   int64  `json:"total_webhooks" doc:"Total number of webhooks"`
	EnabledWebhooks int    `json:"enabled_webhooks" doc:"Number of enabled webhooks"`
	Collection      string `json:"collection" doc:"Database collection name"`
}

// ModuleStatusResponse represents the health status of the webhooks module
type ModuleStatusResponse struct {
	Module  string `json:"module" doc:"Module name"`
	Status  string `json:"status" doc:"Module status (healthy/unhealthy)"`
	Message string `json:"message,omitempty" doc:"Additional status message"`
}

// StatusOutput wraps ModuleStatusResponse for Huma v2
type StatusOutput struct {
	Body ModuleStatusResponse
}

// WebhookOutput wraps WebhookResponse for Huma v2
type WebhookOutput struct {
	Body WebhookResponse
}

// WebhookListOutput wraps WebhookListResponse for Huma v2
type WebhookListOutput struct {
	Body WebhookListResponse
}

// QueueStatusOutput wraps QueueStatusResponse for Huma v2
type QueueStatusOutput struct {
	Body QueueStatusResponse
}

// ResetFailedOutput wraps ResetFailedResponse for Huma v2
type ResetFailedOutput struct {
	Body ResetFailedResponse
}

// ClearQueueOutput wraps ClearQueueResponse for Huma v2
type ClearQueueOutput struct {
	Body ClearQueueResponse
}

// SendTestOutput wraps SendTestResponse for Huma v2
type SendTestOutput struct {
	Body SendTestResponse
}

// WebhookStatsOutput wraps WebhookStatsResponse for Huma v2
type WebhookStatsOutput struct {
	Body WebhookStatsResponse
}

// ConvertRequestToModel builds the webhook model a request describes. IDs
// and timestamps are owned by the service.
func ConvertRequestToModel(request *WebhookRequest) *models.Webhook {
	return &models.Webhook{
		Name:      request.Name,
		URL:       request.URL,
		Notes:     request.Notes,
		IsEnabled: request.IsEnabled,
	}
}

// ConvertWebhookToResponse maps a stored webhook onto the API shape
func ConvertWebhookToResponse(webhook *models.Webhook) *WebhookOutput {
	return &WebhookOutput{
		Body: WebhookResponse{
			ID: webhook.ID,
			WebhookRequest: WebhookRequest{
				Name:      webhook.Name,
				URL:       webhook.URL,
				Notes:     webhook.Notes,
				IsEnabled: webhook.IsEnabled,
			},
			CreatedAt: webhook.CreatedAt,
			UpdatedAt: webhook.UpdatedAt,
		},
	}
}

// ConvertWebhooksToList maps a slice of stored webhooks onto the API shape
func ConvertWebhooksToList(webhooks []models.Webhook) *WebhookListOutput {
	out := &WebhookListOutput{}
	out.Body.Webhooks = make([]WebhookResponse, 0, len(webhooks))
	for i := range webhooks {
		out.Body.Webhooks = append(out.Body.Webhooks, ConvertWebhookToResponse(&webhooks[i]).Body)
	}
	out.Body.Count = len(out.Body.Webhooks)
	return out
}
