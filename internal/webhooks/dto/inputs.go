package dto

// WebhookRequest carries the editable webhook configuration
type WebhookRequest struct {
	Name      string `json:"name" validate:"required" minLength:"1" maxLength:"100" doc:"Unique operator-facing name"`
	URL       string `json:"url" validate:"required" format:"uri" doc:"Discord-compatible webhook URL"`
	Notes     string `json:"notes,omitempty" maxLength:"500" doc:"Free-form operator notes"`
	IsEnabled bool   `json:"is_enabled" doc:"Whether the sender delivers this webhook's queue"`
}

// CreateWebhookInput represents the input for creating a webhook
type CreateWebhookInput struct {
	Body WebhookRequest
}

// GetWebhookInput represents the input for fetching a single webhook
type GetWebhookInput struct {
	WebhookID string `path:"webhook_id" doc:"Webhook ID"`
}

// UpdateWebhookInput represents the input for replacing a webhook
type UpdateWebhookInput struct {
	WebhookID string `path:"webhook_id" doc:"Webhook ID"`
	Body      WebhookRequest
}

// DeleteWebhookInput represents the input for deleting a webhook
type DeleteWebhookInput struct {
	WebhookID string `path:"webhook_id" doc:"Webhook ID"`
}

// SetWebhookEnabledInput represents the input for toggling delivery
type SetWebhookEnabledInput struct {
	WebhookID string `path:"webhook_id" doc:"Webhook ID"`
	Body      struct {
		IsEnabled bool `json:"is_enabled" doc:"Whether the sender delivers this webhook's queue"`
	}
}

// QueueStatusInput represents the input for reading queue state
type QueueStatusInput struct {
	WebhookID string `path:"webhook_id" doc:"Webhook ID"`
}

// ResetFailedInput represents the input for retrying the error queue
type ResetFailedInput struct {
	WebhookID string `path:"webhook_id" doc:"Webhook ID"`
}

// ClearQueueInput represents the input for dropping queued payloads
type ClearQueueInput struct {
	WebhookID string `path:"webhook_id" doc:"Webhook ID"`
	Errors    bool   `query:"errors" doc:"Clear the error queue instead of the main queue"`
}

// SendTestInput represents the input for a test delivery
type SendTestInput struct {
	WebhookID string `path:"webhook_id" doc:"Webhook ID"`
}
