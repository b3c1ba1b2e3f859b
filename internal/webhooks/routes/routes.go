package routes

import (
	"context"
	"errors"
	"net/http"

	"go-killtracker/internal/webhooks/dto"
	"go-killtracker/internal/webhooks/services"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterWebhookRoutes registers all webhook management routes
func RegisterWebhookRoutes(api huma.API, basePath string, service *services.Service) {
	// Module status endpoint (public)
	huma.Register(api, huma.Operation{
		OperationID:   "getWebhooksStatus",
		Method:        http.MethodGet,
		Path:          basePath + "/status",
		Summary:       "Get webhooks module status",
		Description:   "Returns the health status of the webhook store",
		Tags:          []string{"Module Status"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.StatusOutput, error) {
		if err := service.HealthCheck(ctx); err != nil {
			return &dto.StatusOutput{
				Body: dto.ModuleStatusResponse{
					Module:  "webhooks",
					Status:  "unhealthy",
					Message: err.Error(),
				},
			}, nil
		}

		return &dto.StatusOutput{
			Body: dto.ModuleStatusResponse{
				Module: "webhooks",
				Status: "healthy",
			},
		}, nil
	})

	// List all webhooks
	huma.Register(api, huma.Operation{
		OperationID:   "listWebhooks",
		Method:        http.MethodGet,
		Path:          basePath,
		Summary:       "List webhooks",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.WebhookListOutput, error) {
		webhooks, err := service.ListWebhooks(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list webhooks", err)
		}
		return dto.ConvertWebhooksToList(webhooks), nil
	})

	// Create a webhook
	huma.Register(api, huma.Operation{
		OperationID:   "createWebhook",
		Method:        http.MethodPost,
		Path:          basePath,
		Summary:       "Create webhook",
		Description:   "Registers a Discord-compatible webhook endpoint.",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *dto.CreateWebhookInput) (*dto.WebhookOutput, error) {
		webhook, err := service.CreateWebhook(ctx, dto.ConvertRequestToModel(&input.Body))
		if err != nil {
			return nil, webhookError("Failed to create webhook", err)
		}
		return dto.ConvertWebhookToResponse(webhook), nil
	})

	// Get webhook statistics
	huma.Register(api, huma.Operation{
		OperationID:   "getWebhookStats",
		Method:        http.MethodGet,
		Path:          basePath + "/stats",
		Summary:       "Get webhook statistics",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.WebhookStatsOutput, error) {
		stats, err := service.GetStats(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get webhook statistics", err)
		}
		return &dto.WebhookStatsOutput{
			Body: dto.WebhookStatsResponse{
				TotalWebhooks:   stats["total_webhooks"].(int64),
				EnabledWebhooks: stats["enabled_webhooks"].(int),
				Collection:      stats["collection"].(string),
			},
		}, nil
	})

	// Get a single webhook
	huma.Register(api, huma.Operation{
		OperationID:   "getWebhook",
		Method:        http.MethodGet,
		Path:          basePath + "/{webhook_id}",
		Summary:       "Get webhook by ID",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.GetWebhookInput) (*dto.WebhookOutput, error) {
		webhook, err := service.GetWebhook(ctx, input.WebhookID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to fetch webhook", err)
		}
		if webhook == nil {
			return nil, huma.Error404NotFound("Webhook not found")
		}
		return dto.ConvertWebhookToResponse(webhook), nil
	})

	// Replace a webhook
	huma.Register(api, huma.Operation{
		OperationID:   "updateWebhook",
		Method:        http.MethodPut,
		Path:          basePath + "/{webhook_id}",
		Summary:       "Update webhook",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.UpdateWebhookInput) (*dto.WebhookOutput, error) {
		webhook, err := service.UpdateWebhook(ctx, input.WebhookID, dto.ConvertRequestToModel(&input.Body))
		if err != nil {
			return nil, webhookError("Failed to update webhook", err)
		}
		if webhook == nil {
			return nil, huma.Error404NotFound("Webhook not found")
		}
		return dto.ConvertWebhookToResponse(webhook), nil
	})

	// Delete a webhook and its queues
	huma.Register(api, huma.Operation{
		OperationID:   "deleteWebhook",
		Method:        http.MethodDelete,
		Path:          basePath + "/{webhook_id}",
		Summary:       "Delete webhook",
		Description:   "Removes a webhook and drops its queued payloads.",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *dto.DeleteWebhookInput) (*struct{}, error) {
		deleted, err := service.DeleteWebhook(ctx, input.WebhookID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to delete webhook", err)
		}
		if !deleted {
			return nil, huma.Error404NotFound("Webhook not found")
		}
		return nil, nil
	})

	// Enable or disable a webhook
	huma.Register(api, huma.Operation{
		OperationID:   "setWebhookEnabled",
		Method:        http.MethodPost,
		Path:          basePath + "/{webhook_id}/enabled",
		Summary:       "Enable or disable webhook",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.SetWebhookEnabledInput) (*dto.WebhookOutput, error) {
		found, err := service.SetEnabled(ctx, input.WebhookID, input.Body.IsEnabled)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to update webhook", err)
		}
		if !found {
			return nil, huma.Error404NotFound("Webhook not found")
		}

		webhook, err := service.GetWebhook(ctx, input.WebhookID)
		if err != nil || webhook == nil {
			return nil, huma.Error500InternalServerError("Failed to fetch webhook", err)
		}
		return dto.ConvertWebhookToResponse(webhook), nil
	})

	// Queue and sender state
	huma.Register(api, huma.Operation{
		OperationID:   "getWebhookQueueStatus",
		Method:        http.MethodGet,
		Path:          basePath + "/{webhook_id}/queue",
		Summary:       "Get queue status",
		Description:   "Reports queue sizes, sender state and any active rate limit block.",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.QueueStatusInput) (*dto.QueueStatusOutput, error) {
		status, err := service.QueueStatus(ctx, input.WebhookID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to read queue status", err)
		}
		if status == nil {
			return nil, huma.Error404NotFound("Webhook not found")
		}
		return &dto.QueueStatusOutput{
			Body: dto.QueueStatusResponse{
				WebhookID:    status.WebhookID,
				QueueSize:    status.QueueSize,
				ErrorSize:    status.ErrorSize,
				State:        string(status.State),
				BlockedUntil: status.BlockedUntil,
			},
		}, nil
	})

	// Retry poisoned payloads
	huma.Register(api, huma.Operation{
		OperationID:   "resetFailedMessages",
		Method:        http.MethodPost,
		Path:          basePath + "/{webhook_id}/queue/reset-failed",
		Summary:       "Retry failed messages",
		Description:   "Moves all error-queue payloads back to the main queue.",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.ResetFailedInput) (*dto.ResetFailedOutput, error) {
		moved, err := service.ResetFailedMessages(ctx, input.WebhookID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to reset failed messages", err)
		}
		return &dto.ResetFailedOutput{
			Body: dto.ResetFailedResponse{WebhookID: input.WebhookID, Moved: moved},
		}, nil
	})

	// Drop queued payloads
	huma.Register(api, huma.Operation{
		OperationID:   "clearWebhookQueue",
		Method:        http.MethodDelete,
		Path:          basePath + "/{webhook_id}/queue",
		Summary:       "Clear queue",
		Description:   "Drops all pending payloads; with errors=true drops the error queue instead.",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.ClearQueueInput) (*dto.ClearQueueOutput, error) {
		var dropped int64
		var err error
		if input.Errors {
			dropped, err = service.ClearErrorQueue(ctx, input.WebhookID)
		} else {
			dropped, err = service.ClearQueue(ctx, input.WebhookID)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to clear queue", err)
		}
		return &dto.ClearQueueOutput{
			Body: dto.ClearQueueResponse{WebhookID: input.WebhookID, Dropped: dropped},
		}, nil
	})

	// Test delivery
	huma.Register(api, huma.Operation{
		OperationID:   "sendTestMessage",
		Method:        http.MethodPost,
		Path:          basePath + "/{webhook_id}/test",
		Summary:       "Send test message",
		Description:   "Enqueues a synthetic payload and runs one send cycle.",
		Tags:          []string{"Webhooks"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.SendTestInput) (*dto.SendTestOutput, error) {
		report, err := service.SendTest(ctx, input.WebhookID, nil)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to send test message", err)
		}
		return &dto.SendTestOutput{
			Body: dto.SendTestResponse{
				WebhookID:    report.WebhookID,
				Delivered:    report.Delivered,
				QueueSize:    report.QueueSize,
				ErrorSize:    report.ErrorSize,
				State:        string(report.State),
				BlockedUntil: report.BlockedUntil,
			},
		}, nil
	})
}

// webhookError maps service errors onto API errors: name collisions
// become 409s, bad URLs 422s, everything else a 500.
func webhookError(message string, err error) error {
	if errors.Is(err, services.ErrDuplicateName) {
		return huma.Error409Conflict(err.Error())
	}
	if errors.Is(err, services.ErrInvalidURL) {
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError(message, err)
}
