package routes

import (
	"context"
	"errors"
	"net/http"

	"go-killtracker/internal/scheduler/dto"
	"go-killtracker/internal/scheduler/models"
	"go-killtracker/internal/scheduler/services"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterSchedulerRoutes registers scheduler status and task trigger routes
func RegisterSchedulerRoutes(api huma.API, basePath string, service *services.Service) {
	// Module status endpoint (public)
	huma.Register(api, huma.Operation{
		OperationID:   "getSchedulerStatus",
		Method:        http.MethodGet,
		Path:          basePath + "/status",
		Summary:       "Get scheduler module status",
		Description:   "Returns the health status of the task engine and run log",
		Tags:          []string{"Module Status"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.StatusOutput, error) {
		if err := service.HealthCheck(ctx); err != nil {
			return &dto.StatusOutput{
				Body: dto.ModuleStatusResponse{
					Module:  "scheduler",
					Status:  "unhealthy",
					Message: err.Error(),
				},
			}, nil
		}

		return &dto.StatusOutput{
			Body: dto.ModuleStatusResponse{
				Module: "scheduler",
				Status: "healthy",
			},
		}, nil
	})

	// Engine counters and run outcomes
	huma.Register(api, huma.Operation{
		OperationID:   "getSchedulerStats",
		Method:        http.MethodGet,
		Path:          basePath + "/stats",
		Summary:       "Get scheduler statistics",
		Description:   "Returns live engine counters and run log aggregates for the last day",
		Tags:          []string{"Scheduler"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.SchedulerStatusOutput, error) {
		status, err := service.Status(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get scheduler status", err)
		}

		return &dto.SchedulerStatusOutput{
			Body: dto.SchedulerStatusResponse{
				Engine: dto.EngineStatsResponse{
					Running:       status.Engine.Running,
					Workers:       status.Engine.Workers,
					QueueLength:   status.Engine.QueueLength,
					QueueCapacity: status.Engine.QueueCapacity,
					Executed:      status.Engine.Executed,
					Failed:        status.Engine.Failed,
					Dropped:       status.Engine.Dropped,
					CronEntries:   status.Engine.CronEntries,
					PendingTimers: status.Engine.PendingTimers,
				},
				Runs: dto.RunCountsResponse{
					WindowHours: status.Window.Hours(),
					Completed:   status.Counts[models.TaskStatusCompleted],
					Failed:      status.Counts[models.TaskStatusFailed],
					Dropped:     status.Counts[models.TaskStatusDropped],
				},
			},
		}, nil
	})

	// Recent task runs
	huma.Register(api, huma.Operation{
		OperationID:   "listTaskRuns",
		Method:        http.MethodGet,
		Path:          basePath + "/tasks",
		Summary:       "List recent task runs",
		Tags:          []string{"Scheduler"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.ListTaskRunsInput) (*dto.TaskRunListOutput, error) {
		runs, err := service.RecentRuns(ctx, models.TaskType(input.Type), input.Limit)
		if err != nil {
			return nil, schedulerError("Failed to list task runs", err)
		}
		return dto.ConvertTaskRunsToList(runs), nil
	})

	// Manually trigger a task
	huma.Register(api, huma.Operation{
		OperationID:   "triggerTask",
		Method:        http.MethodPost,
		Path:          basePath + "/tasks/{type}/run",
		Summary:       "Trigger a task",
		Description:   "Submits a task to the engine. Only run_ingest, purge_stale and send_webhook (with a key) can be triggered manually.",
		Tags:          []string{"Scheduler"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *dto.TriggerTaskInput) (*dto.TriggerTaskOutput, error) {
		if err := service.Trigger(ctx, models.TaskType(input.Type), input.Key); err != nil {
			return nil, schedulerError("Failed to trigger task", err)
		}

		return &dto.TriggerTaskOutput{
			Body: dto.TriggerTaskResponse{
				Type:      input.Type,
				Key:       input.Key,
				Submitted: true,
			},
		}, nil
	})
}

// schedulerError maps service errors onto HTTP problem responses
func schedulerError(message string, err error) error {
	switch {
	case errors.Is(err, services.ErrUnknownTaskType),
		errors.Is(err, services.ErrNotTriggerable),
		errors.Is(err, services.ErrKeyRequired):
		return huma.Error422UnprocessableEntity(message, err)
	case errors.Is(err, services.ErrQueueFull):
		return huma.Error503ServiceUnavailable(message, err)
	default:
		return huma.Error500InternalServerError(message, err)
	}
}
