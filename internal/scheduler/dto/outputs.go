package dto

import (
	"time"

	"go-killtracker/internal/scheduler/models"
)

// EngineStatsResponse is a snapshot of the task engine
type EngineStatsResponse struct {
	Running       bool  `json:"running" doc:"Whether the engine is started"`
	Workers       int   `json:"workers" doc:"Number of worker goroutines"`
	QueueLength   int   `json:"queue_length" doc:"Tasks currently waiting in the queue"`
	QueueCapacity int   `json:"queue_capacity" doc:"Queue capacity before tasks are dropped"`
	Executed      int64 `json:"executed" doc:"Tasks completed since process start"`
	Failed        int64 `json:"failed" doc:"Tasks failed since process start"`
	Dropped       int64 `json:"dropped" doc:"Tasks dropped because the queue was full"`
	CronEntries   int   `json:"cron_entries" doc:"Number of cron schedules"`
	PendingTimers int   `json:"pending_timers" doc:"Delayed tasks waiting on a timer"`
}

// RunCountsResponse aggregates run log outcomes over a window
type RunCountsResponse struct {
	WindowHours float64 `json:"window_hours" doc:"Length of the counting window in hours"`
	Completed   int64   `json:"completed" doc:"Runs that completed in the window"`
	Failed      int64   `json:"failed" doc:"Runs that failed in the window"`
	Dropped     int64   `json:"dropped" doc:"Tasks dropped in the window"`
}

// SchedulerStatusResponse combines engine counters and run log aggregates
type SchedulerStatusResponse struct {
	Engine EngineStatsResponse `json:"engine" doc:"Live engine counters"`
	Runs   RunCountsResponse   `json:"runs" doc:"Persisted run outcomes"`
}

// TaskRunResponse is one record from the run log
type TaskRunResponse struct {
	ID         string     `json:"id" doc:"Run identifier"`
	Type       string     `json:"type" doc:"Task type"`
	Key        string     `json:"key,omitempty" doc:"Task key, when the type carries one"`
	Status     string     `json:"status" enum:"completed,failed,dropped" doc:"Terminal status of the run"`
	WorkerID   string     `json:"worker_id,omitempty" doc:"Worker that executed the task"`
	StartedAt  time.Time  `json:"started_at" doc:"When execution started"`
	FinishedAt *time.Time `json:"finished_at,omitempty" doc:"When execution finished"`
	DurationMS int64      `json:"duration_ms" doc:"Execution duration in milliseconds"`
	Error      string     `json:"error,omitempty" doc:"Error message for failed runs"`
}

// TaskRunListResponse is a page of run log records
type TaskRunListResponse struct {
	Runs  []TaskRunResponse `json:"runs" doc:"Run records, newest first"`
	Count int               `json:"count" doc:"Number of records returned"`
}

// TriggerTaskResponse acknowledges a manually triggered task
type TriggerTaskResponse struct {
	Type      string `json:"type" doc:"Task type that was submitted"`
	Key       string `json:"key,omitempty" doc:"Task key that was submitted"`
	Submitted bool   `json:"submitted" doc:"Whether the task was accepted by the engine"`
}

// ModuleStatusResponse reports scheduler module health
type ModuleStatusResponse struct {
	Module  string `json:"module" doc:"Module name"`
	Status  string `json:"status" enum:"healthy,unhealthy" doc:"Module health status"`
	Message string `json:"message,omitempty" doc:"Optional status detail"`
}

// Output wrappers

type StatusOutput struct {
	Body ModuleStatusResponse
}

type SchedulerStatusOutput struct {
	Body SchedulerStatusResponse
}

type TaskRunListOutput struct {
	Body TaskRunListResponse
}

type TriggerTaskOutput struct {
	Body TriggerTaskResponse
}

// ConvertTaskRunToResponse converts one run log record
func ConvertTaskRunToResponse(run *models.TaskRun) TaskRunResponse {
	return TaskRunResponse{
		ID:         run.ID,
		Type:       string(run.Type),
		Key:        run.Key,
		Status:     string(run.Status),
		WorkerID:   run.WorkerID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DurationMS: run.DurationMS,
		Error:      run.Error,
	}
}

// ConvertTaskRunsToList converts run log records to a list response
func ConvertTaskRunsToList(runs []models.TaskRun) *TaskRunListOutput {
	responses := make([]TaskRunResponse, len(runs))
	for i := range runs {
		responses[i] = ConvertTaskRunToResponse(&runs[i])
	}
	return &TaskRunListOutput{
		Body: TaskRunListResponse{
			Runs:  responses,
			Count: len(responses),
		},
	}
}
