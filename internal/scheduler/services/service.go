package services

import (
	"context"
	"errors"
	"time"

	"go-killtracker/internal/scheduler/models"
)

var (
	// ErrUnknownTaskType is returned for task types outside the closed set
	ErrUnknownTaskType = errors.New("unknown task type")
	// ErrNotTriggerable marks task types that only make sense with a
	// pipeline payload and cannot be started from the API
	ErrNotTriggerable = errors.New("task type cannot be triggered manually")
	// ErrKeyRequired is returned when a triggered task type needs a key
	ErrKeyRequired = errors.New("task type requires a key")
	// ErrQueueFull is returned when the engine refused the task
	ErrQueueFull = errors.New("task queue is full")
)

// statusWindow is how far back Status counts run records
const statusWindow = 24 * time.Hour

// SchedulerStatus combines live engine counters with the persisted run log
type SchedulerStatus struct {
	Engine EngineStats
	Counts map[models.TaskStatus]int64
	Window time.Duration
}

// Service is the scheduler module facade. It also implements the webhook
// sender's scheduling callback, closing the loop between delivery retries
// and the task engine.
type Service struct {
	engine     *Engine
	repository *Repository
}

func NewService(engine *Engine, repository *Repository) *Service {
	return &Service{
		engine:     engine,
		repository: repository,
	}
}

// Status reports engine counters and run outcomes over the last day
func (s *Service) Status(ctx context.Context) (*SchedulerStatus, error) {
	counts, err := s.repository.CountByStatus(ctx, time.Now().UTC().Add(-statusWindow))
	if err != nil {
		return nil, err
	}
	return &SchedulerStatus{
		Engine: s.engine.Stats(),
		Counts: counts,
		Window: statusWindow,
	}, nil
}

// RecentRuns lists recent task runs, optionally filtered by type
func (s *Service) RecentRuns(ctx context.Context, taskType models.TaskType, limit int) ([]models.TaskRun, error) {
	if taskType != "" && !taskType.Valid() {
		return nil, ErrUnknownTaskType
	}
	return s.repository.ListRecent(ctx, taskType, limit)
}

// Trigger submits a task from the API. Only task types that carry their
// whole input in the key can be triggered; evaluation and store tasks need
// a killmail payload and exist only inside the pipeline.
func (s *Service) Trigger(ctx context.Context, taskType models.TaskType, key string) error {
	if !taskType.Valid() {
		return ErrUnknownTaskType
	}

	switch taskType {
	case models.TaskRunTracker, models.TaskStoreKillmail:
		return ErrNotTriggerable
	case models.TaskSendWebhook:
		if key == "" {
			return ErrKeyRequired
		}
	}

	if !s.engine.Submit(&Task{Type: taskType, Key: key}) {
		return ErrQueueFull
	}
	return nil
}

// ScheduleSend arranges a delivery task for the webhook after the delay.
// This is the sender's retry path for rate limits and backoff.
func (s *Service) ScheduleSend(webhookID string, delay time.Duration) {
	s.engine.SubmitAfter(&Task{Type: models.TaskSendWebhook, Key: webhookID}, delay)
}

// HealthCheck verifies the run log is reachable and the engine is up
func (s *Service) HealthCheck(ctx context.Context) error {
	if _, err := s.repository.CountByStatus(ctx, time.Now().UTC().Add(-time.Minute)); err != nil {
		return err
	}
	if !s.engine.Running() {
		return errors.New("task engine is not running")
	}
	return nil
}
