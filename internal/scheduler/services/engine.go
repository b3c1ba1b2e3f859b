package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go-killtracker/internal/scheduler/models"
	"go-killtracker/pkg/config"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Task is one unit of queued work. Key carries the task-specific argument
// (tracker ID, webhook ID); Payload carries raw killmail JSON for the task
// types that need one.
type Task struct {
	Type    models.TaskType
	Key     string
	Payload []byte
}

// Executor runs all tasks of one type
type Executor interface {
	Execute(ctx context.Context, task *Task) error
}

// ExecutorFunc adapts a plain function to the Executor interface
type ExecutorFunc func(ctx context.Context, task *Task) error

func (f ExecutorFunc) Execute(ctx context.Context, task *Task) error {
	return f(ctx, task)
}

// EngineStats is a point-in-time snapshot of engine activity
type EngineStats struct {
	Running       bool  `json:"running"`
	Workers       int   `json:"workers"`
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	Executed      int64 `json:"executed"`
	Failed        int64 `json:"failed"`
	Dropped       int64 `json:"dropped"`
	CronEntries   int   `json:"cron_entries"`
	PendingTimers int   `json:"pending_timers"`
}

// Engine dispatches typed tasks to a fixed worker pool. Tasks arrive from
// cron schedules, from other tasks fanning out, and from API triggers. The
// queue is bounded: when it is full new work is dropped and recorded, never
// blocked on, so a slow Mongo or Discord cannot back up into the ingest
// loop.
type Engine struct {
	repository *Repository
	cron       *cron.Cron
	workers    int
	timeout    time.Duration
	queue      chan *Task
	executors  map[models.TaskType]Executor

	executed atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	running bool
	stopped bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine creates a task engine. The repository may be nil, in which case
// run records are not persisted.
func NewEngine(repository *Repository) *Engine {
	workers := config.GetIntEnv("SCHEDULER_WORKERS", 10)
	if workers < 1 {
		workers = 1
	}
	queueSize := config.GetIntEnv("SCHEDULER_QUEUE_SIZE", 1000)
	if queueSize < 1 {
		queueSize = 1
	}

	return &Engine{
		repository: repository,
		cron:       cron.New(cron.WithSeconds()),
		workers:    workers,
		timeout:    config.GetDurationEnv("TASKS_TIMEOUT", 600, time.Second),
		queue:      make(chan *Task, queueSize),
		executors:  make(map[models.TaskType]Executor),
		timers:     make(map[*time.Timer]struct{}),
	}
}

// Register installs the executor for a task type. Must be called before
// Start; there is no locking around the executor map.
func (e *Engine) Register(taskType models.TaskType, executor Executor) {
	e.executors[taskType] = executor
}

// AddCron schedules a task on a 6-field cron expression (with seconds)
func (e *Engine) AddCron(spec string, task *Task) error {
	_, err := e.cron.AddFunc(spec, func() {
		e.Submit(task)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron schedule %q: %w", spec, err)
	}
	slog.Info("Scheduled cron task", "type", task.Type, "key", task.Key, "spec", spec)
	return nil
}

// Start launches the worker pool and the cron scheduler
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}

	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	for i := 0; i < e.workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i+1)
		e.wg.Add(1)
		go e.worker(workerID)
	}
	e.cron.Start()
	e.running = true
	e.stopped = false

	slog.Info("Task engine started",
		"workers", e.workers,
		"queue_capacity", cap(e.queue),
		"task_timeout", e.timeout,
		"cron_entries", len(e.cron.Entries()))
}

// Stop halts cron, cancels pending timers and in-flight task contexts, and
// waits for the workers to finish their current task.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.stopped = true

	e.cron.Stop()
	for timer := range e.timers {
		timer.Stop()
	}
	e.timers = make(map[*time.Timer]struct{})
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
	slog.Info("Task engine stopped",
		"executed", e.executed.Load(),
		"failed", e.failed.Load(),
		"dropped", e.dropped.Load())
}

// Submit enqueues a task without blocking. When the queue is full the task
// is dropped, counted, and recorded; the caller decides whether that
// matters.
func (e *Engine) Submit(task *Task) bool {
	select {
	case e.queue <- task:
		return true
	default:
		e.dropped.Add(1)
		slog.Warn("Task queue full, dropping task", "type", task.Type, "key", task.Key)
		e.recordDropped(task)
		return false
	}
}

// SubmitAfter enqueues a task once the delay elapses. Pending timers are
// cancelled by Stop.
func (e *Engine) SubmitAfter(task *Task, delay time.Duration) {
	if delay <= 0 {
		e.Submit(task)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(e.timers, timer)
		e.mu.Unlock()
		e.Submit(task)
	})
	e.timers[timer] = struct{}{}
}

// Running reports whether the engine has been started and not yet stopped
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stats returns a snapshot of engine counters
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	running := e.running
	pendingTimers := len(e.timers)
	e.mu.Unlock()

	return EngineStats{
		Running:       running,
		Workers:       e.workers,
		QueueLength:   len(e.queue),
		QueueCapacity: cap(e.queue),
		Executed:      e.executed.Load(),
		Failed:        e.failed.Load(),
		Dropped:       e.dropped.Load(),
		CronEntries:   len(e.cron.Entries()),
		PendingTimers: pendingTimers,
	}
}

func (e *Engine) worker(workerID string) {
	defer e.wg.Done()
	for {
		select {
		case <-e.baseCtx.Done():
			return
		case task := <-e.queue:
			e.run(workerID, task)
		}
	}
}

func (e *Engine) run(workerID string, task *Task) {
	started := time.Now().UTC()
	ctx, cancel := context.WithTimeout(e.baseCtx, e.timeout)
	defer cancel()

	var err error
	if executor, ok := e.executors[task.Type]; ok {
		err = executor.Execute(ctx, task)
	} else {
		err = fmt.Errorf("no executor registered for task type %q", task.Type)
	}

	finished := time.Now().UTC()
	run := &models.TaskRun{
		ID:         uuid.New().String(),
		Type:       task.Type,
		Key:        task.Key,
		Status:     models.TaskStatusCompleted,
		WorkerID:   workerID,
		StartedAt:  started,
		FinishedAt: &finished,
		DurationMS: finished.Sub(started).Milliseconds(),
	}

	if err != nil {
		run.Status = models.TaskStatusFailed
		run.Error = err.Error()
		e.failed.Add(1)
		slog.Error("Task failed",
			"type", task.Type,
			"key", task.Key,
			"worker", workerID,
			"duration_ms", run.DurationMS,
			"error", err)
	} else {
		e.executed.Add(1)
		slog.Debug("Task completed",
			"type", task.Type,
			"key", task.Key,
			"worker", workerID,
			"duration_ms", run.DurationMS)
	}

	e.record(run)
}

func (e *Engine) recordDropped(task *Task) {
	now := time.Now().UTC()
	e.record(&models.TaskRun{
		ID:         uuid.New().String(),
		Type:       task.Type,
		Key:        task.Key,
		Status:     models.TaskStatusDropped,
		StartedAt:  now,
		FinishedAt: &now,
	})
}

func (e *Engine) record(run *models.TaskRun) {
	if e.repository == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.repository.Insert(ctx, run); err != nil {
		slog.Debug("Failed to record task run", "type", run.Type, "error", err)
	}
}
