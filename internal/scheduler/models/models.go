package models

import (
	"time"
)

const TaskRunsCollection = "task_runs"

// TaskType names one unit of pipeline work. The set is closed: tasks are
// code, not configuration.
type TaskType string

const (
	TaskRunIngest     TaskType = "run_ingest"
	TaskRunTracker    TaskType = "run_tracker"
	TaskSendWebhook   TaskType = "send_webhook"
	TaskStoreKillmail TaskType = "store_killmail"
	TaskPurgeStale    TaskType = "purge_stale"
)

// Valid reports whether t is a known task type
func (t TaskType) Valid() bool {
	switch t {
	case TaskRunIngest, TaskRunTracker, TaskSendWebhook, TaskStoreKillmail, TaskPurgeStale:
		return true
	}
	return false
}

// TaskStatus is the terminal status of one task run
type TaskStatus string

const (
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	// TaskStatusDropped marks work refused because the queue was full
	TaskStatusDropped TaskStatus = "dropped"
)

// TaskRun is one immutable run log record. Runs are inserted once, at
// completion; a TTL index keeps the collection bounded.
type TaskRun struct {
	ID         string     `bson:"_id" json:"id"`
	Type       TaskType   `bson:"type" json:"type"`
	Key        string     `bson:"key,omitempty" json:"key,omitempty"`
	Status     TaskStatus `bson:"status" json:"status"`
	WorkerID   string     `bson:"worker_id,omitempty" json:"worker_id,omitempty"`
	StartedAt  time.Time  `bson:"started_at" json:"started_at"`
	FinishedAt *time.Time `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
	DurationMS int64      `bson:"duration_ms" json:"duration_ms"`
	Error      string     `bson:"error,omitempty" json:"error,omitempty"`
}
