package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	killmailModels "go-killtracker/internal/killmails/models"
	"go-killtracker/internal/scheduler/models"
	trackerModels "go-killtracker/internal/trackers/models"
	trackerServices "go-killtracker/internal/trackers/services"
	zkillServices "go-killtracker/internal/zkillboard/services"
)

// The executor dependencies are expressed as the narrow slices of the other
// modules' services that the pipeline actually touches, so the executors can
// be tested without Mongo, Redis or a live feed.

// KillmailIngester drains the RedisQ feed
type KillmailIngester interface {
	SetSink(sink zkillServices.Sink)
	RunOnce(ctx context.Context) (*zkillServices.RunResult, error)
}

// TrackerEvaluator matches killmails against tracker definitions
type TrackerEvaluator interface {
	ListEnabled(ctx context.Context) ([]trackerModels.Tracker, error)
	EvaluateByID(ctx context.Context, trackerID string, payload []byte, opts trackerServices.EvaluateOptions) (*killmailModels.Killmail, *trackerModels.Tracker, error)
}

// WebhookDispatcher formats, queues and delivers webhook messages
type WebhookDispatcher interface {
	FormatKillmail(ctx context.Context, tracker *trackerModels.Tracker, killmail *killmailModels.Killmail) ([]byte, error)
	Enqueue(ctx context.Context, webhookID string, payload []byte) (int64, error)
	RunSender(ctx context.Context, webhookID string) error
	RecoverPendingDeliveries(ctx context.Context) (int64, int, error)
}

// KillmailArchive persists raw killmails and prunes old ones
type KillmailArchive interface {
	StoringEnabled() bool
	StoreJSON(ctx context.Context, payload []byte) error
	PurgeStale(ctx context.Context) (int64, error)
}

// Executors binds the pipeline task types to the services doing the work.
// NewExecutors installs the fan-out sink on the ingester, so every killmail
// the feed yields turns into per-tracker evaluation tasks.
type Executors struct {
	engine   *Engine
	ingester KillmailIngester
	trackers TrackerEvaluator
	webhooks WebhookDispatcher
	archive  KillmailArchive
}

func NewExecutors(engine *Engine, ingester KillmailIngester, trackers TrackerEvaluator, webhooks WebhookDispatcher, archive KillmailArchive) *Executors {
	executors := &Executors{
		engine:   engine,
		ingester: ingester,
		trackers: trackers,
		webhooks: webhooks,
		archive:  archive,
	}
	if ingester != nil {
		ingester.SetSink(executors.fanOut)
	}
	return executors
}

// RegisterAll installs every pipeline executor on the engine
func (x *Executors) RegisterAll() {
	x.engine.Register(models.TaskRunIngest, ExecutorFunc(x.runIngest))
	x.engine.Register(models.TaskRunTracker, ExecutorFunc(x.runTracker))
	x.engine.Register(models.TaskSendWebhook, ExecutorFunc(x.sendWebhook))
	x.engine.Register(models.TaskStoreKillmail, ExecutorFunc(x.storeKillmail))
	x.engine.Register(models.TaskPurgeStale, ExecutorFunc(x.purgeStale))
}

// runIngest executes one ingest cycle. Webhook delivery recovery runs
// first: failed messages move back to their main queues and backlogged
// senders get kicked, then the feed is drained. A stale-killmail purge
// runs after every cycle that actually polled.
func (x *Executors) runIngest(ctx context.Context, _ *Task) error {
	if moved, kicked, err := x.webhooks.RecoverPendingDeliveries(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to recover pending webhook deliveries", "error", err)
	} else if moved > 0 || kicked > 0 {
		slog.InfoContext(ctx, "Recovered pending webhook deliveries", "moved", moved, "kicked", kicked)
	}

	result, err := x.ingester.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("ingest run failed: %w", err)
	}
	if !result.Started() {
		slog.DebugContext(ctx, "Ingest run skipped, another instance holds the lock")
		return nil
	}

	x.engine.Submit(&Task{Type: models.TaskPurgeStale})
	return nil
}

// fanOut is the ingest sink. One freshly polled killmail becomes one
// run_tracker task per enabled tracker, plus a store_killmail task when
// archiving is on. A full task queue drops work but never aborts the cycle.
func (x *Executors) fanOut(ctx context.Context, killmail *killmailModels.Killmail) error {
	payload, err := killmail.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode killmail %d: %w", killmail.KillmailID, err)
	}

	trackers, err := x.trackers.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to list enabled trackers: %w", err)
	}

	for i := range trackers {
		x.engine.Submit(&Task{
			Type:    models.TaskRunTracker,
			Key:     trackers[i].ID,
			Payload: payload,
		})
	}

	if x.archive.StoringEnabled() {
		x.engine.Submit(&Task{
			Type:    models.TaskStoreKillmail,
			Key:     strconv.FormatInt(killmail.KillmailID, 10),
			Payload: payload,
		})
	}

	return nil
}

// runTracker evaluates one killmail against one tracker and, on a match,
// formats the message, queues it on the tracker's webhook and submits a
// delivery task.
func (x *Executors) runTracker(ctx context.Context, task *Task) error {
	matched, tracker, err := x.trackers.EvaluateByID(ctx, task.Key, task.Payload, trackerServices.EvaluateOptions{})
	if err != nil {
		return fmt.Errorf("tracker %s evaluation failed: %w", task.Key, err)
	}
	if matched == nil || tracker == nil {
		return nil
	}

	message, err := x.webhooks.FormatKillmail(ctx, tracker, matched)
	if err != nil {
		return fmt.Errorf("failed to format killmail %d for tracker %s: %w", matched.KillmailID, tracker.ID, err)
	}

	size, err := x.webhooks.Enqueue(ctx, tracker.WebhookID, message)
	if err != nil {
		return fmt.Errorf("failed to enqueue message for webhook %s: %w", tracker.WebhookID, err)
	}

	slog.InfoContext(ctx, "Tracker matched killmail",
		"tracker_id", tracker.ID,
		"tracker_name", tracker.Name,
		"killmail_id", matched.KillmailID,
		"webhook_id", tracker.WebhookID,
		"queue_size", size)

	x.engine.Submit(&Task{Type: models.TaskSendWebhook, Key: tracker.WebhookID})
	return nil
}

// sendWebhook delivers at most one queued message for the webhook in Key.
// The sender reschedules itself through the engine while messages remain.
func (x *Executors) sendWebhook(ctx context.Context, task *Task) error {
	if task.Key == "" {
		return fmt.Errorf("send_webhook task requires a webhook ID key")
	}
	return x.webhooks.RunSender(ctx, task.Key)
}

func (x *Executors) storeKillmail(ctx context.Context, task *Task) error {
	return x.archive.StoreJSON(ctx, task.Payload)
}

func (x *Executors) purgeStale(ctx context.Context, _ *Task) error {
	deleted, err := x.archive.PurgeStale(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge stale killmails: %w", err)
	}
	if deleted > 0 {
		slog.InfoContext(ctx, "Purged stale killmails", "deleted", deleted)
	}
	return nil
}
