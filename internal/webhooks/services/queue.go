package services

import (
	"context"
	"fmt"
	"log/slog"

	"go-killtracker/pkg/database"

	"github.com/redis/go-redis/v9"
)

// QueueService manages the per-webhook message queues. Each webhook owns
// two Redis lists: main holds payloads awaiting delivery, error holds
// poisoned payloads a human may retry. Both survive restarts; delivery is
// at least once, so a crash between dequeue and POST can duplicate a
// message.
type QueueService struct {
	redis *database.Redis
}

func NewQueueService(redisClient *database.Redis) *QueueService {
	return &QueueService{redis: redisClient}
}

func mainQueueKey(webhookID string) string {
	return fmt.Sprintf("queue:%s:main", webhookID)
}

func errorQueueKey(webhookID string) string {
	return fmt.Sprintf("queue:%s:error", webhookID)
}

// Enqueue appends a payload to the tail of the main queue and returns the
// new queue size.
func (q *QueueService) Enqueue(ctx context.Context, webhookID string, payload []byte) (int64, error) {
	size, err := q.redis.Client.RPush(ctx, mainQueueKey(webhookID), payload).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue message for webhook %s: %w", webhookID, err)
	}
	return size, nil
}

// Dequeue pops the head of the main queue. Returns nil without error when
// the queue is empty.
func (q *QueueService) Dequeue(ctx context.Context, webhookID string) ([]byte, error) {
	payload, err := q.redis.Client.LPop(ctx, mainQueueKey(webhookID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue message for webhook %s: %w", webhookID, err)
	}
	return payload, nil
}

// RequeueHead puts a payload back at the head of the main queue, so the
// next dequeue sees it again. Used for transient delivery failures.
func (q *QueueService) RequeueHead(ctx context.Context, webhookID string, payload []byte) error {
	if err := q.redis.Client.LPush(ctx, mainQueueKey(webhookID), payload).Err(); err != nil {
		return fmt.Errorf("failed to requeue message for webhook %s: %w", webhookID, err)
	}
	return nil
}

// MoveToError appends a poisoned payload to the error queue
func (q *QueueService) MoveToError(ctx context.Context, webhookID string, payload []byte) error {
	if err := q.redis.Client.RPush(ctx, errorQueueKey(webhookID), payload).Err(); err != nil {
		return fmt.Errorf("failed to move message to error queue for webhook %s: %w", webhookID, err)
	}
	return nil
}

// Size returns the main queue length
func (q *QueueService) Size(ctx context.Context, webhookID string) (int64, error) {
	return q.redis.Client.LLen(ctx, mainQueueKey(webhookID)).Result()
}

// ErrorSize returns the error queue length
func (q *QueueService) ErrorSize(ctx context.Context, webhookID string) (int64, error) {
	return q.redis.Client.LLen(ctx, errorQueueKey(webhookID)).Result()
}

// Clear drops all pending messages from the main queue and returns how
// many were dropped.
func (q *QueueService) Clear(ctx context.Context, webhookID string) (int64, error) {
	return q.clearList(ctx, mainQueueKey(webhookID))
}

// ClearError drops all messages from the error queue and returns how many
// were dropped.
func (q *QueueService) ClearError(ctx context.Context, webhookID string) (int64, error) {
	return q.clearList(ctx, errorQueueKey(webhookID))
}

func (q *QueueService) clearList(ctx context.Context, key string) (int64, error) {
	size, err := q.redis.Client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to size queue %s: %w", key, err)
	}
	if size == 0 {
		return 0, nil
	}
	if err := q.redis.Client.Del(ctx, key).Err(); err != nil {
		return 0, fmt.Errorf("failed to clear queue %s: %w", key, err)
	}
	return size, nil
}

// ResetFailedMessages moves every error-queue message back to the tail of
// the main queue for another delivery attempt. Each move is atomic and
// order preserving. Returns the number of messages moved.
func (q *QueueService) ResetFailedMessages(ctx context.Context, webhookID string) (int64, error) {
	source := errorQueueKey(webhookID)
	destination := mainQueueKey(webhookID)

	var moved int64
	for {
		err := q.redis.Client.LMove(ctx, source, destination, "LEFT", "RIGHT").Err()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("failed to reset failed messages for webhook %s: %w", webhookID, err)
		}
		moved++
	}

	if moved > 0 {
		slog.InfoContext(ctx, "Reset failed messages", "webhook_id", webhookID, "moved", moved)
	}
	return moved, nil
}
