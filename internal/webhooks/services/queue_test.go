package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-killtracker/pkg/database"
)

func setupQueue(t *testing.T) (*QueueService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewQueueService(database.NewRedisFromClient(client)), mr
}

func TestQueueFIFOOrder(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	for _, payload := range []string{"first", "second", "third"} {
		_, err := queue.Enqueue(ctx, "hook-1", []byte(payload))
		require.NoError(t, err)
	}

	size, err := queue.Size(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	for _, expected := range []string{"first", "second", "third"} {
		payload, err := queue.Dequeue(ctx, "hook-1")
		require.NoError(t, err)
		assert.Equal(t, expected, string(payload))
	}

	// Empty queue dequeues as nil, not an error.
	payload, err := queue.Dequeue(ctx, "hook-1")
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestQueueRequeueHead(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, "hook-1", []byte("first"))
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, "hook-1", []byte("second"))
	require.NoError(t, err)

	payload, err := queue.Dequeue(ctx, "hook-1")
	require.NoError(t, err)
	require.Equal(t, "first", string(payload))

	// A requeued message is the next one out, ahead of "second".
	require.NoError(t, queue.RequeueHead(ctx, "hook-1", payload))

	payload, err = queue.Dequeue(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, "first", string(payload))
}

func TestQueuesAreIsolatedPerWebhook(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, "hook-1", []byte("one"))
	require.NoError(t, err)

	size, err := queue.Size(ctx, "hook-2")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestQueueClearReturnsCount(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := queue.Enqueue(ctx, "hook-1", []byte{byte('a' + i)})
		require.NoError(t, err)
	}

	cleared, err := queue.Clear(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), cleared)

	size, err := queue.Size(ctx, "hook-1")
	require.NoError(t, err)
	assert.Zero(t, size)

	cleared, err = queue.Clear(ctx, "hook-1")
	require.NoError(t, err)
	assert.Zero(t, cleared)
}

func TestQueueResetFailedMessages(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, "hook-1", []byte("pending"))
	require.NoError(t, err)
	require.NoError(t, queue.MoveToError(ctx, "hook-1", []byte("failed-1")))
	require.NoError(t, queue.MoveToError(ctx, "hook-1", []byte("failed-2")))

	moved, err := queue.ResetFailedMessages(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	errorSize, err := queue.ErrorSize(ctx, "hook-1")
	require.NoError(t, err)
	assert.Zero(t, errorSize)

	// Failed messages land behind what was already pending, in their
	// original order.
	for _, expected := range []string{"pending", "failed-1", "failed-2"} {
		payload, err := queue.Dequeue(ctx, "hook-1")
		require.NoError(t, err)
		assert.Equal(t, expected, string(payload))
	}
}

func TestQueueResetFailedMessagesEmpty(t *testing.T) {
	queue, _ := setupQueue(t)

	moved, err := queue.ResetFailedMessages(context.Background(), "hook-1")
	require.NoError(t, err)
	assert.Zero(t, moved)
}
