package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-killtracker/internal/webhooks/models"
	"go-killtracker/pkg/database"
)

type fakeWebhookStore struct {
	webhooks map[string]*models.Webhook
}

func (f *fakeWebhookStore) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	return f.webhooks[id], nil
}

type recordingScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingScheduler) ScheduleSend(webhookID string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, delay)
}

func (r *recordingScheduler) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type senderFixture struct {
	sender    *SenderService
	queue     *QueueService
	scheduler *recordingScheduler
	redis     *miniredis.Miniredis
	wrapper   *database.Redis
	server    *httptest.Server
	webhook   *models.Webhook
	now       time.Time

	mu       sync.Mutex
	requests int
}

// advance moves both the sender clock and the redis TTL clock
func (fix *senderFixture) advance(d time.Duration) {
	fix.now = fix.now.Add(d)
	fix.redis.FastForward(d)
}

func (fix *senderFixture) requestCount() int {
	fix.mu.Lock()
	defer fix.mu.Unlock()
	return fix.requests
}

// setupSender wires a sender against miniredis and an httptest endpoint.
// The handler receives the 1-based request number.
func setupSender(t *testing.T, handler func(n int, w http.ResponseWriter, r *http.Request)) *senderFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	redisWrapper := database.NewRedisFromClient(client)

	fix := &senderFixture{
		scheduler: &recordingScheduler{},
		redis:     mr,
		wrapper:   redisWrapper,
		now:       time.Now().UTC().Truncate(time.Second),
	}

	fix.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fix.mu.Lock()
		fix.requests++
		n := fix.requests
		fix.mu.Unlock()
		handler(n, w, r)
	}))
	t.Cleanup(fix.server.Close)

	fix.webhook = &models.Webhook{
		ID:        "webhook-1",
		Name:      "ops-room",
		URL:       fix.server.URL,
		IsEnabled: true,
		CreatedAt: fix.now,
		UpdatedAt: fix.now,
	}

	fix.queue = NewQueueService(redisWrapper)
	fix.sender = &SenderService{
		repository: &fakeWebhookStore{webhooks: map[string]*models.Webhook{fix.webhook.ID: fix.webhook}},
		queue:      fix.queue,
		formatter:  newTestFormatter(nil, nil, nil),
		redis:      redisWrapper,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		scheduler:  fix.scheduler,
		lockTTL:    15 * time.Minute,
		margin:     time.Second,
		now:        func() time.Time { return fix.now },
	}
	return fix
}

func respondNoContent(n int, w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestSenderDeliversQueuedMessage(t *testing.T) {
	ctx := context.Background()

	var gotContentType string
	fix := setupSender(t, func(n int, w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{"content":"hello"}`))
	require.NoError(t, err)

	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))

	assert.Equal(t, 1, fix.requestCount())
	assert.Equal(t, "application/json", gotContentType)

	size, err := fix.queue.Size(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	// queue drained, nothing to reschedule
	assert.Empty(t, fix.scheduler.all())

	state, err := fix.sender.State(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SenderStateIdle, state)
}

func TestSenderReschedulesWhileQueueNonEmpty(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, respondNoContent)

	for i := 0; i < 3; i++ {
		_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(fmt.Sprintf(`{"content":"m%d"}`, i)))
		require.NoError(t, err)
	}

	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))

	// one POST per invocation; the rest is handed back to the scheduler
	assert.Equal(t, 1, fix.requestCount())
	size, err := fix.queue.Size(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
	require.Len(t, fix.scheduler.all(), 1)
	assert.Equal(t, time.Duration(0), fix.scheduler.all()[0])
}

func TestSenderKicksOnlyBackloggedQueues(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, respondNoContent)

	assert.False(t, fix.sender.rescheduleIfPending(ctx, fix.webhook.ID))
	assert.Empty(t, fix.scheduler.all())

	_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{"content":"stranded"}`))
	require.NoError(t, err)

	assert.True(t, fix.sender.rescheduleIfPending(ctx, fix.webhook.ID))
	assert.Equal(t, []time.Duration{0}, fix.scheduler.all())
}

func TestSenderRateLimit(t *testing.T) {
	ctx := context.Background()

	fix := setupSender(t, func(n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			w.Header().Set("X-RateLimit-Reset-After", "60")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"message":"You are being rate limited.","retry_after":2000.0,"global":false}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	payload := []byte(`{"content":"rate limited once"}`)
	_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, payload)
	require.NoError(t, err)

	// first invocation runs into the 429
	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))

	size, err := fix.queue.Size(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size, "message survives a rate limit")

	// max(2000ms body, 60s header) + 1s margin
	delays := fix.scheduler.all()
	require.Len(t, delays, 1)
	assert.Equal(t, 61*time.Second, delays[0])

	blockedUntil, err := fix.sender.BlockedUntil(ctx, fix.webhook.ID)
	require.NoError(t, err)
	require.NotNil(t, blockedUntil)
	assert.WithinDuration(t, fix.now.Add(61*time.Second), *blockedUntil, time.Millisecond)

	state, err := fix.sender.State(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SenderStateRateLimited, state)

	// a run during the block must not POST
	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))
	assert.Equal(t, 1, fix.requestCount())
	delays = fix.scheduler.all()
	require.Len(t, delays, 2)
	assert.Equal(t, 61*time.Second, delays[1])

	// at the unblock instant the message goes out
	fix.advance(62 * time.Second)
	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))

	assert.Equal(t, 2, fix.requestCount())
	size, err = fix.queue.Size(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestSenderRateLimitHonorsLargerBody(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, func(n int, w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Reset-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"retry_after":5000}`)
	})

	_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))

	// max(5000ms body, 2s header) + 1s margin
	delays := fix.scheduler.all()
	require.Len(t, delays, 1)
	assert.Equal(t, 6*time.Second, delays[0])
}

func TestSenderPoisonMessage(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, func(n int, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code": 50006, "message": "Cannot send an empty message"}`)
	})

	_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{"bad":"payload"}`))
	require.NoError(t, err)
	_, err = fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{"second":"message"}`))
	require.NoError(t, err)

	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))

	size, err := fix.queue.Size(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	errorSize, err := fix.queue.ErrorSize(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), errorSize)

	// poison does not block the webhook; the rest of the queue continues
	delays := fix.scheduler.all()
	require.Len(t, delays, 1)
	assert.Equal(t, time.Duration(0), delays[0])

	blockedUntil, err := fix.sender.BlockedUntil(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Nil(t, blockedUntil)
}

func TestSenderTransientFailureBacksOff(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, func(n int, w http.ResponseWriter, r *http.Request) {
		if n <= 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{"content":"flaky"}`))
	require.NoError(t, err)

	// three transient failures double the delay each time
	for i := 0; i < 3; i++ {
		require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))
		size, err := fix.queue.Size(ctx, fix.webhook.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), size)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, fix.scheduler.all())

	// success delivers and resets the counter
	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))
	size, err := fix.queue.Size(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
	assert.False(t, fix.redis.Exists("backoff:"+fix.webhook.ID))
}

func TestSenderBackoffCaps(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, func(n int, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.NoError(t, fix.redis.Set("backoff:"+fix.webhook.ID, "10"))

	_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))

	delays := fix.scheduler.all()
	require.Len(t, delays, 1)
	assert.Equal(t, 60*time.Second, delays[0])
}

func TestSenderProactiveRateLimit(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, func(n int, w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset-After", "5")
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{"content":"first"}`))
	require.NoError(t, err)
	_, err = fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{"content":"second"}`))
	require.NoError(t, err)

	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))

	// delivered, then parked for reset-after + margin instead of
	// rescheduling immediately
	size, err := fix.queue.Size(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	delays := fix.scheduler.all()
	require.Len(t, delays, 1)
	assert.Equal(t, 6*time.Second, delays[0])

	state, err := fix.sender.State(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SenderStateRateLimited, state)

	// still blocked: no POST happens
	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))
	assert.Equal(t, 1, fix.requestCount())
}

func TestSenderSingleFlight(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, respondNoContent)

	_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{}`))
	require.NoError(t, err)

	// a concurrent invocation holds the lock
	lock := database.NewLock(fix.wrapper, "send:"+fix.webhook.ID, time.Minute)
	acquired, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))

	assert.Equal(t, 0, fix.requestCount())
	size, err := fix.queue.Size(ctx, fix.webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestSenderDisabledWebhook(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, respondNoContent)
	fix.webhook.IsEnabled = false

	_, err := fix.queue.Enqueue(ctx, fix.webhook.ID, []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))
	assert.Equal(t, 0, fix.requestCount())
}

func TestSenderUnknownWebhook(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, respondNoContent)

	require.NoError(t, fix.sender.Run(ctx, "no-such-webhook"))
	assert.Equal(t, 0, fix.requestCount())
}

func TestSenderEmptyQueue(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, respondNoContent)

	require.NoError(t, fix.sender.Run(ctx, fix.webhook.ID))
	assert.Equal(t, 0, fix.requestCount())
	assert.Empty(t, fix.scheduler.all())
}

func TestSendTestDelivers(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, respondNoContent)

	report, err := fix.sender.SendTest(ctx, fix.webhook.ID, nil)
	require.NoError(t, err)

	assert.True(t, report.Delivered)
	assert.Equal(t, int64(0), report.QueueSize)
	assert.Equal(t, int64(0), report.ErrorSize)
	assert.Equal(t, models.SenderStateIdle, report.State)
	assert.Equal(t, 1, fix.requestCount())
}

func TestSendTestReportsRateLimit(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, func(n int, w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Reset-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"retry_after":1000}`)
	})

	report, err := fix.sender.SendTest(ctx, fix.webhook.ID, nil)
	require.NoError(t, err)

	assert.False(t, report.Delivered)
	assert.Equal(t, int64(1), report.QueueSize)
	assert.Equal(t, models.SenderStateRateLimited, report.State)
	require.NotNil(t, report.BlockedUntil)
}

func TestSendTestUnknownWebhook(t *testing.T) {
	ctx := context.Background()
	fix := setupSender(t, respondNoContent)

	_, err := fix.sender.SendTest(ctx, "no-such-webhook", nil)
	assert.Error(t, err)
}
