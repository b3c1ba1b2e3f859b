package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go-killtracker/internal/webhooks/dto"
	"go-killtracker/internal/webhooks/models"
	"go-killtracker/pkg/config"
	"go-killtracker/pkg/database"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// maxRateLimitBody bounds how much of an error response we read.
	// Discord rate limit bodies are tiny; anything bigger is noise.
	maxRateLimitBody = 4096

	backoffBase = time.Second
	backoffCap  = 60 * time.Second
)

type deliveryKind int

const (
	deliverySuccess deliveryKind = iota
	deliveryRateLimited
	deliveryPoison
	deliveryTransient
)

type deliveryOutcome struct {
	kind   deliveryKind
	status int
	// blockedFor is how long the webhook must stay quiet. Set on 429 and
	// on a success whose rate limit budget reached zero.
	blockedFor time.Duration
}

// SendScheduler re-submits a send task after a delay. The orchestrator
// provides the real implementation; the sender never blocks waiting for
// an unblock instant itself.
type SendScheduler interface {
	ScheduleSend(webhookID string, delay time.Duration)
}

// webhookGetter is the slice of Repository the sender needs
type webhookGetter interface {
	GetByID(ctx context.Context, id string) (*models.Webhook, error)
}

// TestReport summarizes one SendTest round trip for the operator
type TestReport struct {
	WebhookID    string             `json:"webhook_id"`
	Delivered    bool               `json:"delivered"`
	QueueSize    int64              `json:"queue_size"`
	ErrorSize    int64              `json:"error_size"`
	State        models.SenderState `json:"state"`
	BlockedUntil *time.Time         `json:"blocked_until,omitempty"`
}

// SenderService drains per-webhook queues against the Discord-compatible
// endpoint. One invocation handles at most one message; continuation is
// always a rescheduled task, so a busy webhook cannot starve the others.
type SenderService struct {
	repository webhookGetter
	queue      *QueueService
	formatter  *FormatterService
	redis      *database.Redis
	httpClient *http.Client
	scheduler  SendScheduler

	lockTTL time.Duration
	margin  time.Duration
	now     func() time.Time
}

// NewSenderService creates a new sender service
func NewSenderService(repository *Repository, queue *QueueService, formatter *FormatterService, redis *database.Redis) *SenderService {
	var transport http.RoundTripper = http.DefaultTransport
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	return &SenderService{
		repository: repository,
		queue:      queue,
		formatter:  formatter,
		redis:      redis,
		httpClient: &http.Client{
			Timeout:   config.GetDurationEnv("WEBHOOK_POST_TIMEOUT", 30, time.Second),
			Transport: transport,
		},
		// Must outlive the longest reset_after Discord is believed to
		// send, so a crashed holder cannot wedge the webhook for longer.
		lockTTL: config.GetDurationEnv("WEBHOOK_SEND_LOCK_TTL", 900, time.Second),
		margin:  time.Second,
		now:     time.Now,
	}
}

// SetScheduler wires the task scheduler in after construction. Without
// one the sender still delivers, it just cannot reschedule itself.
func (s *SenderService) SetScheduler(scheduler SendScheduler) {
	s.scheduler = scheduler
}

// Run executes one send cycle for the webhook. Single-flight per webhook:
// a second concurrent invocation returns immediately without touching the
// queue.
func (s *SenderService) Run(ctx context.Context, webhookID string) error {
	lock := database.NewLock(s.redis, "send:"+webhookID, s.lockTTL)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire send lock for webhook %s: %w", webhookID, err)
	}
	if !acquired {
		slog.DebugContext(ctx, "Send already in flight, skipping", "webhook_id", webhookID)
		return nil
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			slog.WarnContext(ctx, "Failed to release send lock", "webhook_id", webhookID, "error", err)
		}
	}()

	return s.processOne(ctx, webhookID)
}

func (s *SenderService) processOne(ctx context.Context, webhookID string) error {
	webhook, err := s.repository.GetByID(ctx, webhookID)
	if err != nil {
		return fmt.Errorf("failed to load webhook %s: %w", webhookID, err)
	}
	if webhook == nil || !webhook.IsEnabled {
		slog.DebugContext(ctx, "Webhook missing or disabled, not sending", "webhook_id", webhookID)
		return nil
	}

	blockedUntil, err := s.BlockedUntil(ctx, webhookID)
	if err != nil {
		return err
	}
	if now := s.now(); blockedUntil != nil && blockedUntil.After(now) {
		s.reschedule(ctx, webhookID, blockedUntil.Sub(now))
		return nil
	}

	payload, err := s.queue.Dequeue(ctx, webhookID)
	if err != nil {
		return fmt.Errorf("failed to dequeue for webhook %s: %w", webhookID, err)
	}
	if payload == nil {
		return nil
	}

	outcome := s.deliver(ctx, webhook, payload)

	switch outcome.kind {
	case deliverySuccess:
		s.clearBackoff(ctx, webhookID)
		if outcome.blockedFor > 0 {
			// Budget exhausted on a success. Park before the 429 happens.
			if err := s.setBlocked(ctx, webhookID, outcome.blockedFor); err != nil {
				return err
			}
			s.reschedule(ctx, webhookID, outcome.blockedFor)
			return nil
		}
		s.rescheduleIfPending(ctx, webhookID)
		return nil

	case deliveryRateLimited:
		if err := s.queue.RequeueHead(ctx, webhookID, payload); err != nil {
			return fmt.Errorf("failed to requeue rate limited message for webhook %s: %w", webhookID, err)
		}
		if err := s.setBlocked(ctx, webhookID, outcome.blockedFor); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Webhook rate limited",
			"webhook_id", webhookID, "blocked_for", outcome.blockedFor)
		s.reschedule(ctx, webhookID, outcome.blockedFor)
		return nil

	case deliveryPoison:
		if err := s.queue.MoveToError(ctx, webhookID, payload); err != nil {
			return fmt.Errorf("failed to move poison message for webhook %s: %w", webhookID, err)
		}
		slog.WarnContext(ctx, "Webhook rejected message, moved to error queue",
			"webhook_id", webhookID, "status", outcome.status)
		s.rescheduleIfPending(ctx, webhookID)
		return nil

	default: // deliveryTransient
		if err := s.queue.RequeueHead(ctx, webhookID, payload); err != nil {
			return fmt.Errorf("failed to requeue message for webhook %s: %w", webhookID, err)
		}
		delay := s.nextBackoff(ctx, webhookID)
		slog.WarnContext(ctx, "Webhook delivery failed, backing off",
			"webhook_id", webhookID, "status", outcome.status, "retry_in", delay)
		s.reschedule(ctx, webhookID, delay)
		return nil
	}
}

// deliver POSTs one payload and classifies the response. It never returns
// an error; network failures classify as transient.
func (s *SenderService) deliver(ctx context.Context, webhook *models.Webhook, payload []byte) deliveryOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build webhook request", "webhook_id", webhook.ID, "error", err)
		return deliveryOutcome{kind: deliveryTransient}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "Webhook request failed", "webhook_id", webhook.ID, "error", err)
		return deliveryOutcome{kind: deliveryTransient}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRateLimitBody))
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.DebugContext(ctx, "Webhook message delivered",
			"webhook_id", webhook.ID, "status", resp.StatusCode)
		return deliveryOutcome{
			kind:       deliverySuccess,
			status:     resp.StatusCode,
			blockedFor: s.proactiveBlock(resp.Header),
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return deliveryOutcome{
			kind:       deliveryRateLimited,
			status:     resp.StatusCode,
			blockedFor: s.rateLimitDelay(ctx, webhook.ID, resp.Header, body),
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		slog.WarnContext(ctx, "Webhook returned client error",
			"webhook_id", webhook.ID, "status", resp.StatusCode, "body_length", len(body))
		return deliveryOutcome{kind: deliveryPoison, status: resp.StatusCode}

	default:
		return deliveryOutcome{kind: deliveryTransient, status: resp.StatusCode}
	}
}

// proactiveBlock inspects the rate limit budget on a successful response.
// A zero remaining count means the very next POST would 429, so the
// sender parks itself until the reset instant instead.
func (s *SenderService) proactiveBlock(header http.Header) time.Duration {
	remaining := header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return 0
	}
	n, err := strconv.Atoi(remaining)
	if err != nil || n > 0 {
		return 0
	}
	return resetAfter(header) + s.margin
}

// rateLimitDelay computes the 429 block: max of the body retry_after
// (milliseconds) and the reset header (seconds), plus a safety margin.
func (s *SenderService) rateLimitDelay(ctx context.Context, webhookID string, header http.Header, body []byte) time.Duration {
	var fromBody time.Duration
	var rateLimit dto.DiscordRateLimit
	if err := json.Unmarshal(body, &rateLimit); err == nil && rateLimit.RetryAfter > 0 {
		fromBody = time.Duration(rateLimit.RetryAfter * float64(time.Millisecond))
	} else {
		slog.DebugContext(ctx, "429 body carried no usable retry_after",
			"webhook_id", webhookID, "body_length", len(body))
	}

	delay := resetAfter(header)
	if fromBody > delay {
		delay = fromBody
	}
	return delay + s.margin
}

func resetAfter(header http.Header) time.Duration {
	raw := header.Get("X-RateLimit-Reset-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func blockKey(webhookID string) string {
	return fmt.Sprintf("block:%s", webhookID)
}

func backoffKey(webhookID string) string {
	return fmt.Sprintf("backoff:%s", webhookID)
}

// BlockedUntil returns the instant the webhook unblocks, or nil when it
// is not blocked. The key self-expires at the unblock instant.
func (s *SenderService) BlockedUntil(ctx context.Context, webhookID string) (*time.Time, error) {
	raw, err := s.redis.Client.Get(ctx, blockKey(webhookID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read block state for webhook %s: %w", webhookID, err)
	}
	until, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt block state for webhook %s: %w", webhookID, err)
	}
	return &until, nil
}

func (s *SenderService) setBlocked(ctx context.Context, webhookID string, d time.Duration) error {
	until := s.now().Add(d)
	// TTL slightly past the instant so readers near the boundary still
	// see a parseable value.
	err := s.redis.Client.Set(ctx, blockKey(webhookID), until.Format(time.RFC3339Nano), d+time.Second).Err()
	if err != nil {
		return fmt.Errorf("failed to set block state for webhook %s: %w", webhookID, err)
	}
	return nil
}

// nextBackoff bumps the per-webhook failure counter and returns the
// exponential delay it maps to: 1s, 2s, 4s, ... capped at 60s.
func (s *SenderService) nextBackoff(ctx context.Context, webhookID string) time.Duration {
	key := backoffKey(webhookID)
	n, err := s.redis.Client.Incr(ctx, key).Result()
	if err != nil {
		slog.WarnContext(ctx, "Failed to bump backoff counter", "webhook_id", webhookID, "error", err)
		return backoffBase
	}
	s.redis.Client.Expire(ctx, key, 10*time.Minute)

	delay := backoffBase
	for i := int64(1); i < n && delay < backoffCap; i++ {
		delay *= 2
	}
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay
}

func (s *SenderService) clearBackoff(ctx context.Context, webhookID string) {
	if err := s.redis.Client.Del(ctx, backoffKey(webhookID)).Err(); err != nil {
		slog.WarnContext(ctx, "Failed to clear backoff counter", "webhook_id", webhookID, "error", err)
	}
}

// State reports the sender state machine position for one webhook:
// RATE_LIMITED while a block is pending, DRAINING while an invocation
// holds the send lock, IDLE otherwise.
func (s *SenderService) State(ctx context.Context, webhookID string) (models.SenderState, error) {
	blockedUntil, err := s.BlockedUntil(ctx, webhookID)
	if err != nil {
		return "", err
	}
	if blockedUntil != nil && blockedUntil.After(s.now()) {
		return models.SenderStateRateLimited, nil
	}

	held, err := s.redis.Client.Exists(ctx, "lock:send:"+webhookID).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read send lock for webhook %s: %w", webhookID, err)
	}
	if held > 0 {
		return models.SenderStateDraining, nil
	}
	return models.SenderStateIdle, nil
}

func (s *SenderService) reschedule(ctx context.Context, webhookID string, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	if s.scheduler == nil {
		slog.DebugContext(ctx, "No scheduler wired, dropping reschedule",
			"webhook_id", webhookID, "delay", delay)
		return
	}
	s.scheduler.ScheduleSend(webhookID, delay)
}

// rescheduleIfPending arranges an immediate send when the webhook still has
// queued payloads, reporting whether it did.
func (s *SenderService) rescheduleIfPending(ctx context.Context, webhookID string) bool {
	size, err := s.queue.Size(ctx, webhookID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read queue size", "webhook_id", webhookID, "error", err)
		return false
	}
	if size == 0 {
		return false
	}
	s.reschedule(ctx, webhookID, 0)
	return true
}

// SendTest enqueues a payload (a synthesized test message when nil) and
// runs one send cycle, then reports what happened to the queues.
func (s *SenderService) SendTest(ctx context.Context, webhookID string, payload []byte) (*TestReport, error) {
	webhook, err := s.repository.GetByID(ctx, webhookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook %s: %w", webhookID, err)
	}
	if webhook == nil {
		return nil, fmt.Errorf("webhook %s not found", webhookID)
	}

	if payload == nil {
		payload, err = s.formatter.FormatTestMessage(webhook.Name)
		if err != nil {
			return nil, err
		}
	}

	sizeBefore, err := s.queue.Enqueue(ctx, webhookID, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue test message for webhook %s: %w", webhookID, err)
	}
	slog.InfoContext(ctx, "Test message enqueued", "webhook_id", webhookID, "queue_size", sizeBefore)

	if err := s.Run(ctx, webhookID); err != nil {
		return nil, err
	}

	report := &TestReport{WebhookID: webhookID}
	if report.QueueSize, err = s.queue.Size(ctx, webhookID); err != nil {
		return nil, err
	}
	if report.ErrorSize, err = s.queue.ErrorSize(ctx, webhookID); err != nil {
		return nil, err
	}
	if report.State, err = s.State(ctx, webhookID); err != nil {
		return nil, err
	}
	if report.BlockedUntil, err = s.BlockedUntil(ctx, webhookID); err != nil {
		return nil, err
	}
	report.Delivered = report.QueueSize < sizeBefore && report.ErrorSize == 0
	return report, nil
}
