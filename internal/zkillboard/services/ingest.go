package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	killmailModels "go-killtracker/internal/killmails/models"
	"go-killtracker/internal/zkillboard/dto"
	"go-killtracker/internal/zkillboard/models"
	"go-killtracker/pkg/config"
	"go-killtracker/pkg/database"
)

// Sink consumes killmails accepted by an ingest run, in receipt order.
type Sink func(ctx context.Context, killmail *killmailModels.Killmail) error

// Reasons an ingest run ends.
const (
	ReasonLockBusy         = "lock_busy"
	ReasonLimitReached     = "limit_reached"
	ReasonDurationExceeded = "duration_exceeded"
	ReasonEmptyPackage     = "empty_package"
	ReasonMalformedPackage = "malformed_package"
	ReasonUpstreamError    = "upstream_error"
	ReasonStopped          = "stopped"
)

// RunResult summarizes one ingest run.
type RunResult struct {
	StartedAt time.Time
	Duration  time.Duration
	Received  int
	Submitted int
	Malformed int
	Reason    string
}

// Started reports whether the run actually polled the feed, as opposed to
// yielding because another instance held the ingest lock.
func (r *RunResult) Started() bool {
	return r.Reason != ReasonLockBusy
}

// IngestMetrics tracks ingest counters since process start
type IngestMetrics struct {
	TotalRuns         atomic.Int64
	TotalPolls        atomic.Int64
	EmptyResponses    atomic.Int64
	KillmailsReceived atomic.Int64
	MalformedPackages atomic.Int64
	UpstreamErrors    atomic.Int64
	SinkErrors        atomic.Int64
	LastKillmailID    atomic.Int64
}

// IngestService drives bounded runs against the RedisQ feed. A run polls in
// sequence until it hits the killmail cap, the wall-clock cap, an empty
// package, or an upstream anomaly. The upstream allows one in-flight listen
// per client IP, so a Redis lock keeps runs single-flight across instances.
type IngestService struct {
	client     *RedisQClient
	repository *Repository
	redis      *database.Redis

	maxKillmailsPerRun int
	maxDurationPerRun  time.Duration

	sink    Sink
	metrics IngestMetrics
	running atomic.Bool

	mu      sync.Mutex
	lastRun *RunResult
}

// NewIngestService creates the ingest service with limits from the environment
func NewIngestService(client *RedisQClient, repository *Repository, redis *database.Redis) *IngestService {
	return &IngestService{
		client:             client,
		repository:         repository,
		redis:              redis,
		maxKillmailsPerRun: config.GetIntEnv("MAX_KILLMAILS_PER_RUN", 250),
		maxDurationPerRun:  config.GetDurationEnv("MAX_DURATION_PER_RUN", 50, time.Second),
	}
}

// SetSink installs the consumer every accepted killmail is handed to.
// Must be called before the first run.
func (s *IngestService) SetSink(sink Sink) {
	s.sink = sink
}

// Client returns the underlying RedisQ client.
func (s *IngestService) Client() *RedisQClient {
	return s.client
}

// RunOnce executes one bounded ingest run. When another instance holds the
// ingest lock the run yields immediately: the result reports lock_busy and
// the error is nil. Upstream anomalies also produce a nil error; the only
// errors returned are infrastructure failures such as Redis being down.
func (s *IngestService) RunOnce(ctx context.Context) (*RunResult, error) {
	lock := database.NewLock(s.redis, "ingest", s.maxDurationPerRun+time.Minute)

	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire ingest lock: %w", err)
	}
	if !acquired {
		slog.InfoContext(ctx, "Ingest lock held elsewhere, skipping run")
		return &RunResult{StartedAt: time.Now().UTC(), Reason: ReasonLockBusy}, nil
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			slog.Warn("Failed to release ingest lock", "error", err)
		}
	}()

	s.running.Store(true)
	defer s.running.Store(false)

	result := s.poll(ctx)

	s.metrics.TotalRuns.Add(1)
	s.mu.Lock()
	s.lastRun = result
	s.mu.Unlock()

	s.saveState(result)

	slog.InfoContext(ctx, "Ingest run finished",
		"received", result.Received,
		"submitted", result.Submitted,
		"malformed", result.Malformed,
		"duration", result.Duration.Round(time.Millisecond).String(),
		"reason", result.Reason)

	return result, nil
}

func (s *IngestService) poll(ctx context.Context) *RunResult {
	result := &RunResult{StartedAt: time.Now().UTC()}
	deadline := result.StartedAt.Add(s.maxDurationPerRun)

	for {
		if ctx.Err() != nil {
			result.Reason = ReasonStopped
			break
		}
		if result.Received >= s.maxKillmailsPerRun {
			result.Reason = ReasonLimitReached
			break
		}
		if time.Now().After(deadline) {
			result.Reason = ReasonDurationExceeded
			break
		}

		pkg, err := s.client.Poll(ctx)
		s.metrics.TotalPolls.Add(1)
		if err != nil {
			// Rate limits, ban pages, network failures. The feed is not
			// usable right now; the next scheduled run will try again.
			s.metrics.UpstreamErrors.Add(1)
			slog.InfoContext(ctx, "Ingest run ended by upstream", "error", err)
			result.Reason = ReasonUpstreamError
			break
		}
		if pkg == nil {
			s.metrics.EmptyResponses.Add(1)
			result.Reason = ReasonEmptyPackage
			break
		}

		killmail, err := BuildKillmail(pkg)
		if err != nil {
			s.metrics.MalformedPackages.Add(1)
			result.Malformed++
			slog.DebugContext(ctx, "Discarding malformed package", "kill_id", pkg.KillID, "error", err)
			result.Reason = ReasonMalformedPackage
			break
		}

		result.Received++
		s.metrics.KillmailsReceived.Add(1)
		s.metrics.LastKillmailID.Store(killmail.KillmailID)

		if s.sink != nil {
			if err := s.sink(ctx, killmail); err != nil {
				s.metrics.SinkErrors.Add(1)
				slog.ErrorContext(ctx, "Failed to hand killmail to pipeline",
					"killmail_id", killmail.KillmailID, "error", err)
			} else {
				result.Submitted++
			}
		}
	}

	result.Duration = time.Since(result.StartedAt)
	return result
}

// FetchKillmail retrieves one historical killmail by ID, composing the
// zKillboard API lookup with the ESI body. Used by operator test flows.
func (s *IngestService) FetchKillmail(ctx context.Context, killmailID int64) (*killmailModels.Killmail, error) {
	pkg, err := s.client.GetPackage(ctx, killmailID)
	if err != nil {
		return nil, err
	}
	return BuildKillmail(pkg)
}

// RestoreState seeds the counters from the persisted ingest state so the
// totals survive restarts. A fresh queue ID falls back to the most recent
// state on record: the ID is regenerated whenever ZKB_QUEUE_ID is unset,
// but the deployment's history is still the same.
func (s *IngestService) RestoreState(ctx context.Context) error {
	if s.repository == nil {
		return nil
	}

	state, err := s.repository.GetState(ctx, s.client.QueueID())
	if err != nil {
		return err
	}
	if state == nil {
		if state, err = s.repository.GetLatestState(ctx); err != nil {
			return err
		}
	}
	if state == nil {
		return nil
	}

	s.metrics.TotalRuns.Store(state.TotalRuns)
	s.metrics.TotalPolls.Store(state.TotalPolls)
	s.metrics.EmptyResponses.Store(state.EmptyResponses)
	s.metrics.KillmailsReceived.Store(state.KillmailsReceived)
	s.metrics.MalformedPackages.Store(state.MalformedPackages)
	s.metrics.UpstreamErrors.Store(state.UpstreamErrors)
	s.metrics.SinkErrors.Store(state.SinkErrors)
	s.metrics.LastKillmailID.Store(state.LastKillmailID)

	slog.Info("Restored ingest state",
		"queue_id", state.QueueID,
		"total_runs", state.TotalRuns,
		"killmails_received", state.KillmailsReceived)

	return nil
}

// saveState persists counters and run info so operators can inspect the
// ingestor across restarts. Uses a detached context so the state is still
// written when the triggering request has gone away.
func (s *IngestService) saveState(result *RunResult) {
	if s.repository == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	state := &models.IngestState{
		QueueID:           s.client.QueueID(),
		TotalRuns:         s.metrics.TotalRuns.Load(),
		TotalPolls:        s.metrics.TotalPolls.Load(),
		EmptyResponses:    s.metrics.EmptyResponses.Load(),
		KillmailsReceived: s.metrics.KillmailsReceived.Load(),
		MalformedPackages: s.metrics.MalformedPackages.Load(),
		UpstreamErrors:    s.metrics.UpstreamErrors.Load(),
		SinkErrors:        s.metrics.SinkErrors.Load(),
		LastKillmailID:    s.metrics.LastKillmailID.Load(),
		LastRunAt:         result.StartedAt,
		LastRunDurationMS: result.Duration.Milliseconds(),
		LastRunReason:     result.Reason,
		LastRunReceived:   result.Received,
	}

	if err := s.repository.SaveState(ctx, state); err != nil {
		slog.Warn("Failed to persist ingest state", "error", err)
	}
}

// Status reports the current ingest status, configuration and counters
func (s *IngestService) Status() *dto.ServiceStatusResponse {
	status := "idle"
	if s.running.Load() {
		status = "running"
	}

	response := &dto.ServiceStatusResponse{
		Status:  status,
		QueueID: s.client.QueueID(),
		Metrics: dto.ServiceMetrics{
			TotalRuns:         s.metrics.TotalRuns.Load(),
			TotalPolls:        s.metrics.TotalPolls.Load(),
			EmptyResponses:    s.metrics.EmptyResponses.Load(),
			KillmailsReceived: s.metrics.KillmailsReceived.Load(),
			MalformedPackages: s.metrics.MalformedPackages.Load(),
			UpstreamErrors:    s.metrics.UpstreamErrors.Load(),
			SinkErrors:        s.metrics.SinkErrors.Load(),
			LastKillmailID:    s.metrics.LastKillmailID.Load(),
		},
		Config: dto.ServiceConfig{
			Endpoint:           s.client.Endpoint(),
			QueueID:            s.client.QueueID(),
			TTW:                s.client.TTW(),
			MaxKillmailsPerRun: s.maxKillmailsPerRun,
			MaxDurationPerRun:  s.maxDurationPerRun.String(),
		},
	}

	s.mu.Lock()
	lastRun := s.lastRun
	s.mu.Unlock()

	if lastRun != nil {
		response.LastRun = &dto.RunSummary{
			StartedAt: lastRun.StartedAt,
			Duration:  lastRun.Duration.Round(time.Millisecond).String(),
			Received:  lastRun.Received,
			Submitted: lastRun.Submitted,
			Malformed: lastRun.Malformed,
			Reason:    lastRun.Reason,
		}
	}

	return response
}
