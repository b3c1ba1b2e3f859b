package services

import (
	"context"
	"errors"
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

	killmailModels "go-killtracker/internal/killmails/models"
	"go-killtracker/pkg/database"
)

// ingestPackage renders a minimal valid RedisQ response for one kill ID.
func ingestPackage(killID int64) string {
	return fmt.Sprintf(`{
	  "package": {
	    "killID": %d,
	    "killmail": {
	      "killmail_id": %d,
	      "killmail_time": "2026-08-19T00:00:00Z",
	      "solar_system_id": 30000142,
	      "victim": {"damage_taken": 100},
	      "attackers": [{"damage_done": 100, "final_blow": true, "security_status": 0.5}]
	    },
	    "zkb": {"hash": "hash%d", "totalValue": 1000000}
	  }
	}`, killID, killID, killID)
}

const nullPackage = `{"package":null}`

type ingestFixture struct {
	service *IngestService
	wrapper *database.Redis
	redis   *miniredis.Miniredis
	server  *httptest.Server

	mu       sync.Mutex
	requests int
	sunk     []*killmailModels.Killmail
	sinkErr  error
}

func (fix *ingestFixture) requestCount() int {
	fix.mu.Lock()
	defer fix.mu.Unlock()
	return fix.requests
}

func (fix *ingestFixture) sunkIDs() []int64 {
	fix.mu.Lock()
	defer fix.mu.Unlock()
	ids := make([]int64, 0, len(fix.sunk))
	for _, km := range fix.sunk {
		ids = append(ids, km.KillmailID)
	}
	return ids
}

// setupIngest wires an ingest service against miniredis and an httptest feed.
// The handler receives the 1-based request number. The repository stays nil:
// state persistence is skipped, everything else behaves as in production.
func setupIngest(t *testing.T, handler func(n int, w http.ResponseWriter, r *http.Request)) *ingestFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	wrapper := database.NewRedisFromClient(client)

	fix := &ingestFixture{redis: mr, wrapper: wrapper}

	fix.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fix.mu.Lock()
		fix.requests++
		n := fix.requests
		fix.mu.Unlock()
		handler(n, w, r)
	}))
	t.Cleanup(fix.server.Close)

	fix.service = &IngestService{
		client:             newTestClient(fix.server.URL),
		redis:              wrapper,
		maxKillmailsPerRun: 25,
		maxDurationPerRun:  5 * time.Second,
	}
	fix.service.SetSink(func(ctx context.Context, killmail *killmailModels.Killmail) error {
		fix.mu.Lock()
		defer fix.mu.Unlock()
		if fix.sinkErr != nil {
			return fix.sinkErr
		}
		fix.sunk = append(fix.sunk, killmail)
		return nil
	})
	return fix
}

func TestIngestRunDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	fix := setupIngest(t, func(n int, w http.ResponseWriter, r *http.Request) {
		switch n {
		case 1:
			fmt.Fprint(w, ingestPackage(101))
		case 2:
			fmt.Fprint(w, ingestPackage(102))
		default:
			fmt.Fprint(w, nullPackage)
		}
	})

	result, err := fix.service.RunOnce(ctx)
	require.NoError(t, err)

	assert.True(t, result.Started())
	assert.Equal(t, ReasonEmptyPackage, result.Reason)
	assert.Equal(t, 2, result.Received)
	assert.Equal(t, 2, result.Submitted)
	assert.Zero(t, result.Malformed)

	assert.Equal(t, []int64{101, 102}, fix.sunkIDs())

	// the run releases its lock on the way out
	assert.False(t, fix.redis.Exists("lock:ingest"))
}

func TestIngestRunYieldsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	fix := setupIngest(t, func(n int, w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, nullPackage)
	})

	other := database.NewLock(fix.wrapper, "ingest", time.Minute)
	acquired, err := other.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	result, err := fix.service.RunOnce(ctx)
	require.NoError(t, err)

	assert.False(t, result.Started())
	assert.Equal(t, ReasonLockBusy, result.Reason)
	assert.Equal(t, 0, fix.requestCount())
}

func TestIngestRunStopsAtKillmailCap(t *testing.T) {
	ctx := context.Background()
	fix := setupIngest(t, func(n int, w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ingestPackage(int64(200+n)))
	})
	fix.service.maxKillmailsPerRun = 2

	result, err := fix.service.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, ReasonLimitReached, result.Reason)
	assert.Equal(t, 2, result.Received)
	assert.Equal(t, []int64{201, 202}, fix.sunkIDs())
}

func TestIngestRunDiscardsMalformedPackage(t *testing.T) {
	ctx := context.Background()
	fix := setupIngest(t, func(n int, w http.ResponseWriter, r *http.Request) {
		// A package without a killmail body.
		fmt.Fprint(w, `{"package":{"killID":7,"zkb":{"hash":"x"}}}`)
	})

	result, err := fix.service.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, ReasonMalformedPackage, result.Reason)
	assert.Equal(t, 1, result.Malformed)
	assert.Zero(t, result.Received)
	assert.Empty(t, fix.sunkIDs())
}

func TestIngestRunEndsOnUpstreamError(t *testing.T) {
	ctx := context.Background()
	fix := setupIngest(t, func(n int, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	// Upstream anomalies end the run; they are not infrastructure errors.
	result, err := fix.service.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonUpstreamError, result.Reason)

	// and the lock is free for the next scheduled run
	assert.False(t, fix.redis.Exists("lock:ingest"))
}

func TestIngestRunCountsSinkFailures(t *testing.T) {
	ctx := context.Background()
	fix := setupIngest(t, func(n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			fmt.Fprint(w, ingestPackage(301))
			return
		}
		fmt.Fprint(w, nullPackage)
	})
	fix.sinkErr = errors.New("pipeline full")

	result, err := fix.service.RunOnce(ctx)
	require.NoError(t, err)

	// received but not submitted: the feed has already consumed the event
	assert.Equal(t, 1, result.Received)
	assert.Zero(t, result.Submitted)
	assert.Equal(t, ReasonEmptyPackage, result.Reason)
	assert.Equal(t, int64(1), fix.service.metrics.SinkErrors.Load())
}

func TestIngestStatusReflectsLastRun(t *testing.T) {
	ctx := context.Background()
	fix := setupIngest(t, func(n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			fmt.Fprint(w, ingestPackage(401))
			return
		}
		fmt.Fprint(w, nullPackage)
	})

	_, err := fix.service.RunOnce(ctx)
	require.NoError(t, err)

	status := fix.service.Status()
	assert.Equal(t, "idle", status.Status)
	assert.Equal(t, "test-queue", status.QueueID)
	assert.Equal(t, int64(1), status.Metrics.TotalRuns)
	assert.Equal(t, int64(1), status.Metrics.KillmailsReceived)
	assert.Equal(t, int64(401), status.Metrics.LastKillmailID)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, ReasonEmptyPackage, status.LastRun.Reason)
	assert.Equal(t, 1, status.LastRun.Received)
}
