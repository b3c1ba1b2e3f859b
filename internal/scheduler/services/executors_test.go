package services

import (
	"context"
	"errors"
	"testing"
	"time"

	killmailModels "go-killtracker/internal/killmails/models"
	"go-killtracker/internal/scheduler/models"
	trackerModels "go-killtracker/internal/trackers/models"
	trackerServices "go-killtracker/internal/trackers/services"
	zkillServices "go-killtracker/internal/zkillboard/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	sink   zkillServices.Sink
	result *zkillServices.RunResult
	err    error
	runs   int
}

func (f *fakeIngester) SetSink(sink zkillServices.Sink) { f.sink = sink }

func (f *fakeIngester) RunOnce(ctx context.Context) (*zkillServices.RunResult, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &zkillServices.RunResult{StartedAt: time.Now(), Reason: zkillServices.ReasonEmptyPackage}, nil
}

type evaluation struct {
	trackerID string
	payload   []byte
}

type fakeEvaluator struct {
	enabled     []trackerModels.Tracker
	listErr     error
	evaluations []evaluation
	match       *killmailModels.Killmail
	tracker     *trackerModels.Tracker
	evalErr     error
}

func (f *fakeEvaluator) ListEnabled(ctx context.Context) ([]trackerModels.Tracker, error) {
	return f.enabled, f.listErr
}

func (f *fakeEvaluator) EvaluateByID(ctx context.Context, trackerID string, payload []byte, opts trackerServices.EvaluateOptions) (*killmailModels.Killmail, *trackerModels.Tracker, error) {
	f.evaluations = append(f.evaluations, evaluation{trackerID: trackerID, payload: payload})
	return f.match, f.tracker, f.evalErr
}

type fakeDispatcher struct {
	formatErr     error
	enqueueErr    error
	enqueued      map[string][][]byte
	senderRuns    []string
	senderErr     error
	recoverMoved  int64
	recoverKicked int
	recoverErr    error
	recoverCalls  int
}

func (f *fakeDispatcher) FormatKillmail(ctx context.Context, tracker *trackerModels.Tracker, killmail *killmailModels.Killmail) ([]byte, error) {
	if f.formatErr != nil {
		return nil, f.formatErr
	}
	return []byte(`{"content":"formatted"}`), nil
}

func (f *fakeDispatcher) Enqueue(ctx context.Context, webhookID string, payload []byte) (int64, error) {
	if f.enqueueErr != nil {
		return 0, f.enqueueErr
	}
	if f.enqueued == nil {
		f.enqueued = make(map[string][][]byte)
	}
	f.enqueued[webhookID] = append(f.enqueued[webhookID], payload)
	return int64(len(f.enqueued[webhookID])), nil
}

func (f *fakeDispatcher) RunSender(ctx context.Context, webhookID string) error {
	f.senderRuns = append(f.senderRuns, webhookID)
	return f.senderErr
}

func (f *fakeDispatcher) RecoverPendingDeliveries(ctx context.Context) (int64, int, error) {
	f.recoverCalls++
	return f.recoverMoved, f.recoverKicked, f.recoverErr
}

type fakeArchive struct {
	storing    bool
	stored     [][]byte
	storeErr   error
	purged     int64
	purgeErr   error
	purgeCalls int
}

func (f *fakeArchive) StoringEnabled() bool { return f.storing }

func (f *fakeArchive) StoreJSON(ctx context.Context, payload []byte) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.stored = append(f.stored, payload)
	return nil
}

func (f *fakeArchive) PurgeStale(ctx context.Context) (int64, error) {
	f.purgeCalls++
	return f.purged, f.purgeErr
}

type executorFixture struct {
	executors  *Executors
	engine     *Engine
	ingester   *fakeIngester
	evaluator  *fakeEvaluator
	dispatcher *fakeDispatcher
	archive    *fakeArchive
}

// newExecutorFixture wires executors onto an engine that is never started,
// so submitted tasks stay in the queue for inspection.
func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	engine := newTestEngine(t, 1, 64)
	fix := &executorFixture{
		engine:     engine,
		ingester:   &fakeIngester{},
		evaluator:  &fakeEvaluator{},
		dispatcher: &fakeDispatcher{},
		archive:    &fakeArchive{},
	}
	fix.executors = NewExecutors(engine, fix.ingester, fix.evaluator, fix.dispatcher, fix.archive)
	return fix
}

func (f *executorFixture) queuedTasks() []*Task {
	var tasks []*Task
	for {
		select {
		case task := <-f.engine.queue:
			tasks = append(tasks, task)
		default:
			return tasks
		}
	}
}

func pipelineKillmail() *killmailModels.Killmail {
	characterID := int64(1001)
	shipTypeID := 603
	return &killmailModels.Killmail{
		KillmailID:   87654321,
		KillmailTime: time.Date(2026, 8, 20, 11, 30, 0, 0, time.UTC),
		Victim: killmailModels.Victim{
			CharacterID: &characterID,
			ShipTypeID:  &shipTypeID,
		},
	}
}

func TestNewExecutorsInstallsSink(t *testing.T) {
	fix := newExecutorFixture(t)
	assert.NotNil(t, fix.ingester.sink)
}

func TestRunIngestRecoversDeliveriesAndSchedulesPurge(t *testing.T) {
	fix := newExecutorFixture(t)
	fix.dispatcher.recoverMoved = 3
	fix.dispatcher.recoverKicked = 1

	err := fix.executors.runIngest(context.Background(), &Task{Type: models.TaskRunIngest})
	require.NoError(t, err)

	assert.Equal(t, 1, fix.dispatcher.recoverCalls)
	assert.Equal(t, 1, fix.ingester.runs)

	tasks := fix.queuedTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskPurgeStale, tasks[0].Type)
}

func TestRunIngestSkipsPurgeWhenLockBusy(t *testing.T) {
	fix := newExecutorFixture(t)
	fix.ingester.result = &zkillServices.RunResult{Reason: zkillServices.ReasonLockBusy}

	err := fix.executors.runIngest(context.Background(), &Task{Type: models.TaskRunIngest})
	require.NoError(t, err)
	assert.Empty(t, fix.queuedTasks())
}

func TestRunIngestRecoveryFailureIsNotFatal(t *testing.T) {
	fix := newExecutorFixture(t)
	fix.dispatcher.recoverErr = errors.New("redis down")

	err := fix.executors.runIngest(context.Background(), &Task{Type: models.TaskRunIngest})
	require.NoError(t, err)
	assert.Equal(t, 1, fix.ingester.runs)
}

func TestRunIngestPropagatesIngestError(t *testing.T) {
	fix := newExecutorFixture(t)
	fix.ingester.err = errors.New("feed unreachable")

	err := fix.executors.runIngest(context.Background(), &Task{Type: models.TaskRunIngest})
	require.Error(t, err)
	assert.Empty(t, fix.queuedTasks())
}

func TestFanOutSubmitsTrackerAndStoreTasks(t *testing.T) {
	fix := newExecutorFixture(t)
	fix.evaluator.enabled = []trackerModels.Tracker{
		{ID: "tracker-1", Name: "Low Sec Patrol"},
		{ID: "tracker-2", Name: "Capital Watch"},
	}
	fix.archive.storing = true

	require.NoError(t, fix.ingester.sink(context.Background(), pipelineKillmail()))

	tasks := fix.queuedTasks()
	require.Len(t, tasks, 3)

	byType := make(map[models.TaskType][]*Task)
	for _, task := range tasks {
		byType[task.Type] = append(byType[task.Type], task)
	}

	require.Len(t, byType[models.TaskRunTracker], 2)
	keys := []string{byType[models.TaskRunTracker][0].Key, byType[models.TaskRunTracker][1].Key}
	assert.ElementsMatch(t, []string{"tracker-1", "tracker-2"}, keys)

	require.Len(t, byType[models.TaskStoreKillmail], 1)
	store := byType[models.TaskStoreKillmail][0]
	assert.Equal(t, "87654321", store.Key)

	parsed, err := killmailModels.FromJSON(store.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(87654321), parsed.KillmailID)
}

func TestFanOutWithoutArchiving(t *testing.T) {
	fix := newExecutorFixture(t)
	fix.evaluator.enabled = []trackerModels.Tracker{{ID: "tracker-1"}}

	require.NoError(t, fix.ingester.sink(context.Background(), pipelineKillmail()))

	tasks := fix.queuedTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskRunTracker, tasks[0].Type)
}

func TestFanOutListFailure(t *testing.T) {
	fix := newExecutorFixture(t)
	fix.evaluator.listErr = errors.New("mongo down")

	err := fix.ingester.sink(context.Background(), pipelineKillmail())
	require.Error(t, err)
	assert.Empty(t, fix.queuedTasks())
}

func TestRunTrackerMatchEnqueuesAndSchedulesSend(t *testing.T) {
	fix := newExecutorFixture(t)
	fix.evaluator.match = pipelineKillmail()
	fix.evaluator.tracker = &trackerModels.Tracker{
		ID:        "tracker-1",
		Name:      "Low Sec Patrol",
		WebhookID: "webhook-9",
	}

	payload, err := pipelineKillmail().ToJSON()
	require.NoError(t, err)

	err = fix.executors.runTracker(context.Background(), &Task{
		Type:    models.TaskRunTracker,
		Key:     "tracker-1",
		Payload: payload,
	})
	require.NoError(t, err)

	require.Len(t, fix.evaluator.evaluations, 1)
	assert.Equal(t, "tracker-1", fix.evaluator.evaluations[0].trackerID)

	require.Len(t, fix.dispatcher.enqueued["webhook-9"], 1)

	tasks := fix.queuedTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskSendWebhook, tasks[0].Type)
	assert.Equal(t, "webhook-9", tasks[0].Key)
}

func TestRunTrackerNoMatch(t *testing.T) {
	fix := newExecutorFixture(t)

	err := fix.executors.runTracker(context.Background(), &Task{
		Type:    models.TaskRunTracker,
		Key:     "tracker-1",
		Payload: []byte(`{"killmail_id":1}`),
	})
	require.NoError(t, err)

	assert.Empty(t, fix.dispatcher.enqueued)
	assert.Empty(t, fix.queuedTasks())
}

func TestRunTrackerEnqueueFailure(t *testing.T) {
	fix := newExecutorFixture(t)
	fix.evaluator.match = pipelineKillmail()
	fix.evaluator.tracker = &trackerModels.Tracker{ID: "tracker-1", WebhookID: "webhook-9"}
	fix.dispatcher.enqueueErr = errors.New("redis down")

	err := fix.executors.runTracker(context.Background(), &Task{
		Type:    models.TaskRunTracker,
		Key:     "tracker-1",
		Payload: []byte(`{"killmail_id":1}`),
	})
	require.Error(t, err)
	assert.Empty(t, fix.queuedTasks())
}

func TestSendWebhookRequiresKey(t *testing.T) {
	fix := newExecutorFixture(t)

	err := fix.executors.sendWebhook(context.Background(), &Task{Type: models.TaskSendWebhook})
	require.Error(t, err)

	err = fix.executors.sendWebhook(context.Background(), &Task{Type: models.TaskSendWebhook, Key: "webhook-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"webhook-1"}, fix.dispatcher.senderRuns)
}

func TestStoreKillmailPassesPayload(t *testing.T) {
	fix := newExecutorFixture(t)
	payload := []byte(`{"killmail_id":42}`)

	err := fix.executors.storeKillmail(context.Background(), &Task{Type: models.TaskStoreKillmail, Payload: payload})
	require.NoError(t, err)

	require.Len(t, fix.archive.stored, 1)
	assert.Equal(t, payload, fix.archive.stored[0])
}

func TestPurgeStaleReportsError(t *testing.T) {
	fix := newExecutorFixture(t)
	fix.archive.purged = 5

	require.NoError(t, fix.executors.purgeStale(context.Background(), &Task{Type: models.TaskPurgeStale}))
	assert.Equal(t, 1, fix.archive.purgeCalls)

	fix.archive.purgeErr = errors.New("mongo down")
	require.Error(t, fix.executors.purgeStale(context.Background(), &Task{Type: models.TaskPurgeStale}))
}
