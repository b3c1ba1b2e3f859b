package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"go-killtracker/internal/killmails"
	schedulerServices "go-killtracker/internal/scheduler/services"
	"go-killtracker/internal/trackers"
	trackerModels "go-killtracker/internal/trackers/models"
	"go-killtracker/internal/webhooks"
	"go-killtracker/internal/zkillboard"
	"go-killtracker/pkg/app"
	"go-killtracker/pkg/evegateway"
	"go-killtracker/pkg/resolve"
)

// pipeline is the one-shot wiring of the killmail pipeline: the same
// services the API server runs, minus HTTP and minus cron schedules. The
// command decides when work happens.
type pipeline struct {
	killmails  *killmails.Module
	trackers   *trackers.Module
	webhooks   *webhooks.Module
	zkillboard *zkillboard.Module
	engine     *schedulerServices.Engine
}

func main() {
	drainTimeout := flag.Duration("drain-timeout", 2*time.Minute, "How long ingest-once waits for queued pipeline tasks to finish")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	ctx := context.Background()

	appCtx, err := app.InitializeApp("killtrackerctl")
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}
	defer appCtx.Shutdown(ctx)

	p := buildPipeline(appCtx)

	switch args[0] {
	case "ingest-once":
		runIngestOnce(ctx, p, *drainTimeout)

	case "send-test":
		if len(args) < 2 {
			log.Fatal("❌ send-test requires a webhook ID")
		}
		var killmailID int64
		if len(args) > 2 {
			killmailID, err = strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				log.Fatalf("❌ Invalid killmail ID %q: %v", args[2], err)
			}
		}
		runSendTest(ctx, p, args[1], killmailID)

	case "purge-stale":
		runPurgeStale(ctx, p)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func buildPipeline(appCtx *app.AppContext) *pipeline {
	esiClient := evegateway.NewClientWithCache(evegateway.NewRedisCacheManager(appCtx.Redis))

	universeService := resolve.NewUniverseService(appCtx.SDEService, esiClient)
	entityService := resolve.NewEntityService(appCtx.Redis, esiClient)
	stateService := resolve.NewStateService(appCtx.MongoDB)

	killmailsModule := killmails.New(appCtx.MongoDB)
	webhooksModule := webhooks.New(appCtx.MongoDB, appCtx.Redis, entityService, universeService, stateService)
	trackersModule := trackers.New(appCtx.MongoDB, universeService, stateService, webhooksModule.GetService())
	zkillboardModule := zkillboard.New(appCtx.MongoDB, appCtx.Redis, esiClient)

	schedulerRepo := schedulerServices.NewRepository(appCtx.MongoDB)
	engine := schedulerServices.NewEngine(schedulerRepo)
	executors := schedulerServices.NewExecutors(engine,
		zkillboardModule.GetIngestService(),
		trackersModule.GetService(),
		webhooksModule.GetService(),
		killmailsModule.GetService(),
	)
	executors.RegisterAll()
	webhooksModule.GetService().SetSendScheduler(schedulerServices.NewService(engine, schedulerRepo))

	return &pipeline{
		killmails:  killmailsModule,
		trackers:   trackersModule,
		webhooks:   webhooksModule,
		zkillboard: zkillboardModule,
		engine:     engine,
	}
}

// runIngestOnce executes a single bounded ingest run and waits for the
// pipeline work it fanned out to settle. A run skipped because another
// instance holds the ingest lock is a clean exit.
func runIngestOnce(ctx context.Context, p *pipeline, drainTimeout time.Duration) {
	p.engine.Start()
	defer p.engine.Stop()

	result, err := p.zkillboard.GetIngestService().RunOnce(ctx)
	if err != nil {
		log.Fatalf("❌ Ingest run failed: %v", err)
	}
	if !result.Started() {
		fmt.Println("⏭️  Ingest lock held by another instance, nothing to do")
		return
	}

	drainEngine(p.engine, drainTimeout)

	stats := p.engine.Stats()
	fmt.Printf("✅ Ingest run finished: received=%d submitted=%d malformed=%d reason=%s\n",
		result.Received, result.Submitted, result.Malformed, result.Reason)
	fmt.Printf("   Pipeline tasks: executed=%d failed=%d dropped=%d\n",
		stats.Executed, stats.Failed, stats.Dropped)
}

// runSendTest pushes a message through the full delivery path of one
// webhook. Without a killmail ID the payload is a synthetic test message;
// with one, the killmail is fetched and rendered the way a tracked kill
// would be, minus pings and annotations.
func runSendTest(ctx context.Context, p *pipeline, webhookID string, killmailID int64) {
	var payload []byte
	if killmailID != 0 {
		killmail, err := p.zkillboard.GetIngestService().FetchKillmail(ctx, killmailID)
		if err != nil {
			log.Fatalf("❌ Failed to fetch killmail %d: %v", killmailID, err)
		}
		tracker := &trackerModels.Tracker{
			Name:     "send-test",
			PingType: trackerModels.PingTypeNone,
			Color:    trackerModels.ColorNone,
		}
		payload, err = p.webhooks.GetService().FormatKillmail(ctx, tracker, killmail)
		if err != nil {
			log.Fatalf("❌ Failed to format killmail %d: %v", killmailID, err)
		}
	}

	report, err := p.webhooks.GetService().SendTest(ctx, webhookID, payload)
	if err != nil {
		log.Fatalf("❌ Send test failed: %v", err)
	}

	fmt.Printf("Webhook:   %s\n", report.WebhookID)
	fmt.Printf("Delivered: %v\n", report.Delivered)
	fmt.Printf("State:     %s\n", report.State)
	fmt.Printf("Queued:    %d main / %d error\n", report.QueueSize, report.ErrorSize)
	if report.BlockedUntil != nil {
		fmt.Printf("Blocked:   until %s\n", report.BlockedUntil.Format(time.RFC3339))
	}

	if !report.Delivered {
		os.Exit(1)
	}
	fmt.Println("✅ Test message delivered")
}

// runPurgeStale deletes archived killmails past the retention window
func runPurgeStale(ctx context.Context, p *pipeline) {
	deleted, err := p.killmails.GetService().PurgeStale(ctx)
	if err != nil {
		log.Fatalf("❌ Purge failed: %v", err)
	}
	fmt.Printf("✅ Purged %d stale killmails\n", deleted)
}

// drainEngine waits for queued pipeline work to settle. An empty queue can
// still have a task in flight on a worker, so the executed counters have to
// hold still across two polls before the engine counts as drained.
func drainEngine(engine *schedulerServices.Engine, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	var lastDone int64 = -1

	for time.Now().Before(deadline) {
		stats := engine.Stats()
		done := stats.Executed + stats.Failed
		if stats.QueueLength == 0 && stats.PendingTimers == 0 && done == lastDone {
			return
		}
		lastDone = done
		time.Sleep(500 * time.Millisecond)
	}

	slog.Warn("Drain timeout reached, queued tasks may remain", "timeout", timeout)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: killtrackerctl [flags] <command>

Commands:
  ingest-once                         Run one ingest cycle and drain the pipeline
  send-test WEBHOOK_ID [KILLMAIL_ID]  Send a test message (or a rendered killmail) through a webhook
  purge-stale                         Delete archived killmails past the retention window

Flags:
`)
	flag.PrintDefaults()
}
