package scheduler

import (
	"context"
	"log/slog"

	"go-killtracker/internal/scheduler/models"
	"go-killtracker/internal/scheduler/routes"
	"go-killtracker/internal/scheduler/services"
	"go-killtracker/pkg/config"
	"go-killtracker/pkg/database"
	"go-killtracker/pkg/module"

	"github.com/danielgtaylor/huma/v2"
)

// Module owns the task engine that drives the killmail pipeline
type Module struct {
	*module.BaseModule
	service    *services.Service
	repository *services.Repository
	engine     *services.Engine
}

// New creates the scheduler module. The engine is wired with executors for
// the whole pipeline and a cron schedule that starts an ingest cycle every
// minute (INGEST_CRON, 6-field with seconds).
func New(
	mongodb *database.MongoDB,
	ingester services.KillmailIngester,
	trackers services.TrackerEvaluator,
	webhooks services.WebhookDispatcher,
	archive services.KillmailArchive,
) (*Module, error) {
	repository := services.NewRepository(mongodb)
	engine := services.NewEngine(repository)

	executors := services.NewExecutors(engine, ingester, trackers, webhooks, archive)
	executors.RegisterAll()

	ingestCron := config.GetEnv("INGEST_CRON", "0 * * * * *")
	if err := engine.AddCron(ingestCron, &services.Task{Type: models.TaskRunIngest}); err != nil {
		return nil, err
	}

	return &Module{
		BaseModule: module.NewBaseModule("scheduler"),
		service:    services.NewService(engine, repository),
		repository: repository,
		engine:     engine,
	}, nil
}

// RegisterUnifiedRoutes registers all scheduler routes with the unified API gateway
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterSchedulerRoutes(api, basePath, m.service)
}

// StartBackgroundTasks launches the task engine and keeps it running until
// the context is cancelled or the module is stopped
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	slog.Info("Starting background tasks", "module", m.Name())
	m.engine.Start()

	select {
	case <-ctx.Done():
		slog.Info("Background tasks context cancelled", "module", m.Name())
	case <-m.StopChannel():
		slog.Info("Background tasks stopped", "module", m.Name())
	}

	m.engine.Stop()
}

// Initialize performs module initialization tasks
func (m *Module) Initialize(ctx context.Context) error {
	return m.repository.CreateIndexes(ctx)
}

// GetService returns the service instance for this module
func (m *Module) GetService() *services.Service {
	return m.service
}
