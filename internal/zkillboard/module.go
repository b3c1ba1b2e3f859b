package zkillboard

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"go-killtracker/internal/zkillboard/routes"
	"go-killtracker/internal/zkillboard/services"
	"go-killtracker/pkg/database"
	"go-killtracker/pkg/evegateway"
	"go-killtracker/pkg/module"
)

// Module represents the zKillboard ingest module
type Module struct {
	*module.BaseModule

	client     *services.RedisQClient
	ingest     *services.IngestService
	repository *services.Repository
	routes     *routes.Routes
}

// New creates a new zKillboard ingest module instance
func New(
	mongodb *database.MongoDB,
	redis *database.Redis,
	eveGateway *evegateway.Client,
) *Module {
	baseModule := module.NewBaseModule("zkillboard")

	repository := services.NewRepository(mongodb)
	client := services.NewRedisQClient(eveGateway)
	ingest := services.NewIngestService(client, repository, redis)
	routesHandler := routes.NewRoutes(ingest, eveGateway)

	return &Module{
		BaseModule: baseModule,
		client:     client,
		ingest:     ingest,
		repository: repository,
		routes:     routesHandler,
	}
}

// Initialize initializes the module
func (m *Module) Initialize(ctx context.Context) error {
	slog.Info("Initializing zKillboard module")

	if err := m.repository.CreateIndexes(ctx); err != nil {
		return err
	}

	// Counters continue from the last persisted run. A missing state just
	// means a fresh deployment, but a read failure should not block startup.
	if err := m.ingest.RestoreState(ctx); err != nil {
		slog.Warn("Failed to restore ingest state", "error", err)
	}

	slog.Info("ZKillboard module initialized successfully")
	return nil
}

// RegisterUnifiedRoutes registers all ingest routes with the unified API gateway
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	m.routes.RegisterRoutes(api, basePath)
}

// StartBackgroundTasks implements the module.Module interface. Runs are
// driven by the scheduler, so nothing starts here.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	slog.Info("ZKillboard ingest runs are driven by the scheduler")
}

// Stop implements the module.Module interface
func (m *Module) Stop() {
	slog.Info("Stopping zKillboard module")
	m.BaseModule.Stop()
}

// GetIngestService returns the ingest service for external access
func (m *Module) GetIngestService() *services.IngestService {
	return m.ingest
}
