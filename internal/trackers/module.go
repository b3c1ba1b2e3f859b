package trackers

import (
	"context"

	"go-killtracker/internal/trackers/routes"
	"go-killtracker/internal/trackers/services"
	"go-killtracker/pkg/database"
	"go-killtracker/pkg/module"
	"go-killtracker/pkg/resolve"

	"github.com/danielgtaylor/huma/v2"
)

// Module represents the tracker management and evaluation module
type Module struct {
	*module.BaseModule
	service    *services.Service
	repository *services.Repository
}

// New creates a new trackers module instance
func New(mongodb *database.MongoDB, universe resolve.UniverseResolver, states resolve.UserStateLookup, webhooks services.WebhookDirectory) *Module {
	repository := services.NewRepository(mongodb)
	evaluator := services.NewEvaluator(universe, states)
	service := services.NewService(repository, evaluator, webhooks)

	return &Module{
		BaseModule: module.NewBaseModule("trackers"),
		service:    service,
		repository: repository,
	}
}

// RegisterUnifiedRoutes registers all tracker routes with the unified API gateway
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterTrackerRoutes(api, basePath, m.service)
}

// Initialize performs module initialization tasks
func (m *Module) Initialize(ctx context.Context) error {
	return m.repository.CreateIndexes(ctx)
}

// GetService returns the service instance for this module
func (m *Module) GetService() *services.Service {
	return m.service
}
