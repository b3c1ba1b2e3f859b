package webhooks

import (
	"context"

	"go-killtracker/internal/webhooks/routes"
	"go-killtracker/internal/webhooks/services"
	"go-killtracker/pkg/database"
	"go-killtracker/pkg/module"
	"go-killtracker/pkg/resolve"

	"github.com/danielgtaylor/huma/v2"
)

// Module represents the webhook management and delivery module
type Module struct {
	*module.BaseModule
	service    *services.Service
	repository *services.Repository
}

// New creates a new webhooks module instance
func New(mongodb *database.MongoDB, redis *database.Redis, entities resolve.EntityResolver, universe resolve.UniverseResolver, groups resolve.GroupRoleLookup) *Module {
	repository := services.NewRepository(mongodb)
	queue := services.NewQueueService(redis)
	formatter := services.NewFormatterService(entities, universe, groups)
	sender := services.NewSenderService(repository, queue, formatter, redis)
	service := services.NewService(repository, queue, formatter, sender)

	return &Module{
		BaseModule: module.NewBaseModule("webhooks"),
		service:    service,
		repository: repository,
	}
}

// RegisterUnifiedRoutes registers all webhook routes with the unified API gateway
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterWebhookRoutes(api, basePath, m.service)
}

// Initialize performs module initialization tasks
func (m *Module) Initialize(ctx context.Context) error {
	return m.repository.CreateIndexes(ctx)
}

// GetService returns the service instance for this module
func (m *Module) GetService() *services.Service {
	return m.service
}
