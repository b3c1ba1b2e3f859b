package killmails

import (
	"context"

	"go-killtracker/internal/killmails/routes"
	"go-killtracker/internal/killmails/services"
	"go-killtracker/pkg/database"
	"go-killtracker/pkg/module"

	"github.com/danielgtaylor/huma/v2"
)

// Module represents the killmail archive module
type Module struct {
	*module.BaseModule
	service    *services.Service
	repository *services.Repository
}

// New creates a new killmails module instance
func New(mongodb *database.MongoDB) *Module {
	repository := services.NewRepository(mongodb)
	service := services.NewService(repository)

	return &Module{
		BaseModule: module.NewBaseModule("killmails"),
		service:    service,
		repository: repository,
	}
}

// RegisterUnifiedRoutes registers all killmails routes with the unified API gateway
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterKillmailRoutes(api, basePath, m.service)
}

// Initialize performs module initialization tasks
func (m *Module) Initialize(ctx context.Context) error {
	return m.repository.CreateIndexes(ctx)
}

// GetService returns the service instance for this module
func (m *Module) GetService() *services.Service {
	return m.service
}
