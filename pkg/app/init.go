package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sync"

	"go-killtracker/pkg/config"
	"go-killtracker/pkg/database"
	"go-killtracker/pkg/logging"
	"go-killtracker/pkg/sde"

	"github.com/joho/godotenv"
)

// AppContext holds the shared dependencies both binaries are built on.
type AppContext struct {
	MongoDB          *database.MongoDB
	Redis            *database.Redis
	SDEService       sde.UniverseDataService
	TelemetryManager *logging.TelemetryManager
	ServiceName      string
	closers          []func(context.Context) error
	closeOnce        sync.Once
}

// onShutdown registers a teardown step. Steps run in registration order so
// telemetry, registered last, keeps exporting while the stores close.
func (a *AppContext) onShutdown(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// InitializeApp connects the shared dependencies. Mongo and Redis are hard
// requirements: the queues, locks and configuration store all live in them,
// so a pipeline process without either cannot do useful work. Telemetry and
// static universe data are best effort.
func InitializeApp(serviceName string) (*AppContext, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	ctx := context.Background()
	appCtx := &AppContext{ServiceName: serviceName}

	appCtx.TelemetryManager = logging.NewTelemetryManager()
	if err := appCtx.TelemetryManager.Initialize(ctx); err != nil {
		// Keep running without telemetry, the pipeline does not depend on it
		log.Printf("Warning: Failed to initialize telemetry: %v", err)
	}

	mongodb, err := database.NewMongoDB(ctx, "killtracker")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	slog.Info("Connected to MongoDB")
	appCtx.MongoDB = mongodb
	appCtx.onShutdown(mongodb.Close)

	redis, err := database.NewRedis(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	slog.Info("Connected to Redis")
	appCtx.Redis = redis
	appCtx.onShutdown(func(context.Context) error { return redis.Close() })

	dataDir := config.GetEnv("SDE_DATA_DIR", "data/sde")
	appCtx.SDEService = sde.NewService(dataDir)
	slog.Info("Universe data service initialized", "data_dir", dataDir)

	appCtx.onShutdown(appCtx.TelemetryManager.Shutdown)

	return appCtx, nil
}

// Shutdown tears down everything InitializeApp set up. Errors are logged
// rather than returned so one failing closer cannot block the rest, and
// repeat calls are no-ops.
func (a *AppContext) Shutdown(ctx context.Context) error {
	a.closeOnce.Do(func() {
		slog.Info("Shutting down application", "service", a.ServiceName)

		for _, closeFn := range a.closers {
			if err := closeFn(ctx); err != nil {
				slog.Error("Error during shutdown", "error", err)
			}
		}

		slog.Info("Application shutdown completed", "service", a.ServiceName)
	})
	return nil
}

// GetPort returns the listen port from PORT or the given default.
func GetPort(defaultPort string) string {
	return config.GetEnv("PORT", defaultPort)
}
