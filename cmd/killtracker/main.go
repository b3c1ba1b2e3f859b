package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go-killtracker/internal/killmails"
	"go-killtracker/internal/scheduler"
	"go-killtracker/internal/trackers"
	"go-killtracker/internal/webhooks"
	"go-killtracker/internal/zkillboard"
	"go-killtracker/pkg/app"
	"go-killtracker/pkg/config"
	"go-killtracker/pkg/evegateway"
	"go-killtracker/pkg/handlers"
	"go-killtracker/pkg/module"
	"go-killtracker/pkg/resolve"
	"go-killtracker/pkg/version"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "go.uber.org/automaxprocs"
)

// customLoggerMiddleware wraps the chi request logger, keeping health
// probes out of the logs.
func customLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Probes fire every few seconds and would drown real traffic.
		if strings.HasSuffix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		middleware.Logger(next).ServeHTTP(w, r)
	})
}

func main() {
	versionInfo := version.Get()
	log.Printf("🏷️  Version: %s | Build: %s", version.GetVersionString(), versionInfo.BuildDate)
	log.Printf("🖥️  CPUs: %d | GOMAXPROCS: %d", runtime.NumCPU(), runtime.GOMAXPROCS(0))

	ctx := context.Background()

	appCtx, err := app.InitializeApp("killtracker")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer appCtx.Shutdown(ctx)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Printf("💾 Memory: %s heap | %s total", formatBytes(m.HeapAlloc), formatBytes(m.Sys))
	printMemoryLimits()

	r := chi.NewRouter()

	// Global middleware
	r.Use(customLoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(handlers.TracingMiddleware("killtracker"))

	// Health check endpoint with version info and datastore state
	r.Get("/health", handlers.HealthHandler(appCtx.MongoDB, appCtx.Redis))

	// Shared EVE Online ESI client, cached in Redis so concurrent
	// pipeline tasks share one cache
	esiClient := evegateway.NewClientWithCache(evegateway.NewRedisCacheManager(appCtx.Redis))

	// Shared resolvers on top of static data, ESI and Mongo
	universeService := resolve.NewUniverseService(appCtx.SDEService, esiClient)
	entityService := resolve.NewEntityService(appCtx.Redis, esiClient)
	stateService := resolve.NewStateService(appCtx.MongoDB)

	killmailsModule := killmails.New(appCtx.MongoDB)
	webhooksModule := webhooks.New(appCtx.MongoDB, appCtx.Redis, entityService, universeService, stateService)
	trackersModule := trackers.New(appCtx.MongoDB, universeService, stateService, webhooksModule.GetService())
	zkillboardModule := zkillboard.New(appCtx.MongoDB, appCtx.Redis, esiClient)

	schedulerModule, err := scheduler.New(
		appCtx.MongoDB,
		zkillboardModule.GetIngestService(),
		trackersModule.GetService(),
		webhooksModule.GetService(),
		killmailsModule.GetService(),
	)
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}

	// The sender reschedules itself through the task engine when a
	// webhook is rate limited
	webhooksModule.GetService().SetSendScheduler(schedulerModule.GetService())

	// Create collection indexes before any pipeline work starts
	modules := []module.Module{killmailsModule, webhooksModule, trackersModule, zkillboardModule, schedulerModule}
	if err := stateService.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to create state indexes: %v", err)
	}
	for _, mod := range modules {
		if err := mod.Initialize(ctx); err != nil {
			log.Fatalf("Failed to initialize %s module: %v", mod.Name(), err)
		}
	}

	apiPrefix := config.GetEnv("API_PREFIX", "")

	humaConfig := huma.DefaultConfig("Killtracker API Server", "1.0.0")
	humaConfig.Info.Description = "Killmail tracking pipeline with trackers, webhooks and scheduler"

	var unifiedAPI huma.API
	if apiPrefix == "" {
		unifiedAPI = humachi.New(r, humaConfig)
	} else {
		r.Route(apiPrefix, func(prefixRouter chi.Router) {
			unifiedAPI = humachi.New(prefixRouter, humaConfig)
		})
	}

	killmailsModule.RegisterUnifiedRoutes(unifiedAPI, "/killmails")
	trackersModule.RegisterUnifiedRoutes(unifiedAPI, "/trackers")
	webhooksModule.RegisterUnifiedRoutes(unifiedAPI, "/webhooks")
	zkillboardModule.RegisterUnifiedRoutes(unifiedAPI, "/zkillboard")
	schedulerModule.RegisterUnifiedRoutes(unifiedAPI, "/scheduler")

	for _, mod := range modules {
		go mod.StartBackgroundTasks(ctx)
	}

	// HTTP server setup
	port := app.GetPort("8080")
	host := config.GetEnv("HOST", "0.0.0.0")

	srv := &http.Server{
		Addr:         host + ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddr := host + ":" + port
	if host == "0.0.0.0" {
		log.Printf("🚀 Server: http://localhost:%s%s | OpenAPI: %s/openapi.json", port, apiPrefix, apiPrefix)
	} else {
		log.Printf("🚀 Server: http://%s%s | OpenAPI: %s/openapi.json", serverAddr, apiPrefix, apiPrefix)
	}

	go func() {
		slog.Info("Starting killtracker API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Main server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Received shutdown signal, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Main server forced to shutdown", "error", err)
	}

	for _, mod := range modules {
		mod.Stop()
	}

	// Closes the stores and flushes telemetry.
	appCtx.Shutdown(shutdownCtx)

	slog.Info("Killtracker shutdown completed successfully")
}

// formatBytes renders a byte count with a binary-unit suffix.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// printMemoryLimits logs the container memory limit when one is set.
func printMemoryLimits() {
	// cgroups v2 path first, v1 as fallback for older hosts.
	paths := []string{
		"/sys/fs/cgroup/memory.max",
		"/sys/fs/cgroup/memory/memory.limit_in_bytes",
	}
	for _, path := range paths {
		if limit := readCgroupMemoryLimit(path); limit > 0 {
			log.Printf("📦 Container limit: %s", formatBytes(uint64(limit)))
			return
		}
	}
}

// readCgroupMemoryLimit parses one cgroup memory limit file. Zero means
// no usable limit: the file is missing, reads "max" (v2 unlimited), or
// carries the huge placeholder cgroups v1 reports when no limit is set.
func readCgroupMemoryLimit(path string) int64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	raw := strings.TrimSpace(string(data))
	if raw == "max" {
		return 0
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit > 1<<40 {
		return 0
	}
	return limit
}
