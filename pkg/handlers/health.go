package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"go-killtracker/pkg/database"
	"go-killtracker/pkg/version"
)

// HealthResponse is the payload served on /health.
type HealthResponse struct {
	Status    string `json:"status"`
	MongoDB   string `json:"mongodb"`
	Redis     string `json:"redis"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// HealthHandler reports liveness plus the state of both datastores. The
// pipeline cannot do useful work without either, so a failing dependency
// turns the response into a 503.
func HealthHandler(mongodb *database.MongoDB, redis *database.Redis) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		build := version.Get()
		response := HealthResponse{
			Status:    "healthy",
			MongoDB:   "ok",
			Redis:     "ok",
			Version:   build.Version,
			GitCommit: build.GitCommit,
			BuildDate: build.BuildDate,
			GoVersion: build.GoVersion,
			Platform:  build.Platform,
		}

		if err := mongodb.HealthCheck(r.Context()); err != nil {
			response.MongoDB = "unreachable"
		}
		if err := redis.HealthCheck(r.Context()); err != nil {
			response.Redis = "unreachable"
		}

		code := http.StatusOK
		if response.MongoDB != "ok" || response.Redis != "ok" {
			response.Status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			slog.Error("Failed to encode health response", "error", err)
		}
	}
}
