package routes

import (
	"context"
	"net/http"
	"time"

	"go-killtracker/internal/killmails/dto"
	"go-killtracker/internal/killmails/services"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterKillmailRoutes registers all killmail archive routes
func RegisterKillmailRoutes(api huma.API, basePath string, service *services.Service) {
	// Module status endpoint (public)
	huma.Register(api, huma.Operation{
		OperationID:   "getKillmailsStatus",
		Method:        http.MethodGet,
		Path:          basePath + "/status",
		Summary:       "Get killmails module status",
		Description:   "Returns the health status of the killmail archive",
		Tags:          []string{"Module Status"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.StatusOutput, error) {
		if err := service.HealthCheck(ctx); err != nil {
			return &dto.StatusOutput{
				Body: dto.ModuleStatusResponse{
					Module:  "killmails",
					Status:  "unhealthy",
					Message: err.Error(),
				},
			}, nil
		}

		return &dto.StatusOutput{
			Body: dto.ModuleStatusResponse{
				Module: "killmails",
				Status: "healthy",
			},
		}, nil
	})

	// List recent archived killmails, optionally per solar system
	huma.Register(api, huma.Operation{
		OperationID:   "getRecentKillmails",
		Method:        http.MethodGet,
		Path:          basePath + "/recent",
		Summary:       "Get recent archived killmails",
		Description:   "Lists recently archived killmails, optionally filtered by solar system.",
		Tags:          []string{"Killmails"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.GetRecentKillmailsInput) (*dto.KillmailListOutput, error) {
		since := time.Now().Add(-24 * time.Hour)
		if input.Since != "" {
			parsed, err := time.Parse(time.RFC3339, input.Since)
			if err != nil {
				return nil, huma.Error400BadRequest("Invalid 'since' timestamp format. Use RFC3339 format.", err)
			}
			since = parsed
		}

		killmails, err := service.GetRecent(ctx, input.SystemID, since, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to fetch recent killmails", err)
		}

		return dto.ConvertKillmailsToList(killmails), nil
	})

	// Get killmail archive statistics
	huma.Register(api, huma.Operation{
		OperationID:   "getKillmailStats",
		Method:        http.MethodGet,
		Path:          basePath + "/stats",
		Summary:       "Get killmail archive statistics",
		Description:   "Returns basic statistics about the killmail archive.",
		Tags:          []string{"Killmails"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.KillmailStatsOutput, error) {
		stats, err := service.GetStats(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get killmail statistics", err)
		}

		return &dto.KillmailStatsOutput{
			Body: dto.KillmailStatsResponse{
				TotalKillmails: stats["total_killmails"].(int64),
				Collection:     stats["collection"].(string),
				StoringEnabled: stats["storing_enabled"].(bool),
				RetentionDays:  stats["retention_days"].(int),
			},
		}, nil
	})

	// Get a specific archived killmail
	huma.Register(api, huma.Operation{
		OperationID:   "getKillmail",
		Method:        http.MethodGet,
		Path:          basePath + "/{killmail_id}",
		Summary:       "Get archived killmail by ID",
		Description:   "Retrieves a single archived killmail, including its tracker annotation when present.",
		Tags:          []string{"Killmails"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.GetKillmailInput) (*dto.KillmailOutput, error) {
		killmail, err := service.GetKillmail(ctx, input.KillmailID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to fetch killmail", err)
		}

		if killmail == nil {
			return nil, huma.Error404NotFound("Killmail not found")
		}

		return dto.ConvertKillmailToResponse(killmail), nil
	})
}
