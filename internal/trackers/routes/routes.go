package routes

import (
	"context"
	"errors"
	"net/http"

	"go-killtracker/internal/trackers/dto"
	"go-killtracker/internal/trackers/services"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterTrackerRoutes registers all tracker management routes
func RegisterTrackerRoutes(api huma.API, basePath string, service *services.Service) {
	// Module status endpoint (public)
	huma.Register(api, huma.Operation{
		OperationID:   "getTrackersStatus",
		Method:        http.MethodGet,
		Path:          basePath + "/status",
		Summary:       "Get trackers module status",
		Description:   "Returns the health status of the tracker store",
		Tags:          []string{"Module Status"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.StatusOutput, error) {
		if err := service.HealthCheck(ctx); err != nil {
			return &dto.StatusOutput{
				Body: dto.ModuleStatusResponse{
					Module:  "trackers",
					Status:  "unhealthy",
					Message: err.Error(),
				},
			}, nil
		}

		return &dto.StatusOutput{
			Body: dto.ModuleStatusResponse{
				Module: "trackers",
				Status: "healthy",
			},
		}, nil
	})

	// List all trackers
	huma.Register(api, huma.Operation{
		OperationID:   "listTrackers",
		Method:        http.MethodGet,
		Path:          basePath,
		Summary:       "List trackers",
		Description:   "Lists all trackers, enabled and disabled, optionally filtered by target webhook.",
		Tags:          []string{"Trackers"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.ListTrackersInput) (*dto.TrackerListOutput, error) {
		trackers, err := service.ListTrackers(ctx, input.WebhookID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list trackers", err)
		}
		return dto.ConvertTrackersToList(trackers), nil
	})

	// Create a tracker
	huma.Register(api, huma.Operation{
		OperationID:   "createTracker",
		Method:        http.MethodPost,
		Path:          basePath,
		Summary:       "Create tracker",
		Description:   "Creates a tracker after validating its clause configuration.",
		Tags:          []string{"Trackers"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *dto.CreateTrackerInput) (*dto.TrackerOutput, error) {
		tracker, err := service.CreateTracker(ctx, dto.ConvertRequestToModel(&input.Body))
		if err != nil {
			return nil, trackerError("Failed to create tracker", err)
		}
		return dto.ConvertTrackerToResponse(tracker), nil
	})

	// Get tracker statistics
	huma.Register(api, huma.Operation{
		OperationID:   "getTrackerStats",
		Method:        http.MethodGet,
		Path:          basePath + "/stats",
		Summary:       "Get tracker statistics",
		Description:   "Returns counts for the tracker collection.",
		Tags:          []string{"Trackers"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.TrackerStatsOutput, error) {
		stats, err := service.GetStats(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get tracker statistics", err)
		}

		return &dto.TrackerStatsOutput{
			Body: dto.TrackerStatsResponse{
				TotalTrackers:   stats["total_trackers"].(int64),
				EnabledTrackers: stats["enabled_trackers"].(int),
				Collection:      stats["collection"].(string),
			},
		}, nil
	})

	// Get a single tracker
	huma.Register(api, huma.Operation{
		OperationID:   "getTracker",
		Method:        http.MethodGet,
		Path:          basePath + "/{tracker_id}",
		Summary:       "Get tracker by ID",
		Tags:          []string{"Trackers"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.GetTrackerInput) (*dto.TrackerOutput, error) {
		tracker, err := service.GetTracker(ctx, input.TrackerID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to fetch tracker", err)
		}
		if tracker == nil {
			return nil, huma.Error404NotFound("Tracker not found")
		}
		return dto.ConvertTrackerToResponse(tracker), nil
	})

	// Replace a tracker
	huma.Register(api, huma.Operation{
		OperationID:   "updateTracker",
		Method:        http.MethodPut,
		Path:          basePath + "/{tracker_id}",
		Summary:       "Update tracker",
		Description:   "Replaces a tracker's configuration after validation.",
		Tags:          []string{"Trackers"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.UpdateTrackerInput) (*dto.TrackerOutput, error) {
		tracker, err := service.UpdateTracker(ctx, input.TrackerID, dto.ConvertRequestToModel(&input.Body))
		if err != nil {
			return nil, trackerError("Failed to update tracker", err)
		}
		if tracker == nil {
			return nil, huma.Error404NotFound("Tracker not found")
		}
		return dto.ConvertTrackerToResponse(tracker), nil
	})

	// Delete a tracker
	huma.Register(api, huma.Operation{
		OperationID:   "deleteTracker",
		Method:        http.MethodDelete,
		Path:          basePath + "/{tracker_id}",
		Summary:       "Delete tracker",
		Tags:          []string{"Trackers"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *dto.DeleteTrackerInput) (*struct{}, error) {
		deleted, err := service.DeleteTracker(ctx, input.TrackerID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to delete tracker", err)
		}
		if !deleted {
			return nil, huma.Error404NotFound("Tracker not found")
		}
		return nil, nil
	})

	// Enable or disable a tracker
	huma.Register(api, huma.Operation{
		OperationID:   "setTrackerEnabled",
		Method:        http.MethodPost,
		Path:          basePath + "/{tracker_id}/enabled",
		Summary:       "Enable or disable tracker",
		Description:   "Flips a tracker on or off without touching its clauses.",
		Tags:          []string{"Trackers"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.SetTrackerEnabledInput) (*dto.TrackerOutput, error) {
		found, err := service.SetEnabled(ctx, input.TrackerID, input.Body.IsEnabled)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to update tracker", err)
		}
		if !found {
			return nil, huma.Error404NotFound("Tracker not found")
		}

		tracker, err := service.GetTracker(ctx, input.TrackerID)
		if err != nil || tracker == nil {
			return nil, huma.Error500InternalServerError("Failed to fetch tracker", err)
		}
		return dto.ConvertTrackerToResponse(tracker), nil
	})
}

// trackerError maps service errors onto API errors: configuration
// rejections become 422s, everything else is a 500.
func trackerError(message string, err error) error {
	var configErr *services.ConfigError
	if errors.As(err, &configErr) {
		return huma.Error422UnprocessableEntity(configErr.Error())
	}
	return huma.Error500InternalServerError(message, err)
}
