package dto

import (
	"time"

	"go-killtracker/internal/trackers/models"
)

// TrackerResponse represents a stored tracker configuration
type TrackerResponse struct {
	ID string `json:"id" doc:"Tracker ID"`

	TrackerRequest

	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last modification time"`
}

// TrackerListResponse represents a list of trackers
type TrackerListResponse struct {
	Trackers []TrackerResponse `json:"trackers" doc:"List of trackers"`
	Count    int               `json:"count" doc:"Number of trackers returned"`
}

// TrackerStatsResponse represents statistics about the tracker collection
type TrackerStatsResponse struct {
	TotalTrackers   int64  `json:"total_trackers" doc:"Total number of trackers"`
	EnabledTrackers int    `json:"enabled_trackers" doc:"Number of enabled trackers"`
	Collection      string `json:"collection" doc:"Database collection name"`
}

// StatusOutput represents the module status response (Huma v2 wrapper)
type StatusOutput struct {
	Body ModuleStatusResponse
}

// ModuleStatusResponse represents the health status of the trackers module
type ModuleStatusResponse struct {
	Module  string `json:"module" doc:"Module name"`
	Status  string `json:"status" doc:"Module status (healthy/unhealthy)"`
	Message string `json:"message,omitempty" doc:"Additional status message"`
}

// TrackerOutput wraps TrackerResponse for Huma v2
type TrackerOutput struct {
	Body TrackerResponse
}

// TrackerListOutput wraps TrackerListResponse for Huma v2
type TrackerListOutput struct {
	Body TrackerListResponse
}

// TrackerStatsOutput wraps TrackerStatsResponse for Huma v2
type TrackerStatsOutput struct {
	Body TrackerStatsResponse
}

// ConvertRequestToModel builds the tracker model a request describes. IDs
// and timestamps are owned by the service.
func ConvertRequestToModel(request *TrackerRequest) *models.Tracker {
	return &models.Tracker{
		Name:        request.Name,
		Description: request.Description,
		IsEnabled:   request.IsEnabled,
		WebhookID:   request.WebhookID,

		OriginSolarSystemID:   request.OriginSolarSystemID,
		RequireMaxJumps:       request.RequireMaxJumps,
		RequireMaxDistance:    request.RequireMaxDistance,
		ExcludeHighSec:        request.ExcludeHighSec,
		ExcludeLowSec:         request.ExcludeLowSec,
		ExcludeNullSec:        request.ExcludeNullSec,
		ExcludeWSpace:         request.ExcludeWSpace,
		RequireRegions:        request.RequireRegions,
		RequireConstellations: request.RequireConstellations,
		RequireSolarSystems:   request.RequireSolarSystems,

		RequireAttackerAlliances:    request.RequireAttackerAlliances,
		ExcludeAttackerAlliances:    request.ExcludeAttackerAlliances,
		RequireAttackerCorporations: request.RequireAttackerCorporations,
		ExcludeAttackerCorporations: request.ExcludeAttackerCorporations,
		RequireVictimAlliances:      request.RequireVictimAlliances,
		ExcludeVictimAlliances:      request.ExcludeVictimAlliances,
		RequireVictimCorporations:   request.RequireVictimCorporations,
		ExcludeVictimCorporations:   request.ExcludeVictimCorporations,

		RequireAttackerStates: request.RequireAttackerStates,
		ExcludeAttackerStates: request.ExcludeAttackerStates,
		RequireVictimStates:   request.RequireVictimStates,

		RequireAttackersShipGroups: request.RequireAttackersShipGroups,
		RequireAttackersShipTypes:  request.RequireAttackersShipTypes,
		RequireVictimShipGroups:    request.RequireVictimShipGroups,
		RequireVictimShipTypes:     request.RequireVictimShipTypes,

		RequireMinAttackers: request.RequireMinAttackers,
		RequireMaxAttackers: request.RequireMaxAttackers,
		RequireMinValue:     request.RequireMinValue,

		ExcludeNPCKills: request.ExcludeNPCKills,
		RequireNPCKills: request.RequireNPCKills,

		RequireAttackerOrganizationsFinalBlow: request.RequireAttackerOrganizationsFinalBlow,

		PingType:       models.PingType(request.PingType),
		PingGroups:     request.PingGroups,
		IsPostingName:  request.IsPostingName,
		Color:          request.Color,
		IdentifyFleets: request.IdentifyFleets,
	}
}

// ConvertTrackerToResponse converts a tracker model to its response DTO
func ConvertTrackerToResponse(tracker *models.Tracker) *TrackerOutput {
	if tracker == nil {
		return nil
	}

	return &TrackerOutput{Body: TrackerResponse{
		ID: tracker.ID,
		TrackerRequest: TrackerRequest{
			Name:        tracker.Name,
			Description: tracker.Description,
			IsEnabled:   tracker.IsEnabled,
			WebhookID:   tracker.WebhookID,

			OriginSolarSystemID:   tracker.OriginSolarSystemID,
			RequireMaxJumps:       tracker.RequireMaxJumps,
			RequireMaxDistance:    tracker.RequireMaxDistance,
			ExcludeHighSec:        tracker.ExcludeHighSec,
			ExcludeLowSec:         tracker.ExcludeLowSec,
			ExcludeNullSec:        tracker.ExcludeNullSec,
			ExcludeWSpace:         tracker.ExcludeWSpace,
			RequireRegions:        tracker.RequireRegions,
			RequireConstellations: tracker.RequireConstellations,
			RequireSolarSystems:   tracker.RequireSolarSystems,

			RequireAttackerAlliances:    tracker.RequireAttackerAlliances,
			ExcludeAttackerAlliances:    tracker.ExcludeAttackerAlliances,
			RequireAttackerCorporations: tracker.RequireAttackerCorporations,
			ExcludeAttackerCorporations: tracker.ExcludeAttackerCorporations,
			RequireVictimAlliances:      tracker.RequireVictimAlliances,
			ExcludeVictimAlliances:      tracker.ExcludeVictimAlliances,
			RequireVictimCorporations:   tracker.RequireVictimCorporations,
			ExcludeVictimCorporations:   tracker.ExcludeVictimCorporations,

			RequireAttackerStates: tracker.RequireAttackerStates,
			ExcludeAttackerStates: tracker.ExcludeAttackerStates,
			RequireVictimStates:   tracker.RequireVictimStates,

			RequireAttackersShipGroups: tracker.RequireAttackersShipGroups,
			RequireAttackersShipTypes:  tracker.RequireAttackersShipTypes,
			RequireVictimShipGroups:    tracker.RequireVictimShipGroups,
			RequireVictimShipTypes:     tracker.RequireVictimShipTypes,

			RequireMinAttackers: tracker.RequireMinAttackers,
			RequireMaxAttackers: tracker.RequireMaxAttackers,
			RequireMinValue:     tracker.RequireMinValue,

			ExcludeNPCKills: tracker.ExcludeNPCKills,
			RequireNPCKills: tracker.RequireNPCKills,

			RequireAttackerOrganizationsFinalBlow: tracker.RequireAttackerOrganizationsFinalBlow,

			PingType:       string(tracker.PingType),
			PingGroups:     tracker.PingGroups,
			IsPostingName:  tracker.IsPostingName,
			Color:          tracker.Color,
			IdentifyFleets: tracker.IdentifyFleets,
		},
		CreatedAt: tracker.CreatedAt,
		UpdatedAt: tracker.UpdatedAt,
	}}
}

// ConvertTrackersToList converts trackers to a list response
func ConvertTrackersToList(trackers []models.Tracker) *TrackerListOutput {
	responses := make([]TrackerResponse, len(trackers))
	for i := range trackers {
		responses[i] = ConvertTrackerToResponse(&trackers[i]).Body
	}

	return &TrackerListOutput{
		Body: TrackerListResponse{
			Trackers: responses,
			Count:    len(responses),
		},
	}
}
