package dto

// TrackerRequest carries the editable tracker configuration for create and
// update. Every clause is optional; omitted clauses pass trivially during
// evaluation.
type TrackerRequest struct {
	Name        string `json:"name" validate:"required" minLength:"1" maxLength:"100" doc:"Tracker name, shown in posted messages when is_posting_name is set"`
	Description string `json:"description,omitempty" maxLength:"500" doc:"Free-form description"`
	IsEnabled   bool   `json:"is_enabled" doc:"Whether the tracker participates in killmail fan-out"`
	WebhookID   string `json:"webhook_id" validate:"required" doc:"Webhook the tracker posts to"`

	OriginSolarSystemID   *int     `json:"origin_solar_system_id,omitempty" doc:"Origin system for jump and distance clauses"`
	RequireMaxJumps       *int     `json:"require_max_jumps,omitempty" minimum:"0" doc:"Maximum jumps from origin (requires origin)"`
	RequireMaxDistance    *float64 `json:"require_max_distance,omitempty" minimum:"0" doc:"Maximum lightyears from origin (requires origin)"`
	ExcludeHighSec        bool     `json:"exclude_high_sec,omitempty" doc:"Drop killmails in highsec"`
	ExcludeLowSec         bool     `json:"exclude_low_sec,omitempty" doc:"Drop killmails in lowsec"`
	ExcludeNullSec        bool     `json:"exclude_null_sec,omitempty" doc:"Drop killmails in nullsec"`
	ExcludeWSpace         bool     `json:"exclude_w_space,omitempty" doc:"Drop killmails in wormhole space"`
	RequireRegions        []int    `json:"require_regions,omitempty" doc:"Solar system must be in one of these regions"`
	RequireConstellations []int    `json:"require_constellations,omitempty" doc:"Solar system must be in one of these constellations"`
	RequireSolarSystems   []int    `json:"require_solar_systems,omitempty" doc:"Solar system must be one of these"`

	RequireAttackerAlliances    []int64 `json:"require_attacker_alliances,omitempty" doc:"At least one attacker must be in one of these alliances"`
	ExcludeAttackerAlliances    []int64 `json:"exclude_attacker_alliances,omitempty" doc:"Drop when any attacker is in one of these alliances"`
	RequireAttackerCorporations []int64 `json:"require_attacker_corporations,omitempty" doc:"At least one attacker must be in one of these corporations"`
	ExcludeAttackerCorporations []int64 `json:"exclude_attacker_corporations,omitempty" doc:"Drop when any attacker is in one of these corporations"`
	RequireVictimAlliances      []int64 `json:"require_victim_alliances,omitempty" doc:"Victim must be in one of these alliances"`
	ExcludeVictimAlliances      []int64 `json:"exclude_victim_alliances,omitempty" doc:"Drop when the victim is in one of these alliances"`
	RequireVictimCorporations   []int64 `json:"require_victim_corporations,omitempty" doc:"Victim must be in one of these corporations"`
	ExcludeVictimCorporations   []int64 `json:"exclude_victim_corporations,omitempty" doc:"Drop when the victim is in one of these corporations"`

	RequireAttackerStates []string `json:"require_attacker_states,omitempty" doc:"At least one attacker character must have one of these auth states"`
	ExcludeAttackerStates []string `json:"exclude_attacker_states,omitempty" doc:"Drop when any attacker character has one of these auth states"`
	RequireVictimStates   []string `json:"require_victim_states,omitempty" doc:"Victim character must have one of these auth states"`

	RequireAttackersShipGroups []int `json:"require_attackers_ship_groups,omitempty" doc:"At least one attacker ship must belong to one of these groups"`
	RequireAttackersShipTypes  []int `json:"require_attackers_ship_types,omitempty" doc:"At least one attacker ship must be one of these types"`
	RequireVictimShipGroups    []int `json:"require_victim_ship_groups,omitempty" doc:"Victim ship must belong to one of these groups"`
	RequireVictimShipTypes     []int `json:"require_victim_ship_types,omitempty" doc:"Victim ship must be one of these types"`

	RequireMinAttackers *int `json:"require_min_attackers,omitempty" minimum:"1" doc:"Minimum attacker count"`
	RequireMaxAttackers *int `json:"require_max_attackers,omitempty" minimum:"1" doc:"Maximum attacker count"`

	RequireMinValue *float64 `json:"require_min_value,omitempty" minimum:"0" doc:"Minimum loss value in millions of ISK"`

	ExcludeNPCKills bool `json:"exclude_npc_kills,omitempty" doc:"Drop killmails where all attackers are NPCs"`
	RequireNPCKills bool `json:"require_npc_kills,omitempty" doc:"Only match killmails where all attackers are NPCs"`

	RequireAttackerOrganizationsFinalBlow bool `json:"require_attacker_organizations_final_blow,omitempty" doc:"Final blow must come from a required attacker organization"`

	PingType       string  `json:"ping_type,omitempty" enum:"NONE,HERE,EVERYBODY" doc:"Channel-wide mention on matching killmails"`
	PingGroups     []int64 `json:"ping_groups,omitempty" doc:"Chat groups whose mapped roles get pinged"`
	IsPostingName  bool    `json:"is_posting_name,omitempty" doc:"Prefix messages with the tracker name"`
	Color          string  `json:"color,omitempty" doc:"Embed color as #RRGGBB, #000000 means none"`
	IdentifyFleets bool    `json:"identify_fleets,omitempty" doc:"Mark killmails above the fleet threshold as fleet kills"`
}

// ListTrackersInput represents the input for listing trackers
type ListTrackersInput struct {
	WebhookID string `query:"webhook_id" validate:"omitempty" doc:"Only trackers posting to this webhook (optional)"`
}

// CreateTrackerInput represents the input for creating a tracker
type CreateTrackerInput struct {
	Body TrackerRequest
}

// GetTrackerInput represents the input for fetching a single tracker
type GetTrackerInput struct {
	TrackerID string `path:"tracker_id" validate:"required" doc:"Tracker ID"`
}

// UpdateTrackerInput represents the input for replacing a tracker
type UpdateTrackerInput struct {
	TrackerID string `path:"tracker_id" validate:"required" doc:"Tracker ID"`
	Body      TrackerRequest
}

// DeleteTrackerInput represents the input for deleting a tracker
type DeleteTrackerInput struct {
	TrackerID string `path:"tracker_id" validate:"required" doc:"Tracker ID"`
}

// SetTrackerEnabledInput represents the input for enabling or disabling a
// tracker
type SetTrackerEnabledInput struct {
	TrackerID string `path:"tracker_id" validate:"required" doc:"Tracker ID"`
	Body      struct {
		IsEnabled bool `json:"is_enabled" doc:"Whether the tracker participates in killmail fan-out"`
	}
}
