package dto

import (
	"time"

	"go-killtracker/internal/killmails/models"
)

// KillmailResponse represents a complete archived killmail
type KillmailResponse struct {
	KillmailID   int64     `json:"killmail_id" doc:"Unique killmail identifier"`
	KillmailTime time.Time `json:"killmail_time" doc:"Time when the kill occurred"`

	// Location
	SolarSystemID *int              `json:"solar_system_id,omitempty" doc:"Solar system where the kill occurred"`
	MoonID        *int64            `json:"moon_id,omitempty" doc:"Moon ID if kill occurred at a moon"`
	WarID         *int64            `json:"war_id,omitempty" doc:"War ID if kill was part of a declared war"`
	Position      *PositionResponse `json:"position,omitempty" doc:"3D coordinates of the kill"`

	// Participants
	Victim    VictimResponse     `json:"victim" doc:"Victim information"`
	Attackers []AttackerResponse `json:"attackers" doc:"List of attackers involved"`

	ZKB         ZKBResponse          `json:"zkb" doc:"Aggregator-side metadata (hash, values, flags)"`
	TrackerInfo *TrackerInfoResponse `json:"tracker_info,omitempty" doc:"Annotation from the tracker that matched this killmail"`
}

// VictimResponse describes the destroyed party
type VictimResponse struct {
	CharacterID   *int64 `json:"character_id,omitempty" doc:"Character ID of the victim (if applicable)"`
	CorporationID *int64 `json:"corporation_id,omitempty" doc:"Corporation ID of the victim"`
	AllianceID    *int64 `json:"alliance_id,omitempty" doc:"Alliance ID of the victim (if applicable)"`
	FactionID     *int64 `json:"faction_id,omitempty" doc:"Faction ID of the victim (if applicable)"`
	ShipTypeID    *int   `json:"ship_type_id,omitempty" doc:"Ship type ID that was destroyed"`
	DamageTaken   int64  `json:"damage_taken" doc:"Total damage taken by the victim"`
}

// AttackerResponse is one aggressor on the killmail
type AttackerResponse struct {
	CharacterID    *int64  `json:"character_id,omitempty" doc:"Character ID of the attacker (if applicable)"`
	CorporationID  *int64  `json:"corporation_id,omitempty" doc:"Corporation ID of the attacker"`
	AllianceID     *int64  `json:"alliance_id,omitempty" doc:"Alliance ID of the attacker (if applicable)"`
	FactionID      *int64  `json:"faction_id,omitempty" doc:"Faction ID of the attacker (if applicable)"`
	ShipTypeID     *int    `json:"ship_type_id,omitempty" doc:"Ship type ID used by the attacker"`
	WeaponTypeID   *int    `json:"weapon_type_id,omitempty" doc:"Weapon type ID used for the kill"`
	DamageDone     int64   `json:"damage_done" doc:"Damage dealt by this attacker"`
	IsFinalBlow    bool    `json:"is_final_blow" doc:"Whether this attacker achieved the final blow"`
	SecurityStatus float64 `json:"security_status" doc:"Security status of the attacker"`
}

// PositionResponse is a point in solar-system coordinates
type PositionResponse struct {
	X float64 `json:"x" doc:"X coordinate"`
	Y float64 `json:"y" doc:"Y coordinate"`
	Z float64 `json:"z" doc:"Z coordinate"`
}

// ZKBResponse represents aggregator metadata for a killmail
type ZKBResponse struct {
	LocationID  int64   `json:"location_id" doc:"Celestial nearest to the kill"`
	Hash        string  `json:"hash" doc:"Killmail hash for verification"`
	FittedValue float64 `json:"fitted_value" doc:"ISK value of the fitted modules"`
	TotalValue  float64 `json:"total_value" doc:"Total ISK value of the loss"`
	Points      int     `json:"points" doc:"Aggregator point score"`
	IsNPC       bool    `json:"is_npc" doc:"Whether all attackers were NPCs"`
	IsSolo      bool    `json:"is_solo" doc:"Whether the kill was solo"`
	IsAwox      bool    `json:"is_awox" doc:"Whether the kill was friendly fire"`
}

// TrackerInfoResponse represents the annotation attached by a matching tracker
type TrackerInfoResponse struct {
	TrackerID           string               `json:"tracker_id" doc:"Tracker that matched this killmail"`
	Jumps               *int                 `json:"jumps,omitempty" doc:"Jumps from the tracker origin system"`
	DistanceLY          *float64             `json:"distance,omitempty" doc:"Lightyear distance from the tracker origin system"`
	MainOrg             *EntityCountResponse `json:"main_org,omitempty" doc:"Majority attacker organization"`
	MainShipGroup       *EntityCountResponse `json:"main_ship_group,omitempty" doc:"Majority attacker ship group"`
	MatchingShipTypeIDs []int                `json:"matching_ship_type_ids,omitempty" doc:"Attacker ship types that satisfied the tracker's ship constraints"`
	IsFleetKill         bool                 `json:"is_fleet_kill" doc:"Whether the attacker count crossed the fleet threshold"`
}

// EntityCountResponse pairs an entity with an attacker count
type EntityCountResponse struct {
	ID       int64  `json:"id" doc:"Entity ID"`
	Category string `json:"category" doc:"Entity category (alliance, corporation, inventory_group)"`
	Name     string `json:"name,omitempty" doc:"Resolved entity name"`
	Count    int    `json:"count" doc:"Number of attackers accounted for"`
}

// KillmailRefResponse represents a summary of an archived killmail
type KillmailRefResponse struct {
	KillmailID   int64     `json:"killmail_id" doc:"Unique killmail identifier"`
	KillmailTime time.Time `json:"killmail_time" doc:"Time when the kill occurred"`
	Hash         string    `json:"hash" doc:"Killmail hash for verification"`
	TotalValue   float64   `json:"total_value" doc:"Total ISK value of the loss"`
}

// KillmailListResponse represents a list of archived killmail summaries
type KillmailListResponse struct {
	Killmails []KillmailRefResponse `json:"killmails" doc:"List of killmail summaries"`
	Count     int                   `json:"count" doc:"Number of killmails returned"`
}

// KillmailStatsResponse represents statistics about the killmail archive
type KillmailStatsResponse struct {
	TotalKillmails int64  `json:"total_killmails" doc:"Total number of killmails archived"`
	Collection     string `json:"collection" doc:"Database collection name"`
	StoringEnabled bool   `json:"storing_enabled" doc:"Whether matched killmails are being archived"`
	RetentionDays  int    `json:"retention_days" doc:"Retention window in days (0 disables purging)"`
}

// StatusOutput represents the module status response (Huma v2 wrapper)
type StatusOutput struct {
	Body ModuleStatusResponse
}

// ModuleStatusResponse is the health payload of the killmails module
type ModuleStatusResponse struct {
	Module  string `json:"module" doc:"Module name"`
	Status  string `json:"status" doc:"Module status (healthy/unhealthy)"`
	Message string `json:"message,omitempty" doc:"Additional status message"`
}

// KillmailOutput wraps KillmailResponse for Huma v2
type KillmailOutput struct {
	Body KillmailResponse
}

// KillmailListOutput wraps KillmailListResponse for Huma v2
type KillmailListOutput struct {
	Body KillmailListResponse
}

// KillmailStatsOutput wraps KillmailStatsResponse for Huma v2
type KillmailStatsOutput struct {
	Body KillmailStatsResponse
}

// ConvertKillmailToResponse maps a stored killmail onto the wire DTO
func ConvertKillmailToResponse(killmail *models.Killmail) *KillmailOutput {
	if killmail == nil {
		return nil
	}

	response := KillmailResponse{
		KillmailID:    killmail.KillmailID,
		KillmailTime:  killmail.KillmailTime,
		SolarSystemID: killmail.SolarSystemID,
		MoonID:        killmail.MoonID,
		WarID:         killmail.WarID,
		Victim:        convertVictim(killmail.Victim),
		Attackers:     convertAttackers(killmail.Attackers),
		ZKB: ZKBResponse{
			LocationID:  killmail.ZKB.LocationID,
			Hash:        killmail.ZKB.Hash,
			FittedValue: killmail.ZKB.FittedValue,
			TotalValue:  killmail.ZKB.TotalValue,
			Points:      killmail.ZKB.Points,
			IsNPC:       killmail.ZKB.IsNPC,
			IsSolo:      killmail.ZKB.IsSolo,
			IsAwox:      killmail.ZKB.IsAwox,
		},
	}

	if killmail.Position != nil {
		response.Position = &PositionResponse{
			X: killmail.Position.X,
			Y: killmail.Position.Y,
			Z: killmail.Position.Z,
		}
	}

	if killmail.TrackerInfo != nil {
		response.TrackerInfo = convertTrackerInfo(killmail.TrackerInfo)
	}

	return &KillmailOutput{Body: response}
}

func convertVictim(victim models.Victim) VictimResponse {
	return VictimResponse{
		CharacterID:   victim.CharacterID,
		CorporationID: victim.CorporationID,
		AllianceID:    victim.AllianceID,
		FactionID:     victim.FactionID,
		ShipTypeID:    victim.ShipTypeID,
		DamageTaken:   victim.DamageTaken,
	}
}

func convertAttackers(attackers []models.Attacker) []AttackerResponse {
	if attackers == nil {
		return nil
	}

	responses := make([]AttackerResponse, len(attackers))
	for i, attacker := range attackers {
		responses[i] = AttackerResponse{
			CharacterID:    attacker.CharacterID,
			CorporationID:  attacker.CorporationID,
			AllianceID:     attacker.AllianceID,
			FactionID:      attacker.FactionID,
			ShipTypeID:     attacker.ShipTypeID,
			WeaponTypeID:   attacker.WeaponTypeID,
			DamageDone:     attacker.DamageDone,
			IsFinalBlow:    attacker.IsFinalBlow,
			SecurityStatus: attacker.SecurityStatus,
		}
	}

	return responses
}

func convertTrackerInfo(info *models.TrackerInfo) *TrackerInfoResponse {
	response := &TrackerInfoResponse{
		TrackerID:           info.TrackerID,
		Jumps:               info.Jumps,
		DistanceLY:          info.DistanceLY,
		MatchingShipTypeIDs: info.MatchingShipTypeIDs,
		IsFleetKill:         info.IsFleetKill,
	}
	if info.MainOrg != nil {
		response.MainOrg = convertEntityCount(info.MainOrg)
	}
	if info.MainShipGroup != nil {
		response.MainShipGroup = convertEntityCount(info.MainShipGroup)
	}
	return response
}

func convertEntityCount(entity *models.EntityCount) *EntityCountResponse {
	return &EntityCountResponse{
		ID:       entity.ID,
		Category: entity.Category,
		Name:     entity.Name,
		Count:    entity.Count,
	}
}

// ConvertKillmailsToList assembles the paged list payload
func ConvertKillmailsToList(killmails []models.Killmail) *KillmailListOutput {
	refs := make([]KillmailRefResponse, len(killmails))
	for i, km := range killmails {
		refs[i] = KillmailRefResponse{
			KillmailID:   km.KillmailID,
			KillmailTime: km.KillmailTime,
			Hash:         km.ZKB.Hash,
			TotalValue:   km.ZKB.TotalValue,
		}
	}

	return &KillmailListOutput{
		Body: KillmailListResponse{
			Killmails: refs,
			Count:     len(refs),
		},
	}
}
