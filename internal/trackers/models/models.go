package models

import (
	"time"
)

const TrackersCollection = "trackers"

// PingType selects who gets mentioned in the message a matching killmail
// produces.
type PingType string

const (
	PingTypeNone      PingType = "NONE"
	PingTypeHere      PingType = "HERE"
	PingTypeEverybody PingType = "EVERYBODY"
)

// ColorNone is the sentinel for "no embed color". Trackers created without
// an explicit color carry it.
const ColorNone = "#000000"

// Tracker is one user-defined filter plus presentation spec. Every clause
// is optional; an absent clause passes trivially. Trackers are read per
// event, so edits take effect on the next killmail without coordination.
type Tracker struct {
	ID          string `bson:"_id" json:"id"`
	Name        string `bson:"name" json:"name" validate:"required,max=100"`
	Description string `bson:"description,omitempty" json:"description,omitempty" validate:"max=500"`
	IsEnabled   bool   `bson:"is_enabled" json:"is_enabled"`
	WebhookID   string `bson:"webhook_id" json:"webhook_id" validate:"required"`

	// Location clauses. Max jumps and max distance need the origin to be
	// set; the service rejects configurations that violate this.
	OriginSolarSystemID   *int     `bson:"origin_solar_system_id,omitempty" json:"origin_solar_system_id,omitempty"`
	RequireMaxJumps       *int     `bson:"require_max_jumps,omitempty" json:"require_max_jumps,omitempty" validate:"omitempty,min=0"`
	RequireMaxDistance    *float64 `bson:"require_max_distance,omitempty" json:"require_max_distance,omitempty" validate:"omitempty,min=0"`
	ExcludeHighSec        bool     `bson:"exclude_high_sec" json:"exclude_high_sec"`
	ExcludeLowSec         bool     `bson:"exclude_low_sec" json:"exclude_low_sec"`
	ExcludeNullSec        bool     `bson:"exclude_null_sec" json:"exclude_null_sec"`
	ExcludeWSpace         bool     `bson:"exclude_w_space" json:"exclude_w_space"`
	RequireRegions        []int    `bson:"require_regions,omitempty" json:"require_regions,omitempty"`
	RequireConstellations []int    `bson:"require_constellations,omitempty" json:"require_constellations,omitempty"`
	RequireSolarSystems   []int    `bson:"require_solar_systems,omitempty" json:"require_solar_systems,omitempty"`

	// Organization clauses.
	RequireAttackerAlliances    []int64 `bson:"require_attacker_alliances,omitempty" json:"require_attacker_alliances,omitempty"`
	ExcludeAttackerAlliances    []int64 `bson:"exclude_attacker_alliances,omitempty" json:"exclude_attacker_alliances,omitempty"`
	RequireAttackerCorporations []int64 `bson:"require_attacker_corporations,omitempty" json:"require_attacker_corporations,omitempty"`
	ExcludeAttackerCorporations []int64 `bson:"exclude_attacker_corporations,omitempty" json:"exclude_attacker_corporations,omitempty"`
	RequireVictimAlliances      []int64 `bson:"require_victim_alliances,omitempty" json:"require_victim_alliances,omitempty"`
	ExcludeVictimAlliances      []int64 `bson:"exclude_victim_alliances,omitempty" json:"exclude_victim_alliances,omitempty"`
	RequireVictimCorporations   []int64 `bson:"require_victim_corporations,omitempty" json:"require_victim_corporations,omitempty"`
	ExcludeVictimCorporations   []int64 `bson:"exclude_victim_corporations,omitempty" json:"exclude_victim_corporations,omitempty"`

	// Auth-state clauses, resolved through the external user-state map.
	RequireAttackerStates []string `bson:"require_attacker_states,omitempty" json:"require_attacker_states,omitempty"`
	ExcludeAttackerStates []string `bson:"exclude_attacker_states,omitempty" json:"exclude_attacker_states,omitempty"`
	RequireVictimStates   []string `bson:"require_victim_states,omitempty" json:"require_victim_states,omitempty"`

	// Ship taxonomy clauses.
	RequireAttackersShipGroups []int `bson:"require_attackers_ship_groups,omitempty" json:"require_attackers_ship_groups,omitempty"`
	RequireAttackersShipTypes  []int `bson:"require_attackers_ship_types,omitempty" json:"require_attackers_ship_types,omitempty"`
	RequireVictimShipGroups    []int `bson:"require_victim_ship_groups,omitempty" json:"require_victim_ship_groups,omitempty"`
	RequireVictimShipTypes     []int `bson:"require_victim_ship_types,omitempty" json:"require_victim_ship_types,omitempty"`

	// Volume clauses.
	RequireMinAttackers *int `bson:"require_min_attackers,omitempty" json:"require_min_attackers,omitempty" validate:"omitempty,min=1"`
	RequireMaxAttackers *int `bson:"require_max_attackers,omitempty" json:"require_max_attackers,omitempty" validate:"omitempty,min=1"`

	// Value clause, in millions of ISK. The evaluator multiplies by 1e6
	// before comparing against the appraised total value.
	RequireMinValue *float64 `bson:"require_min_value,omitempty" json:"require_min_value,omitempty" validate:"omitempty,min=0"`

	// NPC clauses, mutually exclusive.
	ExcludeNPCKills bool `bson:"exclude_npc_kills" json:"exclude_npc_kills"`
	RequireNPCKills bool `bson:"require_npc_kills" json:"require_npc_kills"`

	// When set, the final-blow attacker must belong to one of the required
	// attacker organizations (alliance or corporation, whichever sets are
	// configured).
	RequireAttackerOrganizationsFinalBlow bool `bson:"require_attacker_organizations_final_blow" json:"require_attacker_organizations_final_blow"`

	// Presentation.
	PingType       PingType `bson:"ping_type" json:"ping_type" validate:"omitempty,oneof=NONE HERE EVERYBODY"`
	PingGroups     []int64  `bson:"ping_groups,omitempty" json:"ping_groups,omitempty"`
	IsPostingName  bool     `bson:"is_posting_name" json:"is_posting_name"`
	Color          string   `bson:"color,omitempty" json:"color,omitempty" validate:"omitempty,hex_rgb"`
	IdentifyFleets bool     `bson:"identify_fleets" json:"identify_fleets"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasLocationSets reports whether any region, constellation or solar
// system membership set is configured.
func (t *Tracker) HasLocationSets() bool {
	return len(t.RequireRegions) > 0 || len(t.RequireConstellations) > 0 || len(t.RequireSolarSystems) > 0
}

// NeedsOrigin reports whether a clause that depends on the origin solar
// system is configured.
func (t *Tracker) NeedsOrigin() bool {
	return t.RequireMaxJumps != nil || t.RequireMaxDistance != nil
}
