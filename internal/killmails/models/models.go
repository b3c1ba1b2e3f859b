package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const KillmailsCollection = "killmails"

// Entity categories used by TrackerInfo annotations and name resolution.
const (
	CategoryAlliance       = "alliance"
	CategoryCorporation    = "corporation"
	CategoryCharacter      = "character"
	CategoryFaction        = "faction"
	CategoryInventoryGroup = "inventory_group"
)

// Killmail is the canonical record of one combat event. Pipeline stages
// exchange killmails as canonical JSON (ToJSON/FromJSON) and re-parse on
// the far side, so no stage ever observes another stage's mutations.
type Killmail struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"-"`

	KillmailID   int64     `bson:"killmail_id" json:"killmail_id"`
	KillmailTime time.Time `bson:"killmail_time" json:"killmail_time"`

	// Location. Solar system may be absent on rare upstream records; the
	// evaluator treats location-derived facts as unknown in that case.
	SolarSystemID *int      `bson:"solar_system_id,omitempty" json:"solar_system_id,omitempty"`
	MoonID        *int64    `bson:"moon_id,omitempty" json:"moon_id,omitempty"`
	WarID         *int64    `bson:"war_id,omitempty" json:"war_id,omitempty"`
	Position      *Position `bson:"position,omitempty" json:"position,omitempty"`

	Victim    Victim     `bson:"victim" json:"victim"`
	Attackers []Attacker `bson:"attackers" json:"attackers"`

	ZKB ZKB `bson:"zkb" json:"zkb"`

	// TrackerInfo is present iff the killmail survived a tracker's
	// evaluation. Absent on raw ingest.
	TrackerInfo *TrackerInfo `bson:"tracker_info,omitempty" json:"tracker_info,omitempty"`
}

type Victim struct {
	CharacterID   *int64 `bson:"character_id,omitempty" json:"character_id,omitempty"`
	CorporationID *int64 `bson:"corporation_id,omitempty" json:"corporation_id,omitempty"`
	AllianceID    *int64 `bson:"alliance_id,omitempty" json:"alliance_id,omitempty"`
	FactionID     *int64 `bson:"faction_id,omitempty" json:"faction_id,omitempty"`
	ShipTypeID    *int   `bson:"ship_type_id,omitempty" json:"ship_type_id,omitempty"`
	DamageTaken   int64  `bson:"damage_taken" json:"damage_taken"`
	Items         []Item `bson:"items,omitempty" json:"items,omitempty"`
}

type Attacker struct {
	CharacterID    *int64  `bson:"character_id,omitempty" json:"character_id,omitempty"`
	CorporationID  *int64  `bson:"corporation_id,omitempty" json:"corporation_id,omitempty"`
	AllianceID     *int64  `bson:"alliance_id,omitempty" json:"alliance_id,omitempty"`
	FactionID      *int64  `bson:"faction_id,omitempty" json:"faction_id,omitempty"`
	ShipTypeID     *int    `bson:"ship_type_id,omitempty" json:"ship_type_id,omitempty"`
	WeaponTypeID   *int    `bson:"weapon_type_id,omitempty" json:"weapon_type_id,omitempty"`
	DamageDone     int64   `bson:"damage_done" json:"damage_done"`
	IsFinalBlow    bool    `bson:"is_final_blow" json:"is_final_blow"`
	SecurityStatus float64 `bson:"security_status" json:"security_status"`
}

type Position struct {
	X float64 `bson:"x" json:"x"`
	Y float64 `bson:"y" json:"y"`
	Z float64 `bson:"z" json:"z"`
}

type Item struct {
	ItemTypeID        int64  `bson:"item_type_id" json:"item_type_id"`
	Flag              int64  `bson:"flag" json:"flag"`
	Singleton         int64  `bson:"singleton" json:"singleton"`
	QuantityDestroyed *int64 `bson:"quantity_destroyed,omitempty" json:"quantity_destroyed,omitempty"`
	QuantityDropped   *int64 `bson:"quantity_dropped,omitempty" json:"quantity_dropped,omitempty"`
	Items             []Item `bson:"items,omitempty" json:"items,omitempty"` // Nested items (cargo containers, etc)
}

// ZKB carries the aggregator-side metadata attached to each killmail.
// Values are ISK; absent values decode as 0 and compare as 0.
type ZKB struct {
	LocationID     int64   `bson:"location_id" json:"location_id"`
	Hash           string  `bson:"hash" json:"hash"`
	FittedValue    float64 `bson:"fitted_value" json:"fitted_value"`
	DroppedValue   float64 `bson:"dropped_value" json:"dropped_value"`
	DestroyedValue float64 `bson:"destroyed_value" json:"destroyed_value"`
	TotalValue     float64 `bson:"total_value" json:"total_value"`
	Points         int     `bson:"points" json:"points"`
	IsNPC          bool    `bson:"is_npc" json:"is_npc"`
	IsSolo         bool    `bson:"is_solo" json:"is_solo"`
	IsAwox         bool    `bson:"is_awox" json:"is_awox"`
}

// TrackerInfo is the annotation a matching tracker attaches before the
// killmail is handed to the formatter.
type TrackerInfo struct {
	TrackerID           string       `bson:"tracker_id" json:"tracker_id"`
	Jumps               *int         `bson:"jumps,omitempty" json:"jumps,omitempty"`
	DistanceLY          *float64     `bson:"distance,omitempty" json:"distance,omitempty"`
	MainOrg             *EntityCount `bson:"main_org,omitempty" json:"main_org,omitempty"`
	MainShipGroup       *EntityCount `bson:"main_ship_group,omitempty" json:"main_ship_group,omitempty"`
	MatchingShipTypeIDs []int        `bson:"matching_ship_type_ids,omitempty" json:"matching_ship_type_ids,omitempty"`
	IsFleetKill         bool         `bson:"is_fleet_kill" json:"is_fleet_kill"`
}

// EntityCount pairs an entity with the number of attackers it accounted
// for. Used for the main organization and main ship group annotations.
type EntityCount struct {
	ID       int64  `bson:"id" json:"id"`
	Category string `bson:"category" json:"category"`
	Name     string `bson:"name,omitempty" json:"name,omitempty"`
	Count    int    `bson:"count" json:"count"`
}
