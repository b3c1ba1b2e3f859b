package dto

import (
	"go-killtracker/pkg/evegateway/killmails"
)

// RedisQResponse is the envelope returned by the RedisQ listen endpoint.
// A null package means the long poll timed out without an event.
type RedisQResponse struct {
	Package *RedisQPackage `json:"package"`
}

// RedisQPackage pairs one ESI killmail body with zKillboard's metadata.
type RedisQPackage struct {
	KillID   int64                       `json:"killID"`
	Killmail *killmails.KillmailResponse `json:"killmail"`
	ZKB      ZKBData                     `json:"zkb"`
}

// ZKBData carries zKillboard's appraisal of a kill. The upstream keys are
// camelCase; they are renamed when the package becomes a canonical killmail.
type ZKBData struct {
	LocationID     int64    `json:"locationID"`
	Hash           string   `json:"hash"`
	FittedValue    float64  `json:"fittedValue"`
	DroppedValue   float64  `json:"droppedValue"`
	DestroyedValue float64  `json:"destroyedValue"`
	TotalValue     float64  `json:"totalValue"`
	Points         int      `json:"points"`
	NPC            bool     `json:"npc"`
	Solo           bool     `json:"solo"`
	Awox           bool     `json:"awox"`
	Labels         []string `json:"labels,omitempty"`
	Href           string   `json:"href,omitempty"`
}

// ZKBAPIRecord is one element of the array the zKillboard REST API returns
// for a killmail ID lookup. Only the metadata is present; the killmail body
// has to be fetched from ESI with the hash.
type ZKBAPIRecord struct {
	KillmailID int64   `json:"killmail_id"`
	ZKB        ZKBData `json:"zkb"`
}
