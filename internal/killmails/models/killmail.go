package models

import (
	"encoding/json"
	"sort"
	"time"
)

// FromJSON parses the canonical form produced by ToJSON.
func FromJSON(data []byte) (*Killmail, error) {
	var killmail Killmail
	if err := json.Unmarshal(data, &killmail); err != nil {
		return nil, err
	}
	return &killmail, nil
}

// ToJSON renders the canonical form exchanged between pipeline stages.
// Timestamps are RFC 3339 with explicit offset, so the output parses back
// into a structurally equal killmail.
func (k *Killmail) ToJSON() ([]byte, error) {
	return json.Marshal(k)
}

// Age reports how long ago the killmail occurred relative to now.
func (k *Killmail) Age(now time.Time) time.Duration {
	return now.Sub(k.KillmailTime)
}

// FinalBlowAttacker returns the attacker credited with the killing shot,
// or nil when upstream marked none.
func (k *Killmail) FinalBlowAttacker() *Attacker {
	for i := range k.Attackers {
		if k.Attackers[i].IsFinalBlow {
			return &k.Attackers[i]
		}
	}
	return nil
}

// EntityIDs returns the deduplicated, sorted set of every character,
// corporation, alliance, faction, ship type, weapon type and solar system
// ID the killmail references. Used to bulk-warm the entity name cache
// before formatting.
func (k *Killmail) EntityIDs() []int64 {
	seen := make(map[int64]struct{})

	add := func(id int64) {
		if id != 0 {
			seen[id] = struct{}{}
		}
	}
	addPtr := func(id *int64) {
		if id != nil {
			add(*id)
		}
	}
	addIntPtr := func(id *int) {
		if id != nil {
			add(int64(*id))
		}
	}

	addIntPtr(k.SolarSystemID)
	addPtr(k.Victim.CharacterID)
	addPtr(k.Victim.CorporationID)
	addPtr(k.Victim.AllianceID)
	addPtr(k.Victim.FactionID)
	addIntPtr(k.Victim.ShipTypeID)

	for i := range k.Attackers {
		attacker := &k.Attackers[i]
		addPtr(attacker.CharacterID)
		addPtr(attacker.CorporationID)
		addPtr(attacker.AllianceID)
		addPtr(attacker.FactionID)
		addIntPtr(attacker.ShipTypeID)
		addIntPtr(attacker.WeaponTypeID)
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AttackerDistinctAllianceIDs returns each attacker alliance once, in
// first-seen order.
func (k *Killmail) AttackerDistinctAllianceIDs() []int64 {
	return distinctInt64(k.Attackers, func(a *Attacker) *int64 { return a.AllianceID })
}

// AttackerDistinctCorporationIDs returns each attacker corporation once,
// in first-seen order.
func (k *Killmail) AttackerDistinctCorporationIDs() []int64 {
	return distinctInt64(k.Attackers, func(a *Attacker) *int64 { return a.CorporationID })
}

// AttackerCharacterIDs returns each attacker character once, in
// first-seen order.
func (k *Killmail) AttackerCharacterIDs() []int64 {
	return distinctInt64(k.Attackers, func(a *Attacker) *int64 { return a.CharacterID })
}

// AttackerShipTypeIDs returns each attacker ship type once, in first-seen
// order.
func (k *Killmail) AttackerShipTypeIDs() []int {
	seen := make(map[int]struct{})
	var ids []int
	for i := range k.Attackers {
		shipTypeID := k.Attackers[i].ShipTypeID
		if shipTypeID == nil {
			continue
		}
		if _, ok := seen[*shipTypeID]; ok {
			continue
		}
		seen[*shipTypeID] = struct{}{}
		ids = append(ids, *shipTypeID)
	}
	return ids
}

func distinctInt64(attackers []Attacker, field func(*Attacker) *int64) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for i := range attackers {
		id := field(&attackers[i])
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	return ids
}
