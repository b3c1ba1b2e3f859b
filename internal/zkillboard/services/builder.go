package services

import (
	"errors"
	"fmt"

	killmailModels "go-killtracker/internal/killmails/models"
	"go-killtracker/internal/zkillboard/dto"
	"go-killtracker/pkg/evegateway/killmails"
)

// ErrMalformedUpstream marks packages that cannot become a well-formed
// killmail. Such packages are discarded, never retried.
var ErrMalformedUpstream = errors.New("malformed upstream package")

// BuildKillmail maps one upstream package onto the canonical killmail.
// zKillboard's camelCase metadata keys become the canonical snake_case
// ones, and the victim's position is promoted to the killmail itself.
func BuildKillmail(pkg *dto.RedisQPackage) (*killmailModels.Killmail, error) {
	if pkg == nil || pkg.Killmail == nil {
		return nil, fmt.Errorf("%w: package has no killmail body", ErrMalformedUpstream)
	}
	wire := pkg.Killmail
	if len(wire.Attackers) == 0 {
		return nil, fmt.Errorf("%w: killmail %d has no attackers", ErrMalformedUpstream, pkg.KillID)
	}

	killmail := &killmailModels.Killmail{
		KillmailID:   wire.KillmailID,
		KillmailTime: wire.KillmailTime,
		MoonID:       wire.MoonID,
		WarID:        wire.WarID,
		Victim: killmailModels.Victim{
			CharacterID:   wire.Victim.CharacterID,
			CorporationID: wire.Victim.CorporationID,
			AllianceID:    wire.Victim.AllianceID,
			FactionID:     wire.Victim.FactionID,
			DamageTaken:   wire.Victim.DamageTaken,
			Items:         convertItems(wire.Victim.Items),
		},
		ZKB: killmailModels.ZKB{
			LocationID:     pkg.ZKB.LocationID,
			Hash:           pkg.ZKB.Hash,
			FittedValue:    pkg.ZKB.FittedValue,
			DroppedValue:   pkg.ZKB.DroppedValue,
			DestroyedValue: pkg.ZKB.DestroyedValue,
			TotalValue:     pkg.ZKB.TotalValue,
			Points:         pkg.ZKB.Points,
			IsNPC:          pkg.ZKB.NPC,
			IsSolo:         pkg.ZKB.Solo,
			IsAwox:         pkg.ZKB.Awox,
		},
	}

	if killmail.KillmailID == 0 {
		killmail.KillmailID = pkg.KillID
	}
	if killmail.KillmailID == 0 {
		return nil, fmt.Errorf("%w: package has no killmail id", ErrMalformedUpstream)
	}

	if wire.SolarSystemID != 0 {
		systemID := wire.SolarSystemID
		killmail.SolarSystemID = &systemID
	}
	if wire.Victim.ShipTypeID != 0 {
		shipTypeID := wire.Victim.ShipTypeID
		killmail.Victim.ShipTypeID = &shipTypeID
	}
	if wire.Victim.Position != nil {
		killmail.Position = &killmailModels.Position{
			X: wire.Victim.Position.X,
			Y: wire.Victim.Position.Y,
			Z: wire.Victim.Position.Z,
		}
	}

	killmail.Attackers = make([]killmailModels.Attacker, len(wire.Attackers))
	for i, attacker := range wire.Attackers {
		killmail.Attackers[i] = killmailModels.Attacker{
			CharacterID:    attacker.CharacterID,
			CorporationID:  attacker.CorporationID,
			AllianceID:     attacker.AllianceID,
			FactionID:      attacker.FactionID,
			ShipTypeID:     attacker.ShipTypeID,
			WeaponTypeID:   attacker.WeaponTypeID,
			DamageDone:     attacker.DamageDone,
			IsFinalBlow:    attacker.FinalBlow,
			SecurityStatus: attacker.SecurityStatus,
		}
	}

	return killmail, nil
}

func convertItems(items []killmails.Item) []killmailModels.Item {
	if len(items) == 0 {
		return nil
	}
	converted := make([]killmailModels.Item, len(items))
	for i, item := range items {
		converted[i] = killmailModels.Item{
			ItemTypeID:        item.ItemTypeID,
			Flag:              item.Flag,
			Singleton:         item.Singleton,
			QuantityDestroyed: item.QuantityDestroyed,
			QuantityDropped:   item.QuantityDropped,
			Items:             convertItems(item.Items),
		}
	}
	return converted
}
