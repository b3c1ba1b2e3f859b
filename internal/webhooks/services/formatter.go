package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	killmailModels "go-killtracker/internal/killmails/models"
	trackerModels "go-killtracker/internal/trackers/models"
	"go-killtracker/internal/webhooks/dto"
	"go-killtracker/pkg/config"
	"go-killtracker/pkg/resolve"
)

const (
	zkbKillBaseURL   = "https://zkillboard.com/kill/"
	zkbEntityBaseURL = "https://zkillboard.com"
	zkbIconURL       = "https://zkillboard.com/img/wreck.png"
	dotlanBaseURL    = "https://evemaps.dotlan.net/system"
	typeIconBaseURL  = "https://images.evetech.net/types"

	defaultUsername = "Killtracker"
)

// FormatterService turns a matched killmail plus its tracker into the
// final Discord payload bytes. Everything past this point (queue, sender)
// only handles opaque bytes, so formatting happens exactly once per match.
type FormatterService struct {
	entities resolve.EntityResolver
	universe resolve.UniverseResolver
	groups   resolve.GroupRoleLookup

	username  string
	avatarURL string
	setAvatar bool
}

// NewFormatterService creates a new formatter service
func NewFormatterService(entities resolve.EntityResolver, universe resolve.UniverseResolver, groups resolve.GroupRoleLookup) *FormatterService {
	return &FormatterService{
		entities:  entities,
		universe:  universe,
		groups:    groups,
		username:  config.GetEnv("WEBHOOK_USERNAME", defaultUsername),
		avatarURL: config.GetEnv("WEBHOOK_AVATAR_URL", zkbIconURL),
		setAvatar: config.GetBoolEnv("WEBHOOK_SET_AVATAR", true),
	}
}

// FormatKillmailMessage renders the payload for one killmail/tracker pair.
// Resolver misses degrade to "?" placeholders; the only error path is
// JSON marshalling.
func (f *FormatterService) FormatKillmailMessage(ctx context.Context, tracker *trackerModels.Tracker, killmail *killmailModels.Killmail) ([]byte, error) {
	// Warm the name cache in one round trip so the per-field lookups
	// below are all hits.
	if err := f.entities.ResolveMissing(ctx, killmail.EntityIDs()); err != nil {
		slog.WarnContext(ctx, "Entity pre-resolution failed, names may degrade",
			"killmail_id", killmail.KillmailID, "error", err)
	}

	victimStr, victimName := f.victimText(ctx, &killmail.Victim)
	finalStr, finalShipName := f.finalBlowText(ctx, killmail.FinalBlowAttacker())

	victimShipName := "?"
	if killmail.Victim.ShipTypeID != nil {
		victimShipName = f.typeName(ctx, *killmail.Victim.ShipTypeID)
	}

	var system *resolve.SolarSystemInfo
	if killmail.SolarSystemID != nil {
		system, _ = f.universe.SolarSystem(ctx, *killmail.SolarSystemID)
	}

	valueMio := int64(killmail.ZKB.TotalValue / 1_000_000)

	var desc strings.Builder
	fmt.Fprintf(&desc, "%s lost their **%s** in %s worth **%d M** ISK.\n",
		victimStr, victimShipName, f.systemLink(system), valueMio)
	fmt.Fprintf(&desc, "Final blow by %s in a **%s**.\n", finalStr, finalShipName)
	fmt.Fprintf(&desc, "Attackers: %d", len(killmail.Attackers))

	info := killmail.TrackerInfo
	if info != nil {
		f.appendDistanceLine(ctx, &desc, tracker, info)
		f.appendMainOrgLine(ctx, &desc, info.MainOrg)
		if info.MainShipGroup != nil {
			fmt.Fprintf(&desc, "\nMain ship group: **%s** (%d)", orDefault(info.MainShipGroup.Name, "?"), info.MainShipGroup.Count)
		}
		f.appendTrackedShipTypes(ctx, &desc, info.MatchingShipTypeIDs)
	}

	kind := "Killmail"
	if info != nil && info.IsFleetKill {
		kind = "Fleetkill"
	}
	systemName := ""
	if system != nil {
		systemName = system.Name
	}
	title := fmt.Sprintf("%s | %s | %s | %s", systemName, f.emptyOnMiss(victimShipName), f.emptyOnMiss(victimName), kind)

	embed := dto.DiscordEmbed{
		Title:       title,
		URL:         fmt.Sprintf("%s%d/", zkbKillBaseURL, killmail.KillmailID),
		Description: desc.String(),
		Timestamp:   killmail.KillmailTime.UTC().Format(time.RFC3339),
		Footer:      &dto.DiscordFooter{Text: "zKillboard", IconURL: zkbIconURL},
	}
	if killmail.Victim.ShipTypeID != nil {
		embed.Thumbnail = &dto.DiscordThumbnail{
			URL: fmt.Sprintf("%s/%d/icon?size=128", typeIconBaseURL, *killmail.Victim.ShipTypeID),
		}
	}
	if tracker.Color != "" && tracker.Color != trackerModels.ColorNone {
		if color, ok := parseHexColor(tracker.Color); ok {
			embed.Color = color
		}
	}

	msg := dto.DiscordMessage{
		Content:  f.contentText(ctx, tracker),
		Username: f.username,
		Embeds:   []dto.DiscordEmbed{embed},
	}
	if f.setAvatar {
		msg.AvatarURL = f.avatarURL
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	return payload, nil
}

// FormatTestMessage renders the plain payload used by webhook send tests
func (f *FormatterService) FormatTestMessage(webhookName string) ([]byte, error) {
	msg := dto.DiscordMessage{
		Content:  fmt.Sprintf("Test message from %s sent to webhook %q.", f.username, webhookName),
		Username: f.username,
	}
	if f.setAvatar {
		msg.AvatarURL = f.avatarURL
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal test payload: %w", err)
	}
	return payload, nil
}

// contentText builds the message content: ping intro, one role mention per
// mapped ping group, then the tracker name prefix.
func (f *FormatterService) contentText(ctx context.Context, tracker *trackerModels.Tracker) string {
	var sb strings.Builder

	switch tracker.PingType {
	case trackerModels.PingTypeEverybody:
		sb.WriteString("@everybody ")
	case trackerModels.PingTypeHere:
		sb.WriteString("@here ")
	}

	for _, groupID := range tracker.PingGroups {
		roleID, ok, err := f.groups.RoleForGroup(ctx, groupID)
		if err != nil {
			slog.WarnContext(ctx, "Group role lookup failed, skipping ping",
				"tracker_id", tracker.ID, "group_id", groupID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "<@&%d> ", roleID)
	}

	if tracker.IsPostingName {
		fmt.Fprintf(&sb, "Tracker **%s**:", tracker.Name)
	}
	return sb.String()
}

func (f *FormatterService) victimText(ctx context.Context, victim *killmailModels.Victim) (victimStr, victimName string) {
	switch {
	case victim.CharacterID != nil:
		victimStr = f.zkbLink(ctx, killmailModels.CategoryCharacter, *victim.CharacterID)
		if victim.CorporationID != nil {
			victimStr = fmt.Sprintf("%s (%s)", victimStr, f.zkbLink(ctx, killmailModels.CategoryCorporation, *victim.CorporationID))
		}
		victimName = f.entities.Name(ctx, *victim.CharacterID)
	case victim.CorporationID != nil:
		victimStr = f.zkbLink(ctx, killmailModels.CategoryCorporation, *victim.CorporationID)
		victimName = f.entities.Name(ctx, *victim.CorporationID)
	case victim.FactionID != nil:
		victimName = f.entities.Name(ctx, *victim.FactionID)
		victimStr = fmt.Sprintf("**%s**", orDefault(victimName, "?"))
	default:
		victimStr = "?"
	}
	return victimStr, victimName
}

func (f *FormatterService) finalBlowText(ctx context.Context, attacker *killmailModels.Attacker) (actor, ship string) {
	actor, ship = "?", "?"
	if attacker == nil {
		return actor, ship
	}
	switch {
	case attacker.CharacterID != nil && attacker.CorporationID != nil:
		actor = fmt.Sprintf("%s (%s)",
			f.zkbLink(ctx, killmailModels.CategoryCharacter, *attacker.CharacterID),
			f.zkbLink(ctx, killmailModels.CategoryCorporation, *attacker.CorporationID))
	case attacker.CorporationID != nil:
		actor = f.zkbLink(ctx, killmailModels.CategoryCorporation, *attacker.CorporationID)
	case attacker.FactionID != nil:
		actor = fmt.Sprintf("**%s**", orDefault(f.entities.Name(ctx, *attacker.FactionID), "?"))
	}
	if attacker.ShipTypeID != nil {
		ship = f.typeName(ctx, *attacker.ShipTypeID)
	}
	return actor, ship
}

func (f *FormatterService) appendDistanceLine(ctx context.Context, desc *strings.Builder, tracker *trackerModels.Tracker, info *killmailModels.TrackerInfo) {
	if tracker.OriginSolarSystemID == nil {
		return
	}
	origin, _ := f.universe.SolarSystem(ctx, *tracker.OriginSolarSystemID)

	distanceStr := "?"
	if info.DistanceLY != nil {
		distanceStr = fmt.Sprintf("%.2f", *info.DistanceLY)
	}
	jumpsStr := "?"
	if info.Jumps != nil {
		jumpsStr = fmt.Sprintf("%d", *info.Jumps)
	}
	fmt.Fprintf(desc, "\nDistance from %s: %s LY | %s jumps", f.systemLink(origin), distanceStr, jumpsStr)
}

func (f *FormatterService) appendMainOrgLine(ctx context.Context, desc *strings.Builder, org *killmailModels.EntityCount) {
	if org == nil {
		return
	}
	fmt.Fprintf(desc, "\nMain organization: %s (%d)", f.zkbLink(ctx, org.Category, org.ID), org.Count)
}

func (f *FormatterService) appendTrackedShipTypes(ctx context.Context, desc *strings.Builder, typeIDs []int) {
	if len(typeIDs) == 0 {
		return
	}
	names := make([]string, 0, len(typeIDs))
	for _, id := range typeIDs {
		names = append(names, f.typeName(ctx, id))
	}
	fmt.Fprintf(desc, "\nTracked ship types: %s", strings.Join(names, ", "))
}

// zkbLink renders "[name](https://zkillboard.com/{category}/{id}/)", or
// "?" when the name cannot be resolved.
func (f *FormatterService) zkbLink(ctx context.Context, category string, id int64) string {
	name := f.entities.Name(ctx, id)
	if name == "" {
		return "?"
	}
	return fmt.Sprintf("[%s](%s/%s/%d/)", name, zkbEntityBaseURL, category, id)
}

func (f *FormatterService) systemLink(system *resolve.SolarSystemInfo) string {
	if system == nil || system.Name == "" {
		return "?"
	}
	return fmt.Sprintf("[%s](%s/%s)", system.Name, dotlanBaseURL, strings.ReplaceAll(system.Name, " ", "_"))
}

// typeName resolves an inventory type name, preferring the static data
// export over the name cache. Returns "?" on a miss.
func (f *FormatterService) typeName(ctx context.Context, typeID int) string {
	if shipType, err := f.universe.ShipType(ctx, typeID); err == nil && shipType != nil && shipType.Name != "" {
		return shipType.Name
	}
	if name := f.entities.Name(ctx, int64(typeID)); name != "" {
		return name
	}
	return "?"
}

// emptyOnMiss converts the "?" placeholder into an empty title piece
func (f *FormatterService) emptyOnMiss(s string) string {
	if s == "?" {
		return ""
	}
	return s
}

// parseHexColor converts "#RRGGBB" into the integer Discord expects
func parseHexColor(s string) (int, bool) {
	var r, g, b int
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return 0, false
	}
	return r<<16 | g<<8 | b, true
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
