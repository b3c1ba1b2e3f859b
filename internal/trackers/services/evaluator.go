package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	killmailModels "go-killtracker/internal/killmails/models"
	"go-killtracker/internal/trackers/models"
	"go-killtracker/pkg/config"
	"go-killtracker/pkg/resolve"
	"go-killtracker/pkg/sde"
)

// Clause names used for drop logging. Tests assert against behaviour, not
// these strings.
const (
	clauseMaxAge             = "max_age"
	clauseSecurityClass      = "security_class"
	clauseAttackerCount      = "attacker_count"
	clauseNPC                = "npc"
	clauseMinValue           = "min_value"
	clauseLocationMembership = "location_membership"
	clauseMaxDistance        = "max_distance"
	clauseMaxJumps           = "max_jumps"
	clauseVictimOrgs         = "victim_organizations"
	clauseAttackerOrgs       = "attacker_organizations"
	clauseVictimShip         = "victim_ship"
	clauseAttackerShips      = "attacker_ships"
	clauseAuthStates         = "auth_states"
)

// EvaluateOptions tweaks a single evaluation. IgnoreMaxAge lets operator
// test flows replay historical killmails through a tracker.
type EvaluateOptions struct {
	IgnoreMaxAge bool
}

// Evaluator applies a tracker's clauses to killmails. All clauses are
// conjunctive, absent clauses pass trivially, and resolver misses fail
// closed for require clauses and open for exclude clauses. Evaluation
// never returns an error: a killmail either survives with tracker info
// attached or is dropped.
type Evaluator struct {
	universe resolve.UniverseResolver
	states   resolve.UserStateLookup

	maxAge         time.Duration
	fleetThreshold int
	now            func() time.Time
}

// NewEvaluator creates an evaluator with limits from the environment
func NewEvaluator(universe resolve.UniverseResolver, states resolve.UserStateLookup) *Evaluator {
	return &Evaluator{
		universe:       universe,
		states:         states,
		maxAge:         config.GetDurationEnv("KILLMAIL_MAX_AGE_FOR_TRACKER", 1, time.Hour),
		fleetThreshold: config.GetIntEnv("FLEET_KILL_THRESHOLD", 10),
		now:            time.Now,
	}
}

// evaluation carries the per-killmail facts the clauses share, so the
// solar system and ship taxonomy are resolved at most once.
type evaluation struct {
	tracker  *models.Tracker
	killmail *killmailModels.Killmail

	system   *resolve.SolarSystemInfo
	jumps    *int
	distance *float64

	matchingShipTypeIDs map[int]struct{}
}

// Evaluate applies the tracker to the killmail. It returns a copy with
// TrackerInfo attached when every clause passes, or nil when any clause
// drops the killmail.
func (e *Evaluator) Evaluate(ctx context.Context, tracker *models.Tracker, killmail *killmailModels.Killmail, opts EvaluateOptions) *killmailModels.Killmail {
	if !opts.IgnoreMaxAge && killmail.Age(e.now()) > e.maxAge {
		e.drop(ctx, tracker, killmail, clauseMaxAge)
		return nil
	}

	ev := &evaluation{
		tracker:             tracker,
		killmail:            killmail,
		matchingShipTypeIDs: make(map[int]struct{}),
	}

	// The solar system is shared by the security, membership and routing
	// clauses. A resolver miss leaves it nil, which each clause treats
	// per its own require/exclude polarity.
	if killmail.SolarSystemID != nil {
		system, err := e.universe.SolarSystem(ctx, *killmail.SolarSystemID)
		if err != nil {
			slog.DebugContext(ctx, "Solar system lookup failed",
				"solar_system_id", *killmail.SolarSystemID, "error", err)
		} else {
			ev.system = system
		}
	}

	clauses := []struct {
		name string
		pass func(context.Context, *evaluation) bool
	}{
		{clauseSecurityClass, e.passesSecurityClass},
		{clauseAttackerCount, e.passesAttackerCount},
		{clauseNPC, e.passesNPC},
		{clauseMinValue, e.passesMinValue},
		{clauseLocationMembership, e.passesLocationMembership},
		{clauseMaxDistance, e.passesMaxDistance},
		{clauseMaxJumps, e.passesMaxJumps},
		{clauseVictimOrgs, e.passesVictimOrganizations},
		{clauseAttackerOrgs, e.passesAttackerOrganizations},
		{clauseVictimShip, e.passesVictimShip},
		{clauseAttackerShips, e.passesAttackerShips},
		{clauseAuthStates, e.passesAuthStates},
	}

	for _, clause := range clauses {
		if !clause.pass(ctx, ev) {
			e.drop(ctx, tracker, killmail, clause.name)
			return nil
		}
	}

	return e.annotate(ctx, ev)
}

func (e *Evaluator) drop(ctx context.Context, tracker *models.Tracker, killmail *killmailModels.Killmail, clause string) {
	slog.DebugContext(ctx, "Killmail dropped by tracker",
		"tracker_id", tracker.ID,
		"tracker_name", tracker.Name,
		"killmail_id", killmail.KillmailID,
		"clause", clause)
}

// passesSecurityClass applies the four security band excludes. Killmails
// without a resolvable solar system pass: an exclude cannot fire on
// missing data.
func (e *Evaluator) passesSecurityClass(ctx context.Context, ev *evaluation) bool {
	t := ev.tracker
	if !t.ExcludeHighSec && !t.ExcludeLowSec && !t.ExcludeNullSec && !t.ExcludeWSpace {
		return true
	}
	if ev.system == nil {
		return true
	}

	switch ev.system.SecurityClass {
	case sde.SecurityHighSec:
		return !t.ExcludeHighSec
	case sde.SecurityLowSec:
		return !t.ExcludeLowSec
	case sde.SecurityNullSec:
		return !t.ExcludeNullSec
	case sde.SecurityWSpace:
		return !t.ExcludeWSpace
	default:
		return true
	}
}

func (e *Evaluator) passesAttackerCount(ctx context.Context, ev *evaluation) bool {
	count := len(ev.killmail.Attackers)
	if ev.tracker.RequireMinAttackers != nil && count < *ev.tracker.RequireMinAttackers {
		return false
	}
	if ev.tracker.RequireMaxAttackers != nil && count > *ev.tracker.RequireMaxAttackers {
		return false
	}
	return true
}

func (e *Evaluator) passesNPC(ctx context.Context, ev *evaluation) bool {
	if ev.tracker.ExcludeNPCKills && ev.killmail.ZKB.IsNPC {
		return false
	}
	if ev.tracker.RequireNPCKills && !ev.killmail.ZKB.IsNPC {
		return false
	}
	return true
}

// passesMinValue compares the appraised total value against the
// configured minimum. The tracker stores the minimum in millions of ISK;
// a missing appraisal compares as zero.
func (e *Evaluator) passesMinValue(ctx context.Context, ev *evaluation) bool {
	if ev.tracker.RequireMinValue == nil {
		return true
	}
	return ev.killmail.ZKB.TotalValue >= *ev.tracker.RequireMinValue*1_000_000
}

// passesLocationMembership requires the killmail's solar system to belong
// to one of the configured regions, constellations or systems. With any
// of the three sets configured, an unresolvable system is a drop.
func (e *Evaluator) passesLocationMembership(ctx context.Context, ev *evaluation) bool {
	t := ev.tracker
	if !t.HasLocationSets() {
		return true
	}
	if ev.system == nil {
		return false
	}

	if len(t.RequireRegions) > 0 && !containsInt(t.RequireRegions, ev.system.RegionID) {
		return false
	}
	if len(t.RequireConstellations) > 0 && !containsInt(t.RequireConstellations, ev.system.ConstellationID) {
		return false
	}
	if len(t.RequireSolarSystems) > 0 && !containsInt(t.RequireSolarSystems, ev.system.ID) {
		return false
	}
	return true
}

func (e *Evaluator) passesMaxDistance(ctx context.Context, ev *evaluation) bool {
	t := ev.tracker
	if t.RequireMaxDistance == nil {
		return true
	}
	// Origin presence is enforced at save time; a killmail without a
	// system cannot satisfy a distance bound.
	if t.OriginSolarSystemID == nil || ev.system == nil {
		return false
	}

	distance, err := e.universe.DistanceLY(ctx, *t.OriginSolarSystemID, ev.system.ID)
	if err != nil || distance == nil {
		return false
	}
	ev.distance = distance
	return *distance <= *t.RequireMaxDistance
}

func (e *Evaluator) passesMaxJumps(ctx context.Context, ev *evaluation) bool {
	t := ev.tracker
	if t.RequireMaxJumps == nil {
		return true
	}
	if t.OriginSolarSystemID == nil || ev.system == nil {
		return false
	}

	jumps, err := e.universe.RouteJumps(ctx, *t.OriginSolarSystemID, ev.system.ID)
	if err != nil || jumps == nil {
		return false
	}
	ev.jumps = jumps
	return *jumps <= *t.RequireMaxJumps
}

// passesVictimOrganizations applies the four victim org clauses. Require
// clauses need the victim's org to be present and listed; exclude clauses
// only fire when the org is present and listed.
func (e *Evaluator) passesVictimOrganizations(ctx context.Context, ev *evaluation) bool {
	t := ev.tracker
	victim := &ev.killmail.Victim

	if len(t.RequireVictimAlliances) > 0 {
		if victim.AllianceID == nil || !containsInt64(t.RequireVictimAlliances, *victim.AllianceID) {
			return false
		}
	}
	if len(t.ExcludeVictimAlliances) > 0 && victim.AllianceID != nil {
		if containsInt64(t.ExcludeVictimAlliances, *victim.AllianceID) {
			return false
		}
	}
	if len(t.RequireVictimCorporations) > 0 {
		if victim.CorporationID == nil || !containsInt64(t.RequireVictimCorporations, *victim.CorporationID) {
			return false
		}
	}
	if len(t.ExcludeVictimCorporations) > 0 && victim.CorporationID != nil {
		if containsInt64(t.ExcludeVictimCorporations, *victim.CorporationID) {
			return false
		}
	}
	return true
}

// passesAttackerOrganizations applies the attacker org clauses. Require
// clauses demand an intersection with the attackers' orgs; excludes drop
// when any attacker's org is listed. With final-blow discipline on, the
// killing shot must come from one of the required organizations, where a
// hit in either the alliance or the corporation set suffices.
func (e *Evaluator) passesAttackerOrganizations(ctx context.Context, ev *evaluation) bool {
	t := ev.tracker
	attackers := ev.killmail.Attackers

	if len(t.ExcludeAttackerAlliances) > 0 {
		for i := range attackers {
			if attackers[i].AllianceID != nil && containsInt64(t.ExcludeAttackerAlliances, *attackers[i].AllianceID) {
				return false
			}
		}
	}
	if len(t.ExcludeAttackerCorporations) > 0 {
		for i := range attackers {
			if attackers[i].CorporationID != nil && containsInt64(t.ExcludeAttackerCorporations, *attackers[i].CorporationID) {
				return false
			}
		}
	}

	if len(t.RequireAttackerAlliances) > 0 {
		if !anyAttackerInt64(attackers, t.RequireAttackerAlliances, func(a *killmailModels.Attacker) *int64 { return a.AllianceID }) {
			return false
		}
	}
	if len(t.RequireAttackerCorporations) > 0 {
		if !anyAttackerInt64(attackers, t.RequireAttackerCorporations, func(a *killmailModels.Attacker) *int64 { return a.CorporationID }) {
			return false
		}
	}

	if t.RequireAttackerOrganizationsFinalBlow && (len(t.RequireAttackerAlliances) > 0 || len(t.RequireAttackerCorporations) > 0) {
		for i := range attackers {
			attacker := &attackers[i]
			if !attacker.IsFinalBlow {
				continue
			}
			if attacker.AllianceID != nil && containsInt64(t.RequireAttackerAlliances, *attacker.AllianceID) {
				return true
			}
			if attacker.CorporationID != nil && containsInt64(t.RequireAttackerCorporations, *attacker.CorporationID) {
				return true
			}
		}
		return false
	}

	return true
}

// passesVictimShip requires the victim's ship to be a listed type or to
// belong to a listed group. The matched type joins the annotation union,
// same as attacker ship matches.
func (e *Evaluator) passesVictimShip(ctx context.Context, ev *evaluation) bool {
	t := ev.tracker
	if len(t.RequireVictimShipGroups) == 0 && len(t.RequireVictimShipTypes) == 0 {
		return true
	}

	shipTypeID := ev.killmail.Victim.ShipTypeID
	if shipTypeID == nil {
		return false
	}

	if len(t.RequireVictimShipTypes) > 0 && !containsInt(t.RequireVictimShipTypes, *shipTypeID) {
		return false
	}
	if len(t.RequireVictimShipGroups) > 0 {
		ship, err := e.universe.ShipType(ctx, *shipTypeID)
		if err != nil || ship == nil {
			return false
		}
		if !containsInt(t.RequireVictimShipGroups, ship.GroupID) {
			return false
		}
	}

	ev.matchingShipTypeIDs[*shipTypeID] = struct{}{}
	return true
}

// passesAttackerShips requires at least one attacker to fly a listed ship
// type or group. Every attacker ship type that satisfies either set is
// recorded for the tracker info annotation.
func (e *Evaluator) passesAttackerShips(ctx context.Context, ev *evaluation) bool {
	t := ev.tracker
	if len(t.RequireAttackersShipGroups) == 0 && len(t.RequireAttackersShipTypes) == 0 {
		return true
	}

	matched := false
	for _, shipTypeID := range ev.killmail.AttackerShipTypeIDs() {
		if len(t.RequireAttackersShipTypes) > 0 && containsInt(t.RequireAttackersShipTypes, shipTypeID) {
			ev.matchingShipTypeIDs[shipTypeID] = struct{}{}
			matched = true
			continue
		}
		if len(t.RequireAttackersShipGroups) > 0 {
			ship, err := e.universe.ShipType(ctx, shipTypeID)
			if err != nil || ship == nil {
				continue
			}
			if containsInt(t.RequireAttackersShipGroups, ship.GroupID) {
				ev.matchingShipTypeIDs[shipTypeID] = struct{}{}
				matched = true
			}
		}
	}
	return matched
}

// passesAuthStates applies the three auth-state clauses via the external
// user-state map. Characters without a mapping never satisfy a require
// clause and never trigger an exclude.
func (e *Evaluator) passesAuthStates(ctx context.Context, ev *evaluation) bool {
	t := ev.tracker
	needAttackers := len(t.RequireAttackerStates) > 0 || len(t.ExcludeAttackerStates) > 0
	needVictim := len(t.RequireVictimStates) > 0
	if !needAttackers && !needVictim {
		return true
	}

	var ids []int64
	if needAttackers {
		ids = ev.killmail.AttackerCharacterIDs()
	}
	if needVictim && ev.killmail.Victim.CharacterID != nil {
		ids = append(ids, *ev.killmail.Victim.CharacterID)
	}

	states, err := e.states.States(ctx, ids)
	if err != nil {
		slog.DebugContext(ctx, "User state lookup failed", "error", err)
		states = nil
	}

	if len(t.ExcludeAttackerStates) > 0 {
		for _, id := range ev.killmail.AttackerCharacterIDs() {
			if state, ok := states[id]; ok && containsString(t.ExcludeAttackerStates, state) {
				return false
			}
		}
	}
	if len(t.RequireAttackerStates) > 0 {
		found := false
		for _, id := range ev.killmail.AttackerCharacterIDs() {
			if state, ok := states[id]; ok && containsString(t.RequireAttackerStates, state) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if needVictim {
		if ev.killmail.Victim.CharacterID == nil {
			return false
		}
		state, ok := states[*ev.killmail.Victim.CharacterID]
		if !ok || !containsString(t.RequireVictimStates, state) {
			return false
		}
	}
	return true
}

// annotate clones the killmail and attaches the derived tracker info.
// The original killmail is never mutated; other trackers evaluate the
// same input.
func (e *Evaluator) annotate(ctx context.Context, ev *evaluation) *killmailModels.Killmail {
	payload, err := ev.killmail.ToJSON()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to clone killmail for annotation",
			"killmail_id", ev.killmail.KillmailID, "error", err)
		return nil
	}
	annotated, err := killmailModels.FromJSON(payload)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to clone killmail for annotation",
			"killmail_id", ev.killmail.KillmailID, "error", err)
		return nil
	}

	info := &killmailModels.TrackerInfo{
		TrackerID:   ev.tracker.ID,
		IsFleetKill: ev.tracker.IdentifyFleets && len(ev.killmail.Attackers) >= e.fleetThreshold,
	}

	// Route facts are only computed for trackers with an origin. Clauses
	// 6 may already have resolved them; fill the gaps for display.
	if ev.tracker.OriginSolarSystemID != nil && ev.system != nil {
		info.Jumps = ev.jumps
		info.DistanceLY = ev.distance
		if info.Jumps == nil {
			if jumps, err := e.universe.RouteJumps(ctx, *ev.tracker.OriginSolarSystemID, ev.system.ID); err == nil {
				info.Jumps = jumps
			}
		}
		if info.DistanceLY == nil {
			if distance, err := e.universe.DistanceLY(ctx, *ev.tracker.OriginSolarSystemID, ev.system.ID); err == nil {
				info.DistanceLY = distance
			}
		}
	}

	if len(ev.matchingShipTypeIDs) > 0 {
		ids := make([]int, 0, len(ev.matchingShipTypeIDs))
		for id := range ev.matchingShipTypeIDs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		info.MatchingShipTypeIDs = ids
	}

	info.MainOrg = e.mainOrganization(ev.killmail)
	info.MainShipGroup = e.mainShipGroup(ctx, ev.killmail)

	annotated.TrackerInfo = info
	return annotated
}

// mainOrganization finds the organization most attackers share. Alliances
// are counted first; the top alliance wins when it covers at least half
// the attackers (rounded up) and no other alliance ties it. When no
// alliance qualifies the same rule runs over corporations. Single-attacker
// killmails have no main organization.
func (e *Evaluator) mainOrganization(killmail *killmailModels.Killmail) *killmailModels.EntityCount {
	attackers := killmail.Attackers
	if len(attackers) < 2 {
		return nil
	}
	threshold := (len(attackers) + 1) / 2

	if winner := majorityInt64(attackers, threshold, func(a *killmailModels.Attacker) *int64 { return a.AllianceID }); winner != nil {
		return &killmailModels.EntityCount{
			ID:       winner.id,
			Category: killmailModels.CategoryAlliance,
			Count:    winner.count,
		}
	}
	if winner := majorityInt64(attackers, threshold, func(a *killmailModels.Attacker) *int64 { return a.CorporationID }); winner != nil {
		return &killmailModels.EntityCount{
			ID:       winner.id,
			Category: killmailModels.CategoryCorporation,
			Count:    winner.count,
		}
	}
	return nil
}

// mainShipGroup applies the same majority rule to the attackers' ship
// groups, with the group name resolved for display.
func (e *Evaluator) mainShipGroup(ctx context.Context, killmail *killmailModels.Killmail) *killmailModels.EntityCount {
	attackers := killmail.Attackers
	if len(attackers) < 2 {
		return nil
	}
	threshold := (len(attackers) + 1) / 2

	counts := make(map[int]int)
	names := make(map[int]string)
	for i := range attackers {
		shipTypeID := attackers[i].ShipTypeID
		if shipTypeID == nil {
			continue
		}
		ship, err := e.universe.ShipType(ctx, *shipTypeID)
		if err != nil || ship == nil {
			continue
		}
		counts[ship.GroupID]++
		names[ship.GroupID] = ship.GroupName
	}

	winner, count, ok := singleMax(counts)
	if !ok || count < threshold {
		return nil
	}
	return &killmailModels.EntityCount{
		ID:       int64(winner),
		Category: killmailModels.CategoryInventoryGroup,
		Name:     names[winner],
		Count:    count,
	}
}

type int64Count struct {
	id    int64
	count int
}

// majorityInt64 counts attacker org IDs and returns the unique top entry
// when it reaches the threshold. Ties and sub-threshold maxima yield nil.
func majorityInt64(attackers []killmailModels.Attacker, threshold int, field func(*killmailModels.Attacker) *int64) *int64Count {
	counts := make(map[int64]int)
	for i := range attackers {
		if id := field(&attackers[i]); id != nil {
			counts[*id]++
		}
	}

	var winner int64
	best, ties := 0, 0
	for id, count := range counts {
		switch {
		case count > best:
			winner, best, ties = id, count, 1
		case count == best:
			ties++
		}
	}
	if best < threshold || ties != 1 {
		return nil
	}
	return &int64Count{id: winner, count: best}
}

func singleMax(counts map[int]int) (int, int, bool) {
	var winner int
	best, ties := 0, 0
	for id, count := range counts {
		switch {
		case count > best:
			winner, best, ties = id, count, 1
		case count == best:
			ties++
		}
	}
	return winner, best, best > 0 && ties == 1
}

func anyAttackerInt64(attackers []killmailModels.Attacker, set []int64, field func(*killmailModels.Attacker) *int64) bool {
	for i := range attackers {
		if id := field(&attackers[i]); id != nil && containsInt64(set, *id) {
			return true
		}
	}
	return false
}

func containsInt(set []int, value int) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

func containsInt64(set []int64, value int64) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

func containsString(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}
