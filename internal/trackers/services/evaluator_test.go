package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	killmailModels "go-killtracker/internal/killmails/models"
	"go-killtracker/internal/trackers/models"
	"go-killtracker/pkg/resolve"
	"go-killtracker/pkg/sde"
)

var frozenNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

// Test universe: one system per security band, an origin seven jumps from
// the highsec system, and a small ship taxonomy.
const (
	systemHigh   = 30002537
	systemLow    = 30002505
	systemNull   = 30004759
	systemWSpace = 31000005
	systemOrigin = 30003067

	shipSvipul = 34562 // Tactical Destroyer (1305)
	shipGnosis = 3756  // Combat Battlecruiser (419)
	shipDrake  = 24698 // Combat Battlecruiser (419)
	shipRattle = 17918 // Battleship (27)
	shipPod    = 670   // Capsule (29)
)

type fakeUniverse struct {
	systems   map[int]*resolve.SolarSystemInfo
	routes    map[[2]int]int
	distances map[[2]int]float64
	ships     map[int]*resolve.ShipTypeInfo
}

func newFakeUniverse() *fakeUniverse {
	return &fakeUniverse{
		systems: map[int]*resolve.SolarSystemInfo{
			systemHigh:   {ID: systemHigh, Name: "Amarr", SecurityClass: sde.SecurityHighSec, ConstellationID: 20000322, RegionID: 10000043},
			systemLow:    {ID: systemLow, Name: "Egghelende", SecurityClass: sde.SecurityLowSec, ConstellationID: 20000301, RegionID: 10000042},
			systemNull:   {ID: systemNull, Name: "1DQ1-A", SecurityClass: sde.SecurityNullSec, ConstellationID: 20000696, RegionID: 10000060},
			systemWSpace: {ID: systemWSpace, Name: "J123456", SecurityClass: sde.SecurityWSpace, ConstellationID: 21000001, RegionID: 11000001},
			systemOrigin: {ID: systemOrigin, Name: "Keberz", SecurityClass: sde.SecurityHighSec, ConstellationID: 20000448, RegionID: 10000038},
		},
		routes: map[[2]int]int{
			{systemOrigin, systemHigh}: 7,
		},
		distances: map[[2]int]float64{
			{systemOrigin, systemHigh}: 5.85,
		},
		ships: map[int]*resolve.ShipTypeInfo{
			shipSvipul: {ID: shipSvipul, Name: "Svipul", GroupID: 1305, GroupName: "Tactical Destroyer"},
			shipGnosis: {ID: shipGnosis, Name: "Gnosis", GroupID: 419, GroupName: "Combat Battlecruiser"},
			shipDrake:  {ID: shipDrake, Name: "Drake", GroupID: 419, GroupName: "Combat Battlecruiser"},
			shipRattle: {ID: shipRattle, Name: "Rattlesnake", GroupID: 27, GroupName: "Battleship"},
			shipPod:    {ID: shipPod, Name: "Capsule", GroupID: 29, GroupName: "Capsule"},
		},
	}
}

func (f *fakeUniverse) SolarSystem(ctx context.Context, id int) (*resolve.SolarSystemInfo, error) {
	if system, ok := f.systems[id]; ok {
		return system, nil
	}
	return nil, errors.New("unknown system")
}

func (f *fakeUniverse) RouteJumps(ctx context.Context, originID, destinationID int) (*int, error) {
	if jumps, ok := f.routes[[2]int{originID, destinationID}]; ok {
		return &jumps, nil
	}
	return nil, nil
}

func (f *fakeUniverse) DistanceLY(ctx context.Context, originID, destinationID int) (*float64, error) {
	if distance, ok := f.distances[[2]int{originID, destinationID}]; ok {
		return &distance, nil
	}
	return nil, nil
}

func (f *fakeUniverse) ShipType(ctx context.Context, id int) (*resolve.ShipTypeInfo, error) {
	if ship, ok := f.ships[id]; ok {
		return ship, nil
	}
	return nil, errors.New("unknown type")
}

type fakeStates struct {
	states map[int64]string
	err    error
}

func (f *fakeStates) States(ctx context.Context, characterIDs []int64) (map[int64]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[int64]string)
	for _, id := range characterIDs {
		if state, ok := f.states[id]; ok {
			result[id] = state
		}
	}
	return result, nil
}

func newTestEvaluator(universe resolve.UniverseResolver, states resolve.UserStateLookup) *Evaluator {
	if universe == nil {
		universe = newFakeUniverse()
	}
	if states == nil {
		states = &fakeStates{}
	}
	return &Evaluator{
		universe:       universe,
		states:         states,
		maxAge:         time.Hour,
		fleetThreshold: 10,
		now:            func() time.Time { return frozenNow },
	}
}

func intPtr(v int) *int             { return &v }
func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

type attackerSpec struct {
	characterID   int64
	corporationID int64
	allianceID    int64
	factionID     int64
	shipTypeID    int
	finalBlow     bool
}

func buildAttacker(spec attackerSpec) killmailModels.Attacker {
	attacker := killmailModels.Attacker{IsFinalBlow: spec.finalBlow, DamageDone: 100}
	if spec.characterID != 0 {
		attacker.CharacterID = int64Ptr(spec.characterID)
	}
	if spec.corporationID != 0 {
		attacker.CorporationID = int64Ptr(spec.corporationID)
	}
	if spec.allianceID != 0 {
		attacker.AllianceID = int64Ptr(spec.allianceID)
	}
	if spec.factionID != 0 {
		attacker.FactionID = int64Ptr(spec.factionID)
	}
	if spec.shipTypeID != 0 {
		attacker.ShipTypeID = intPtr(spec.shipTypeID)
	}
	return attacker
}

// testKillmail is a fresh highsec killmail: two attackers from alliance
// 3001 (corp 2001), victim in alliance 3101.
func testKillmail() *killmailModels.Killmail {
	return &killmailModels.Killmail{
		KillmailID:    10000001,
		KillmailTime:  frozenNow.Add(-10 * time.Minute),
		SolarSystemID: intPtr(systemHigh),
		Victim: killmailModels.Victim{
			CharacterID:   int64Ptr(1011),
			CorporationID: int64Ptr(2101),
			AllianceID:    int64Ptr(3101),
			ShipTypeID:    intPtr(shipRattle),
			DamageTaken:   1542,
		},
		Attackers: []killmailModels.Attacker{
			buildAttacker(attackerSpec{characterID: 1001, corporationID: 2001, allianceID: 3001, shipTypeID: shipSvipul, finalBlow: true}),
			buildAttacker(attackerSpec{characterID: 1002, corporationID: 2001, allianceID: 3001, shipTypeID: shipGnosis}),
		},
		ZKB: killmailModels.ZKB{Hash: "abc123", TotalValue: 150_000_000, Points: 10},
	}
}

func testTracker() *models.Tracker {
	return &models.Tracker{
		ID:        "11111111-2222-3333-4444-555555555555",
		Name:      "Test Tracker",
		IsEnabled: true,
		WebhookID: "webhook-1",
		PingType:  models.PingTypeNone,
		Color:     models.ColorNone,
	}
}

func TestEvaluateEmptyTrackerMatchesEverything(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()
	killmail := testKillmail()

	result := evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{})

	require.NotNil(t, result)
	require.NotNil(t, result.TrackerInfo)
	assert.Equal(t, tracker.ID, result.TrackerInfo.TrackerID)
	// The input is never mutated; each tracker annotates its own copy.
	assert.Nil(t, killmail.TrackerInfo)
}

func TestEvaluateMaxAgeGate(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()

	killmail := testKillmail()
	killmail.KillmailTime = frozenNow.Add(-time.Hour - time.Second)

	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
	assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{IgnoreMaxAge: true}))

	fresh := testKillmail()
	assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, fresh, EvaluateOptions{}))
}

func TestEvaluateSecurityClassExcludes(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	tracker := testTracker()
	tracker.ExcludeNullSec = true
	tracker.ExcludeWSpace = true

	cases := []struct {
		name     string
		systemID int
		matches  bool
	}{
		{"low passes", systemLow, true},
		{"high passes", systemHigh, true},
		{"null dropped", systemNull, false},
		{"wspace dropped", systemWSpace, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			killmail := testKillmail()
			killmail.SolarSystemID = intPtr(tc.systemID)
			result := evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{})
			assert.Equal(t, tc.matches, result != nil)
		})
	}
}

func TestEvaluateSecurityExcludeOpenOnUnknownSystem(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()
	tracker.ExcludeHighSec = true

	killmail := testKillmail()
	killmail.SolarSystemID = intPtr(99999999)

	// Excludes cannot fire on missing data.
	assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
}

func TestEvaluateAttackerCountBounds(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	killmail := testKillmail() // two attackers

	tracker := testTracker()
	tracker.RequireMinAttackers = intPtr(3)
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))

	tracker = testTracker()
	tracker.RequireMinAttackers = intPtr(2)
	assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))

	tracker = testTracker()
	tracker.RequireMaxAttackers = intPtr(1)
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
}

func TestEvaluateNPCClauses(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	npcKill := testKillmail()
	npcKill.ZKB.IsNPC = true
	playerKill := testKillmail()

	excluding := testTracker()
	excluding.ExcludeNPCKills = true
	assert.Nil(t, evaluator.Evaluate(context.Background(), excluding, npcKill, EvaluateOptions{}))
	assert.NotNil(t, evaluator.Evaluate(context.Background(), excluding, playerKill, EvaluateOptions{}))

	requiring := testTracker()
	requiring.RequireNPCKills = true
	assert.NotNil(t, evaluator.Evaluate(context.Background(), requiring, npcKill, EvaluateOptions{}))
	assert.Nil(t, evaluator.Evaluate(context.Background(), requiring, playerKill, EvaluateOptions{}))
}

func TestEvaluateMinValueInMillions(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	tracker := testTracker()
	tracker.RequireMinValue = float64Ptr(51)

	killmail := testKillmail()
	killmail.ZKB.TotalValue = 50_000_000
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))

	killmail.ZKB.TotalValue = 51_000_000
	assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))

	// Missing appraisal compares as zero.
	killmail.ZKB.TotalValue = 0
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
}

func TestEvaluateLocationMembership(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	cases := []struct {
		name    string
		mutate  func(*models.Tracker)
		matches bool
	}{
		{"region match", func(t *models.Tracker) { t.RequireRegions = []int{10000043} }, true},
		{"region mismatch", func(t *models.Tracker) { t.RequireRegions = []int{10000002} }, false},
		{"constellation match", func(t *models.Tracker) { t.RequireConstellations = []int{20000322} }, true},
		{"constellation mismatch", func(t *models.Tracker) { t.RequireConstellations = []int{20000001} }, false},
		{"system match", func(t *models.Tracker) { t.RequireSolarSystems = []int{systemHigh} }, true},
		{"system mismatch", func(t *models.Tracker) { t.RequireSolarSystems = []int{systemLow} }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker := testTracker()
			tc.mutate(tracker)
			result := evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{})
			assert.Equal(t, tc.matches, result != nil)
		})
	}
}

func TestEvaluateLocationRequireClosedOnUnknownSystem(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()
	tracker.RequireRegions = []int{10000043}

	killmail := testKillmail()
	killmail.SolarSystemID = intPtr(99999999)
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))

	killmail.SolarSystemID = nil
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
}

func TestEvaluateMaxJumps(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	tracker := testTracker()
	tracker.OriginSolarSystemID = intPtr(systemOrigin)
	tracker.RequireMaxJumps = intPtr(10)

	result := evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{})
	require.NotNil(t, result)
	require.NotNil(t, result.TrackerInfo.Jumps)
	assert.Equal(t, 7, *result.TrackerInfo.Jumps)

	tracker.RequireMaxJumps = intPtr(6)
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))
}

func TestEvaluateMaxJumpsClosedOnNoRoute(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()
	tracker.OriginSolarSystemID = intPtr(systemOrigin)
	tracker.RequireMaxJumps = intPtr(50)

	killmail := testKillmail()
	killmail.SolarSystemID = intPtr(systemWSpace) // no route entry

	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
}

func TestEvaluateMaxDistance(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	tracker := testTracker()
	tracker.OriginSolarSystemID = intPtr(systemOrigin)
	tracker.RequireMaxDistance = float64Ptr(6.0)

	result := evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{})
	require.NotNil(t, result)
	require.NotNil(t, result.TrackerInfo.DistanceLY)
	assert.InDelta(t, 5.85, *result.TrackerInfo.DistanceLY, 0.01)

	tracker.RequireMaxDistance = float64Ptr(5.0)
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))
}

func TestEvaluateVictimAllianceRequired(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()
	tracker.RequireVictimAlliances = []int64{3001}

	matching := testKillmail()
	matching.KillmailID = 10000005
	matching.Victim.AllianceID = int64Ptr(3001)

	others := make([]*killmailModels.Killmail, 0, 4)
	for i := int64(1); i <= 4; i++ {
		killmail := testKillmail()
		killmail.KillmailID = 10000000 + i
		killmail.Victim.AllianceID = int64Ptr(3100 + i)
		others = append(others, killmail)
	}

	result := evaluator.Evaluate(context.Background(), tracker, matching, EvaluateOptions{})
	require.NotNil(t, result)
	assert.Equal(t, int64(10000005), result.KillmailID)

	for _, killmail := range others {
		assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
	}

	// Require is fail-closed: a victim without an alliance never matches.
	noAlliance := testKillmail()
	noAlliance.Victim.AllianceID = nil
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, noAlliance, EvaluateOptions{}))
}

func TestEvaluateVictimAllianceExcluded(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()
	tracker.ExcludeVictimAlliances = []int64{3101}

	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))

	other := testKillmail()
	other.Victim.AllianceID = int64Ptr(3102)
	assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, other, EvaluateOptions{}))

	// Exclude is fail-open: no alliance, no exclusion.
	noAlliance := testKillmail()
	noAlliance.Victim.AllianceID = nil
	assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, noAlliance, EvaluateOptions{}))
}

func TestEvaluateVictimCorporationClauses(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	requiring := testTracker()
	requiring.RequireVictimCorporations = []int64{2101}
	assert.NotNil(t, evaluator.Evaluate(context.Background(), requiring, testKillmail(), EvaluateOptions{}))

	requiring.RequireVictimCorporations = []int64{2999}
	assert.Nil(t, evaluator.Evaluate(context.Background(), requiring, testKillmail(), EvaluateOptions{}))

	excluding := testTracker()
	excluding.ExcludeVictimCorporations = []int64{2101}
	assert.Nil(t, evaluator.Evaluate(context.Background(), excluding, testKillmail(), EvaluateOptions{}))
}

func TestEvaluateAttackerOrganizations(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	t.Run("require alliance intersects", func(t *testing.T) {
		tracker := testTracker()
		tracker.RequireAttackerAlliances = []int64{3001}
		assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))

		tracker.RequireAttackerAlliances = []int64{3999}
		assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))
	})

	t.Run("exclude any attacker", func(t *testing.T) {
		tracker := testTracker()
		tracker.ExcludeAttackerAlliances = []int64{3001}
		assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))

		tracker.ExcludeAttackerAlliances = []int64{3999}
		assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))
	})

	t.Run("require corporation intersects", func(t *testing.T) {
		tracker := testTracker()
		tracker.RequireAttackerCorporations = []int64{2001}
		assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))

		tracker.RequireAttackerCorporations = []int64{2999}
		assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))
	})
}

func TestEvaluateFinalBlowDiscipline(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	t.Run("alliance final blow accepted", func(t *testing.T) {
		tracker := testTracker()
		tracker.RequireAttackerAlliances = []int64{3011}
		tracker.RequireAttackerOrganizationsFinalBlow = true

		killmail := testKillmail()
		killmail.Attackers = []killmailModels.Attacker{
			buildAttacker(attackerSpec{characterID: 1001, allianceID: 3011, finalBlow: true}),
		}
		assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
	})

	t.Run("corporation final blow accepted", func(t *testing.T) {
		tracker := testTracker()
		tracker.RequireAttackerCorporations = []int64{2011}
		tracker.RequireAttackerOrganizationsFinalBlow = true

		killmail := testKillmail()
		killmail.Attackers = []killmailModels.Attacker{
			buildAttacker(attackerSpec{characterID: 1001, corporationID: 2011, finalBlow: true}),
		}
		assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
	})

	t.Run("match without final blow denied", func(t *testing.T) {
		tracker := testTracker()
		tracker.RequireAttackerCorporations = []int64{2011}
		tracker.RequireAttackerOrganizationsFinalBlow = true

		killmail := testKillmail()
		killmail.Attackers = []killmailModels.Attacker{
			buildAttacker(attackerSpec{characterID: 1001, corporationID: 2011}),
			buildAttacker(attackerSpec{characterID: 1002, corporationID: 2001, finalBlow: true}),
		}
		assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
	})

	t.Run("either org set satisfies", func(t *testing.T) {
		// Both require sets configured; the final blow hits only the
		// corporation set, which is enough.
		tracker := testTracker()
		tracker.RequireAttackerAlliances = []int64{3001}
		tracker.RequireAttackerCorporations = []int64{2011}
		tracker.RequireAttackerOrganizationsFinalBlow = true

		killmail := testKillmail()
		killmail.Attackers = []killmailModels.Attacker{
			buildAttacker(attackerSpec{characterID: 1001, allianceID: 3001}),
			buildAttacker(attackerSpec{characterID: 1002, corporationID: 2011, finalBlow: true}),
		}
		assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
	})
}

func TestEvaluateVictimShipClauses(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	byType := testTracker()
	byType.RequireVictimShipTypes = []int{shipRattle}
	result := evaluator.Evaluate(context.Background(), byType, testKillmail(), EvaluateOptions{})
	require.NotNil(t, result)
	assert.Equal(t, []int{shipRattle}, result.TrackerInfo.MatchingShipTypeIDs)

	byType.RequireVictimShipTypes = []int{shipPod}
	assert.Nil(t, evaluator.Evaluate(context.Background(), byType, testKillmail(), EvaluateOptions{}))

	byGroup := testTracker()
	byGroup.RequireVictimShipGroups = []int{27}
	result = evaluator.Evaluate(context.Background(), byGroup, testKillmail(), EvaluateOptions{})
	require.NotNil(t, result)
	assert.Equal(t, []int{shipRattle}, result.TrackerInfo.MatchingShipTypeIDs)

	byGroup.RequireVictimShipGroups = []int{419}
	assert.Nil(t, evaluator.Evaluate(context.Background(), byGroup, testKillmail(), EvaluateOptions{}))
}

func TestEvaluateAttackerShipTypeAnnotation(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()
	tracker.RequireAttackersShipTypes = []int{shipSvipul}

	matching := testKillmail()
	matching.KillmailID = 10000101
	matching.Attackers = []killmailModels.Attacker{
		buildAttacker(attackerSpec{characterID: 1001, shipTypeID: shipSvipul, finalBlow: true}),
		buildAttacker(attackerSpec{characterID: 1002, shipTypeID: shipGnosis}),
		buildAttacker(attackerSpec{characterID: 1003, shipTypeID: shipGnosis}),
	}

	result := evaluator.Evaluate(context.Background(), tracker, matching, EvaluateOptions{})
	require.NotNil(t, result)
	assert.Equal(t, []int{shipSvipul}, result.TrackerInfo.MatchingShipTypeIDs)

	other := testKillmail()
	other.KillmailID = 10000201
	other.Attackers = []killmailModels.Attacker{
		buildAttacker(attackerSpec{characterID: 1001, shipTypeID: shipRattle, finalBlow: true}),
	}
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, other, EvaluateOptions{}))
}

func TestEvaluateAttackerShipGroups(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()
	tracker.RequireAttackersShipGroups = []int{419}

	result := evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{})
	require.NotNil(t, result)
	assert.Equal(t, []int{shipGnosis}, result.TrackerInfo.MatchingShipTypeIDs)

	tracker.RequireAttackersShipGroups = []int{29}
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))
}

func TestEvaluateAttackerShipUnknownTypeIsMiss(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()
	tracker.RequireAttackersShipGroups = []int{419}

	killmail := testKillmail()
	killmail.Attackers = []killmailModels.Attacker{
		buildAttacker(attackerSpec{characterID: 1001, shipTypeID: 77777777, finalBlow: true}),
	}
	assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
}

func TestEvaluateAuthStates(t *testing.T) {
	states := &fakeStates{states: map[int64]string{
		1001: "member",
		1011: "member",
	}}
	evaluator := newTestEvaluator(nil, states)

	t.Run("require attacker state", func(t *testing.T) {
		tracker := testTracker()
		tracker.RequireAttackerStates = []string{"member"}
		assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))

		tracker.RequireAttackerStates = []string{"guest"}
		assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))
	})

	t.Run("exclude attacker state", func(t *testing.T) {
		tracker := testTracker()
		tracker.ExcludeAttackerStates = []string{"member"}
		assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))

		tracker.ExcludeAttackerStates = []string{"guest"}
		assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))
	})

	t.Run("require victim state", func(t *testing.T) {
		tracker := testTracker()
		tracker.RequireVictimStates = []string{"member"}
		assert.NotNil(t, evaluator.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))

		killmail := testKillmail()
		killmail.Victim.CharacterID = int64Ptr(9999) // no mapping
		assert.Nil(t, evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{}))
	})

	t.Run("lookup failure is closed for require open for exclude", func(t *testing.T) {
		broken := newTestEvaluator(nil, &fakeStates{err: errors.New("down")})

		tracker := testTracker()
		tracker.RequireAttackerStates = []string{"member"}
		assert.Nil(t, broken.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))

		tracker = testTracker()
		tracker.ExcludeAttackerStates = []string{"member"}
		assert.NotNil(t, broken.Evaluate(context.Background(), tracker, testKillmail(), EvaluateOptions{}))
	})
}

func TestEvaluateMainOrgMajority(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()

	makeKillmail := func(allianceIDs ...int64) *killmailModels.Killmail {
		killmail := testKillmail()
		killmail.Attackers = nil
		for i, id := range allianceIDs {
			killmail.Attackers = append(killmail.Attackers, buildAttacker(attackerSpec{
				characterID: int64(1001 + i),
				allianceID:  id,
				finalBlow:   i == 0,
			}))
		}
		return killmail
	}

	t.Run("three of three", func(t *testing.T) {
		result := evaluator.Evaluate(context.Background(), tracker, makeKillmail(3001, 3001, 3001), EvaluateOptions{})
		require.NotNil(t, result)
		require.NotNil(t, result.TrackerInfo.MainOrg)
		assert.Equal(t, killmailModels.EntityCount{ID: 3001, Category: killmailModels.CategoryAlliance, Count: 3}, *result.TrackerInfo.MainOrg)
	})

	t.Run("two of three", func(t *testing.T) {
		result := evaluator.Evaluate(context.Background(), tracker, makeKillmail(3001, 3001, 3002), EvaluateOptions{})
		require.NotNil(t, result)
		require.NotNil(t, result.TrackerInfo.MainOrg)
		assert.Equal(t, int64(3001), result.TrackerInfo.MainOrg.ID)
		assert.Equal(t, 2, result.TrackerInfo.MainOrg.Count)
	})

	t.Run("one of three each", func(t *testing.T) {
		result := evaluator.Evaluate(context.Background(), tracker, makeKillmail(3001, 3002, 3003), EvaluateOptions{})
		require.NotNil(t, result)
		assert.Nil(t, result.TrackerInfo.MainOrg)
	})

	t.Run("tie yields none", func(t *testing.T) {
		result := evaluator.Evaluate(context.Background(), tracker, makeKillmail(3001, 3001, 3002, 3002), EvaluateOptions{})
		require.NotNil(t, result)
		assert.Nil(t, result.TrackerInfo.MainOrg)
	})

	t.Run("single attacker yields none", func(t *testing.T) {
		result := evaluator.Evaluate(context.Background(), tracker, makeKillmail(3001), EvaluateOptions{})
		require.NotNil(t, result)
		assert.Nil(t, result.TrackerInfo.MainOrg)
	})
}

func TestEvaluateMainOrgFallsBackToCorporation(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()

	killmail := testKillmail()
	killmail.Attackers = []killmailModels.Attacker{
		buildAttacker(attackerSpec{characterID: 1001, corporationID: 2001, allianceID: 3001, finalBlow: true}),
		buildAttacker(attackerSpec{characterID: 1002, corporationID: 2001, allianceID: 3002}),
	}

	result := evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{})
	require.NotNil(t, result)
	require.NotNil(t, result.TrackerInfo.MainOrg)
	assert.Equal(t, killmailModels.EntityCount{ID: 2001, Category: killmailModels.CategoryCorporation, Count: 2}, *result.TrackerInfo.MainOrg)
}

func TestEvaluateMainOrgNoneForFactionOnlyAttackers(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()

	killmail := testKillmail()
	killmail.Attackers = []killmailModels.Attacker{
		buildAttacker(attackerSpec{factionID: 500024, shipTypeID: shipRattle, finalBlow: true}),
		buildAttacker(attackerSpec{factionID: 500024, shipTypeID: shipRattle}),
	}

	result := evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{})
	require.NotNil(t, result)
	assert.Nil(t, result.TrackerInfo.MainOrg)
}

func TestEvaluateMainShipGroup(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()

	killmail := testKillmail()
	killmail.Attackers = []killmailModels.Attacker{
		buildAttacker(attackerSpec{characterID: 1001, shipTypeID: shipGnosis, finalBlow: true}),
		buildAttacker(attackerSpec{characterID: 1002, shipTypeID: shipDrake}),
		buildAttacker(attackerSpec{characterID: 1003, shipTypeID: shipSvipul}),
	}

	result := evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{})
	require.NotNil(t, result)
	require.NotNil(t, result.TrackerInfo.MainShipGroup)
	assert.Equal(t, killmailModels.EntityCount{
		ID:       419,
		Category: killmailModels.CategoryInventoryGroup,
		Name:     "Combat Battlecruiser",
		Count:    2,
	}, *result.TrackerInfo.MainShipGroup)
}

func TestEvaluateMainShipGroupNoneBelowThreshold(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)
	tracker := testTracker()

	killmail := testKillmail()
	killmail.Attackers = []killmailModels.Attacker{
		buildAttacker(attackerSpec{characterID: 1001, shipTypeID: shipGnosis, finalBlow: true}),
		buildAttacker(attackerSpec{characterID: 1002, shipTypeID: shipRattle}),
		buildAttacker(attackerSpec{characterID: 1003, shipTypeID: shipSvipul}),
	}

	result := evaluator.Evaluate(context.Background(), tracker, killmail, EvaluateOptions{})
	require.NotNil(t, result)
	assert.Nil(t, result.TrackerInfo.MainShipGroup)
}

func TestEvaluateFleetKill(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	bigKill := testKillmail()
	bigKill.Attackers = nil
	for i := 0; i < 10; i++ {
		bigKill.Attackers = append(bigKill.Attackers, buildAttacker(attackerSpec{
			characterID: int64(1001 + i),
			allianceID:  3001,
			finalBlow:   i == 0,
		}))
	}

	tracker := testTracker()
	tracker.IdentifyFleets = true
	result := evaluator.Evaluate(context.Background(), tracker, bigKill, EvaluateOptions{})
	require.NotNil(t, result)
	assert.True(t, result.TrackerInfo.IsFleetKill)

	smallKill := testKillmail()
	result = evaluator.Evaluate(context.Background(), tracker, smallKill, EvaluateOptions{})
	require.NotNil(t, result)
	assert.False(t, result.TrackerInfo.IsFleetKill)

	plain := testTracker()
	result = evaluator.Evaluate(context.Background(), plain, bigKill, EvaluateOptions{})
	require.NotNil(t, result)
	assert.False(t, result.TrackerInfo.IsFleetKill)
}

func TestEvaluateRouteFactsOnlyWithOrigin(t *testing.T) {
	evaluator := newTestEvaluator(nil, nil)

	withOrigin := testTracker()
	withOrigin.OriginSolarSystemID = intPtr(systemOrigin)
	result := evaluator.Evaluate(context.Background(), withOrigin, testKillmail(), EvaluateOptions{})
	require.NotNil(t, result)
	require.NotNil(t, result.TrackerInfo.Jumps)
	assert.Equal(t, 7, *result.TrackerInfo.Jumps)
	require.NotNil(t, result.TrackerInfo.DistanceLY)
	assert.InDelta(t, 5.85, *result.TrackerInfo.DistanceLY, 0.01)

	without := testTracker()
	result = evaluator.Evaluate(context.Background(), without, testKillmail(), EvaluateOptions{})
	require.NotNil(t, result)
	assert.Nil(t, result.TrackerInfo.Jumps)
	assert.Nil(t, result.TrackerInfo.DistanceLY)
}
