package sde

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDataDir lays out a minimal static data export: a five-system chain
// 1-2-3-4 with 5 unconnected, one constellation, one region, and a small
// ship taxonomy.
func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	systems := map[string]*SolarSystem{
		"1": {SolarSystemID: 1, Name: "Origin", ConstellationID: 10, RegionID: 100, SecurityStatus: 0.9, Position: Position{X: 0, Y: 0, Z: 0}},
		"2": {SolarSystemID: 2, Name: "Midway", ConstellationID: 10, RegionID: 100, SecurityStatus: 0.5, Position: Position{X: 3e16, Y: 4e16, Z: 0}},
		"3": {SolarSystemID: 3, Name: "Fringe", ConstellationID: 10, RegionID: 100, SecurityStatus: 0.3, Position: Position{X: 1e16, Y: 1e16, Z: 1e16}},
		"4": {SolarSystemID: 4, Name: "Deep", ConstellationID: 10, RegionID: 100, SecurityStatus: -0.2, Position: Position{X: 2e16, Y: 2e16, Z: 2e16}},
		"5": {SolarSystemID: 5, Name: "Island", ConstellationID: 10, RegionID: 100, SecurityStatus: 0.7, Position: Position{X: 9e16, Y: 0, Z: 0}},
	}
	jumps := []SystemJump{
		{FromSolarSystemID: 1, ToSolarSystemID: 2},
		{FromSolarSystemID: 2, ToSolarSystemID: 3},
		{FromSolarSystemID: 3, ToSolarSystemID: 4},
	}
	constellations := map[string]*Constellation{
		"10": {ConstellationID: 10, Name: "Cluster", RegionID: 100},
	}
	regions := map[string]*Region{
		"100": {RegionID: 100, Name: "Expanse"},
	}
	groups := map[string]*Group{
		"419": {GroupID: 419, CategoryID: CategoryShip, Name: "Combat Battlecruiser"},
	}
	types := map[string]*Type{
		"17715": {TypeID: 17715, GroupID: 419, Name: "Gila"},
	}

	writeJSON(t, dir, "solarSystems.json", systems)
	writeJSON(t, dir, "systemJumps.json", jumps)
	writeJSON(t, dir, "constellations.json", constellations)
	writeJSON(t, dir, "regions.json", regions)
	writeJSON(t, dir, "groups.json", groups)
	writeJSON(t, dir, "types.json", types)
	return dir
}

func writeJSON(t *testing.T, dir, name string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestServiceLoadsLazily(t *testing.T) {
	service := NewService(writeDataDir(t))
	assert.False(t, service.IsLoaded())

	system, err := service.GetSolarSystem(1)
	require.NoError(t, err)
	assert.Equal(t, "Origin", system.Name)
	assert.True(t, service.IsLoaded())

	status := service.GetLoadStatus()
	assert.Equal(t, 5, status["solarSystems"].Count)
	assert.Equal(t, 1, status["types"].Count)
}

func TestServiceLookups(t *testing.T) {
	service := NewService(writeDataDir(t))

	constellation, err := service.GetConstellation(10)
	require.NoError(t, err)
	assert.Equal(t, "Cluster", constellation.Name)

	region, err := service.GetRegion(100)
	require.NoError(t, err)
	assert.Equal(t, "Expanse", region.Name)

	typ, err := service.GetType(17715)
	require.NoError(t, err)
	assert.Equal(t, 419, typ.GroupID)

	group, err := service.GetGroup(419)
	require.NoError(t, err)
	assert.Equal(t, CategoryShip, group.CategoryID)

	_, err = service.GetSolarSystem(999)
	assert.Error(t, err)
}

func TestServiceMissingDataDir(t *testing.T) {
	service := NewService(filepath.Join(t.TempDir(), "missing"))

	_, err := service.GetSolarSystem(1)
	require.Error(t, err)
	assert.False(t, service.IsLoaded())
}

func TestRouteJumps(t *testing.T) {
	service := NewService(writeDataDir(t))

	cases := []struct {
		name        string
		origin      int
		destination int
		jumps       int
		wantErr     bool
	}{
		{"same system", 1, 1, 0, false},
		{"adjacent", 1, 2, 1, false},
		{"two hops", 1, 3, 2, false},
		{"three hops", 1, 4, 3, false},
		// Connections are stored directed but traversal is symmetric.
		{"reverse direction", 4, 1, 3, false},
		{"unreachable island", 1, 5, 0, true},
		{"unknown origin", 999, 1, 0, true},
		{"unknown destination", 1, 999, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jumps, err := service.RouteJumps(tc.origin, tc.destination)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.jumps, jumps)
		})
	}
}

func TestDistanceMeters(t *testing.T) {
	service := NewService(writeDataDir(t))

	// 3-4-5 triangle scaled to 1e16 meters.
	distance, err := service.DistanceMeters(1, 2)
	require.NoError(t, err)
	assert.InEpsilon(t, 5e16, distance, 1e-9)

	distance, err = service.DistanceMeters(1, 1)
	require.NoError(t, err)
	assert.Zero(t, distance)

	_, err = service.DistanceMeters(1, 999)
	assert.Error(t, err)
}

func TestClassifySecurity(t *testing.T) {
	cases := []struct {
		name     string
		system   *SolarSystem
		expected SecurityClass
	}{
		{"nil system", nil, SecurityUnknown},
		{"high sec", &SolarSystem{SolarSystemID: 1, SecurityStatus: 1.0}, SecurityHighSec},
		{"boundary 0.5", &SolarSystem{SolarSystemID: 1, SecurityStatus: 0.5}, SecurityHighSec},
		// 0.45 displays as 0.5 in game, so it counts as high sec.
		{"rounds up to high", &SolarSystem{SolarSystemID: 1, SecurityStatus: 0.45}, SecurityHighSec},
		{"rounds down to low", &SolarSystem{SolarSystemID: 1, SecurityStatus: 0.44}, SecurityLowSec},
		{"low sec", &SolarSystem{SolarSystemID: 1, SecurityStatus: 0.1}, SecurityLowSec},
		{"zero is null", &SolarSystem{SolarSystemID: 1, SecurityStatus: 0.0}, SecurityNullSec},
		{"negative is null", &SolarSystem{SolarSystemID: 1, SecurityStatus: -0.3}, SecurityNullSec},
		{"wormhole id range", &SolarSystem{SolarSystemID: 31000001, SecurityStatus: -0.99}, SecurityWSpace},
		{"wormhole range end", &SolarSystem{SolarSystemID: 31999999, SecurityStatus: 1.0}, SecurityWSpace},
		{"just past wormhole range", &SolarSystem{SolarSystemID: 32000000, SecurityStatus: -0.9}, SecurityNullSec},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ClassifySecurity(tc.system))
		})
	}
}

func TestReloadAll(t *testing.T) {
	dir := writeDataDir(t)
	service := NewService(dir)

	_, err := service.GetSolarSystem(1)
	require.NoError(t, err)

	// Replace the export with a single system and reload.
	writeJSON(t, dir, "solarSystems.json", map[string]*SolarSystem{
		"7": {SolarSystemID: 7, Name: "Replacement", ConstellationID: 10, RegionID: 100},
	})
	require.NoError(t, service.ReloadAll())

	_, err = service.GetSolarSystem(1)
	assert.Error(t, err)
	system, err := service.GetSolarSystem(7)
	require.NoError(t, err)
	assert.Equal(t, "Replacement", system.Name)
}
