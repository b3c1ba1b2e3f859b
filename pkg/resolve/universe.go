// Package resolve provides the read-through resolvers the tracker
// evaluator and message formatter consume: solar system facts, ship
// taxonomy, entity names, and the externally maintained user-state map.
// Static data answers first; ESI fills the gaps and Redis keeps the
// answers warm.
package resolve

import (
	"context"
	"errors"
	"math"

	"go-killtracker/pkg/evegateway"
	"go-killtracker/pkg/evegateway/universe"
	"go-killtracker/pkg/sde"
)

// One lightyear in meters, as used for killmail distance display.
const metersPerLightyear = 9460730472580800

// SolarSystemInfo is the flat location record the evaluator consumes
type SolarSystemInfo struct {
	ID              int
	Name            string
	SecurityClass   sde.SecurityClass
	ConstellationID int
	RegionID        int
	Position        *sde.Position
}

// ShipTypeInfo describes one inventory type for matching and display
type ShipTypeInfo struct {
	ID         int
	Name       string
	GroupID    int
	GroupName  string
	CategoryID int
	Published  bool
}

// UniverseResolver answers location and ship taxonomy questions. A nil
// result without error means "unknown", which callers treat as a
// recoverable miss.
type UniverseResolver interface {
	SolarSystem(ctx context.Context, id int) (*SolarSystemInfo, error)
	RouteJumps(ctx context.Context, originID, destinationID int) (*int, error)
	DistanceLY(ctx context.Context, originID, destinationID int) (*float64, error)
	ShipType(ctx context.Context, id int) (*ShipTypeInfo, error)
}

// UniverseService resolves universe questions from the static data
// export, falling back to ESI for systems the export predates.
type UniverseService struct {
	sde sde.UniverseDataService
	esi *evegateway.Client
}

// NewUniverseService creates a new universe resolver
func NewUniverseService(sdeService sde.UniverseDataService, esiClient *evegateway.Client) *UniverseService {
	return &UniverseService{
		sde: sdeService,
		esi: esiClient,
	}
}

// SolarSystem resolves one solar system to its flat location record
func (s *UniverseService) SolarSystem(ctx context.Context, id int) (*SolarSystemInfo, error) {
	if system, err := s.sde.GetSolarSystem(id); err == nil {
		position := system.Position
		return &SolarSystemInfo{
			ID:              system.SolarSystemID,
			Name:            system.Name,
			SecurityClass:   sde.ClassifySecurity(system),
			ConstellationID: system.ConstellationID,
			RegionID:        system.RegionID,
			Position:        &position,
		}, nil
	}

	// System missing from the static data, likely newer than the export.
	info, err := s.esi.Universe.GetSystemInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	resolved := &SolarSystemInfo{
		ID:              info.SystemID,
		Name:            info.Name,
		ConstellationID: info.ConstellationID,
		SecurityClass: sde.ClassifySecurity(&sde.SolarSystem{
			SolarSystemID:  info.SystemID,
			SecurityStatus: info.SecurityStatus,
		}),
	}

	if info.Position != nil {
		resolved.Position = &sde.Position{X: info.Position.X, Y: info.Position.Y, Z: info.Position.Z}
	}

	// Region is one more hop away in ESI. A failed lookup leaves the
	// region unset, which region-membership clauses treat as a miss.
	if constellation, cerr := s.esi.Universe.GetConstellationInfo(ctx, info.ConstellationID); cerr == nil {
		resolved.RegionID = constellation.RegionID
	}

	return resolved, nil
}

// RouteJumps returns the shortest stargate route length between two
// systems, or nil when no route exists or neither source can answer.
func (s *UniverseService) RouteJumps(ctx context.Context, originID, destinationID int) (*int, error) {
	route, err := s.esi.Universe.GetRoute(ctx, originID, destinationID)
	if err == nil {
		jumps := len(route) - 1
		if jumps < 0 {
			jumps = 0
		}
		return &jumps, nil
	}

	if errors.Is(err, universe.ErrNoRoute) {
		return nil, nil
	}

	// ESI unreachable; the static stargate graph still gives a usable
	// answer even if it lags live gate changes.
	jumps, sdeErr := s.sde.RouteJumps(originID, destinationID)
	if sdeErr != nil {
		return nil, nil
	}
	return &jumps, nil
}

// DistanceLY returns the straight-line distance between two systems in
// lightyears, or nil when either position is unknown.
func (s *UniverseService) DistanceLY(ctx context.Context, originID, destinationID int) (*float64, error) {
	if meters, err := s.sde.DistanceMeters(originID, destinationID); err == nil {
		ly := meters / metersPerLightyear
		return &ly, nil
	}

	origin, err := s.SolarSystem(ctx, originID)
	if err != nil || origin == nil || origin.Position == nil {
		return nil, nil
	}
	destination, err := s.SolarSystem(ctx, destinationID)
	if err != nil || destination == nil || destination.Position == nil {
		return nil, nil
	}

	dx := origin.Position.X - destination.Position.X
	dy := origin.Position.Y - destination.Position.Y
	dz := origin.Position.Z - destination.Position.Z
	ly := math.Sqrt(dx*dx+dy*dy+dz*dz) / metersPerLightyear
	return &ly, nil
}

// ShipType resolves one inventory type with its group and category
func (s *UniverseService) ShipType(ctx context.Context, id int) (*ShipTypeInfo, error) {
	typ, err := s.sde.GetType(id)
	if err != nil {
		return nil, err
	}

	info := &ShipTypeInfo{
		ID:        typ.TypeID,
		Name:      typ.Name,
		GroupID:   typ.GroupID,
		Published: typ.Published,
	}

	if group, gerr := s.sde.GetGroup(typ.GroupID); gerr == nil {
		info.GroupName = group.Name
		info.CategoryID = group.CategoryID
	}

	return info, nil
}
