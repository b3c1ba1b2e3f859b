package sde

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Service provides in-memory access to the static universe data the tracker
// pipeline needs: solar systems with their positions and security status, the
// stargate graph for jump routing, and the ship type/group taxonomy.
type Service struct {
	solarSystems   map[int]*SolarSystem
	constellations map[int]*Constellation
	regions        map[int]*Region
	jumps          map[int][]int
	groups         map[int]*Group
	types          map[int]*Type
	loaded         bool
	loadMu         sync.Mutex // Only used during initial loading
	dataDir        string
}

// NewService creates a new universe data service instance
func NewService(dataDir string) *Service {
	return &Service{
		solarSystems:   make(map[int]*SolarSystem),
		constellations: make(map[int]*Constellation),
		regions:        make(map[int]*Region),
		jumps:          make(map[int][]int),
		groups:         make(map[int]*Group),
		types:          make(map[int]*Type),
		dataDir:        dataDir,
	}
}

// ensureLoaded loads universe data if not already loaded
func (s *Service) ensureLoaded() error {
	// Loaded flips once and never back, so the unlocked read is safe.
	if s.loaded {
		return nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	// Another goroutine may have finished loading while we waited.
	if s.loaded {
		return nil
	}

	if err := s.loadSolarSystems(); err != nil {
		return fmt.Errorf("failed to load solar systems: %w", err)
	}

	if err := s.loadConstellations(); err != nil {
		return fmt.Errorf("failed to load constellations: %w", err)
	}

	if err := s.loadRegions(); err != nil {
		return fmt.Errorf("failed to load regions: %w", err)
	}

	if err := s.loadSystemJumps(); err != nil {
		return fmt.Errorf("failed to load system jumps: %w", err)
	}

	if err := s.loadGroups(); err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}

	if err := s.loadTypes(); err != nil {
		return fmt.Errorf("failed to load types: %w", err)
	}

	s.loaded = true

	slog.Info("Universe data loaded successfully",
		"solar_systems_count", len(s.solarSystems),
		"constellations_count", len(s.constellations),
		"regions_count", len(s.regions),
		"jump_nodes_count", len(s.jumps),
		"groups_count", len(s.groups),
		"types_count", len(s.types),
	)

	return nil
}

// loadSolarSystems loads solar system data from JSON file
func (s *Service) loadSolarSystems() error {
	filePath := filepath.Join(s.dataDir, "solarSystems.json")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read solar systems file: %w", err)
	}

	var systems map[string]*SolarSystem
	if err := json.Unmarshal(data, &systems); err != nil {
		return fmt.Errorf("failed to unmarshal solar systems: %w", err)
	}

	s.solarSystems = make(map[int]*SolarSystem, len(systems))
	for key, system := range systems {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("non-numeric solar system key %q: %w", key, err)
		}
		s.solarSystems[id] = system
	}
	return nil
}

// loadConstellations loads constellation data from JSON file
func (s *Service) loadConstellations() error {
	filePath := filepath.Join(s.dataDir, "constellations.json")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read constellations file: %w", err)
	}

	var constellations map[string]*Constellation
	if err := json.Unmarshal(data, &constellations); err != nil {
		return fmt.Errorf("failed to unmarshal constellations: %w", err)
	}

	s.constellations = make(map[int]*Constellation, len(constellations))
	for key, constellation := range constellations {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("non-numeric constellation key %q: %w", key, err)
		}
		s.constellations[id] = constellation
	}
	return nil
}

// loadRegions loads region data from JSON file
func (s *Service) loadRegions() error {
	filePath := filepath.Join(s.dataDir, "regions.json")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read regions file: %w", err)
	}

	var regions map[string]*Region
	if err := json.Unmarshal(data, &regions); err != nil {
		return fmt.Errorf("failed to unmarshal regions: %w", err)
	}

	s.regions = make(map[int]*Region, len(regions))
	for key, region := range regions {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("non-numeric region key %q: %w", key, err)
		}
		s.regions[id] = region
	}
	return nil
}

// loadSystemJumps loads the stargate graph from JSON file. Connections are
// stored directed in the export; the adjacency map carries both directions.
func (s *Service) loadSystemJumps() error {
	filePath := filepath.Join(s.dataDir, "systemJumps.json")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read system jumps file: %w", err)
	}

	var connections []SystemJump
	if err := json.Unmarshal(data, &connections); err != nil {
		return fmt.Errorf("failed to unmarshal system jumps: %w", err)
	}

	jumps := make(map[int][]int)
	seen := make(map[[2]int]bool, len(connections)*2)
	add := func(from, to int) {
		key := [2]int{from, to}
		if seen[key] {
			return
		}
		seen[key] = true
		jumps[from] = append(jumps[from], to)
	}
	for _, conn := range connections {
		add(conn.FromSolarSystemID, conn.ToSolarSystemID)
		add(conn.ToSolarSystemID, conn.FromSolarSystemID)
	}

	s.jumps = jumps
	return nil
}

// loadGroups loads inventory group data from JSON file
func (s *Service) loadGroups() error {
	filePath := filepath.Join(s.dataDir, "groups.json")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read groups file: %w", err)
	}

	var groups map[string]*Group
	if err := json.Unmarshal(data, &groups); err != nil {
		return fmt.Errorf("failed to unmarshal groups: %w", err)
	}

	s.groups = make(map[int]*Group, len(groups))
	for key, group := range groups {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("non-numeric group key %q: %w", key, err)
		}
		s.groups[id] = group
	}
	return nil
}

// loadTypes loads inventory type data from JSON file
func (s *Service) loadTypes() error {
	filePath := filepath.Join(s.dataDir, "types.json")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read types file: %w", err)
	}

	var types map[string]*Type
	if err := json.Unmarshal(data, &types); err != nil {
		return fmt.Errorf("failed to unmarshal types: %w", err)
	}

	s.types = make(map[int]*Type, len(types))
	for key, typ := range types {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("non-numeric type key %q: %w", key, err)
		}
		s.types[id] = typ
	}
	return nil
}

// GetSolarSystem retrieves a solar system by ID
func (s *Service) GetSolarSystem(id int) (*SolarSystem, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	system, exists := s.solarSystems[id]
	if !exists {
		return nil, fmt.Errorf("solar system %d not found", id)
	}

	return system, nil
}

// GetConstellation retrieves a constellation by ID
func (s *Service) GetConstellation(id int) (*Constellation, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	constellation, exists := s.constellations[id]
	if !exists {
		return nil, fmt.Errorf("constellation %d not found", id)
	}

	return constellation, nil
}

// GetRegion retrieves a region by ID
func (s *Service) GetRegion(id int) (*Region, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	region, exists := s.regions[id]
	if !exists {
		return nil, fmt.Errorf("region %d not found", id)
	}

	return region, nil
}

// GetType retrieves an inventory type by ID
func (s *Service) GetType(id int) (*Type, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	typ, exists := s.types[id]
	if !exists {
		return nil, fmt.Errorf("type %d not found", id)
	}

	return typ, nil
}

// GetGroup retrieves an inventory group by ID
func (s *Service) GetGroup(id int) (*Group, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	group, exists := s.groups[id]
	if !exists {
		return nil, fmt.Errorf("group %d not found", id)
	}

	return group, nil
}

// RouteJumps returns the shortest number of stargate jumps between two solar
// systems, 0 when origin and destination are the same system. Returns an
// error when either system is unknown or no gate route exists (wormhole
// systems have no gates).
func (s *Service) RouteJumps(originID, destinationID int) (int, error) {
	if err := s.ensureLoaded(); err != nil {
		return 0, err
	}

	if _, exists := s.solarSystems[originID]; !exists {
		return 0, fmt.Errorf("solar system %d not found", originID)
	}
	if _, exists := s.solarSystems[destinationID]; !exists {
		return 0, fmt.Errorf("solar system %d not found", destinationID)
	}
	if originID == destinationID {
		return 0, nil
	}

	// Plain breadth-first search over the gate graph.
	visited := map[int]bool{originID: true}
	frontier := []int{originID}
	depth := 0

	for len(frontier) > 0 {
		depth++
		var next []int
		for _, systemID := range frontier {
			for _, neighbor := range s.jumps[systemID] {
				if visited[neighbor] {
					continue
				}
				if neighbor == destinationID {
					return depth, nil
				}
				visited[neighbor] = true
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	return 0, fmt.Errorf("no gate route between %d and %d", originID, destinationID)
}

// DistanceMeters returns the straight-line distance between two solar systems
// in meters
func (s *Service) DistanceMeters(originID, destinationID int) (float64, error) {
	if err := s.ensureLoaded(); err != nil {
		return 0, err
	}

	origin, exists := s.solarSystems[originID]
	if !exists {
		return 0, fmt.Errorf("solar system %d not found", originID)
	}
	destination, exists := s.solarSystems[destinationID]
	if !exists {
		return 0, fmt.Errorf("solar system %d not found", destinationID)
	}

	dx := origin.Position.X - destination.Position.X
	dy := origin.Position.Y - destination.Position.Y
	dz := origin.Position.Z - destination.Position.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz), nil
}

// IsLoaded reports whether the data files have been read into memory
func (s *Service) IsLoaded() bool {
	return s.loaded
}
